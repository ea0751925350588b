// Package testing provides test utilities and database setup for testing the client portal
package testing

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	mrand "math/rand"
	"time"

	"github.com/clearledger/portal-api/models"
	"github.com/clearledger/portal-api/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestUser creates an active user with a bcrypt-hashed password
// of "TestPass123!".
func (tf *TestFixtures) CreateTestUser(email string) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("TestPass123!"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if email == "" {
		email = fmt.Sprintf("user.%d@example.com", mrand.Intn(10000000))
	}

	user := &models.User{
		UUID:            uuid.New(),
		Email:           email,
		PasswordHash:    string(hashedPassword),
		FirstName:       "Jamie",
		LastName:        "Nguyen",
		IsActive:        utils.ToPtr(true),
		IsEmailVerified: utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}

	return user, nil
}

// CreateTestAccount creates an account of the given entity type with a
// matching profile sub-record, in the given lifecycle status.
func (tf *TestFixtures) CreateTestAccount(userID uint, entityType, status string) (*models.Account, error) {
	account := &models.Account{
		UUID:       uuid.New(),
		UserID:     userID,
		EntityType: entityType,
		Status:     status,
		IsDefault:  utils.ToPtr(false),
	}

	switch entityType {
	case models.AccountTypeIndividual:
		dob := time.Date(1988, 4, 12, 0, 0, 0, 0, time.UTC)
		account.IndividualProfile = &models.IndividualProfile{
			FirstName:   "Jamie",
			LastName:    "Nguyen",
			DateOfBirth: &dob,
			TFN:         utils.ToPtr("123456782"),
		}
	case models.AccountTypeCompany:
		account.CompanyProfile = &models.CompanyProfile{
			CompanyName: "Test Holdings Pty Ltd",
			ACN:         utils.ToPtr("123456789"),
			ABN:         utils.ToPtr("51824753556"),
		}
	case models.AccountTypeTrust:
		account.TrustProfile = &models.TrustProfile{
			TrustName:   "Nguyen Family Trust",
			TrusteeName: utils.ToPtr("Jamie Nguyen"),
			ABN:         utils.ToPtr("51824753556"),
		}
	case models.AccountTypePartnership:
		account.PartnershipProfile = &models.PartnershipProfile{
			PartnershipName: "Nguyen & Co",
			ABN:             utils.ToPtr("51824753556"),
		}
	}

	if err := tf.DB.DB.Create(account).Error; err != nil {
		return nil, fmt.Errorf("failed to create test account: %w", err)
	}

	return account, nil
}

// CreateTestService creates an active catalogue service with prices for
// the given entity types.
func (tf *TestFixtures) CreateTestService(code string, requiresConsent bool, entityTypes ...string) (*models.Service, error) {
	if len(entityTypes) == 0 {
		entityTypes = models.ValidAccountTypes
	}

	allowed := ""
	for i, t := range entityTypes {
		if i > 0 {
			allowed += ","
		}
		allowed += t
	}

	service := &models.Service{
		UUID:               uuid.New(),
		Code:               code,
		Name:               "Annual Tax Return",
		AllowedEntityTypes: allowed,
		RequiresConsent:    utils.ToPtr(requiresConsent),
		IsActive:           utils.ToPtr(true),
	}
	for _, t := range entityTypes {
		service.Prices = append(service.Prices, models.ServicePrice{
			EntityType:  t,
			AmountCents: 19900,
			Currency:    "AUD",
		})
	}

	if err := tf.DB.DB.Create(service).Error; err != nil {
		return nil, fmt.Errorf("failed to create test service: %w", err)
	}

	return service, nil
}

// CreateTestPartner creates a partner invitation on an account
func (tf *TestFixtures) CreateTestPartner(accountID uint, kind, email, status string) (*models.Partner, error) {
	partner := &models.Partner{
		UUID:          uuid.New(),
		CorrelationID: uuid.New(),
		AccountID:     accountID,
		Kind:          kind,
		Email:         utils.NormalizeEmail(email),
		Status:        status,
		InvitedAt:     utils.UTCNow(),
	}
	if kind == models.PartnerKindCompany {
		partner.IsDirector = utils.ToPtr(true)
	} else {
		partner.Role = utils.ToPtr("Partner")
	}

	if err := tf.DB.DB.Create(partner).Error; err != nil {
		return nil, fmt.Errorf("failed to create test partner: %w", err)
	}

	return partner, nil
}

// CreateTestConsent records a signed consent against an account
func (tf *TestFixtures) CreateTestConsent(accountID, userID uint, consentType string) (*models.LegalConsent, error) {
	consent := &models.LegalConsent{
		UUID:             uuid.New(),
		AccountID:        accountID,
		UserID:           userID,
		ConsentType:      consentType,
		DocumentVersion:  "v1.0",
		SignaturePayload: "Jamie Nguyen",
		SignatureMode:    models.SignatureModeTyped,
		AcceptedAt:       utils.UTCNow(),
	}

	if err := tf.DB.DB.Create(consent).Error; err != nil {
		return nil, fmt.Errorf("failed to create test consent: %w", err)
	}

	return consent, nil
}

// CreateTestPurchase creates a purchase row linking an account to a service
func (tf *TestFixtures) CreateTestPurchase(accountID, serviceID uint, financialYear, status, paymentStatus string) (*models.AccountService, error) {
	purchase := &models.AccountService{
		UUID:          uuid.New(),
		CorrelationID: uuid.New(),
		AccountID:     accountID,
		ServiceID:     serviceID,
		FinancialYear: financialYear,
		AmountCents:   19900,
		Currency:      "AUD",
		Status:        status,
		PaymentStatus: paymentStatus,
	}

	if err := tf.DB.DB.Create(purchase).Error; err != nil {
		return nil, fmt.Errorf("failed to create test purchase: %w", err)
	}

	return purchase, nil
}

// CreateTestSession creates a user session
func (tf *TestFixtures) CreateTestSession(userID uint) (*models.UserSession, error) {
	sessionToken, err := GenerateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate secure session token: %w", err)
	}

	refreshToken, err := GenerateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate secure refresh token: %w", err)
	}

	ipAddress := "127.0.0.1"
	userAgent := "Test User Agent"

	session := &models.UserSession{
		CorrelationID: uuid.New(),
		UserID:        userID,
		SessionToken:  sessionToken,
		RefreshToken:  &refreshToken,
		ExpiresAt:     utils.UTCNow().Add(24 * time.Hour),
		IsActive:      utils.ToPtr(true),
		IPAddress:     &ipAddress,
		UserAgent:     &userAgent,
	}

	if err := tf.DB.DB.Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create test session: %w", err)
	}

	return session, nil
}

// CreateTestAdmin creates an active back-office admin with the password
// "AdminPass123!".
func (tf *TestFixtures) CreateTestAdmin(username string) (*models.Admin, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("AdminPass123!"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &models.Admin{
		UUID:         uuid.New(),
		Username:     username,
		PasswordHash: string(hashedPassword),
		IsActive:     utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(admin).Error; err != nil {
		return nil, fmt.Errorf("failed to create test admin: %w", err)
	}

	return admin, nil
}

// GenerateSecureToken returns length random bytes base64-encoded
func GenerateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
