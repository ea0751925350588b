// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/clearledger/portal-api/app/dto"
	"github.com/clearledger/portal-api/models"
	"github.com/clearledger/portal-api/repository"
	"github.com/clearledger/portal-api/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// RequiredConsents returns the consent types an account of the given
// entity type must have on record before consent-gated services can
// proceed. Individuals sign the tax agent authority; entity accounts
// additionally sign the engagement letter.
func RequiredConsents(entityType string) []string {
	required := []string{models.ConsentTypeTaxAgentAuthority}
	switch entityType {
	case models.AccountTypeCompany, models.AccountTypeTrust, models.AccountTypePartnership:
		required = append(required, models.ConsentTypeEngagementLetter)
	}
	return required
}

// MissingConsents returns the required consent types not present in the
// recorded set.
func MissingConsents(entityType string, recorded []string) []string {
	have := make(map[string]bool, len(recorded))
	for _, t := range recorded {
		have[t] = true
	}
	var missing []string
	for _, t := range RequiredConsents(entityType) {
		if !have[t] {
			missing = append(missing, t)
		}
	}
	return missing
}

// ConsentFlow records signed agreements and answers the gating question
// for service purchases.
type ConsentFlow interface {
	Accept(ctx context.Context, userID uint, req *dto.AcceptConsentRequest, metadata *ClientMetadata) (*dto.ConsentDTO, error)
	Check(ctx context.Context, userID uint, accountUUID string) (*dto.ConsentCheckResponse, error)
	List(ctx context.Context, userID uint, accountUUID string) ([]dto.ConsentDTO, error)
	HasRequiredConsents(ctx context.Context, account *models.Account) (bool, []string, error)
}

// ConsentFlowImpl implements the consent business flow
type ConsentFlowImpl struct {
	consentRepo repository.LegalConsentRepository
	accountRepo repository.AccountRepository
	auditRepo   repository.AuditLogRepository
	redisClient *redis.Client
	db          *gorm.DB
}

const consentCacheTTL = 10 * time.Minute

// NewConsentFlow creates a new consent flow instance. redisClient may be
// nil; gating checks then always hit the database.
func NewConsentFlow(
	consentRepo repository.LegalConsentRepository,
	accountRepo repository.AccountRepository,
	auditRepo repository.AuditLogRepository,
	redisClient *redis.Client,
	db *gorm.DB,
) ConsentFlow {
	return &ConsentFlowImpl{
		consentRepo: consentRepo,
		accountRepo: accountRepo,
		auditRepo:   auditRepo,
		redisClient: redisClient,
		db:          db,
	}
}

// Accept appends a signed consent record. Re-signing the same type adds
// a new row; history is never rewritten.
func (f *ConsentFlowImpl) Accept(ctx context.Context, userID uint, req *dto.AcceptConsentRequest, metadata *ClientMetadata) (*dto.ConsentDTO, error) {
	account, err := f.ownedAccount(ctx, userID, req.AccountUUID)
	if err != nil {
		return nil, err
	}

	switch req.ConsentType {
	case models.ConsentTypeTaxAgentAuthority, models.ConsentTypeEngagementLetter,
		models.ConsentTypeTermsOfService, models.ConsentTypePrivacyPolicy:
	default:
		return nil, NewBusinessError("INVALID_CONSENT_TYPE", "Unknown consent type", ErrInvalidConsentType)
	}
	if req.SignaturePayload == "" {
		return nil, NewBusinessError("SIGNATURE_REQUIRED", "A signature is required", ErrSignatureRequired)
	}
	if req.SignatureMode != models.SignatureModeTyped && req.SignatureMode != models.SignatureModeDrawn {
		return nil, NewBusinessError("INVALID_SIGNATURE_MODE", "Unknown signature mode", ErrInvalidSignatureMode)
	}

	consent := &models.LegalConsent{
		UUID:             uuid.New(),
		AccountID:        account.ID,
		UserID:           userID,
		ConsentType:      req.ConsentType,
		DocumentVersion:  req.DocumentVersion,
		SignaturePayload: req.SignaturePayload,
		SignatureMode:    req.SignatureMode,
		AcceptedAt:       utils.UTCNow(),
	}
	if metadata != nil {
		if metadata.IPAddress != "" {
			consent.IPAddress = &metadata.IPAddress
		}
		if metadata.UserAgent != "" {
			consent.UserAgent = &metadata.UserAgent
		}
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		return f.consentRepo.Save(txCtx, consent)
	})
	if err != nil {
		return nil, NewBusinessError("CONSENT_ACCEPT_FAILED", "Failed to record consent", err)
	}

	f.invalidateCache(ctx, account.ID)
	f.logConsentAction(ctx, userID, fmt.Sprintf("consent accepted: %s v%s on account %s", req.ConsentType, req.DocumentVersion, account.UUID), metadata)

	out := ToConsentDTO(*consent, account.UUID.String())
	return &out, nil
}

// Check reports the account's consent position
func (f *ConsentFlowImpl) Check(ctx context.Context, userID uint, accountUUID string) (*dto.ConsentCheckResponse, error) {
	account, err := f.ownedAccount(ctx, userID, accountUUID)
	if err != nil {
		return nil, err
	}

	recorded, err := f.consentRepo.TypesByAccount(ctx, account.ID)
	if err != nil {
		return nil, NewBusinessError("CONSENT_CHECK_FAILED", "Failed to check consents", err)
	}

	missing := MissingConsents(account.EntityType, recorded)
	return &dto.ConsentCheckResponse{
		AccountUUID: account.UUID.String(),
		EntityType:  account.EntityType,
		Required:    RequiredConsents(account.EntityType),
		Recorded:    recorded,
		Missing:     missing,
		HasAll:      len(missing) == 0,
	}, nil
}

// List returns the account's consent history, newest first
func (f *ConsentFlowImpl) List(ctx context.Context, userID uint, accountUUID string) ([]dto.ConsentDTO, error) {
	account, err := f.ownedAccount(ctx, userID, accountUUID)
	if err != nil {
		return nil, err
	}

	consents, err := f.consentRepo.ListByAccount(ctx, account.ID)
	if err != nil {
		return nil, NewBusinessError("CONSENT_LIST_FAILED", "Failed to list consents", err)
	}

	out := make([]dto.ConsentDTO, 0, len(consents))
	for _, c := range consents {
		out = append(out, ToConsentDTO(*c, account.UUID.String()))
	}
	return out, nil
}

// HasRequiredConsents answers the purchase gate. A positive answer is
// cached briefly in Redis; consent acceptance invalidates the key.
func (f *ConsentFlowImpl) HasRequiredConsents(ctx context.Context, account *models.Account) (bool, []string, error) {
	if f.redisClient != nil {
		cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		val, err := f.redisClient.Get(cacheCtx, consentCacheKey(account.ID)).Result()
		cancel()
		if err == nil && val == "1" {
			return true, nil, nil
		}
	}

	recorded, err := f.consentRepo.TypesByAccount(ctx, account.ID)
	if err != nil {
		return false, nil, err
	}
	missing := MissingConsents(account.EntityType, recorded)
	if len(missing) > 0 {
		return false, missing, nil
	}

	if f.redisClient != nil {
		cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_ = f.redisClient.Set(cacheCtx, consentCacheKey(account.ID), "1", consentCacheTTL).Err()
		cancel()
	}
	return true, nil, nil
}

func (f *ConsentFlowImpl) invalidateCache(ctx context.Context, accountID uint) {
	if f.redisClient == nil {
		return
	}
	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_ = f.redisClient.Del(cacheCtx, consentCacheKey(accountID)).Err()
}

func consentCacheKey(accountID uint) string {
	return fmt.Sprintf("consent_status:%d", accountID)
}

func (f *ConsentFlowImpl) ownedAccount(ctx context.Context, userID uint, accountUUID string) (*models.Account, error) {
	account, err := f.accountRepo.ByUUID(ctx, accountUUID)
	if err != nil {
		return nil, NewBusinessError("ACCOUNT_LOOKUP_FAILED", "Failed to lookup account", err)
	}
	if account == nil {
		return nil, NewBusinessError("ACCOUNT_NOT_FOUND", "Account not found", ErrAccountNotFound)
	}
	if account.UserID != userID {
		return nil, NewBusinessError("ACCOUNT_ACCESS_DENIED", "Account does not belong to you", ErrAccountAccessDenied)
	}
	return account, nil
}

func (f *ConsentFlowImpl) logConsentAction(ctx context.Context, userID uint, description string, metadata *ClientMetadata) {
	audit := &models.AuditLog{
		UserID:      &userID,
		Action:      models.AuditActionConsentAccepted,
		Description: &description,
		Success:     utils.ToPtr(true),
	}
	if metadata != nil {
		audit.IPAddress = &metadata.IPAddress
		audit.UserAgent = &metadata.UserAgent
	}
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		audit.RequestID = &requestID
	}
	_ = f.auditRepo.Save(ctx, audit)
}
