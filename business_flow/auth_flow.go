// Package businessflow contains the core business logic and use cases for authentication workflows
package businessflow

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/clearledger/portal-api/app/dto"
	"github.com/clearledger/portal-api/app/services"
	"github.com/clearledger/portal-api/models"
	"github.com/clearledger/portal-api/repository"
	"github.com/clearledger/portal-api/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuthFlow handles user registration, login and session management
type AuthFlow interface {
	Signup(ctx context.Context, req *dto.SignupRequest, metadata *ClientMetadata) (*dto.SignupResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error)
	Refresh(ctx context.Context, req *dto.RefreshTokenRequest, metadata *ClientMetadata) (*dto.LoginResponse, error)
	Logout(ctx context.Context, sessionToken string, metadata *ClientMetadata) error
}

// AuthFlowImpl implements the authentication business flow
type AuthFlowImpl struct {
	userRepo    repository.UserRepository
	sessionRepo repository.UserSessionRepository
	partnerRepo repository.PartnerRepository
	auditRepo   repository.AuditLogRepository
	tokenSvc    services.TokenService
	db          *gorm.DB
}

// NewAuthFlow creates a new authentication flow instance
func NewAuthFlow(
	userRepo repository.UserRepository,
	sessionRepo repository.UserSessionRepository,
	partnerRepo repository.PartnerRepository,
	auditRepo repository.AuditLogRepository,
	tokenSvc services.TokenService,
	db *gorm.DB,
) AuthFlow {
	return &AuthFlowImpl{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		partnerRepo: partnerRepo,
		auditRepo:   auditRepo,
		tokenSvc:    tokenSvc,
		db:          db,
	}
}

// Signup registers a new user and opens their first session. Partner
// invitations already waiting for the email address are surfaced in the
// response so the client can prompt for approval right after onboarding.
func (f *AuthFlowImpl) Signup(ctx context.Context, req *dto.SignupRequest, metadata *ClientMetadata) (*dto.SignupResponse, error) {
	email := utils.NormalizeEmail(req.Email)

	existing, err := f.userRepo.ByEmail(ctx, email)
	if err != nil {
		return nil, NewBusinessError("SIGNUP_FAILED", "Signup failed", err)
	}
	if existing != nil {
		return nil, NewBusinessError("EMAIL_ALREADY_EXISTS", "Email is already registered", ErrEmailAlreadyExists)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, NewBusinessError("SIGNUP_FAILED", "Signup failed", err)
	}

	var user *models.User
	var session *models.UserSession

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		user = &models.User{
			UUID:            uuid.New(),
			Email:           email,
			PasswordHash:    string(hash),
			FirstName:       req.FirstName,
			LastName:        req.LastName,
			Mobile:          req.Mobile,
			IsActive:        utils.ToPtr(true),
			IsEmailVerified: utils.ToPtr(false),
		}
		if err := f.userRepo.Save(txCtx, user); err != nil {
			if repository.IsUniqueViolation(err) {
				return ErrEmailAlreadyExists
			}
			return err
		}

		session, err = f.createSession(txCtx, user.ID, metadata)
		return err
	})

	if err != nil {
		errMsg := fmt.Sprintf("Signup failed: %s", err.Error())
		_ = f.createAuditLog(ctx, nil, models.AuditActionLoginFailed, errMsg, false, &errMsg, metadata)
		if IsEmailAlreadyExists(err) {
			return nil, NewBusinessError("EMAIL_ALREADY_EXISTS", "Email is already registered", err)
		}
		return nil, NewBusinessError("SIGNUP_FAILED", "Signup failed", err)
	}

	msg := fmt.Sprintf("Signup completed: %d", user.ID)
	_ = f.createAuditLog(ctx, user, models.AuditActionSignupCompleted, msg, true, nil, metadata)

	response := &dto.SignupResponse{
		User:    ToAuthUserDTO(*user),
		Session: ToSessionDTO(*session),
	}

	// Best effort; a failed lookup must not fail the signup.
	if pending, err := f.partnerRepo.ListPendingByEmail(ctx, email); err == nil {
		for _, p := range pending {
			response.PendingInvitations = append(response.PendingInvitations, ToPartnerDTO(*p, p.Account.UUID.String()))
		}
	}

	return response, nil
}

// Login authenticates a user by email and password
func (f *AuthFlowImpl) Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error) {
	email := utils.NormalizeEmail(req.Email)

	user, err := f.userRepo.ByEmail(ctx, email)
	if err != nil {
		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", err)
	}
	if user == nil {
		_ = f.logLoginAttempt(ctx, nil, false, "user not found", metadata)
		return nil, NewBusinessError("INVALID_CREDENTIALS", "Invalid email or password", ErrUserNotFound)
	}
	if !utils.IsTrue(user.IsActive) {
		_ = f.logLoginAttempt(ctx, user, false, "user inactive", metadata)
		return nil, NewBusinessError("USER_INACTIVE", "User account is inactive", ErrUserInactive)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		_ = f.logLoginAttempt(ctx, user, false, "incorrect password", metadata)
		return nil, NewBusinessError("INVALID_CREDENTIALS", "Invalid email or password", ErrIncorrectPassword)
	}

	var session *models.UserSession
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		session, err = f.createSession(txCtx, user.ID, metadata)
		if err != nil {
			return err
		}
		return f.userRepo.UpdateLastLogin(txCtx, user.ID, utils.UTCNow())
	})
	if err != nil {
		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", err)
	}

	_ = f.logLoginAttempt(ctx, user, true, "", metadata)

	return &dto.LoginResponse{
		User:    ToAuthUserDTO(*user),
		Session: ToSessionDTO(*session),
	}, nil
}

// Refresh rotates a refresh token into a new session
func (f *AuthFlowImpl) Refresh(ctx context.Context, req *dto.RefreshTokenRequest, metadata *ClientMetadata) (*dto.LoginResponse, error) {
	session, err := f.sessionRepo.ByRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, NewBusinessError("REFRESH_FAILED", "Token refresh failed", err)
	}
	if session == nil {
		return nil, NewBusinessError("SESSION_NOT_FOUND", "Session not found", ErrSessionNotFound)
	}
	if !session.IsValid() {
		return nil, NewBusinessError("SESSION_EXPIRED", "Session has expired", ErrSessionExpired)
	}

	user, err := f.userRepo.ByID(ctx, session.UserID)
	if err != nil {
		return nil, NewBusinessError("REFRESH_FAILED", "Token refresh failed", err)
	}
	if user == nil || !utils.IsTrue(user.IsActive) {
		return nil, NewBusinessError("USER_INACTIVE", "User account is inactive", ErrUserInactive)
	}

	var newSession *models.UserSession
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.sessionRepo.ExpireSession(txCtx, session.ID); err != nil {
			return err
		}
		newSession, err = f.createSession(txCtx, user.ID, metadata)
		return err
	})
	if err != nil {
		return nil, NewBusinessError("REFRESH_FAILED", "Token refresh failed", err)
	}

	return &dto.LoginResponse{
		User:    ToAuthUserDTO(*user),
		Session: ToSessionDTO(*newSession),
	}, nil
}

// Logout revokes the access token and expires the matching session
func (f *AuthFlowImpl) Logout(ctx context.Context, sessionToken string, metadata *ClientMetadata) error {
	session, err := f.sessionRepo.BySessionToken(ctx, sessionToken)
	if err != nil {
		return NewBusinessError("LOGOUT_FAILED", "Logout failed", err)
	}
	if session == nil {
		return NewBusinessError("SESSION_NOT_FOUND", "Session not found", ErrSessionNotFound)
	}

	if err := f.sessionRepo.ExpireSession(ctx, session.ID); err != nil {
		return NewBusinessError("LOGOUT_FAILED", "Logout failed", err)
	}
	_ = f.tokenSvc.RevokeToken(sessionToken)

	user, _ := f.userRepo.ByID(ctx, session.UserID)
	_ = f.createAuditLog(ctx, user, models.AuditActionLogout, "user logged out", true, nil, metadata)

	return nil
}

func (f *AuthFlowImpl) createSession(ctx context.Context, userID uint, metadata *ClientMetadata) (*models.UserSession, error) {
	accessToken, refreshToken, err := f.tokenSvc.GenerateTokens(userID)
	if err != nil {
		return nil, err
	}

	now := utils.UTCNow()
	session := &models.UserSession{
		CorrelationID:  uuid.New(),
		UserID:         userID,
		SessionToken:   accessToken,
		RefreshToken:   &refreshToken,
		IsActive:       utils.ToPtr(true),
		CreatedAt:      now,
		LastAccessedAt: now,
		ExpiresAt:      now.Add(utils.AccessTokenTTL),
	}
	if metadata != nil {
		if metadata.IPAddress != "" {
			session.IPAddress = &metadata.IPAddress
		}
		if metadata.UserAgent != "" {
			session.UserAgent = &metadata.UserAgent
		}
	}

	if err := f.sessionRepo.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (f *AuthFlowImpl) logLoginAttempt(ctx context.Context, user *models.User, success bool, reason string, metadata *ClientMetadata) error {
	action := models.AuditActionLoginSuccessful
	description := "login successful"
	var errMsg *string
	if !success {
		action = models.AuditActionLoginFailed
		description = fmt.Sprintf("login failed: %s", reason)
		errMsg = &reason
	}
	return f.createAuditLog(ctx, user, action, description, success, errMsg, metadata)
}

func (f *AuthFlowImpl) createAuditLog(ctx context.Context, user *models.User, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
	var userID *uint
	if user != nil {
		userID = &user.ID
	}

	ipAddress := "127.0.0.1"
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		ErrorMessage: errorMsg,
	}

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		audit.RequestID = &requestID
	}

	return f.auditRepo.Save(ctx, audit)
}
