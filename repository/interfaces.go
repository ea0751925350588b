// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/clearledger/portal-api/models"
	"github.com/google/uuid"
)

// contextKey is the key type for transactions carried in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// UserRepository defines operations for portal users
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByUUID(ctx context.Context, uuidStr string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, userID uint, at time.Time) error
}

// UserSessionRepository defines operations for user sessions
type UserSessionRepository interface {
	Repository[models.UserSession, models.UserSessionFilter]
	BySessionToken(ctx context.Context, token string) (*models.UserSession, error)
	ByRefreshToken(ctx context.Context, token string) (*models.UserSession, error)
	ExpireSession(ctx context.Context, sessionID uint) error
	ExpireAllUserSessions(ctx context.Context, userID uint) error
}

// AdminRepository defines operations for back-office admins
type AdminRepository interface {
	Repository[models.Admin, models.AdminFilter]
	ByUsername(ctx context.Context, username string) (*models.Admin, error)
	UpdateLastLogin(ctx context.Context, adminID uint, at time.Time) error
}

// AccountRepository defines operations for tax-entity accounts
type AccountRepository interface {
	Repository[models.Account, models.AccountFilter]
	ByUUID(ctx context.Context, uuidStr string) (*models.Account, error)
	ByUUIDWithProfile(ctx context.Context, uuidStr string) (*models.Account, error)
	ListByUser(ctx context.Context, userID uint) ([]*models.Account, error)
	ListAll(ctx context.Context, filter models.AccountFilter, limit, offset int) ([]*models.Account, error)
	UpdateStatus(ctx context.Context, accountID uint, status string, at time.Time) error
	ClearDefaultForUser(ctx context.Context, userID uint) error
	Delete(ctx context.Context, accountID uint) error
}

// PartnerRepository defines operations for partner records
type PartnerRepository interface {
	Repository[models.Partner, models.PartnerFilter]
	ByUUID(ctx context.Context, uuidStr string) (*models.Partner, error)
	ListByAccount(ctx context.Context, accountID uint) ([]*models.Partner, error)
	ActiveEmailExists(ctx context.Context, accountID uint, email string) (bool, error)
	ListPendingByEmail(ctx context.Context, email string) ([]*models.Partner, error)
	Update(ctx context.Context, partner *models.Partner) error
	Delete(ctx context.Context, partnerID uint) error
}

// LegalConsentRepository defines operations for signed consents
type LegalConsentRepository interface {
	Repository[models.LegalConsent, models.LegalConsentFilter]
	ListByAccount(ctx context.Context, accountID uint) ([]*models.LegalConsent, error)
	TypesByAccount(ctx context.Context, accountID uint) ([]string, error)
}

// ServiceRepository defines operations for the service catalogue
type ServiceRepository interface {
	Repository[models.Service, models.ServiceFilter]
	ByUUID(ctx context.Context, uuidStr string) (*models.Service, error)
	ByCode(ctx context.Context, code string) (*models.Service, error)
	ListActive(ctx context.Context) ([]*models.Service, error)
}

// AccountServiceRepository defines operations for service purchases
type AccountServiceRepository interface {
	Repository[models.AccountService, models.AccountServiceFilter]
	ByUUID(ctx context.Context, uuidStr string) (*models.AccountService, error)
	ByCheckoutSessionID(ctx context.Context, sessionID string) (*models.AccountService, error)
	ListByAccount(ctx context.Context, accountID uint) ([]*models.AccountService, error)
	Update(ctx context.Context, purchase *models.AccountService) error
	ListAll(ctx context.Context, filter models.AccountServiceFilter, limit, offset int) ([]*models.AccountService, error)
}

// WebhookEventRepository defines operations for the webhook dedup table
type WebhookEventRepository interface {
	Repository[models.WebhookEvent, models.WebhookEventFilter]
	ByProviderEventID(ctx context.Context, provider, eventID string) (*models.WebhookEvent, error)
}

// NotificationOutboxRepository defines operations for pending notifications
type NotificationOutboxRepository interface {
	Repository[models.NotificationOutbox, models.NotificationOutboxFilter]
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.NotificationOutbox, error)
	Update(ctx context.Context, entry *models.NotificationOutbox) error
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.AuditLog, error)
	ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error)
}

// ParseCorrelationID parses a correlation id string, returning the nil
// UUID for empty input.
func ParseCorrelationID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}
