package repository

import (
	"context"
	"errors"

	"github.com/clearledger/portal-api/models"
	"github.com/clearledger/portal-api/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccountServiceRepositoryImpl implements AccountServiceRepository interface
type AccountServiceRepositoryImpl struct {
	*BaseRepository[models.AccountService, models.AccountServiceFilter]
}

// NewAccountServiceRepository creates a new purchase repository
func NewAccountServiceRepository(db *gorm.DB) AccountServiceRepository {
	return &AccountServiceRepositoryImpl{
		BaseRepository: NewBaseRepository[models.AccountService, models.AccountServiceFilter](db),
	}
}

// ByUUID retrieves a purchase by UUID
func (r *AccountServiceRepositoryImpl) ByUUID(ctx context.Context, uuidStr string) (*models.AccountService, error) {
	parsed, err := uuid.Parse(uuidStr)
	if err != nil {
		return nil, err
	}
	rows, err := r.ByFilter(ctx, models.AccountServiceFilter{UUID: &parsed}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ByCheckoutSessionID correlates a gateway checkout session back to its
// purchase row.
func (r *AccountServiceRepositoryImpl) ByCheckoutSessionID(ctx context.Context, sessionID string) (*models.AccountService, error) {
	db := r.getDB(ctx)
	var row models.AccountService
	if err := db.Where("checkout_session_id = ?", sessionID).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ListByAccount lists all purchases of an account, newest first, with
// the catalogue service preloaded.
func (r *AccountServiceRepositoryImpl) ListByAccount(ctx context.Context, accountID uint) ([]*models.AccountService, error) {
	db := r.getDB(ctx)
	var rows []*models.AccountService
	err := db.Preload("Service").
		Where("account_id = ?", accountID).
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Update persists changes to an existing purchase row
func (r *AccountServiceRepositoryImpl) Update(ctx context.Context, purchase *models.AccountService) error {
	db := r.getDB(ctx)
	purchase.UpdatedAt = utils.UTCNow()
	return db.Save(purchase).Error
}

// ListAll lists purchases across all accounts for the back office, with
// account and service preloaded.
func (r *AccountServiceRepositoryImpl) ListAll(ctx context.Context, filter models.AccountServiceFilter, limit, offset int) ([]*models.AccountService, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.AccountService{}).
		Preload("Account").
		Preload("Account.IndividualProfile").
		Preload("Account.CompanyProfile").
		Preload("Account.TrustProfile").
		Preload("Account.PartnershipProfile").
		Preload("Service")
	query = r.applyFilter(query, filter)
	query = query.Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.AccountService
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *AccountServiceRepositoryImpl) applyFilter(query *gorm.DB, filter models.AccountServiceFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.AccountID != nil {
		query = query.Where("account_id = ?", *filter.AccountID)
	}
	if filter.ServiceID != nil {
		query = query.Where("service_id = ?", *filter.ServiceID)
	}
	if filter.FinancialYear != nil {
		query = query.Where("financial_year = ?", *filter.FinancialYear)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *filter.PaymentStatus)
	}
	if filter.CheckoutSessionID != nil {
		query = query.Where("checkout_session_id = ?", *filter.CheckoutSessionID)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves purchases based on filter criteria
func (r *AccountServiceRepositoryImpl) ByFilter(ctx context.Context, filter models.AccountServiceFilter, orderBy string, limit, offset int) ([]*models.AccountService, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.AccountService{})

	query = r.applyFilter(query, filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.AccountService
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of purchases matching filter
func (r *AccountServiceRepositoryImpl) Count(ctx context.Context, filter models.AccountServiceFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.AccountService{})
	query = r.applyFilter(query, filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any purchase matches the filter
func (r *AccountServiceRepositoryImpl) Exists(ctx context.Context, filter models.AccountServiceFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
