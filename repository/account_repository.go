package repository

import (
	"context"
	"errors"
	"time"

	"github.com/clearledger/portal-api/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccountRepositoryImpl implements AccountRepository interface
type AccountRepositoryImpl struct {
	*BaseRepository[models.Account, models.AccountFilter]
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &AccountRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Account, models.AccountFilter](db),
	}
}

// ByUUID retrieves an account by UUID
func (r *AccountRepositoryImpl) ByUUID(ctx context.Context, uuidStr string) (*models.Account, error) {
	parsed, err := uuid.Parse(uuidStr)
	if err != nil {
		return nil, err
	}
	rows, err := r.ByFilter(ctx, models.AccountFilter{UUID: &parsed}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ByUUIDWithProfile retrieves an account by UUID with its profile
// sub-record preloaded.
func (r *AccountRepositoryImpl) ByUUIDWithProfile(ctx context.Context, uuidStr string) (*models.Account, error) {
	parsed, err := uuid.Parse(uuidStr)
	if err != nil {
		return nil, err
	}
	db := r.getDB(ctx)
	var row models.Account
	err = db.
		Preload("IndividualProfile").
		Preload("CompanyProfile").
		Preload("TrustProfile").
		Preload("PartnershipProfile").
		Where("uuid = ?", parsed).
		Last(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ListByUser lists all accounts owned by a user, newest first
func (r *AccountRepositoryImpl) ListByUser(ctx context.Context, userID uint) ([]*models.Account, error) {
	return r.ByFilter(ctx, models.AccountFilter{UserID: &userID}, "id DESC", 0, 0)
}

// UpdateStatus moves the account to a new lifecycle status and stamps
// the matching timestamp column.
func (r *AccountRepositoryImpl) UpdateStatus(ctx context.Context, accountID uint, status string, at time.Time) error {
	db := r.getDB(ctx)
	updates := map[string]any{"status": status, "updated_at": at}
	switch status {
	case models.AccountStatusPending:
		updates["submitted_at"] = at
	case models.AccountStatusActive:
		updates["activated_at"] = at
	case models.AccountStatusClosed:
		updates["closed_at"] = at
	}
	return db.Model(&models.Account{}).Where("id = ?", accountID).Updates(updates).Error
}

// ClearDefaultForUser unsets the default flag on all of a user's accounts
func (r *AccountRepositoryImpl) ClearDefaultForUser(ctx context.Context, userID uint) error {
	db := r.getDB(ctx)
	return db.Model(&models.Account{}).Where("user_id = ?", userID).
		Update("is_default", false).Error
}

// Delete hard-deletes an account together with its profile sub-record,
// partner records and consent history. Purchase rows are the caller's
// responsibility to guard against.
func (r *AccountRepositoryImpl) Delete(ctx context.Context, accountID uint) error {
	db := r.getDB(ctx)
	if err := db.Where("account_id = ?", accountID).Delete(&models.Partner{}).Error; err != nil {
		return err
	}
	if err := db.Where("account_id = ?", accountID).Delete(&models.LegalConsent{}).Error; err != nil {
		return err
	}
	if err := db.Where("account_id = ?", accountID).Delete(&models.IndividualProfile{}).Error; err != nil {
		return err
	}
	if err := db.Where("account_id = ?", accountID).Delete(&models.CompanyProfile{}).Error; err != nil {
		return err
	}
	if err := db.Where("account_id = ?", accountID).Delete(&models.TrustProfile{}).Error; err != nil {
		return err
	}
	if err := db.Where("account_id = ?", accountID).Delete(&models.PartnershipProfile{}).Error; err != nil {
		return err
	}
	return db.Delete(&models.Account{}, accountID).Error
}

// ListAll lists accounts across all owners for the back office, with the
// owning user and profile sub-records preloaded.
func (r *AccountRepositoryImpl) ListAll(ctx context.Context, filter models.AccountFilter, limit, offset int) ([]*models.Account, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Account{}).
		Preload("User").
		Preload("IndividualProfile").
		Preload("CompanyProfile").
		Preload("TrustProfile").
		Preload("PartnershipProfile")
	query = r.applyFilter(query, filter)
	query = query.Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Account
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *AccountRepositoryImpl) applyFilter(query *gorm.DB, filter models.AccountFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.EntityType != nil {
		query = query.Where("entity_type = ?", *filter.EntityType)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.IsDefault != nil {
		query = query.Where("is_default = ?", *filter.IsDefault)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves accounts based on filter criteria
func (r *AccountRepositoryImpl) ByFilter(ctx context.Context, filter models.AccountFilter, orderBy string, limit, offset int) ([]*models.Account, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Account{})

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

	var rows []*models.Account
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of accounts matching filter
func (r *AccountRepositoryImpl) Count(ctx context.Context, filter models.AccountFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Account{})
	query = r.applyFilter(query, filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any account matches the filter
func (r *AccountRepositoryImpl) Exists(ctx context.Context, filter models.AccountFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
