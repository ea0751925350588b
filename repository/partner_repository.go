package repository

import (
	"context"

	"github.com/clearledger/portal-api/models"
	"github.com/clearledger/portal-api/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PartnerRepositoryImpl implements PartnerRepository interface
type PartnerRepositoryImpl struct {
	*BaseRepository[models.Partner, models.PartnerFilter]
}

// NewPartnerRepository creates a new partner repository
func NewPartnerRepository(db *gorm.DB) PartnerRepository {
	return &PartnerRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Partner, models.PartnerFilter](db),
	}
}

// ByUUID retrieves a partner by UUID
func (r *PartnerRepositoryImpl) ByUUID(ctx context.Context, uuidStr string) (*models.Partner, error) {
	parsed, err := uuid.Parse(uuidStr)
	if err != nil {
		return nil, err
	}
	rows, err := r.ByFilter(ctx, models.PartnerFilter{UUID: &parsed}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ListByAccount lists all partner records of an account, oldest first
func (r *PartnerRepositoryImpl) ListByAccount(ctx context.Context, accountID uint) ([]*models.Partner, error) {
	return r.ByFilter(ctx, models.PartnerFilter{AccountID: &accountID}, "id ASC", 0, 0)
}

// ActiveEmailExists reports whether a non-REMOVED partner with the given
// email already exists on the account. Emails are stored lowercased, so
// a plain equality check suffices.
func (r *PartnerRepositoryImpl) ActiveEmailExists(ctx context.Context, accountID uint, email string) (bool, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.Partner{}).
		Where("account_id = ? AND email = ? AND status <> ?",
			accountID, utils.NormalizeEmail(email), models.PartnerStatusRemoved).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListPendingByEmail lists PENDING invitations addressed to an email
// across all accounts, with the account preloaded, used when a freshly
// registered user wants to see what is waiting for them.
func (r *PartnerRepositoryImpl) ListPendingByEmail(ctx context.Context, email string) ([]*models.Partner, error) {
	normalized := utils.NormalizeEmail(email)
	db := r.getDB(ctx)
	var rows []*models.Partner
	err := db.Model(&models.Partner{}).
		Preload("Account").
		Where("email = ? AND status = ?", normalized, models.PartnerStatusPending).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Update persists changes to an existing partner record
func (r *PartnerRepositoryImpl) Update(ctx context.Context, partner *models.Partner) error {
	db := r.getDB(ctx)
	partner.UpdatedAt = utils.UTCNow()
	return db.Save(partner).Error
}

// Delete hard-deletes a partner record
func (r *PartnerRepositoryImpl) Delete(ctx context.Context, partnerID uint) error {
	db := r.getDB(ctx)
	return db.Delete(&models.Partner{}, partnerID).Error
}

// applyFilter applies filter criteria to a GORM query
func (r *PartnerRepositoryImpl) applyFilter(query *gorm.DB, filter models.PartnerFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.AccountID != nil {
		query = query.Where("account_id = ?", *filter.AccountID)
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if filter.Email != nil {
		query = query.Where("email = ?", utils.NormalizeEmail(*filter.Email))
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.LinkedUserID != nil {
		query = query.Where("linked_user_id = ?", *filter.LinkedUserID)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves partners based on filter criteria
func (r *PartnerRepositoryImpl) ByFilter(ctx context.Context, filter models.PartnerFilter, orderBy string, limit, offset int) ([]*models.Partner, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Partner{})

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

	var rows []*models.Partner
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of partners matching filter
func (r *PartnerRepositoryImpl) Count(ctx context.Context, filter models.PartnerFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Partner{})
	query = r.applyFilter(query, filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any partner matches the filter
func (r *PartnerRepositoryImpl) Exists(ctx context.Context, filter models.PartnerFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
