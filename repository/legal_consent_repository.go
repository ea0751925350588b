package repository

import (
	"context"

	"github.com/clearledger/portal-api/models"
	"gorm.io/gorm"
)

// LegalConsentRepositoryImpl implements LegalConsentRepository interface
type LegalConsentRepositoryImpl struct {
	*BaseRepository[models.LegalConsent, models.LegalConsentFilter]
}

// NewLegalConsentRepository creates a new legal consent repository
func NewLegalConsentRepository(db *gorm.DB) LegalConsentRepository {
	return &LegalConsentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.LegalConsent, models.LegalConsentFilter](db),
	}
}

// ListByAccount lists all consent rows of an account, newest first
func (r *LegalConsentRepositoryImpl) ListByAccount(ctx context.Context, accountID uint) ([]*models.LegalConsent, error) {
	return r.ByFilter(ctx, models.LegalConsentFilter{AccountID: &accountID}, "accepted_at DESC", 0, 0)
}

// TypesByAccount returns the distinct consent types recorded for an
// account. Any row of a type counts, regardless of document version.
func (r *LegalConsentRepositoryImpl) TypesByAccount(ctx context.Context, accountID uint) ([]string, error) {
	db := r.getDB(ctx)
	var types []string
	err := db.Model(&models.LegalConsent{}).
		Where("account_id = ?", accountID).
		Distinct("consent_type").
		Pluck("consent_type", &types).Error
	if err != nil {
		return nil, err
	}
	return types, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *LegalConsentRepositoryImpl) applyFilter(query *gorm.DB, filter models.LegalConsentFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.AccountID != nil {
		query = query.Where("account_id = ?", *filter.AccountID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.ConsentType != nil {
		query = query.Where("consent_type = ?", *filter.ConsentType)
	}
	if filter.AcceptedAfter != nil {
		query = query.Where("accepted_at > ?", *filter.AcceptedAfter)
	}
	if filter.AcceptedBefore != nil {
		query = query.Where("accepted_at < ?", *filter.AcceptedBefore)
	}
	return query
}

// ByFilter retrieves consents based on filter criteria
func (r *LegalConsentRepositoryImpl) ByFilter(ctx context.Context, filter models.LegalConsentFilter, orderBy string, limit, offset int) ([]*models.LegalConsent, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.LegalConsent{})

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

	var rows []*models.LegalConsent
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of consents matching filter
func (r *LegalConsentRepositoryImpl) Count(ctx context.Context, filter models.LegalConsentFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.LegalConsent{})
	query = r.applyFilter(query, filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any consent matches the filter
func (r *LegalConsentRepositoryImpl) Exists(ctx context.Context, filter models.LegalConsentFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
