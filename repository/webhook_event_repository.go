package repository

import (
	"context"
	"errors"

	"github.com/clearledger/portal-api/models"
	"gorm.io/gorm"
)

// WebhookEventRepositoryImpl implements WebhookEventRepository interface
type WebhookEventRepositoryImpl struct {
	*BaseRepository[models.WebhookEvent, models.WebhookEventFilter]
}

// NewWebhookEventRepository creates a new webhook event repository
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &WebhookEventRepositoryImpl{
		BaseRepository: NewBaseRepository[models.WebhookEvent, models.WebhookEventFilter](db),
	}
}

// ByProviderEventID retrieves a previously recorded event, nil when the
// event has never been seen.
func (r *WebhookEventRepositoryImpl) ByProviderEventID(ctx context.Context, provider, eventID string) (*models.WebhookEvent, error) {
	db := r.getDB(ctx)
	var row models.WebhookEvent
	if err := db.Where("provider = ? AND event_id = ?", provider, eventID).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *WebhookEventRepositoryImpl) applyFilter(query *gorm.DB, filter models.WebhookEventFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Provider != nil {
		query = query.Where("provider = ?", *filter.Provider)
	}
	if filter.EventID != nil {
		query = query.Where("event_id = ?", *filter.EventID)
	}
	if filter.EventType != nil {
		query = query.Where("event_type = ?", *filter.EventType)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves webhook events based on filter criteria
func (r *WebhookEventRepositoryImpl) ByFilter(ctx context.Context, filter models.WebhookEventFilter, orderBy string, limit, offset int) ([]*models.WebhookEvent, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.WebhookEvent{})

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

	var rows []*models.WebhookEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of webhook events matching filter
func (r *WebhookEventRepositoryImpl) Count(ctx context.Context, filter models.WebhookEventFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.WebhookEvent{})
	query = r.applyFilter(query, filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any webhook event matches the filter
func (r *WebhookEventRepositoryImpl) Exists(ctx context.Context, filter models.WebhookEventFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
