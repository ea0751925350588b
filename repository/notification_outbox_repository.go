package repository

import (
	"context"
	"time"

	"github.com/clearledger/portal-api/models"
	"github.com/clearledger/portal-api/utils"
	"gorm.io/gorm"
)

// NotificationOutboxRepositoryImpl implements NotificationOutboxRepository interface
type NotificationOutboxRepositoryImpl struct {
	*BaseRepository[models.NotificationOutbox, models.NotificationOutboxFilter]
}

// NewNotificationOutboxRepository creates a new outbox repository
func NewNotificationOutboxRepository(db *gorm.DB) NotificationOutboxRepository {
	return &NotificationOutboxRepositoryImpl{
		BaseRepository: NewBaseRepository[models.NotificationOutbox, models.NotificationOutboxFilter](db),
	}
}

// ListDue lists pending or failed entries whose next attempt is due,
// oldest first, capped at limit.
func (r *NotificationOutboxRepositoryImpl) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.NotificationOutbox, error) {
	db := r.getDB(ctx)
	var rows []*models.NotificationOutbox
	query := db.Model(&models.NotificationOutbox{}).
		Where("status IN ? AND next_attempt_at <= ?", []string{models.OutboxStatusPending, models.OutboxStatusFailed}, now).
		Order("next_attempt_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Update persists changes to an existing outbox entry
func (r *NotificationOutboxRepositoryImpl) Update(ctx context.Context, entry *models.NotificationOutbox) error {
	db := r.getDB(ctx)
	entry.UpdatedAt = utils.UTCNow()
	return db.Save(entry).Error
}

// applyFilter applies filter criteria to a GORM query
func (r *NotificationOutboxRepositoryImpl) applyFilter(query *gorm.DB, filter models.NotificationOutboxFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Recipient != nil {
		query = query.Where("recipient = ?", *filter.Recipient)
	}
	if filter.DueBefore != nil {
		query = query.Where("next_attempt_at <= ?", *filter.DueBefore)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves outbox entries based on filter criteria
func (r *NotificationOutboxRepositoryImpl) ByFilter(ctx context.Context, filter models.NotificationOutboxFilter, orderBy string, limit, offset int) ([]*models.NotificationOutbox, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.NotificationOutbox{})

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

	var rows []*models.NotificationOutbox
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of outbox entries matching filter
func (r *NotificationOutboxRepositoryImpl) Count(ctx context.Context, filter models.NotificationOutboxFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.NotificationOutbox{})
	query = r.applyFilter(query, filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any outbox entry matches the filter
func (r *NotificationOutboxRepositoryImpl) Exists(ctx context.Context, filter models.NotificationOutboxFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
