package repository

import (
	"context"
	"errors"

	"github.com/clearledger/portal-api/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ServiceRepositoryImpl implements ServiceRepository interface
type ServiceRepositoryImpl struct {
	*BaseRepository[models.Service, models.ServiceFilter]
}

// NewServiceRepository creates a new service catalogue repository
func NewServiceRepository(db *gorm.DB) ServiceRepository {
	return &ServiceRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Service, models.ServiceFilter](db),
	}
}

// ByUUID retrieves a service by UUID with its prices preloaded
func (r *ServiceRepositoryImpl) ByUUID(ctx context.Context, uuidStr string) (*models.Service, error) {
	parsed, err := uuid.Parse(uuidStr)
	if err != nil {
		return nil, err
	}
	db := r.getDB(ctx)
	var row models.Service
	if err := db.Preload("Prices").Where("uuid = ?", parsed).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ByCode retrieves a service by its catalogue code with prices preloaded
func (r *ServiceRepositoryImpl) ByCode(ctx context.Context, code string) (*models.Service, error) {
	db := r.getDB(ctx)
	var row models.Service
	if err := db.Preload("Prices").Where("code = ?", code).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ListActive lists all active catalogue services with prices preloaded
func (r *ServiceRepositoryImpl) ListActive(ctx context.Context) ([]*models.Service, error) {
	db := r.getDB(ctx)
	var rows []*models.Service
	err := db.Preload("Prices").
		Where("is_active = ?", true).
		Order("code ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *ServiceRepositoryImpl) applyFilter(query *gorm.DB, filter models.ServiceFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Code != nil {
		query = query.Where("code = ?", *filter.Code)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}

// ByFilter retrieves services based on filter criteria
func (r *ServiceRepositoryImpl) ByFilter(ctx context.Context, filter models.ServiceFilter, orderBy string, limit, offset int) ([]*models.Service, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Service{}).Preload("Prices")

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

	var rows []*models.Service
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of services matching filter
func (r *ServiceRepositoryImpl) Count(ctx context.Context, filter models.ServiceFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Service{})
	query = r.applyFilter(query, filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any service matches the filter
func (r *ServiceRepositoryImpl) Exists(ctx context.Context, filter models.ServiceFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
