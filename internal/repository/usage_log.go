package repository

import (
	"context"
	"time"

	"booking/internal/models"

	"gorm.io/gorm"
)

// UsageLogRepository reads booking windows recorded on approval.
type UsageLogRepository interface {
	ListByResource(ctx context.Context, resourceID uint, from, to *time.Time) ([]models.UsageLog, error)
}

type usageLogRepository struct {
	db *gorm.DB
}

// NewUsageLogRepository returns a new UsageLogRepository implementation.
func NewUsageLogRepository(db *gorm.DB) UsageLogRepository {
	return &usageLogRepository{db: db}
}

// ListByResource returns usage windows overlapping [from, to).
func (r *usageLogRepository) ListByResource(ctx context.Context, resourceID uint, from, to *time.Time) ([]models.UsageLog, error) {
	q := readDB(r.db).WithContext(ctx).Where("resource_id = ?", resourceID)
	if from != nil {
		q = q.Where("booking_end > ?", *from)
	}
	if to != nil {
		q = q.Where("booking_start < ?", *to)
	}

	var logs []models.UsageLog
	err := q.Order("booking_start ASC, id ASC").Find(&logs).Error
	return logs, storeError(err)
}
