package repository

import (
	"context"
	"time"

	"booking/internal/models"

	"gorm.io/gorm"
)

// ApprovalLogRepository reads the append-only decision log. Writes happen
// inside RequestRepository.Commit.
type ApprovalLogRepository interface {
	ListByRequest(ctx context.Context, requestID uint) ([]models.ApprovalLog, error)
	ListSystemRejections(ctx context.Context, from, to *time.Time) ([]models.ApprovalLog, error)
}

type approvalLogRepository struct {
	db *gorm.DB
}

// NewApprovalLogRepository returns a new ApprovalLogRepository implementation.
func NewApprovalLogRepository(db *gorm.DB) ApprovalLogRepository {
	return &approvalLogRepository{db: db}
}

func (r *approvalLogRepository) ListByRequest(ctx context.Context, requestID uint) ([]models.ApprovalLog, error) {
	var logs []models.ApprovalLog
	err := readDB(r.db).WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("timestamp ASC, id ASC").
		Find(&logs).Error
	return logs, storeError(err)
}

// ListSystemRejections returns auto-rejections: rejected entries without an actor.
func (r *approvalLogRepository) ListSystemRejections(ctx context.Context, from, to *time.Time) ([]models.ApprovalLog, error) {
	q := readDB(r.db).WithContext(ctx).
		Where("actor_id IS NULL AND action = ?", models.StatusRejected)
	q = applyWindow(q, "timestamp", from, to)

	var logs []models.ApprovalLog
	err := q.Preload("Request").Order("timestamp DESC, id DESC").Find(&logs).Error
	return logs, storeError(err)
}
