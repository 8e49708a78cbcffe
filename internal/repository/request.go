package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"booking/internal/database"
	"booking/internal/models"
	"booking/internal/observability"

	"gorm.io/gorm"
)

// Guard is the state a request must still be in, at write time, for a
// transition to apply. Zero-valued Status matches any status.
type Guard struct {
	Status   models.RequestStatus
	Inactive bool
	// SLA, when set, pins the breach flags observed at read time.
	SLA *SLAGuard
}

// SLAGuard pins the SLA flags a transition was computed against.
type SLAGuard struct {
	IsBreached bool
	Resolved   bool
}

// Transition is one atomic lifecycle write: the request row and its side records.
type Transition struct {
	Request    *models.Request
	Guard      Guard
	Activities []models.SuspiciousActivity
	Log        *models.ApprovalLog
	Usage      *models.UsageLog
}

// BreachFilter narrows breached-request listings.
type BreachFilter struct {
	Organization models.Organization
	From, To     *time.Time
	// State is "all", "pending" (unresolved) or "resolved".
	State string
}

// SuspiciousFilter narrows suspicious-request listings.
type SuspiciousFilter struct {
	Organization models.Organization
	From, To     *time.Time
}

// MonthlyCount is the number of requests created in a calendar month.
type MonthlyCount struct {
	Month int   `json:"month"`
	Total int64 `json:"total"`
}

// RequestRepository persists requests and applies guarded lifecycle transitions.
type RequestRepository interface {
	Create(ctx context.Context, req *models.Request) error
	GetByID(ctx context.Context, id uint) (*models.Request, error)
	ListByRequester(ctx context.Context, requesterID uint, limit, offset int) ([]models.Request, int64, error)
	DeletePending(ctx context.Context, id, requesterID uint) error
	Commit(ctx context.Context, t Transition) error
	MarkBreached(ctx context.Context, now time.Time) (int64, error)
	ListBreached(ctx context.Context, f BreachFilter) ([]models.Request, error)
	ListSuspicious(ctx context.Context, f SuspiciousFilter) ([]models.Request, error)
	CountByStatus(ctx context.Context, org models.Organization) (map[models.RequestStatus]int64, error)
	MonthlyCounts(ctx context.Context, year int) ([]MonthlyCount, error)
}

type requestRepository struct {
	db *gorm.DB
}

// NewRequestRepository returns a new RequestRepository implementation.
func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func orderedActivities(db *gorm.DB) *gorm.DB {
	return db.Order("detected_at ASC, id ASC")
}

func (r *requestRepository) Create(ctx context.Context, req *models.Request) error {
	defer observability.TrackQuery("create", "requests")()
	err := r.db.WithContext(ctx).Omit("Requester", "Resource", "SuspiciousActivities").Create(req).Error
	if err != nil && isForeignKeyViolation(err) {
		return models.NewResourceNotFoundError(req.ResourceID)
	}
	return storeError(err)
}

func (r *requestRepository) GetByID(ctx context.Context, id uint) (*models.Request, error) {
	defer observability.TrackQuery("get", "requests")()
	var req models.Request
	err := r.db.WithContext(ctx).
		Preload("Resource").
		Preload("SuspiciousActivities", orderedActivities).
		First(&req, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewRequestNotFoundError(id)
		}
		return nil, storeError(err)
	}
	return &req, nil
}

func (r *requestRepository) ListByRequester(ctx context.Context, requesterID uint, limit, offset int) ([]models.Request, int64, error) {
	limit, offset = clampPage(limit, offset)
	q := readDB(r.db).WithContext(ctx).Model(&models.Request{}).
		Where("requester_id = ?", requesterID).
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, storeError(err)
	}

	var reqs []models.Request
	err := q.Preload("Resource").
		Preload("SuspiciousActivities", orderedActivities).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&reqs).Error
	return reqs, total, storeError(err)
}

// DeletePending removes a pending request owned by requesterID together with its child rows.
func (r *requestRepository) DeletePending(ctx context.Context, id, requesterID uint) error {
	return storeError(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owned int64
		err := tx.Model(&models.Request{}).
			Where("id = ? AND requester_id = ? AND status = ?", id, requesterID, models.StatusPending).
			Count(&owned).Error
		if err != nil {
			return err
		}
		if owned == 0 {
			return models.NewInvalidStateError("Only pending requests can be deleted")
		}
		if err := tx.Where("request_id = ?", id).Delete(&models.SuspiciousActivity{}).Error; err != nil {
			return err
		}
		if err := tx.Where("request_id = ?", id).Delete(&models.ApprovalLog{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ? AND status = ?", id, models.StatusPending).Delete(&models.Request{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewInvalidStateError("Only pending requests can be deleted")
		}
		return nil
	}))
}

// transitionColumns is the full mutable column set of a request row.
func transitionColumns(req *models.Request) map[string]interface{} {
	return map[string]interface{}{
		"status":             req.Status,
		"decided_by_id":      req.DecidedByID,
		"decided_at":         req.DecidedAt,
		"rejection_reason":   req.RejectionReason,
		"sla_is_breached":    req.SLA.IsBreached,
		"sla_breached_at":    req.SLA.BreachedAt,
		"sla_reason":         req.SLA.Reason,
		"sla_resolved":       req.SLA.Resolved,
		"sla_resolved_at":    req.SLA.ResolvedAt,
		"sla_resolved_by_id": req.SLA.ResolvedByID,
		"is_suspicious":      req.IsSuspicious,
		"inactive_status":    req.Inactive,
		"modified_count":     req.ModifiedCount,
		"modified_at":        req.ModifiedAt,
		"last_updated_by_id": req.LastUpdatedByID,
		"updated_at":         req.UpdatedAt,
	}
}

// Commit applies t in a single transaction. The row update is a compare-and-set
// on the guard; if the row moved in the meantime nothing is written and
// INVALID_STATE is returned.
func (r *requestRepository) Commit(ctx context.Context, t Transition) error {
	defer observability.TrackQuery("commit", "requests")()
	if err := t.Request.Validate(); err != nil {
		return models.NewValidationError(err.Error())
	}

	return storeError(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.Request{}).
			Where("id = ? AND inactive_status = ?", t.Request.ID, t.Guard.Inactive)
		if t.Guard.Status != "" {
			q = q.Where("status = ?", t.Guard.Status)
		}
		if t.Guard.SLA != nil {
			q = q.Where("sla_is_breached = ? AND sla_resolved = ?", t.Guard.SLA.IsBreached, t.Guard.SLA.Resolved)
		}

		res := q.Updates(transitionColumns(t.Request))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewInvalidStateError("Request changed state concurrently; reload and retry")
		}

		if len(t.Activities) > 0 {
			for i := range t.Activities {
				t.Activities[i].RequestID = t.Request.ID
			}
			if err := tx.Create(&t.Activities).Error; err != nil {
				return err
			}
		}
		if t.Log != nil {
			t.Log.RequestID = t.Request.ID
			if err := tx.Create(t.Log).Error; err != nil {
				return err
			}
		}
		if t.Usage != nil {
			t.Usage.RequestID = t.Request.ID
			if err := tx.Create(t.Usage).Error; err != nil {
				return err
			}
		}
		return nil
	}))
}

// slaLimitMinutes resolves the resource SLA per row, falling back to the default
// when the resource is missing or its value is out of range.
var slaLimitMinutes = fmt.Sprintf(
	"COALESCE((SELECT CASE WHEN resources.sla_time BETWEEN %d AND %d THEN resources.sla_time END FROM resources WHERE resources.id = requests.resource_id), %d)",
	models.MinSLAMinutes, models.MaxSLAMinutes, models.DefaultSLAMinutes,
)

// slaClockStart is when the SLA clock started: submission, or the last resubmission.
const slaClockStart = "COALESCE(requests.modified_at, requests.created_at)"

func (r *requestRepository) overdueClause() string {
	if r.db.Name() == database.DriverPostgres {
		return slaClockStart + " + make_interval(mins => " + slaLimitMinutes + ") < ?"
	}
	// Whole milliseconds, so an elapsed time equal to the SLA is never overdue.
	return "CAST(ROUND((julianday(?) - julianday(" + slaClockStart + ")) * 86400000) AS INTEGER) > " + slaLimitMinutes + " * 60000"
}

// MarkBreached flags every pending, unbreached request whose SLA elapsed strictly
// before now. It is one UPDATE statement and idempotent.
func (r *requestRepository) MarkBreached(ctx context.Context, now time.Time) (int64, error) {
	defer observability.TrackQuery("sweep", "requests")()
	res := r.db.WithContext(ctx).Model(&models.Request{}).
		Where("status = ? AND sla_is_breached = ?", models.StatusPending, false).
		Where(r.overdueClause(), now).
		Updates(map[string]interface{}{
			"sla_is_breached": true,
			"sla_breached_at": now,
			"sla_reason":      models.BreachSLATimeExceeded,
			"inactive_status": true,
			"updated_at":      now,
		})
	if res.Error != nil {
		return 0, models.NewStoreUnavailableError(res.Error)
	}
	return res.RowsAffected, nil
}

func applyWindow(q *gorm.DB, column string, from, to *time.Time) *gorm.DB {
	if from != nil {
		q = q.Where(column+" >= ?", *from)
	}
	if to != nil {
		q = q.Where(column+" < ?", *to)
	}
	return q
}

func (r *requestRepository) ListBreached(ctx context.Context, f BreachFilter) ([]models.Request, error) {
	q := readDB(r.db).WithContext(ctx).Model(&models.Request{}).Where("sla_is_breached = ?", true)
	switch f.State {
	case "", "all":
	case "pending":
		q = q.Where("sla_resolved = ?", false)
	case "resolved":
		q = q.Where("sla_resolved = ?", true)
	default:
		return nil, models.NewValidationError("state must be one of all, pending, resolved")
	}
	if f.Organization != "" {
		q = q.Where("organization = ?", f.Organization)
	}
	q = applyWindow(q, "created_at", f.From, f.To)

	var reqs []models.Request
	err := q.Preload("Requester").Preload("Resource").
		Order("sla_breached_at DESC, id DESC").
		Find(&reqs).Error
	return reqs, storeError(err)
}

func (r *requestRepository) ListSuspicious(ctx context.Context, f SuspiciousFilter) ([]models.Request, error) {
	q := readDB(r.db).WithContext(ctx).Model(&models.Request{}).Where("is_suspicious = ?", true)
	if f.Organization != "" {
		q = q.Where("organization = ?", f.Organization)
	}
	q = applyWindow(q, "created_at", f.From, f.To)

	var reqs []models.Request
	err := q.Preload("Requester").Preload("Resource").
		Preload("SuspiciousActivities", orderedActivities).
		Order("created_at DESC, id DESC").
		Find(&reqs).Error
	return reqs, storeError(err)
}

func (r *requestRepository) CountByStatus(ctx context.Context, org models.Organization) (map[models.RequestStatus]int64, error) {
	var rows []struct {
		Status models.RequestStatus
		Total  int64
	}
	q := readDB(r.db).WithContext(ctx).Model(&models.Request{}).Select("status, COUNT(*) AS total")
	if org != "" {
		q = q.Where("organization = ?", org)
	}
	if err := q.Group("status").Scan(&rows).Error; err != nil {
		return nil, storeError(err)
	}

	counts := map[models.RequestStatus]int64{
		models.StatusPending:  0,
		models.StatusApproved: 0,
		models.StatusRejected: 0,
	}
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

func (r *requestRepository) monthExpr() string {
	if r.db.Name() == database.DriverPostgres {
		return "CAST(EXTRACT(MONTH FROM created_at) AS INTEGER)"
	}
	return "CAST(strftime('%m', created_at) AS INTEGER)"
}

// MonthlyCounts returns twelve buckets for year (UTC), months without requests included.
func (r *requestRepository) MonthlyCounts(ctx context.Context, year int) ([]MonthlyCount, error) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)

	var rows []MonthlyCount
	err := readDB(r.db).WithContext(ctx).Model(&models.Request{}).
		Select(r.monthExpr()+" AS month, COUNT(*) AS total").
		Where("created_at >= ? AND created_at < ?", start, end).
		Group("month").
		Scan(&rows).Error
	if err != nil {
		return nil, storeError(err)
	}

	buckets := make([]MonthlyCount, 12)
	for i := range buckets {
		buckets[i].Month = i + 1
	}
	for _, row := range rows {
		if row.Month >= 1 && row.Month <= 12 {
			buckets[row.Month-1].Total = row.Total
		}
	}
	return buckets, nil
}
