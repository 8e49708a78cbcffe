package service

import (
	"context"
	"time"

	"booking/internal/cache"
	"booking/internal/models"
	"booking/internal/repository"
)

// ReportService is the read side consumed by trustee reporting.
type ReportService struct {
	requests  repository.RequestRepository
	approvals repository.ApprovalLogRepository
	usage     repository.UsageLogRepository
}

func NewReportService(
	requests repository.RequestRepository,
	approvals repository.ApprovalLogRepository,
	usage repository.UsageLogRepository,
) *ReportService {
	return &ReportService{requests: requests, approvals: approvals, usage: usage}
}

// BreachReport splits breached requests by resolution.
type BreachReport struct {
	Pending  []models.Request `json:"pending"`
	Resolved []models.Request `json:"resolved"`
}

// ListBreached returns breached requests grouped into unresolved and resolved.
// A State of "pending" or "resolved" leaves the other group empty.
func (s *ReportService) ListBreached(ctx context.Context, f repository.BreachFilter) (*BreachReport, error) {
	reqs, err := s.requests.ListBreached(ctx, f)
	if err != nil {
		return nil, err
	}
	report := &BreachReport{Pending: []models.Request{}, Resolved: []models.Request{}}
	for _, r := range reqs {
		if r.SLA.Resolved {
			report.Resolved = append(report.Resolved, r)
		} else {
			report.Pending = append(report.Pending, r)
		}
	}
	return report, nil
}

func (s *ReportService) ListSuspicious(ctx context.Context, f repository.SuspiciousFilter) ([]models.Request, error) {
	return s.requests.ListSuspicious(ctx, f)
}

// CountByStatus returns request counts per status, cached for cache.CountsTTL.
func (s *ReportService) CountByStatus(ctx context.Context, org models.Organization) (map[models.RequestStatus]int64, error) {
	var counts map[models.RequestStatus]int64
	err := cache.Aside(ctx, cache.CountsKey(org), &counts, cache.CountsTTL, func(ctx context.Context) error {
		var err error
		counts, err = s.requests.CountByStatus(ctx, org)
		return err
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *ReportService) MonthlyCounts(ctx context.Context, year int) ([]repository.MonthlyCount, error) {
	if year < 1970 || year > 9999 {
		return nil, models.NewValidationError("year is out of range")
	}
	return s.requests.MonthlyCounts(ctx, year)
}

// ListExpired returns system auto-rejections in the optional window.
func (s *ReportService) ListExpired(ctx context.Context, from, to *time.Time) ([]models.ApprovalLog, error) {
	return s.approvals.ListSystemRejections(ctx, from, to)
}

func (s *ReportService) ApprovalLogsForRequest(ctx context.Context, requestID uint) ([]models.ApprovalLog, error) {
	return s.approvals.ListByRequest(ctx, requestID)
}

func (s *ReportService) UsageForResource(ctx context.Context, resourceID uint, from, to *time.Time) ([]models.UsageLog, error) {
	return s.usage.ListByResource(ctx, resourceID, from, to)
}
