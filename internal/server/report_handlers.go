package server

import (
	"time"

	"booking/internal/models"
	"booking/internal/repository"

	"github.com/gofiber/fiber/v2"
)

// window reads the optional from/to query range.
func window(c *fiber.Ctx) (from, to *time.Time, err error) {
	if from, err = parseDateQuery(c, "from"); err != nil {
		return nil, nil, err
	}
	if to, err = parseDateQuery(c, "to"); err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

// GetBreachedReport handles GET /api/reports/sla-breached
// Query: organization, from, to, state=all|pending|resolved.
func (s *Server) GetBreachedReport(c *fiber.Ctx) error {
	org, err := parseOrganization(c)
	if err != nil {
		return nil
	}
	from, to, err := window(c)
	if err != nil {
		return nil
	}

	report, err := s.reports.ListBreached(c.UserContext(), repository.BreachFilter{
		Organization: org,
		From:         from,
		To:           to,
		State:        c.Query("state", "all"),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

// GetSuspiciousReport handles GET /api/reports/suspicious
func (s *Server) GetSuspiciousReport(c *fiber.Ctx) error {
	org, err := parseOrganization(c)
	if err != nil {
		return nil
	}
	from, to, err := window(c)
	if err != nil {
		return nil
	}

	reqs, err := s.reports.ListSuspicious(c.UserContext(), repository.SuspiciousFilter{
		Organization: org,
		From:         from,
		To:           to,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(reqs)
}

// GetStatusCounts handles GET /api/reports/counts
func (s *Server) GetStatusCounts(c *fiber.Ctx) error {
	org, err := parseOrganization(c)
	if err != nil {
		return nil
	}

	counts, err := s.reports.CountByStatus(c.UserContext(), org)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(counts)
}

// GetMonthlyCounts handles GET /api/reports/monthly?year=2026
func (s *Server) GetMonthlyCounts(c *fiber.Ctx) error {
	year := c.QueryInt("year", time.Now().Year())

	months, err := s.reports.MonthlyCounts(c.UserContext(), year)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"year":   year,
		"months": months,
	})
}

// GetExpiredReport handles GET /api/reports/expired
func (s *Server) GetExpiredReport(c *fiber.Ctx) error {
	from, to, err := window(c)
	if err != nil {
		return nil
	}

	logs, err := s.reports.ListExpired(c.UserContext(), from, to)
	if err != nil {
		return respondError(c, err)
	}
	if logs == nil {
		logs = []models.ApprovalLog{}
	}
	return c.JSON(logs)
}

// GetResourceUsage handles GET /api/reports/usage/:resourceId
func (s *Server) GetResourceUsage(c *fiber.Ctx) error {
	resourceID, err := s.parseID(c, "resourceId")
	if err != nil {
		return nil
	}
	from, to, err := window(c)
	if err != nil {
		return nil
	}

	usage, err := s.reports.UsageForResource(c.UserContext(), resourceID, from, to)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(usage)
}
