package server

import (
	"strings"
	"time"

	"booking/internal/models"
	"booking/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SubmitRequestBody is the payload for POST /api/requests.
type SubmitRequestBody struct {
	ResourceID    uint            `json:"resource_id"`
	EventDetails  string          `json:"event_details"`
	RequestedDate string          `json:"requested_date"`
	DurationDays  int             `json:"duration_days"`
	Priority      models.Priority `json:"priority"`
}

// DecideRequestBody is the payload for PUT /api/requests/:id/status.
type DecideRequestBody struct {
	Status          models.RequestStatus `json:"status"`
	RejectionReason string               `json:"rejection_reason"`
}

// DecideResponse carries the updated request and the entries this decision raised.
type DecideResponse struct {
	Request            *models.Request             `json:"request"`
	SuspiciousActivity []models.SuspiciousActivity `json:"suspicious_activity"`
	AutoRejected       bool                        `json:"auto_rejected"`
}

func parseRequestedDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, models.NewValidationError("requested_date must be YYYY-MM-DD or RFC 3339")
	}
	return t, nil
}

// SubmitRequest handles POST /api/requests
func (s *Server) SubmitRequest(c *fiber.Ctx) error {
	userID, _ := actor(c)

	var body SubmitRequestBody
	if err := c.BodyParser(&body); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	requestedDate, err := parseRequestedDate(body.RequestedDate)
	if err != nil {
		return respondError(c, err)
	}

	req, err := s.lifecycle.Submit(c.UserContext(), service.SubmitInput{
		RequesterID:   userID,
		ResourceID:    body.ResourceID,
		EventDetails:  body.EventDetails,
		RequestedDate: requestedDate,
		DurationDays:  body.DurationDays,
		Priority:      body.Priority,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

// ListMyRequests handles GET /api/requests/my
func (s *Server) ListMyRequests(c *fiber.Ctx) error {
	userID, _ := actor(c)
	page := parsePagination(c, 20)

	reqs, total, err := s.lifecycle.ListMine(c.UserContext(), userID, page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"requests": reqs,
		"total":    total,
		"limit":    page.Limit,
		"offset":   page.Offset,
	})
}

// DecideRequest handles PUT /api/requests/:id/status
func (s *Server) DecideRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, role := actor(c)

	var body DecideRequestBody
	if err := c.BodyParser(&body); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	result, err := s.lifecycle.Decide(c.UserContext(), service.DecideInput{
		RequestID:       id,
		ActorID:         userID,
		ActorRole:       role,
		Decision:        body.Status,
		RejectionReason: body.RejectionReason,
	})
	if err != nil {
		return respondError(c, err)
	}

	activities := result.Activities
	if activities == nil {
		activities = []models.SuspiciousActivity{}
	}
	return c.JSON(DecideResponse{
		Request:            result.Request,
		SuspiciousActivity: activities,
		AutoRejected:       result.AutoRejected,
	})
}

// ResubmitRequest handles PUT /api/requests/:id/resubmit
func (s *Server) ResubmitRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, _ := actor(c)

	req, err := s.lifecycle.Resubmit(c.UserContext(), id, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(req)
}

// DeleteRequest handles DELETE /api/requests/:id
func (s *Server) DeleteRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, _ := actor(c)

	if err := s.lifecycle.Delete(c.UserContext(), id, userID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetRequestLogs handles GET /api/requests/:id/logs. Requesters see their own
// requests; reviewers see any.
func (s *Server) GetRequestLogs(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, role := actor(c)

	req, err := s.lifecycle.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	if req.RequesterID != userID && !role.CanDecide() {
		return respondError(c, models.NewAccessDeniedError("Not allowed to view this request's history"))
	}

	logs, err := s.reports.ApprovalLogsForRequest(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(logs)
}
