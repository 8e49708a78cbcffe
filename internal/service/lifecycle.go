// Package service implements the request lifecycle engine and its read-side reports.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"booking/internal/cache"
	"booking/internal/classifier"
	"booking/internal/clock"
	"booking/internal/featureflags"
	"booking/internal/middleware"
	"booking/internal/models"
	"booking/internal/notifications"
	"booking/internal/observability"
	"booking/internal/repository"
	"booking/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// DefaultTooFastThreshold is the minimum time between submission and decision
// before the decision is flagged as too fast.
const DefaultTooFastThreshold = 60 * time.Second

// Classifier scores decision latency.
type Classifier interface {
	Classify(ctx context.Context, elapsedSeconds float64) (classifier.Result, error)
}

// EventPublisher receives lifecycle events after they are committed.
type EventPublisher interface {
	Publish(ctx context.Context, ev notifications.Event) error
}

// FlagSource evaluates feature flags per actor.
type FlagSource interface {
	Enabled(name string, actorID uint) bool
}

// LifecycleDeps wires a LifecycleService.
type LifecycleDeps struct {
	Requests   repository.RequestRepository
	Resources  repository.ResourceRepository
	Users      repository.UserRepository
	Classifier Classifier
	Events     EventPublisher
	Flags      FlagSource
	Clock      clock.Clock
	// TooFastThreshold defaults to DefaultTooFastThreshold when zero.
	TooFastThreshold time.Duration
}

// LifecycleService applies submit, decide, resubmit and delete transitions.
type LifecycleService struct {
	requests   repository.RequestRepository
	resources  repository.ResourceRepository
	users      repository.UserRepository
	classifier Classifier
	events     EventPublisher
	flags      FlagSource
	clock      clock.Clock
	tooFast    time.Duration
}

type SubmitInput struct {
	RequesterID   uint
	ResourceID    uint
	EventDetails  string
	RequestedDate time.Time
	DurationDays  int
	Priority      models.Priority
}

type DecideInput struct {
	RequestID       uint
	ActorID         uint
	ActorRole       models.Role
	Decision        models.RequestStatus
	RejectionReason string
}

// DecideResult is the updated request and the entries detected by this call.
// AutoRejected is set when the event date had already passed.
type DecideResult struct {
	Request      *models.Request
	Activities   []models.SuspiciousActivity
	AutoRejected bool
}

func NewLifecycleService(deps LifecycleDeps) *LifecycleService {
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Flags == nil {
		deps.Flags = featureflags.NewManager("")
	}
	if deps.TooFastThreshold <= 0 {
		deps.TooFastThreshold = DefaultTooFastThreshold
	}
	return &LifecycleService{
		requests:   deps.Requests,
		resources:  deps.Resources,
		users:      deps.Users,
		classifier: deps.Classifier,
		events:     deps.Events,
		flags:      deps.Flags,
		clock:      deps.Clock,
		tooFast:    deps.TooFastThreshold,
	}
}

func (in SubmitInput) validate() error {
	switch {
	case in.ResourceID == 0:
		return models.NewValidationError("resource_id is required")
	case in.RequestedDate.IsZero():
		return models.NewValidationError("requested_date is required")
	case in.DurationDays < 1:
		return models.NewValidationError("duration_days must be at least 1")
	case !in.Priority.Valid():
		return models.NewValidationError("priority must be normal or urgent")
	}
	if err := validation.ValidateEventDetails(in.EventDetails); err != nil {
		return models.NewValidationError(err.Error())
	}
	return nil
}

// Submit creates a pending request. The organization is taken from the
// requester's profile.
func (s *LifecycleService) Submit(ctx context.Context, in SubmitInput) (*models.Request, error) {
	span, ctx := observability.NewSpan(ctx, "lifecycle.submit")
	defer span.End()

	if in.Priority == "" {
		in.Priority = models.PriorityNormal
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	requester, err := s.users.GetByID(ctx, in.RequesterID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	resource, err := s.resources.GetByID(ctx, in.ResourceID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	now := s.clock.Now()
	req := &models.Request{
		RequesterID:   requester.ID,
		ResourceID:    resource.ID,
		Organization:  requester.Organization,
		EventDetails:  strings.TrimSpace(in.EventDetails),
		RequestedDate: in.RequestedDate,
		DurationDays:  in.DurationDays,
		Priority:      in.Priority,
		Status:        models.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		span.SetError(err)
		return nil, err
	}
	req.Resource = resource
	span.AddAttributes(attribute.Int("request.id", int(req.ID)))

	cache.InvalidateCounts(ctx, req.Organization)
	s.publish(ctx, notifications.RequestEvent(notifications.EventSubmitted, req, &requester.ID, now))
	middleware.Logger.InfoContext(ctx, "request submitted",
		slog.Uint64("request_id", uint64(req.ID)),
		slog.Uint64("resource_id", uint64(req.ResourceID)),
	)
	return req, nil
}

func (s *LifecycleService) authorizeDecision(ctx context.Context, req *models.Request, in DecideInput) error {
	if !in.ActorRole.CanDecide() {
		return models.NewAccessDeniedError("Only supervisors and trustees can approve or reject requests")
	}
	if in.ActorRole != models.RoleSupervisor {
		return nil
	}
	assigned, err := s.users.IsAssignedToResource(ctx, in.ActorID, req.ResourceID)
	if err != nil {
		return err
	}
	if !assigned {
		return models.NewAccessDeniedError("You can only approve or reject requests for your assigned resources")
	}
	return nil
}

// Decide approves or rejects a pending request. A request whose event day is
// already behind today is rejected by the system instead, whatever the decision.
func (s *LifecycleService) Decide(ctx context.Context, in DecideInput) (*DecideResult, error) {
	span, ctx := observability.NewSpan(ctx, "lifecycle.decide")
	defer span.End()
	span.AddAttributes(
		attribute.Int("request.id", int(in.RequestID)),
		attribute.String("decision", string(in.Decision)),
	)

	res, err := s.decide(ctx, in)
	outcome := "applied"
	switch {
	case err != nil:
		outcome = models.ErrorCode(err)
		span.SetError(err)
	case res.AutoRejected:
		outcome = "auto_rejected"
	}
	observability.DecisionsTotal.WithLabelValues(string(in.Decision), outcome).Inc()
	return res, err
}

func (s *LifecycleService) decide(ctx context.Context, in DecideInput) (*DecideResult, error) {
	req, err := s.requests.GetByID(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeDecision(ctx, req, in); err != nil {
		return nil, err
	}
	if !in.Decision.IsDecision() {
		return nil, models.NewInvalidStatusError(string(in.Decision))
	}
	reason := strings.TrimSpace(in.RejectionReason)
	if in.Decision == models.StatusRejected {
		if err := validation.ValidateRejectionReason(reason); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	}
	if req.Inactive {
		return nil, models.NewInvalidStateError("Request is inactive and must be resubmitted")
	}
	if req.Status != models.StatusPending {
		return nil, models.NewInvalidStateError(fmt.Sprintf("Request is already %s", req.Status))
	}

	now := s.clock.Now()
	if clock.DayBefore(req.RequestedDate, now) {
		if err := s.autoReject(ctx, req, repository.Guard{Status: models.StatusPending}, now, "decide"); err != nil {
			return nil, err
		}
		return &DecideResult{Request: req, AutoRejected: true}, nil
	}

	found, err := s.detect(ctx, req, in, now)
	if err != nil {
		return nil, err
	}

	guard := repository.Guard{
		Status: models.StatusPending,
		SLA:    &repository.SLAGuard{IsBreached: req.SLA.IsBreached, Resolved: req.SLA.Resolved},
	}

	actor := in.ActorID
	prior := len(req.SuspiciousActivities)
	req.SuspiciousActivities = append(req.SuspiciousActivities[:prior:prior], found...)
	req.IsSuspicious = len(req.SuspiciousActivities) > 0
	req.Status = in.Decision
	req.DecidedByID = &actor
	req.DecidedAt = &now
	req.LastUpdatedByID = &actor
	req.UpdatedAt = now
	req.RejectionReason = ""
	if in.Decision == models.StatusRejected {
		req.RejectionReason = reason
	}
	if req.SLA.NeedsResolution() {
		if err := req.SLA.Resolve(actor, now); err != nil {
			return nil, models.NewInternalError(err)
		}
	}

	t := repository.Transition{
		Request:    req,
		Guard:      guard,
		Activities: found,
		Log: &models.ApprovalLog{
			ActorID:   &actor,
			Action:    in.Decision,
			Reason:    req.RejectionReason,
			Timestamp: now,
		},
	}
	if in.Decision == models.StatusApproved {
		t.Usage = models.NewUsageLog(req, now)
	}
	if err := s.requests.Commit(ctx, t); err != nil {
		return nil, err
	}
	copy(req.SuspiciousActivities[prior:], found)

	for _, a := range found {
		observability.SuspiciousActivitiesTotal.WithLabelValues(string(a.Kind), string(a.ActionType)).Inc()
	}
	cache.InvalidateCounts(ctx, req.Organization)
	s.publish(ctx, notifications.RequestEvent(notifications.EventDecided, req, &actor, now))
	middleware.Logger.InfoContext(ctx, "request decided",
		slog.Uint64("request_id", uint64(req.ID)),
		slog.String("status", string(req.Status)),
		slog.Int("suspicious_entries", len(found)),
		slog.Bool("sla_resolved", req.SLA.Resolved),
	)
	return &DecideResult{Request: req, Activities: found}, nil
}

// detect runs the timing rules for a decision made at now. It performs no
// writes; a classifier failure aborts the decision unless fail-open is flagged.
func (s *LifecycleService) detect(ctx context.Context, req *models.Request, in DecideInput, now time.Time) ([]models.SuspiciousActivity, error) {
	action := models.ActionTypeFor(in.Decision)
	elapsed := now.Sub(req.CreatedAt)
	var found []models.SuspiciousActivity

	if elapsed < s.tooFast {
		found = append(found, models.SuspiciousActivity{
			Kind:       models.ActivityTooFast,
			ActionType: action,
			DetectedAt: now,
			Details:    fmt.Sprintf("Decided %s after submission", elapsed.Round(time.Second)),
		})
	}
	if req.RequestedDate.Before(now) {
		found = append(found, models.SuspiciousActivity{
			Kind:       models.ActivityTooLate,
			ActionType: action,
			DetectedAt: now,
			Details:    "Event date had passed at decision time",
		})
	}

	verdict, err := s.classify(ctx, elapsed.Seconds())
	if err != nil {
		if !s.flags.Enabled(featureflags.ClassifierFailOpen, in.ActorID) {
			return nil, models.NewClassifierUnavailableError(err)
		}
		observability.ClassifierDegradedTotal.Inc()
		middleware.Logger.WarnContext(ctx, "anomaly classifier unavailable, deciding without it",
			slog.Uint64("request_id", uint64(req.ID)),
			slog.String("error", err.Error()),
		)
		return found, nil
	}
	if verdict.IsAnomaly {
		score := verdict.Score
		found = append(found, models.SuspiciousActivity{
			Kind:       models.ActivityAnomaly,
			ActionType: action,
			DetectedAt: now,
			Details:    fmt.Sprintf("Decision time of %.0fs flagged by anomaly classifier", elapsed.Seconds()),
			Score:      &score,
		})
	}
	return found, nil
}

func (s *LifecycleService) classify(ctx context.Context, elapsedSeconds float64) (classifier.Result, error) {
	if s.classifier == nil {
		return classifier.Result{}, fmt.Errorf("no anomaly classifier configured")
	}
	return s.classifier.Classify(ctx, elapsedSeconds)
}

// autoReject rejects req on behalf of the system because its event date passed.
// The request becomes inactive so its owner may resubmit with a new date; an
// existing breach is kept, otherwise an event-date-passed breach is recorded.
func (s *LifecycleService) autoReject(ctx context.Context, req *models.Request, guard repository.Guard, now time.Time, trigger string) error {
	req.Status = models.StatusRejected
	req.RejectionReason = models.EventDatePassedReason
	req.DecidedByID = nil
	req.DecidedAt = &now
	req.Inactive = true
	req.UpdatedAt = now
	if !req.SLA.IsBreached {
		req.SLA = models.NewBreach(models.BreachEventDatePassed, now)
	}

	err := s.requests.Commit(ctx, repository.Transition{
		Request: req,
		Guard:   guard,
		Log: &models.ApprovalLog{
			Action:    models.StatusRejected,
			Reason:    models.EventDatePassedReason,
			Timestamp: now,
		},
	})
	if err != nil {
		return err
	}

	observability.AutoRejectionsTotal.WithLabelValues(trigger).Inc()
	cache.InvalidateCounts(ctx, req.Organization)
	s.publish(ctx, notifications.RequestEvent(notifications.EventDecided, req, nil, now))
	middleware.Logger.InfoContext(ctx, "request auto-rejected",
		slog.Uint64("request_id", uint64(req.ID)),
		slog.String("trigger", trigger),
	)
	return nil
}

// Resubmit reactivates an inactive request for its owner and restarts SLA
// tracking. If the event day has passed it is rejected again instead.
func (s *LifecycleService) Resubmit(ctx context.Context, requestID, actorID uint) (*models.Request, error) {
	span, ctx := observability.NewSpan(ctx, "lifecycle.resubmit")
	defer span.End()
	span.AddAttributes(attribute.Int("request.id", int(requestID)))

	req, err := s.resubmit(ctx, requestID, actorID)
	span.SetError(err)
	return req, err
}

func (s *LifecycleService) resubmit(ctx context.Context, requestID, actorID uint) (*models.Request, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != actorID {
		return nil, models.NewAccessDeniedError("Only the requester can resubmit this request")
	}
	if !req.Inactive {
		return nil, models.NewInvalidStateError("Only inactive requests can be resubmitted")
	}

	now := s.clock.Now()
	guard := repository.Guard{Inactive: true}
	if clock.DayBefore(req.RequestedDate, now) {
		if err := s.autoReject(ctx, req, guard, now, "resubmit"); err != nil {
			return nil, err
		}
		return req, nil
	}

	actor := actorID
	req.Status = models.StatusPending
	req.Inactive = false
	req.SLA = models.SLAState{}
	req.DecidedByID = nil
	req.DecidedAt = nil
	req.RejectionReason = ""
	req.ModifiedAt = &now
	req.ModifiedCount++
	req.LastUpdatedByID = &actor
	req.UpdatedAt = now

	if err := s.requests.Commit(ctx, repository.Transition{Request: req, Guard: guard}); err != nil {
		return nil, err
	}

	cache.InvalidateCounts(ctx, req.Organization)
	s.publish(ctx, notifications.RequestEvent(notifications.EventResubmitted, req, &actor, now))
	middleware.Logger.InfoContext(ctx, "request resubmitted",
		slog.Uint64("request_id", uint64(req.ID)),
		slog.Int("modified_count", req.ModifiedCount),
	)
	return req, nil
}

// Delete removes a pending request. Only its requester may delete it.
func (s *LifecycleService) Delete(ctx context.Context, requestID, actorID uint) error {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.RequesterID != actorID {
		return models.NewAccessDeniedError("Only the requester can delete this request")
	}
	if req.Status != models.StatusPending {
		return models.NewInvalidStateError("Approved or rejected requests cannot be deleted")
	}
	if err := s.requests.DeletePending(ctx, requestID, actorID); err != nil {
		return err
	}

	cache.InvalidateCounts(ctx, req.Organization)
	s.publish(ctx, notifications.RequestEvent(notifications.EventDeleted, req, &actorID, s.clock.Now()))
	return nil
}

// ListMine returns the actor's own requests, newest first.
func (s *LifecycleService) ListMine(ctx context.Context, requesterID uint, limit, offset int) ([]models.Request, int64, error) {
	return s.requests.ListByRequester(ctx, requesterID, limit, offset)
}

// Get returns one request.
func (s *LifecycleService) Get(ctx context.Context, requestID uint) (*models.Request, error) {
	return s.requests.GetByID(ctx, requestID)
}

// publish is best-effort; the transition is already committed.
func (s *LifecycleService) publish(ctx context.Context, ev notifications.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish lifecycle event",
			slog.String("event", string(ev.Type)),
			slog.String("error", err.Error()),
		)
	}
}
