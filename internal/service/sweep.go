package service

import (
	"context"
	"log/slog"
	"time"

	"booking/internal/middleware"
	"booking/internal/notifications"
	"booking/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// SweepBreaches marks every pending request whose SLA has elapsed as breached
// and inactive. Requests whose event date passed are left for Decide and
// Resubmit to catch. Running it twice with no state change in between marks
// nothing the second time.
func (s *LifecycleService) SweepBreaches(ctx context.Context) (int64, error) {
	span, ctx := observability.NewSpan(ctx, "lifecycle.sweep_breaches")
	defer span.End()

	now := s.clock.Now()
	start := time.Now()
	marked, err := s.requests.MarkBreached(ctx, now)
	observability.SweepDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		span.SetError(err)
		observability.SweepRunsTotal.WithLabelValues("error").Inc()
		return 0, err
	}

	observability.SweepRunsTotal.WithLabelValues("ok").Inc()
	observability.BreachesMarkedTotal.Add(float64(marked))
	span.AddAttributes(attribute.Int64("sweep.marked", marked))

	if marked > 0 {
		s.publish(ctx, notifications.Event{Type: notifications.EventBreached, Count: marked, OccurredAt: now})
		middleware.Logger.InfoContext(ctx, "sla sweep marked requests breached", slog.Int64("count", marked))
	}
	return marked, nil
}
