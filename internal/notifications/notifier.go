// Package notifications publishes request lifecycle events over Redis pub/sub.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"booking/internal/middleware"
	"booking/internal/models"

	"github.com/redis/go-redis/v9"
)

// EventsChannel carries every lifecycle event.
const EventsChannel = "booking:events"

// EventType names a lifecycle transition.
type EventType string

const (
	EventSubmitted   EventType = "request.submitted"
	EventDecided     EventType = "request.decided"
	EventResubmitted EventType = "request.resubmitted"
	EventBreached    EventType = "request.breached"
	EventDeleted     EventType = "request.deleted"
)

// Event is the JSON payload published for a transition. Sweep events carry
// Count instead of a request id.
type Event struct {
	Type         EventType            `json:"type"`
	RequestID    uint                 `json:"request_id,omitempty"`
	RequesterID  uint                 `json:"requester_id,omitempty"`
	ResourceID   uint                 `json:"resource_id,omitempty"`
	Organization models.Organization  `json:"organization,omitempty"`
	Status       models.RequestStatus `json:"status,omitempty"`
	ActorID      *uint                `json:"actor_id,omitempty"`
	Suspicious   bool                 `json:"suspicious,omitempty"`
	Count        int64                `json:"count,omitempty"`
	OccurredAt   time.Time            `json:"occurred_at"`
}

// RequestEvent builds an event describing req after a transition.
func RequestEvent(t EventType, req *models.Request, actorID *uint, at time.Time) Event {
	return Event{
		Type:         t,
		RequestID:    req.ID,
		RequesterID:  req.RequesterID,
		ResourceID:   req.ResourceID,
		Organization: req.Organization,
		Status:       req.Status,
		ActorID:      actorID,
		Suspicious:   req.IsSuspicious,
		OccurredAt:   at,
	}
}

// UserChannel is the per-user channel a requester's events are mirrored to.
func UserChannel(userID uint) string {
	return fmt.Sprintf("notifications:user:%d", userID)
}

// Notifier provides helpers to publish events into Redis channels.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a Notifier. A nil client makes every call a no-op.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Publish sends ev to EventsChannel and, when it names a requester, to their
// user channel.
func (n *Notifier) Publish(ctx context.Context, ev Event) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := n.rdb.Pipeline()
	pipe.Publish(ctx, EventsChannel, payload)
	if ev.RequesterID != 0 {
		pipe.Publish(ctx, UserChannel(ev.RequesterID), payload)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Subscribe delivers decoded events from EventsChannel to onEvent until ctx is
// cancelled. It returns once the subscription is confirmed.
func (n *Notifier) Subscribe(ctx context.Context, onEvent func(Event)) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, EventsChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", EventsChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in event subscriber", "panic", r, "stack", string(debug.Stack()))
						}
					}()
					onEvent(ev)
				}()
			}
		}
	}()

	return nil
}
