package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"booking/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestNotifier_NilClientIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.NoError(t, n.Publish(context.Background(), Event{Type: EventSubmitted}))
	assert.NoError(t, n.Subscribe(context.Background(), func(Event) {}))

	var nilNotifier *Notifier
	assert.NoError(t, nilNotifier.Publish(context.Background(), Event{Type: EventSubmitted}))
}

func TestUserChannel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "notifications:user:1", UserChannel(1))
	assert.Equal(t, "notifications:user:100", UserChannel(100))
}

func TestNotifier_PublishMirrorsToRequester(t *testing.T) {
	rdb := newRedis(t)
	n := NewNotifier(rdb)
	ctx := context.Background()

	userSub := rdb.Subscribe(ctx, UserChannel(7))
	defer func() { _ = userSub.Close() }()
	_, err := userSub.Receive(ctx)
	require.NoError(t, err)

	got := make(chan Event, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	require.NoError(t, n.Subscribe(subCtx, func(ev Event) { got <- ev }))

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	actor := uint(3)
	req := &models.Request{ID: 11, RequesterID: 7, ResourceID: 2, Organization: models.OrganizationCSC, Status: models.StatusApproved, IsSuspicious: true}
	require.NoError(t, n.Publish(ctx, RequestEvent(EventDecided, req, &actor, at)))

	select {
	case ev := <-got:
		assert.Equal(t, EventDecided, ev.Type)
		assert.Equal(t, uint(11), ev.RequestID)
		assert.Equal(t, models.StatusApproved, ev.Status)
		assert.True(t, ev.Suspicious)
		require.NotNil(t, ev.ActorID)
		assert.Equal(t, actor, *ev.ActorID)
		assert.True(t, at.Equal(ev.OccurredAt))
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered on events channel")
	}

	msg, err := userSub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var mirrored Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &mirrored))
	assert.Equal(t, uint(11), mirrored.RequestID)
}

func TestNotifier_SubscribeStopsOnCancel(t *testing.T) {
	rdb := newRedis(t)
	n := NewNotifier(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan Event, 4)
	require.NoError(t, n.Subscribe(ctx, func(ev Event) { events <- ev }))

	require.NoError(t, n.Publish(context.Background(), Event{Type: EventBreached, Count: 2}))
	select {
	case ev := <-events:
		assert.Equal(t, int64(2), ev.Count)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	cancel()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, n.Publish(context.Background(), Event{Type: EventBreached, Count: 5}))
	assert.Never(t, func() bool {
		select {
		case ev := <-events:
			return ev.Count == 5
		default:
			return false
		}
	}, 100*time.Millisecond, 10*time.Millisecond)
}

func TestNotifier_SubscriberSurvivesPanic(t *testing.T) {
	rdb := newRedis(t)
	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := make(chan int64, 4)
	require.NoError(t, n.Subscribe(ctx, func(ev Event) {
		if ev.Count == 1 {
			panic("boom")
		}
		seen <- ev.Count
	}))

	require.NoError(t, n.Publish(ctx, Event{Type: EventBreached, Count: 1}))
	require.NoError(t, n.Publish(ctx, Event{Type: EventBreached, Count: 2}))

	select {
	case c := <-seen:
		assert.Equal(t, int64(2), c)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber stopped after panic")
	}
}
