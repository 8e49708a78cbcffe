package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"booking/internal/cache"
	"booking/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingSweep(calls *int32, marked int64, err error) BreachSweepFunc {
	return func(context.Context) (int64, error) {
		atomic.AddInt32(calls, 1)
		return marked, err
	}
}

func TestBreachSweeper_RunsImmediatelyAndOnTick(t *testing.T) {
	var calls int32
	s := NewBreachSweeper(countingSweep(&calls, 0, nil), nil, 20*time.Millisecond)

	s.Start(context.Background())
	defer s.Stop()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestBreachSweeper_StartStopIdempotent(t *testing.T) {
	var calls int32
	s := NewBreachSweeper(countingSweep(&calls, 0, nil), nil, time.Hour)

	s.Stop() // before Start

	s.Start(context.Background())
	s.Start(context.Background())
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestBreachSweeper_StopsWithContext(t *testing.T) {
	var calls int32
	s := NewBreachSweeper(countingSweep(&calls, 0, nil), nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 1 }, time.Second, 5*time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after context cancellation")
	}
}

func TestBreachSweeper_ContinuesAfterFailure(t *testing.T) {
	var calls int32
	s := NewBreachSweeper(countingSweep(&calls, 0, errors.New("store down")), nil, 10*time.Millisecond)

	assert.Zero(t, s.RunOnce(context.Background()))

	s.Start(context.Background())
	defer s.Stop()
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestBreachSweeper_RedisLock(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	var calls int32
	s := NewBreachSweeper(countingSweep(&calls, 4, nil), rdb, time.Minute)

	other, err := cache.Acquire(ctx, rdb, SweepLockKey, time.Minute)
	require.NoError(t, err)

	assert.Zero(t, s.RunOnce(ctx))
	assert.Zero(t, atomic.LoadInt32(&calls))

	require.NoError(t, other.Release(ctx))
	assert.Equal(t, int64(4), s.RunOnce(ctx))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.False(t, mr.Exists(SweepLockKey), "lock is released after the run")
}

func TestBreachSweeper_RedisDownStillSweeps(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	var calls int32
	s := NewBreachSweeper(countingSweep(&calls, 1, nil), rdb, time.Minute)
	assert.Equal(t, int64(1), s.RunOnce(context.Background()))
}

func TestBreachSweeper_DrivesLifecycleSweep(t *testing.T) {
	e := newEnv(t, 60)
	req := e.submit(t, t0.AddDate(0, 0, 7))
	e.clock.Advance(90 * time.Minute)

	s := NewBreachSweeper(e.svc.SweepBreaches, nil, time.Hour)
	assert.Equal(t, int64(1), s.RunOnce(context.Background()))
	assert.True(t, e.reload(t, req.ID).SLA.IsBreached)
}

func TestBreachSweeper_SweepNeedsNoClassifier(t *testing.T) {
	e := newEnv(t, 60)
	req := e.submit(t, t0.AddDate(0, 0, 7))
	e.clock.Advance(90 * time.Minute)

	// Wired the way cmd/sweep wires it.
	svc := NewLifecycleService(LifecycleDeps{
		Requests:  e.requests,
		Resources: repository.NewResourceRepository(e.db),
		Users:     repository.NewUserRepository(e.db),
		Events:    e.events,
		Clock:     e.clock,
	})

	s := NewBreachSweeper(svc.SweepBreaches, nil, time.Hour)
	assert.Equal(t, int64(1), s.RunOnce(context.Background()))
	assert.True(t, e.reload(t, req.ID).SLA.IsBreached)
}
