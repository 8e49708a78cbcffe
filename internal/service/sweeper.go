package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"booking/internal/cache"
	"booking/internal/middleware"
	"booking/internal/observability"

	"github.com/redis/go-redis/v9"
)

// DefaultSweepInterval is how often the breach sweep runs.
const DefaultSweepInterval = 5 * time.Minute

// SweepLockKey serializes sweeps across replicas.
const SweepLockKey = "locks:sla-sweep"

// BreachSweepFunc runs one sweep pass.
type BreachSweepFunc func(ctx context.Context) (int64, error)

// BreachSweeper runs SweepBreaches in the background: once on Start, then on
// every interval. With a Redis client only one replica sweeps at a time.
// Failures are logged and the next tick tries again.
type BreachSweeper struct {
	sweep    BreachSweepFunc
	rdb      *redis.Client
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBreachSweeper creates a sweeper but does not start it. rdb may be nil.
func NewBreachSweeper(sweep BreachSweepFunc, rdb *redis.Client, interval time.Duration) *BreachSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &BreachSweeper{sweep: sweep, rdb: rdb, interval: interval}
}

// Start launches the loop. Calling Start on a running sweeper is a no-op.
func (b *BreachSweeper) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return
	}

	ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})
	go b.loop(ctx, b.done)

	middleware.Logger.Info("sla breach sweeper started", slog.Duration("interval", b.interval))
}

// Stop signals the loop to exit and waits for it. Safe to call more than once
// or before Start.
func (b *BreachSweeper) Stop() {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel, b.done = nil, nil
	b.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (b *BreachSweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	b.RunOnce(ctx)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single guarded sweep and reports how many requests it
// marked. It returns 0 when another replica holds the lock.
func (b *BreachSweeper) RunOnce(ctx context.Context) int64 {
	if b.rdb != nil {
		lock, err := cache.Acquire(ctx, b.rdb, SweepLockKey, b.interval)
		switch {
		case errors.Is(err, cache.ErrLockHeld):
			observability.SweepRunsTotal.WithLabelValues("skipped").Inc()
			return 0
		case err != nil:
			// Redis trouble must not stop breach detection; sweeping is idempotent.
			middleware.Logger.WarnContext(ctx, "sweep lock unavailable, sweeping unguarded", slog.String("error", err.Error()))
		default:
			defer func() { _ = lock.Release(context.WithoutCancel(ctx)) }()
		}
	}

	marked, err := b.sweep(ctx)
	if err != nil {
		if ctx.Err() == nil {
			middleware.Logger.ErrorContext(ctx, "sla breach sweep failed", slog.String("error", err.Error()))
		}
		return 0
	}
	return marked
}
