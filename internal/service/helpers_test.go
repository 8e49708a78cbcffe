package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"booking/internal/classifier"
	"booking/internal/clock"
	"booking/internal/models"
	"booking/internal/notifications"
	"booking/internal/repository"
	"booking/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// classifierStub is a stub for Classifier. The zero value reports no anomaly.
type classifierStub struct {
	mu    sync.Mutex
	fn    func(context.Context, float64) (classifier.Result, error)
	calls []float64
}

func (c *classifierStub) Classify(ctx context.Context, elapsed float64) (classifier.Result, error) {
	c.mu.Lock()
	c.calls = append(c.calls, elapsed)
	fn := c.fn
	c.mu.Unlock()
	if fn == nil {
		return classifier.Result{Score: 0.1}, nil
	}
	return fn(ctx, elapsed)
}

func (c *classifierStub) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *eventRecorder) Publish(_ context.Context, ev notifications.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *eventRecorder) types() []notifications.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notifications.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

// racingRequests runs before ahead of every Commit, simulating a concurrent
// writer landing between Decide's read and its write.
type racingRequests struct {
	repository.RequestRepository
	before func()
}

func (r *racingRequests) Commit(ctx context.Context, t repository.Transition) error {
	if r.before != nil {
		r.before()
	}
	return r.RequestRepository.Commit(ctx, t)
}

type env struct {
	db         *gorm.DB
	f          *testutil.Fixture
	clock      *clock.Manual
	classifier *classifierStub
	events     *eventRecorder
	requests   repository.RequestRepository
	svc        *LifecycleService
}

func newEnv(t *testing.T, slaMinutes int) *env {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	e := &env{
		db:         db,
		f:          testutil.SeedFixture(t, db, slaMinutes),
		clock:      clock.NewManual(t0),
		classifier: &classifierStub{},
		events:     &eventRecorder{},
		requests:   repository.NewRequestRepository(db),
	}
	e.svc = e.build(nil, e.requests)
	return e
}

func (e *env) build(flags FlagSource, requests repository.RequestRepository) *LifecycleService {
	return NewLifecycleService(LifecycleDeps{
		Requests:   requests,
		Resources:  repository.NewResourceRepository(e.db),
		Users:      repository.NewUserRepository(e.db),
		Classifier: e.classifier,
		Events:     e.events,
		Flags:      flags,
		Clock:      e.clock,
	})
}

func (e *env) submit(t *testing.T, requestedDate time.Time) *models.Request {
	t.Helper()
	req, err := e.svc.Submit(context.Background(), SubmitInput{
		RequesterID:   e.f.Faculty.ID,
		ResourceID:    e.f.Resource.ID,
		EventDetails:  "Thesis defense",
		RequestedDate: requestedDate,
		DurationDays:  2,
	})
	require.NoError(t, err)
	return req
}

func (e *env) reload(t *testing.T, id uint) *models.Request {
	t.Helper()
	req, err := e.requests.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, req.Validate())
	return req
}

func (e *env) approve(id uint) (*DecideResult, error) {
	return e.svc.Decide(context.Background(), DecideInput{
		RequestID: id,
		ActorID:   e.f.Supervisor.ID,
		ActorRole: models.RoleSupervisor,
		Decision:  models.StatusApproved,
	})
}

func (e *env) approvalLogs(t *testing.T, id uint) []models.ApprovalLog {
	t.Helper()
	logs, err := repository.NewApprovalLogRepository(e.db).ListByRequest(context.Background(), id)
	require.NoError(t, err)
	return logs
}
