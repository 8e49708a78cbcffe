package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSLAStateLifecycle(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var s SLAState
	assert.NoError(t, s.Validate())
	assert.False(t, s.NeedsResolution())
	assert.ErrorIs(t, s.Resolve(7, at), ErrNotBreached)

	s = NewBreach(BreachSLATimeExceeded, at)
	require.NoError(t, s.Validate())
	assert.True(t, s.NeedsResolution())
	assert.Equal(t, BreachSLATimeExceeded, s.Reason)
	assert.Equal(t, at, *s.BreachedAt)

	resolvedAt := at.Add(time.Hour)
	require.NoError(t, s.Resolve(7, resolvedAt))
	assert.True(t, s.Resolved)
	assert.Equal(t, uint(7), *s.ResolvedByID)
	assert.Equal(t, resolvedAt, *s.ResolvedAt)
	assert.False(t, s.NeedsResolution())
	assert.NoError(t, s.Validate())

	assert.ErrorIs(t, s.Resolve(8, resolvedAt), ErrAlreadyResolved)
	assert.Equal(t, uint(7), *s.ResolvedByID)
}

func TestSLAStateValidateRejectsPartialFields(t *testing.T) {
	at := time.Now()
	cases := map[string]SLAState{
		"breach without timestamp": {IsBreached: true, Reason: BreachSLATimeExceeded},
		"breach without reason":    {IsBreached: true, BreachedAt: &at},
		"reason without breach":    {Reason: BreachEventDatePassed},
		"resolved without breach":  {Resolved: true},
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, s.Validate())
		})
	}
}

func TestRequestValidate(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	r := &Request{Status: StatusRejected, CreatedAt: created}
	assert.Error(t, r.Validate())

	r.RejectionReason = "conflict"
	assert.NoError(t, r.Validate())

	r.SLA = NewBreach(BreachSLATimeExceeded, created.Add(-time.Minute))
	assert.Error(t, r.Validate())

	r.SLA = NewBreach(BreachSLATimeExceeded, created.Add(time.Minute))
	assert.NoError(t, r.Validate())
}

func TestRequestBookingWindow(t *testing.T) {
	start := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	r := &Request{ID: 3, ResourceID: 2, RequesterID: 9, Organization: OrganizationGHP, RequestedDate: start, DurationDays: 3}

	log := NewUsageLog(r, start)
	assert.Equal(t, start, log.BookingStart)
	assert.Equal(t, start.AddDate(0, 0, 3), log.BookingEnd)
	assert.Equal(t, uint(3), log.RequestID)
	assert.Equal(t, OrganizationGHP, log.Organization)
}

func TestResourceEffectiveSLA(t *testing.T) {
	assert.Equal(t, DefaultSLAMinutes, (*Resource)(nil).EffectiveSLAMinutes())
	assert.Equal(t, DefaultSLAMinutes, (&Resource{}).EffectiveSLAMinutes())
	assert.Equal(t, DefaultSLAMinutes, (&Resource{SLAMinutes: MaxSLAMinutes + 1}).EffectiveSLAMinutes())
	assert.Equal(t, 60, (&Resource{SLAMinutes: 60}).EffectiveSLAMinutes())
	assert.Equal(t, time.Hour, (&Resource{SLAMinutes: 60}).SLALimit())
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, StatusApproved.IsDecision())
	assert.False(t, StatusPending.IsDecision())
	assert.False(t, RequestStatus("maybe").Valid())
	assert.Equal(t, ActionApproval, ActionTypeFor(StatusApproved))
	assert.Equal(t, ActionRejection, ActionTypeFor(StatusRejected))
	assert.True(t, RoleTrustee.CanDecide())
	assert.False(t, RoleFaculty.CanDecide())
}
