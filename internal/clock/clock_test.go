package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManual_AdvanceAndSet(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := NewManual(start)

	assert.Equal(t, start, c.Now())
	assert.Equal(t, start.Add(61*time.Minute), c.Advance(61*time.Minute))

	later := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}

func TestManual_ConcurrentAdvance(t *testing.T) {
	c := NewManual(time.Unix(0, 0))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(time.Second)
		}()
	}
	wg.Wait()

	assert.Equal(t, time.Unix(50, 0).UTC(), c.Now())
}

func TestDayBefore(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		when     time.Time
		expected bool
	}{
		{"Yesterday late evening", time.Date(2026, 3, 9, 23, 59, 0, 0, time.UTC), true},
		{"Earlier today", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), false},
		{"Later today", time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC), false},
		{"Tomorrow", time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DayBefore(tt.when, now))
		})
	}
}

func TestSystem_IsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, System{}.Now().Location())
}
