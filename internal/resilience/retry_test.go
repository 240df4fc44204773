package resilience

import (
	"testing"
	"time"
)

func TestRetryDelayBounds(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{
		MaxAttempts: 6,
		BaseDelay:   100 * time.Millisecond,
		Factor:      2,
		MaxDelay:    3 * time.Second,
	}

	bounds := []struct {
		attempt  int
		min, max time.Duration
	}{
		{1, 75 * time.Millisecond, 125 * time.Millisecond},
		{2, 150 * time.Millisecond, 250 * time.Millisecond},
		{3, 300 * time.Millisecond, 500 * time.Millisecond},
		{4, 600 * time.Millisecond, 1000 * time.Millisecond},
		{5, 1200 * time.Millisecond, 2000 * time.Millisecond},
		{6, 2250 * time.Millisecond, 3000 * time.Millisecond},
	}

	for _, bound := range bounds {
		for i := 0; i < 200; i++ {
			delay := policy.Delay(bound.attempt)
			if delay < bound.min || delay > bound.max {
				t.Fatalf("attempt %d delay %v outside [%v, %v]", bound.attempt, delay, bound.min, bound.max)
			}
		}
	}
}

func TestRetryDelayNeverExceedsCap(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{
		BaseDelay: 100 * time.Millisecond,
		Factor:    2,
		MaxDelay:  3 * time.Second,
	}

	// Attempt 10 would be 51.2s uncapped; jitter applies to the cap, and the
	// final delay is clamped so upward jitter cannot push past it.
	for i := 0; i < 2000; i++ {
		delay := policy.Delay(10)
		if delay < 2250*time.Millisecond || delay > 3*time.Second {
			t.Fatalf("capped delay %v outside [2.25s, 3s]", delay)
		}
	}
}
