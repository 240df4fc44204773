// Package resilience wraps calls to unreliable dependencies with retry,
// jittered exponential backoff and a circuit breaker.
package resilience

import (
	"math"
	"math/rand/v2"
	"time"
)

const jitterFraction = 0.25

// RetryPolicy describes the backoff schedule for retried failures.
type RetryPolicy struct {
	// MaxAttempts bounds total attempts for retryable failures, first try
	// included.
	MaxAttempts int
	// DecodeMaxAttempts bounds attempts when the failure is a contract
	// violation rather than a transport fault. Kept smaller: a malformed
	// response is usually not a glitch.
	DecodeMaxAttempts int
	BaseDelay         time.Duration
	Factor            float64
	MaxDelay          time.Duration
}

// Delay returns the jittered backoff to sleep after the given 1-based failed
// attempt: base*factor^(attempt-1) capped at MaxDelay, +/-25% jitter, then
// clamped so the final delay never exceeds MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	base := float64(p.BaseDelay)
	if base <= 0 {
		return 0
	}
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}

	maxDelay := float64(p.MaxDelay)
	delay := base * math.Pow(factor, float64(attempt-1))
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}

	delay += (rand.Float64()*2 - 1) * jitterFraction * delay
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	return time.Duration(delay)
}
