package resilience

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/convene/internal/faults"
)

// Caller runs operations against one external dependency under the shared
// retry policy and circuit breaker.
type Caller struct {
	policy  RetryPolicy
	breaker *Breaker
	logger  zerolog.Logger

	// sleep is injectable so tests do not wait out real backoff.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewCaller(policy RetryPolicy, breaker *Breaker, logger zerolog.Logger) *Caller {
	return &Caller{
		policy:  policy,
		breaker: breaker,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// Call invokes op, retrying retryable failure classes with backoff until the
// attempt budget runs out. The breaker fails fast while the dependency is
// considered unhealthy; breaker rejections carry the circuit-open class.
func (c *Caller) Call(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; ; attempt++ {
		if err := c.breaker.Allow(); err != nil {
			return faults.WithClass(faults.ClassCircuitOpen, err)
		}

		lastErr = op(ctx)
		if lastErr == nil {
			c.breaker.RecordSuccess()
			return nil
		}

		class := faults.ClassOf(lastErr)
		if class == faults.ClassTransient || class == faults.ClassDecode {
			c.breaker.RecordFailure()
		}

		if !class.Retryable() || attempt >= c.maxAttemptsFor(class) {
			return lastErr
		}

		delay := c.policy.Delay(attempt)
		c.logger.Warn().
			Err(lastErr).
			Int("attempt", attempt).
			Str("error_class", string(class)).
			Dur("backoff", delay).
			Msg("external call failed, retrying")

		if err := c.sleep(ctx, delay); err != nil {
			return faults.WithClass(faults.ClassTransient, err)
		}
	}
}

func (c *Caller) maxAttemptsFor(class faults.Class) int {
	if class == faults.ClassDecode && c.policy.DecodeMaxAttempts > 0 {
		return c.policy.DecodeMaxAttempts
	}
	if c.policy.MaxAttempts < 1 {
		return 1
	}
	return c.policy.MaxAttempts
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
