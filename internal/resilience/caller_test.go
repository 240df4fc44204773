package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/convene/internal/faults"
)

func newTestCaller(policy RetryPolicy, breaker *Breaker) *Caller {
	caller := NewCaller(policy, breaker, zerolog.Nop())
	caller.sleep = func(context.Context, time.Duration) error { return nil }
	return caller
}

func TestCallerRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	caller := newTestCaller(RetryPolicy{MaxAttempts: 4, BaseDelay: time.Millisecond, Factor: 2, MaxDelay: time.Second}, NewBreaker(10, time.Minute))

	calls := 0
	err := caller.Call(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return faults.WithClass(faults.ClassTransient, errors.New("connection reset"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestCallerDoesNotRetryInputErrors(t *testing.T) {
	t.Parallel()

	caller := newTestCaller(RetryPolicy{MaxAttempts: 4, BaseDelay: time.Millisecond, Factor: 2, MaxDelay: time.Second}, NewBreaker(10, time.Minute))

	calls := 0
	err := caller.Call(context.Background(), func(context.Context) error {
		calls++
		return faults.WithClass(faults.ClassInput, errors.New("document too large"))
	})
	if err == nil {
		t.Fatalf("expected the input error to surface")
	}
	if calls != 1 {
		t.Fatalf("input errors must not be retried, got %d attempts", calls)
	}
}

func TestCallerBoundsDecodeRetries(t *testing.T) {
	t.Parallel()

	caller := newTestCaller(RetryPolicy{MaxAttempts: 6, DecodeMaxAttempts: 3, BaseDelay: time.Millisecond, Factor: 2, MaxDelay: time.Second}, NewBreaker(10, time.Minute))

	calls := 0
	err := caller.Call(context.Background(), func(context.Context) error {
		calls++
		return faults.WithClass(faults.ClassDecode, errors.New("unexpected response shape"))
	})
	if faults.ClassOf(err) != faults.ClassDecode {
		t.Fatalf("expected decode error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("decode failures get the smaller budget, got %d attempts", calls)
	}
}

func TestCallerFailsFastWhenBreakerOpen(t *testing.T) {
	t.Parallel()

	breaker := NewBreaker(1, time.Hour)
	breaker.RecordFailure()

	caller := newTestCaller(RetryPolicy{MaxAttempts: 4, BaseDelay: time.Millisecond, Factor: 2, MaxDelay: time.Second}, breaker)

	calls := 0
	err := caller.Call(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	if faults.ClassOf(err) != faults.ClassCircuitOpen {
		t.Fatalf("expected circuit-open class, got %v", err)
	}
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen in the chain, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("open breaker must not invoke the operation, got %d calls", calls)
	}
}

func TestCallerOpensBreakerOnConsecutiveFailures(t *testing.T) {
	t.Parallel()

	breaker := NewBreaker(5, time.Hour)
	caller := newTestCaller(RetryPolicy{MaxAttempts: 10, BaseDelay: time.Millisecond, Factor: 2, MaxDelay: time.Second}, breaker)

	calls := 0
	err := caller.Call(context.Background(), func(context.Context) error {
		calls++
		return faults.WithClass(faults.ClassTransient, errors.New("upstream 503"))
	})
	if faults.ClassOf(err) != faults.ClassCircuitOpen {
		t.Fatalf("expected the breaker to trip mid-retry, got %v", err)
	}
	if calls != 5 {
		t.Fatalf("expected exactly 5 attempts before the breaker opened, got %d", calls)
	}
}
