package resilience

import (
	"errors"
	"sync"
	"time"

	"horse.fit/convene/internal/globaltime"
)

// ErrCircuitOpen is returned without touching the network while the breaker
// rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

// Breaker is a consecutive-failure circuit breaker shared by all jobs talking
// to one dependency. State is process-local; a restart starts closed so the
// dependency gets retried rather than staying permanently shunned.
type Breaker struct {
	mu sync.Mutex

	failureThreshold int
	resetTimeout     time.Duration

	state    BreakerState
	failures int
	openedAt time.Time
}

func NewBreaker(failureThreshold int, resetTimeout time.Duration) *Breaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &Breaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            BreakerClosed,
	}
}

// Allow reports whether a call may proceed. While open it fails fast; once
// the reset timeout elapses it admits exactly one trial call (half-open).
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return nil
	case BreakerOpen:
		if globaltime.Now().Sub(b.openedAt) < b.resetTimeout {
			return ErrCircuitOpen
		}
		b.state = BreakerHalfOpen
		return nil
	case BreakerHalfOpen:
		// The single trial was already admitted on the open -> half-open
		// transition; everyone else waits for its verdict.
		return ErrCircuitOpen
	default:
		return nil
	}
}

// RecordSuccess resets the breaker after a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = BreakerClosed
	b.failures = 0
}

// RecordFailure counts a dependency failure and opens the breaker once the
// consecutive-failure threshold is reached. A failed half-open trial reopens
// immediately and restarts the reset timer.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.state = BreakerOpen
		b.openedAt = globaltime.Now()
		return
	}

	b.failures++
	if b.failures >= b.failureThreshold {
		b.state = BreakerOpen
		b.openedAt = globaltime.Now()
	}
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
