package geolocation

import (
	"sync"
	"time"

	"complaint-service/metrics"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker is a three-state circuit breaker. It opens after a run of
// consecutive failures, short-circuits callers for a cool-down window, then
// lets a single trial call through (half-open) to decide whether to close
// again or re-open.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time
}

// NewBreaker creates a breaker that opens after threshold consecutive
// failures and stays open for the cooldown duration.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed. While open it returns false until
// the cool-down has elapsed, at which point it moves to half-open and admits
// exactly one trial call.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if b.now().Sub(b.openedAt) >= b.cooldown {
			b.setState(stateHalfOpen)
			return true
		}
		return false
	default:
		// A trial call is already in flight.
		return false
	}
}

// RecordSuccess closes the breaker and resets the failure run.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.setState(stateClosed)
}

// RecordFailure counts a failed call. The trial call failing re-opens the
// breaker immediately; otherwise the breaker opens once the run of
// consecutive failures reaches the threshold.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.openedAt = b.now()
		b.setState(stateOpen)
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.failures = 0
		b.openedAt = b.now()
		b.setState(stateOpen)
	}
}

// State returns the current state name, for logging and health reporting.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}

func (b *Breaker) setState(state breakerState) {
	b.state = state
	metrics.GeoBreakerState.Set(float64(state))
}
