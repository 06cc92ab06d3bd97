package notify

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// BreakerState is the state of a circuit breaker
type BreakerState int

const (
	// BreakerClosed lets calls through
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the reset timeout elapses
	BreakerOpen
	// BreakerHalfOpen lets a trial call through
	BreakerHalfOpen
)

// String returns the string representation of the state
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned while the breaker rejects calls
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker stops calling a failing dependency after failureThreshold
// consecutive failures and retries once resetTimeout has passed
type Breaker struct {
	mu               sync.Mutex
	clock            clockwork.Clock
	failureThreshold int
	resetTimeout     time.Duration
	state            BreakerState
	failures         int
	openedAt         time.Time
}

// NewBreaker creates a closed breaker; a nil clock means the real clock
func NewBreaker(failureThreshold int, resetTimeout time.Duration, clock clockwork.Clock) *Breaker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &Breaker{
		clock:            clock,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            BreakerClosed,
	}
}

// Call runs fn unless the breaker is open
func (b *Breaker) Call(fn func() error) error {
	b.mu.Lock()
	b.refreshLocked()
	if b.state == BreakerOpen {
		b.mu.Unlock()
		return ErrCircuitOpen
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		if b.state == BreakerHalfOpen || b.failures >= b.failureThreshold {
			b.state = BreakerOpen
			b.openedAt = b.clock.Now()
		}
		return err
	}
	b.failures = 0
	b.state = BreakerClosed
	return nil
}

// State returns the current state
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshLocked()
	return b.state
}

// Failures returns the consecutive failure count
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset closes the breaker and clears the failure count
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
	b.openedAt = time.Time{}
}

// refreshLocked moves an open breaker to half-open once the timeout passed
func (b *Breaker) refreshLocked() {
	if b.state == BreakerOpen && b.clock.Since(b.openedAt) >= b.resetTimeout {
		b.state = BreakerHalfOpen
		b.failures = 0
	}
}
