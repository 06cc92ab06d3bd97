package playback

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Scheduler starts repeating timers.
// The returned stop function is idempotent and must not block on fn.
type Scheduler interface {
	Every(interval time.Duration, fn func()) (stop func())
}

// ClockScheduler runs repeating timers on a clockwork clock
type ClockScheduler struct {
	clock clockwork.Clock
}

// NewClockScheduler creates a scheduler; a nil clock means the real clock
func NewClockScheduler(clock clockwork.Clock) *ClockScheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ClockScheduler{clock: clock}
}

// Every calls fn once per interval on a dedicated goroutine until stopped.
// A tick already in flight when stop is called may still be delivered.
func (c *ClockScheduler) Every(interval time.Duration, fn func()) func() {
	ticker := c.clock.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.Chan():
				select {
				case <-done:
					return
				default:
				}
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}
