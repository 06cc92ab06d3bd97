package playback

import "time"

// WatchTracker accumulates unpaused viewing time of the active item and
// reports, exactly once, when it crosses the watched threshold.
type WatchTracker struct {
	floor     time.Duration
	elapsed   time.Duration
	threshold time.Duration
	fired     bool
}

// NewWatchTracker creates a tracker whose threshold never drops below floor
func NewWatchTracker(floor time.Duration) *WatchTracker {
	return &WatchTracker{floor: floor, threshold: floor}
}

// Reset starts tracking a new item of the given total duration
func (t *WatchTracker) Reset(total time.Duration) {
	t.elapsed = 0
	t.fired = false
	t.threshold = t.thresholdFor(total)
}

// SetTotal updates the threshold after a late duration upgrade without
// touching the accumulated time
func (t *WatchTracker) SetTotal(total time.Duration) {
	t.threshold = t.thresholdFor(total)
}

// Add accumulates d and returns true on the call that first reaches the threshold
func (t *WatchTracker) Add(d time.Duration) bool {
	if d <= 0 {
		return false
	}
	t.elapsed += d
	if t.fired || t.elapsed < t.threshold {
		return false
	}
	t.fired = true
	return true
}

// Elapsed returns the accumulated viewing time
func (t *WatchTracker) Elapsed() time.Duration {
	return t.elapsed
}

// Threshold returns the current minimum watch time
func (t *WatchTracker) Threshold() time.Duration {
	return t.threshold
}

// Fired reports whether the threshold has been reached for the current item
func (t *WatchTracker) Fired() bool {
	return t.fired
}

func (t *WatchTracker) thresholdFor(total time.Duration) time.Duration {
	half := total / 2
	if half > t.floor {
		return half
	}
	return t.floor
}
