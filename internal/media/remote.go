package media

import (
	"sync"
	"time"
)

// RemoteElement is a media element whose clock lives on a remote client.
// The client reports playback positions with Report; seek and play/pause
// requests are queued for the client to pick up with Pending.
type RemoteElement struct {
	mu          sync.Mutex
	current     time.Duration
	duration    time.Duration
	playing     bool
	pendingSeek *time.Duration
	listeners   map[int]func()
	nextID      int
}

// NewRemoteElement creates an element with an optionally known duration (0 = unknown)
func NewRemoteElement(duration time.Duration) *RemoteElement {
	return &RemoteElement{
		duration:  duration,
		listeners: make(map[int]func()),
	}
}

// CurrentTime returns the last reported playback position
func (e *RemoteElement) CurrentTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Duration returns the reported media duration, or 0 if metadata is not loaded
func (e *RemoteElement) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

// Play marks the element as playing
func (e *RemoteElement) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playing = true
	return nil
}

// Pause marks the element as paused
func (e *RemoteElement) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playing = false
	return nil
}

// Playing reports whether the engine wants the client to be playing
func (e *RemoteElement) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// Seek moves the local position and queues the target for the client
func (e *RemoteElement) Seek(position time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if position < 0 {
		position = 0
	}
	if e.duration > 0 && position > e.duration {
		position = e.duration
	}
	e.current = position
	e.pendingSeek = &position
	return nil
}

// Pending returns and clears a queued seek target
func (e *RemoteElement) Pending() (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pendingSeek == nil {
		return 0, false
	}
	target := *e.pendingSeek
	e.pendingSeek = nil
	return target, true
}

// OnTimeUpdate registers fn to run after every reported position change
func (e *RemoteElement) OnTimeUpdate(fn func()) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}
}

// Report records a client playback position and notifies listeners.
// A zero duration leaves the known duration untouched. While a seek is
// queued the client has not yet moved, so its position is ignored and
// CurrentTime stays at the seek target.
func (e *RemoteElement) Report(current, duration time.Duration) {
	e.mu.Lock()
	if current < 0 {
		current = 0
	}
	if e.pendingSeek == nil {
		e.current = current
	}
	if duration > 0 {
		e.duration = duration
	}
	listeners := make([]func(), 0, len(e.listeners))
	for _, fn := range e.listeners {
		listeners = append(listeners, fn)
	}
	e.mu.Unlock()

	// Listeners may call back into the element
	for _, fn := range listeners {
		fn()
	}
}
