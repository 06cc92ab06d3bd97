// Package playback implements the story playback engine: per-item progress
// clocks, the watched-threshold tracker, the sequencer state machine, pause
// handling and seeking.
package playback

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/glimpse/internal/models"
)

// State is the sequencer state of a viewing session
type State string

// Session states
const (
	StateIdle    State = "idle"    // no context loaded
	StatePlaying State = "playing" // an item is active and its clock runs
	StatePaused  State = "paused"  // the active item is frozen
	StateExiting State = "exiting" // terminal for this viewing session
)

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// ItemLifecycle is the presentation state of one item in a viewing context
type ItemLifecycle string

// Item lifecycles
const (
	LifecycleUpcoming  ItemLifecycle = "upcoming"
	LifecycleActive    ItemLifecycle = "active"
	LifecycleCompleted ItemLifecycle = "completed"
)

// ExitReason explains why a session reached StateExiting
type ExitReason string

// Exit reasons
const (
	ExitCompleted     ExitReason = "completed"      // advanced past the last item
	ExitEmptyContext  ExitReason = "empty_context"  // the sender has no visible items
	ExitActiveRemoved ExitReason = "active_removed" // the active item left the collection
	ExitDismissed     ExitReason = "dismissed"      // closed by the owner
)

// WatchedEvent is emitted once per item and viewer when the watch threshold is reached
type WatchedEvent struct {
	ItemID            uuid.UUID `json:"item_id"`
	SenderID          string    `json:"sender_id"`
	ViewerID          string    `json:"viewer_id"`
	SeenAt            time.Time `json:"seen_at"`
	VisibilityAllowed bool      `json:"visibility_allowed"`
}

// Source is the externally owned story collection.
// Snapshots are immutable; Update replaces the whole collection and returns
// the new version. Subscribers are called after every replacement.
type Source interface {
	Snapshot() []models.StoryItem
	Update(fn func(items []models.StoryItem) []models.StoryItem) uint64
	Subscribe(fn func()) (unsubscribe func())
}

// Sink receives watched notifications for delivery
type Sink interface {
	Notify(ctx context.Context, event WatchedEvent) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(ctx context.Context, event WatchedEvent) error

// Notify calls f
func (f SinkFunc) Notify(ctx context.Context, event WatchedEvent) error {
	return f(ctx, event)
}

// MediaElement is the playback clock of a video or audio item.
// OnTimeUpdate listeners must be invoked without holding element locks.
type MediaElement interface {
	CurrentTime() time.Duration
	Duration() time.Duration // 0 until metadata is loaded
	Play() error
	Pause() error
	Seek(position time.Duration) error
	OnTimeUpdate(fn func()) (unsubscribe func())
}

// MediaProvider hands out the media element for a timed item
type MediaProvider interface {
	Element(item models.StoryItem) (MediaElement, error)
}

// ItemView is the read-only presentation state of one item
type ItemView struct {
	ID           uuid.UUID     `json:"id"`
	Index        int           `json:"index"`
	Progress     float64       `json:"progress"`
	Lifecycle    ItemLifecycle `json:"lifecycle"`
	IsActive     bool          `json:"is_active"`
	IsFullyShown bool          `json:"is_fully_shown"`
	Watched      bool          `json:"watched"`
}

// SessionView is a consistent snapshot of a session for rendering
type SessionView struct {
	ViewerID      string        `json:"viewer_id"`
	SenderID      string        `json:"sender_id"`
	State         State         `json:"state"`
	ActiveIndex   int           `json:"active_index"`
	Duration      time.Duration `json:"duration"`
	DurationKnown bool          `json:"duration_known"`
	PauseReasons  []PauseReason `json:"pause_reasons"`
	ExitReason    ExitReason    `json:"exit_reason,omitempty"`
	Items         []ItemView    `json:"items"`
}

// itemState is the engine-owned presentation state of one item
type itemState struct {
	progress  float64
	lifecycle ItemLifecycle
	watched   bool
}
