// Package notify delivers watched notifications produced by playback sessions.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/glimpse/internal/logger"
	"github.com/stwalsh4118/glimpse/internal/playback"
)

// SeenStore persists seen receipts
type SeenStore interface {
	MarkSeen(ctx context.Context, storyID uuid.UUID, viewerID string, at time.Time) (bool, error)
}

// Recorder persists every watched event as a seen receipt
type Recorder struct {
	store SeenStore
}

// NewRecorder creates a sink writing receipts to store
func NewRecorder(store SeenStore) *Recorder {
	return &Recorder{store: store}
}

// Notify writes the receipt; an existing receipt is left untouched
func (r *Recorder) Notify(ctx context.Context, event playback.WatchedEvent) error {
	written, err := r.store.MarkSeen(ctx, event.ItemID, event.ViewerID, event.SeenAt)
	if err != nil {
		return fmt.Errorf("failed to record seen receipt: %w", err)
	}
	if !written {
		logger.Log.Debug().
			Str("item_id", event.ItemID.String()).
			Str("viewer_id", event.ViewerID).
			Msg("Seen receipt already recorded")
	}
	return nil
}

// Guarded wraps a sink in a circuit breaker so a failing backend is not
// called for every watched event
type Guarded struct {
	next    playback.Sink
	breaker *Breaker
}

// NewGuarded creates a guarded sink
func NewGuarded(next playback.Sink, breaker *Breaker) *Guarded {
	return &Guarded{next: next, breaker: breaker}
}

// Notify forwards the event unless the breaker is open
func (g *Guarded) Notify(ctx context.Context, event playback.WatchedEvent) error {
	err := g.breaker.Call(func() error {
		return g.next.Notify(ctx, event)
	})
	if errors.Is(err, ErrCircuitOpen) {
		logger.Log.Warn().
			Str("item_id", event.ItemID.String()).
			Str("viewer_id", event.ViewerID).
			Msg("Dropping watched notification, circuit open")
	}
	return err
}

// Breaker returns the breaker guarding the sink
func (g *Guarded) Breaker() *Breaker {
	return g.breaker
}

// Fanout delivers every event to all sinks and joins their errors
type Fanout []playback.Sink

// Notify calls every sink even if an earlier one fails
func (f Fanout) Notify(ctx context.Context, event playback.WatchedEvent) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes every event to the application log
type Log struct{}

// Notify logs the event
func (Log) Notify(_ context.Context, event playback.WatchedEvent) error {
	logger.Log.Info().
		Str("item_id", event.ItemID.String()).
		Str("sender_id", event.SenderID).
		Str("viewer_id", event.ViewerID).
		Time("seen_at", event.SeenAt).
		Bool("visibility_allowed", event.VisibilityAllowed).
		Msg("Story watched")
	return nil
}
