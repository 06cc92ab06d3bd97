package viewer

import (
	"sync"

	"github.com/google/uuid"
	"github.com/stwalsh4118/glimpse/internal/media"
	"github.com/stwalsh4118/glimpse/internal/models"
	"github.com/stwalsh4118/glimpse/internal/playback"
)

// remoteMedia holds the client-driven element of the active timed item.
// Activating another item replaces it.
type remoteMedia struct {
	mu      sync.Mutex
	itemID  uuid.UUID
	element *media.RemoteElement
}

func newRemoteMedia() *remoteMedia {
	return &remoteMedia{}
}

// Element starts a fresh element so replays begin at position zero
func (r *remoteMedia) Element(item models.StoryItem) (playback.MediaElement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.itemID = item.ID
	r.element = media.NewRemoteElement(0)
	return r.element, nil
}

func (r *remoteMedia) lookup(itemID uuid.UUID) (*media.RemoteElement, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.element == nil || r.itemID != itemID {
		return nil, false
	}
	return r.element, true
}
