package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// StoryKind distinguishes media stories from text stories
type StoryKind string

// Story kinds
const (
	KindMedia StoryKind = "media"
	KindText  StoryKind = "text"
)

// SendStatus tracks delivery of a story from its sender
type SendStatus string

// Send statuses
const (
	SendStatusSending SendStatus = "sending"
	SendStatusSent    SendStatus = "sent"
)

// Validation errors
var (
	ErrInvalidKind       = errors.New("invalid story kind")
	ErrMissingMedia      = errors.New("media story requires a media descriptor")
	ErrUnexpectedMedia   = errors.New("text story must not carry a media descriptor")
	ErrMissingMimeType   = errors.New("media descriptor requires a mime type")
	ErrMissingSender     = errors.New("story requires a sender")
	ErrDuplicateReceiver = errors.New("duplicate receiver")
)

// MediaDescriptor describes the media attached to a media story
type MediaDescriptor struct {
	MimeType      string `json:"mime_type"`
	DurationLabel string `json:"duration_label,omitempty"` // MM:SS or HH:MM:SS
	DisplayWidth  int    `json:"display_width"`
}

// Receiver is one viewer a story was sent to
type Receiver struct {
	ReceiverID            string     `json:"receiver_id"`
	SeenAt                *time.Time `json:"seen_at,omitempty"`
	SeenVisibilityAllowed bool       `json:"seen_visibility_allowed"`
}

// StoryItem is a single time-limited post.
// Values are treated as immutable once published to a store; use Clone
// before modifying one.
type StoryItem struct {
	ID         uuid.UUID        `json:"id"`
	SenderID   string           `json:"sender_id"`
	Kind       StoryKind        `json:"kind"`
	Media      *MediaDescriptor `json:"media,omitempty"`
	Text       string           `json:"text,omitempty"`
	Receivers  []Receiver       `json:"receivers"`
	SentAt     time.Time        `json:"sent_at"`
	Failed     bool             `json:"failed"`
	SendStatus SendStatus       `json:"send_status"`
}

// NewMediaStory creates a media story addressed to the given receivers
func NewMediaStory(senderID string, media MediaDescriptor, receiverIDs ...string) *StoryItem {
	return &StoryItem{
		ID:         uuid.New(),
		SenderID:   senderID,
		Kind:       KindMedia,
		Media:      &media,
		Receivers:  newReceivers(receiverIDs),
		SentAt:     time.Now().UTC(),
		SendStatus: SendStatusSent,
	}
}

// NewTextStory creates a text story addressed to the given receivers
func NewTextStory(senderID, text string, receiverIDs ...string) *StoryItem {
	return &StoryItem{
		ID:         uuid.New(),
		SenderID:   senderID,
		Kind:       KindText,
		Text:       text,
		Receivers:  newReceivers(receiverIDs),
		SentAt:     time.Now().UTC(),
		SendStatus: SendStatusSent,
	}
}

func newReceivers(ids []string) []Receiver {
	return lo.Map(ids, func(id string, _ int) Receiver {
		return Receiver{ReceiverID: id, SeenVisibilityAllowed: true}
	})
}

// Clone returns a deep copy that shares no mutable state with s
func (s StoryItem) Clone() StoryItem {
	out := s
	if s.Media != nil {
		media := *s.Media
		out.Media = &media
	}
	if s.Receivers != nil {
		out.Receivers = make([]Receiver, len(s.Receivers))
		for i, r := range s.Receivers {
			out.Receivers[i] = r
			if r.SeenAt != nil {
				seen := *r.SeenAt
				out.Receivers[i].SeenAt = &seen
			}
		}
	}
	return out
}

// Receiver looks up the receiver entry for viewerID
func (s StoryItem) Receiver(viewerID string) (Receiver, bool) {
	r, _, ok := lo.FindIndexOf(s.Receivers, func(r Receiver) bool {
		return r.ReceiverID == viewerID
	})
	return r, ok
}

// VisibleTo reports whether viewerID may view the story.
// Senders always see their own stories.
func (s StoryItem) VisibleTo(viewerID string) bool {
	if s.SenderID == viewerID {
		return true
	}
	_, ok := s.Receiver(viewerID)
	return ok
}

// SeenBy reports whether viewerID already has a seen receipt on the story
func (s StoryItem) SeenBy(viewerID string) bool {
	r, ok := s.Receiver(viewerID)
	return ok && r.SeenAt != nil
}

// MarkSeen records the first time viewerID saw the story.
// It never overwrites an existing receipt and never records the sender.
// Returns true if a receipt was written.
func (s *StoryItem) MarkSeen(viewerID string, at time.Time) bool {
	if viewerID == s.SenderID {
		return false
	}
	_, idx, ok := lo.FindIndexOf(s.Receivers, func(r Receiver) bool {
		return r.ReceiverID == viewerID
	})
	if !ok || s.Receivers[idx].SeenAt != nil {
		return false
	}
	seen := at.UTC()
	s.Receivers[idx].SeenAt = &seen
	return true
}

// IsMedia reports whether the story carries media
func (s StoryItem) IsMedia() bool {
	return s.Kind == KindMedia
}

// Validate checks the kind/payload consistency of a story
func (s StoryItem) Validate() error {
	if strings.TrimSpace(s.SenderID) == "" {
		return ErrMissingSender
	}

	switch s.Kind {
	case KindMedia:
		if s.Media == nil {
			return ErrMissingMedia
		}
		if strings.TrimSpace(s.Media.MimeType) == "" {
			return ErrMissingMimeType
		}
	case KindText:
		if s.Media != nil {
			return ErrUnexpectedMedia
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, s.Kind)
	}

	seen := make(map[string]bool, len(s.Receivers))
	for _, r := range s.Receivers {
		if seen[r.ReceiverID] {
			return fmt.Errorf("%w: %s", ErrDuplicateReceiver, r.ReceiverID)
		}
		seen[r.ReceiverID] = true
	}

	return nil
}
