// Package media normalizes story media durations and provides media clock
// implementations for the playback engine.
package media

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stwalsh4118/glimpse/internal/models"
)

// Category is the coarse media family of a story
type Category string

// Media categories
const (
	CategoryImage   Category = "image"
	CategoryVideo   Category = "video"
	CategoryAudio   Category = "audio"
	CategoryText    Category = "text"
	CategoryUnknown Category = "unknown"
)

// Source records where a resolved duration came from
type Source string

// Duration sources
const (
	SourceFixed   Source = "fixed"   // constant for images and text
	SourceLabel   Source = "label"   // parsed from the story's duration label
	SourceElement Source = "element" // reported by the live media element
	SourceNone    Source = "none"    // not known yet
)

// ErrInvalidDurationLabel is returned for labels that are not MM:SS or HH:MM:SS
var ErrInvalidDurationLabel = errors.New("invalid duration label")

// Defaults holds the fixed durations used for non-timed content
type Defaults struct {
	Image time.Duration
	Text  time.Duration
}

// DurationReporter is the part of a media element the normalizer consults.
// Duration returns 0 while metadata has not loaded.
type DurationReporter interface {
	Duration() time.Duration
}

// Resolution is the outcome of normalizing a story's duration.
// Known=false means the engine must wait for media metadata.
type Resolution struct {
	Duration time.Duration
	Known    bool
	Source   Source
}

// Classify maps a story to its media category using the mime type prefix
func Classify(item models.StoryItem) Category {
	if item.Kind == models.KindText {
		return CategoryText
	}
	if item.Media == nil {
		return CategoryUnknown
	}

	mime := strings.ToLower(strings.TrimSpace(item.Media.MimeType))
	switch {
	case strings.HasPrefix(mime, "image/"):
		return CategoryImage
	case strings.HasPrefix(mime, "video/"):
		return CategoryVideo
	case strings.HasPrefix(mime, "audio/"):
		return CategoryAudio
	default:
		return CategoryUnknown
	}
}

// IsTimed reports whether the category plays on its own media clock
func (c Category) IsTimed() bool {
	return c == CategoryVideo || c == CategoryAudio
}

// Normalize resolves the total playback duration of a story.
//
// Images, text and unknown mime types use fixed durations. Video and audio use
// the duration label; without a label they fall back to the live element once
// its metadata is available and report Known=false until then. A label that
// cannot be parsed degrades to zero unless the element already knows better.
func Normalize(item models.StoryItem, defaults Defaults, live DurationReporter) Resolution {
	category := Classify(item)
	switch category {
	case CategoryText:
		return Resolution{Duration: defaults.Text, Known: true, Source: SourceFixed}
	case CategoryImage, CategoryUnknown:
		return Resolution{Duration: defaults.Image, Known: true, Source: SourceFixed}
	}

	label := strings.TrimSpace(item.Media.DurationLabel)
	if label != "" {
		if d, err := ParseDurationLabel(label); err == nil {
			return Resolution{Duration: d, Known: true, Source: SourceLabel}
		}
	}

	if d := elementDuration(live); d > 0 {
		return Resolution{Duration: d, Known: true, Source: SourceElement}
	}

	if label != "" {
		// Malformed label and no metadata: zero makes the sequencer skip the item
		return Resolution{Duration: 0, Known: true, Source: SourceLabel}
	}

	return Resolution{Duration: 0, Known: false, Source: SourceNone}
}

func elementDuration(live DurationReporter) time.Duration {
	if live == nil {
		return 0
	}
	return live.Duration()
}

// ParseDurationLabel parses "MM:SS" or "HH:MM:SS" into a duration.
// The leading field is unbounded; later fields must be below 60.
func ParseDurationLabel(label string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(label), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDurationLabel, label)
	}

	values := make([]int64, len(parts))
	for i, part := range parts {
		if part == "" {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDurationLabel, label)
		}
		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDurationLabel, label)
		}
		if i > 0 && v >= 60 {
			return 0, fmt.Errorf("%w: %q field out of range", ErrInvalidDurationLabel, label)
		}
		values[i] = v
	}

	var seconds int64
	for _, v := range values {
		seconds = seconds*60 + v
	}
	return time.Duration(seconds) * time.Second, nil
}

// FormatDurationLabel renders d as MM:SS, or HH:MM:SS from one hour up.
// Sub-second remainders are truncated.
func FormatDurationLabel(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
