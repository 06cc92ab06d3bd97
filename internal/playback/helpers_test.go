package playback

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/glimpse/internal/config"
	"github.com/stwalsh4118/glimpse/internal/media"
	"github.com/stwalsh4118/glimpse/internal/models"
	"github.com/stwalsh4118/glimpse/internal/store"
)

// manualTimer is one repeating timer started on a manualScheduler
type manualTimer struct {
	fn      func()
	stopped bool
}

// manualScheduler fires timers only when the test calls Tick
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (m *manualScheduler) Every(_ time.Duration, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	timer := &manualTimer{fn: fn}
	m.timers = append(m.timers, timer)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		timer.stopped = true
	}
}

// Tick fires every timer that was running when the tick began
func (m *manualScheduler) Tick() {
	for _, timer := range m.running() {
		m.mu.Lock()
		stopped := timer.stopped
		m.mu.Unlock()
		if !stopped {
			timer.fn()
		}
	}
}

func (m *manualScheduler) TickN(n int) {
	for i := 0; i < n; i++ {
		m.Tick()
	}
}

// Active returns the number of timers not yet stopped
func (m *manualScheduler) Active() int {
	return len(m.running())
}

func (m *manualScheduler) running() []*manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*manualTimer
	for _, timer := range m.timers {
		if !timer.stopped {
			out = append(out, timer)
		}
	}
	return out
}

// recordingSink collects watched events and optionally fails
type recordingSink struct {
	mu     sync.Mutex
	events []WatchedEvent
	err    error
}

func (r *recordingSink) Notify(_ context.Context, event WatchedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingSink) Events() []WatchedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]WatchedEvent(nil), r.events...)
}

// elementProvider hands out remote elements registered per story
type elementProvider struct {
	elements map[uuid.UUID]*media.RemoteElement
}

func (p *elementProvider) Element(item models.StoryItem) (MediaElement, error) {
	el, ok := p.elements[item.ID]
	if !ok {
		return nil, errors.New("no element")
	}
	return el, nil
}

type harness struct {
	t        *testing.T
	store    *store.Collection
	sched    *manualScheduler
	sink     *recordingSink
	clock    *clockwork.FakeClock
	provider *elementProvider
	session  *Session

	mu    sync.Mutex
	exits []ExitReason
}

func newHarness(t *testing.T, viewer string, items ...models.StoryItem) *harness {
	return newHarnessWithConfig(t, viewer, config.PlaybackConfig{}, items...)
}

func newHarnessWithConfig(t *testing.T, viewer string, cfg config.PlaybackConfig, items ...models.StoryItem) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		store:    store.NewCollection(items...),
		sched:    &manualScheduler{},
		sink:     &recordingSink{},
		clock:    clockwork.NewFakeClockAt(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)),
		provider: &elementProvider{elements: make(map[uuid.UUID]*media.RemoteElement)},
	}

	session, err := NewSession(Options{
		ViewerID:  viewer,
		Playback:  cfg,
		Source:    h.store,
		Sink:      h.sink,
		Media:     h.provider,
		Scheduler: h.sched,
		Clock:     h.clock,
		OnExit: func(reason ExitReason) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.exits = append(h.exits, reason)
		},
	})
	require.NoError(t, err)
	h.session = session
	return h
}

func (h *harness) element(item models.StoryItem, duration time.Duration) *media.RemoteElement {
	el := media.NewRemoteElement(duration)
	h.provider.elements[item.ID] = el
	return el
}

func (h *harness) Exits() []ExitReason {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ExitReason(nil), h.exits...)
}

func (h *harness) progress(index int) float64 {
	return h.session.View().Items[index].Progress
}

func (h *harness) activeIndex() int {
	return h.session.View().ActiveIndex
}

func imageStory(sender string, receivers ...string) models.StoryItem {
	return *models.NewMediaStory(sender, models.MediaDescriptor{MimeType: "image/jpeg", DisplayWidth: 1080}, receivers...)
}

func videoStory(sender, label string, receivers ...string) models.StoryItem {
	return *models.NewMediaStory(sender, models.MediaDescriptor{MimeType: "video/mp4", DurationLabel: label}, receivers...)
}

func textStory(sender string, receivers ...string) models.StoryItem {
	return *models.NewTextStory(sender, "hi", receivers...)
}

func nan() float64 {
	return math.NaN()
}
