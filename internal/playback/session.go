package playback

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stwalsh4118/glimpse/internal/config"
	"github.com/stwalsh4118/glimpse/internal/logger"
	"github.com/stwalsh4118/glimpse/internal/media"
	"github.com/stwalsh4118/glimpse/internal/models"
)

const notifyTimeout = 5 * time.Second

type phase int

const (
	phaseIdle phase = iota
	phaseActive
	phaseExiting
)

// Options configures a Session
type Options struct {
	ViewerID  string
	Playback  config.PlaybackConfig // zero value means config.DefaultPlayback()
	Source    Source
	Sink      Sink
	Media     MediaProvider   // optional; timed items without an element are skipped
	Scheduler Scheduler       // optional; defaults to a ClockScheduler on Clock
	Clock     clockwork.Clock // optional; defaults to the real clock
	OnExit    func(ExitReason)
}

// Session sequences one viewer through one sender's stories.
//
// Every entry point (API calls, timer ticks, media events and collection
// changes) runs under a single mutex, so the session behaves as a single
// logical thread. Work that leaves the engine (store updates, sink
// notifications, the exit callback) is queued while the lock is held and run
// after it is released.
type Session struct {
	mu sync.Mutex

	viewerID  string
	senderID  string
	cfg       config.PlaybackConfig
	source    Source
	sink      Sink
	media     MediaProvider
	scheduler Scheduler
	clock     clockwork.Clock
	onExit    func(ExitReason)
	log       zerolog.Logger

	phase      phase
	exitReason ExitReason
	items      []models.StoryItem
	states     []itemState
	active     int

	strategy clockStrategy
	running  bool
	gen      uint64
	element  MediaElement
	duration media.Resolution
	played   time.Duration // wall-clock time credited to the active item
	waited   time.Duration // time spent waiting for media metadata

	tracker     *WatchTracker
	pause       *PauseController
	unsubscribe func()
	effects     []func()
}

// NewSession creates an idle session for a viewer
func NewSession(opts Options) (*Session, error) {
	if opts.ViewerID == "" {
		return nil, ErrMissingViewer
	}
	if opts.Source == nil {
		return nil, ErrMissingSource
	}
	if opts.Sink == nil {
		return nil, ErrMissingSink
	}

	cfg := opts.Playback
	if cfg == (config.PlaybackConfig{}) {
		cfg = config.DefaultPlayback()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid playback config: %w", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	scheduler := opts.Scheduler
	if scheduler == nil {
		scheduler = NewClockScheduler(clock)
	}

	return &Session{
		viewerID:  opts.ViewerID,
		cfg:       cfg,
		source:    opts.Source,
		sink:      opts.Sink,
		media:     opts.Media,
		scheduler: scheduler,
		clock:     clock,
		onExit:    opts.OnExit,
		log:       logger.Session(opts.ViewerID, ""),
		phase:     phaseIdle,
		active:    -1,
		tracker:   NewWatchTracker(cfg.MinWatchFloor),
		pause:     NewPauseController(),
	}, nil
}

// ViewerID returns the viewer this session plays for
func (s *Session) ViewerID() string {
	return s.viewerID
}

// do runs fn under the session lock, then runs the effects it queued
func (s *Session) do(fn func()) {
	s.mu.Lock()
	fn()
	effects := s.effects
	s.effects = nil
	s.mu.Unlock()

	for _, effect := range effects {
		effect()
	}
}

// guard runs a clock callback only if it belongs to the running clock
func (s *Session) guard(gen uint64, fn func()) {
	s.do(func() {
		if gen != s.gen || !s.running || s.phase != phaseActive {
			return
		}
		fn()
	})
}

// LoadContext starts a fresh viewing session on senderID's stories, with the
// items before startIndex already shown. An empty context exits immediately.
func (s *Session) LoadContext(senderID string, startIndex int) error {
	var err error
	s.do(func() {
		items := BuildContext(s.source.Snapshot(), senderID, s.viewerID)
		if len(items) > 0 && (startIndex < 0 || startIndex >= len(items)) {
			err = fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, startIndex, len(items))
			return
		}

		s.stopClock()
		s.senderID = senderID
		s.log = logger.Session(s.viewerID, senderID)
		s.exitReason = ""
		s.items = items
		s.states = make([]itemState, len(items))
		for i, item := range items {
			s.states[i] = itemState{
				lifecycle: LifecycleUpcoming,
				watched:   item.SeenBy(s.viewerID),
			}
		}
		s.active = -1
		s.pause.Release(ReasonManual)
		s.phase = phaseActive
		if s.unsubscribe == nil {
			s.unsubscribe = s.source.Subscribe(s.onSourceChanged)
		}

		if len(items) == 0 {
			s.exit(ExitEmptyContext)
			return
		}

		s.log.Info().
			Int("items", len(items)).
			Int("start_index", startIndex).
			Msg("Viewing context loaded")

		s.activate(startIndex)
	})
	return err
}

// Select activates the item at index; earlier items count as shown
func (s *Session) Select(index int) error {
	var err error
	s.do(func() {
		if err = s.navigable(); err != nil {
			return
		}
		if index < 0 || index >= len(s.items) {
			err = fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, index, len(s.items))
			return
		}
		s.activate(index)
	})
	return err
}

// Advance moves to the next item, or exits after the last one
func (s *Session) Advance() error {
	var err error
	s.do(func() {
		if err = s.navigable(); err != nil {
			return
		}
		s.advance()
	})
	return err
}

// Previous restarts the previous item; on the first item it restarts that item
func (s *Session) Previous() error {
	var err error
	s.do(func() {
		if err = s.navigable(); err != nil {
			return
		}
		target := s.active - 1
		if target < 0 {
			target = 0
		}
		s.activate(target)
	})
	return err
}

// Close dismisses the session
func (s *Session) Close() {
	s.do(func() {
		s.exit(ExitDismissed)
	})
}

// State returns the current sequencer state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// ActiveItem returns the story currently playing
func (s *Session) ActiveItem() (models.StoryItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == phaseIdle || s.active < 0 || s.active >= len(s.items) {
		return models.StoryItem{}, false
	}
	return s.items[s.active], true
}

// View returns a consistent snapshot of the presentation state
func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := SessionView{
		ViewerID:      s.viewerID,
		SenderID:      s.senderID,
		State:         s.stateLocked(),
		ActiveIndex:   s.active,
		Duration:      s.duration.Duration,
		DurationKnown: s.duration.Known,
		PauseReasons:  s.pause.Reasons(),
		ExitReason:    s.exitReason,
		Items:         make([]ItemView, len(s.items)),
	}
	for i, item := range s.items {
		st := s.states[i]
		view.Items[i] = ItemView{
			ID:           item.ID,
			Index:        i,
			Progress:     st.progress,
			Lifecycle:    st.lifecycle,
			IsActive:     st.lifecycle == LifecycleActive,
			IsFullyShown: st.lifecycle == LifecycleCompleted,
			Watched:      st.watched,
		}
	}
	return view
}

func (s *Session) stateLocked() State {
	switch s.phase {
	case phaseIdle:
		return StateIdle
	case phaseExiting:
		return StateExiting
	}
	if s.pause.Paused() {
		return StatePaused
	}
	return StatePlaying
}

func (s *Session) navigable() error {
	switch s.phase {
	case phaseIdle:
		return ErrNoContext
	case phaseExiting:
		return ErrSessionExited
	}
	return nil
}

// activate makes idx the active item, tearing down the previous clock first
func (s *Session) activate(idx int) {
	s.stopClock()

	for i := range s.states {
		switch {
		case i < idx:
			s.states[i].lifecycle = LifecycleCompleted
			s.states[i].progress = 100
		case i == idx:
			s.states[i].lifecycle = LifecycleActive
			s.states[i].progress = 0
		default:
			s.states[i].lifecycle = LifecycleUpcoming
			s.states[i].progress = 0
		}
	}
	s.active = idx
	s.played = 0
	s.waited = 0

	item := s.items[idx]
	s.element = s.elementFor(item)

	var live media.DurationReporter
	if s.element != nil {
		live = s.element
	}
	s.duration = media.Normalize(item, s.defaults(), live)
	if !s.duration.Known && s.element == nil {
		// Nothing will ever report this duration
		s.duration = media.Resolution{Known: true, Source: media.SourceNone}
	}
	s.tracker.Reset(s.duration.Duration)

	s.log.Debug().
		Str("item_id", item.ID.String()).
		Int("index", idx).
		Dur("duration", s.duration.Duration).
		Bool("duration_known", s.duration.Known).
		Str("duration_source", string(s.duration.Source)).
		Msg("Story activated")

	if s.duration.Known && s.duration.Duration <= 0 {
		s.log.Warn().
			Str("item_id", item.ID.String()).
			Msg("Story has no playable duration, skipping")
		s.setProgress(100)
		s.advance()
		return
	}

	if s.element != nil {
		s.strategy = &mediaClock{s: s, element: s.element}
	} else {
		s.strategy = &wallClock{s: s}
	}
	s.startClock()
}

func (s *Session) elementFor(item models.StoryItem) MediaElement {
	if s.media == nil || !media.Classify(item).IsTimed() {
		return nil
	}
	el, err := s.media.Element(item)
	if err != nil {
		s.log.Warn().
			Err(err).
			Str("item_id", item.ID.String()).
			Msg("No media element for story")
		return nil
	}
	return el
}

func (s *Session) defaults() media.Defaults {
	return media.Defaults{Image: s.cfg.ImageDuration, Text: s.cfg.TextDuration}
}

func (s *Session) advance() {
	if s.active+1 < len(s.items) {
		s.activate(s.active + 1)
		return
	}
	s.stopClock()
	s.states[s.active].lifecycle = LifecycleCompleted
	s.states[s.active].progress = 100
	s.exit(ExitCompleted)
}

func (s *Session) exit(reason ExitReason) {
	if s.phase == phaseExiting {
		return
	}
	s.stopClock()
	s.phase = phaseExiting
	s.exitReason = reason
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}

	s.log.Info().
		Str("reason", string(reason)).
		Msg("Viewing session exiting")

	if s.onExit != nil {
		onExit := s.onExit
		s.effects = append(s.effects, func() { onExit(reason) })
	}
}

func (s *Session) startClock() {
	if s.strategy == nil || s.running || s.phase != phaseActive || s.pause.Paused() {
		return
	}
	s.gen++
	s.running = true
	s.strategy.start(s.gen)
}

func (s *Session) stopClock() {
	if s.running {
		s.strategy.stop()
		s.running = false
	}
	s.gen++
}

func (s *Session) onWallTick() {
	interval := s.cfg.TickInterval
	s.played += interval
	s.setProgress(percent(s.played, s.duration.Duration))
	s.track(interval)
	s.checkComplete()
}

func (s *Session) onMediaTimeUpdate() {
	s.upgradeDuration()
	if !s.duration.Known {
		return
	}
	s.setProgress(percent(s.element.CurrentTime(), s.mediaTotal()))
	s.checkComplete()
}

func (s *Session) onMediaTrackTick() {
	interval := s.cfg.TickInterval
	s.upgradeDuration()
	if s.duration.Known {
		s.track(interval)
		return
	}

	s.waited += interval
	if s.waited >= s.cfg.MetadataTimeout {
		s.log.Warn().
			Dur("waited", s.waited).
			Msg("Media metadata never arrived, skipping story")
		s.duration = media.Resolution{Known: true, Source: media.SourceNone}
		s.setProgress(100)
		s.advance()
	}
}

// upgradeDuration adopts the element's duration once its metadata has loaded
func (s *Session) upgradeDuration() {
	if s.duration.Known || s.element == nil {
		return
	}
	d := s.element.Duration()
	if d <= 0 {
		return
	}
	s.duration = media.Resolution{Duration: d, Known: true, Source: media.SourceElement}
	s.tracker.SetTotal(d)
	s.log.Debug().
		Dur("duration", d).
		Msg("Media duration resolved from element")
}

// mediaTotal prefers the element's own duration for progress ratios
func (s *Session) mediaTotal() time.Duration {
	if s.element != nil {
		if d := s.element.Duration(); d > 0 {
			return d
		}
	}
	return s.duration.Duration
}

func (s *Session) track(d time.Duration) {
	if s.tracker.Add(d) {
		s.markWatched()
	}
}

func (s *Session) checkComplete() {
	if s.states[s.active].progress >= 100 {
		s.advance()
	}
}

// setProgress raises the active item's progress; it never lowers it
func (s *Session) setProgress(value float64) {
	value = clampPercent(value)
	if value > s.states[s.active].progress {
		s.states[s.active].progress = value
	}
}

// forceProgress sets the active item's progress, lowering it if needed
func (s *Session) forceProgress(value float64) {
	s.states[s.active].progress = clampPercent(value)
}

// markWatched flips the active item to watched and queues the receipt
func (s *Session) markWatched() {
	item := s.items[s.active]
	st := &s.states[s.active]
	if item.SenderID == s.viewerID || st.watched {
		return
	}
	st.watched = true

	receiver, _ := item.Receiver(s.viewerID)
	event := WatchedEvent{
		ItemID:            item.ID,
		SenderID:          item.SenderID,
		ViewerID:          s.viewerID,
		SeenAt:            s.clock.Now().UTC(),
		VisibilityAllowed: receiver.SeenVisibilityAllowed,
	}

	s.log.Info().
		Str("item_id", item.ID.String()).
		Dur("elapsed", s.tracker.Elapsed()).
		Msg("Story watched")

	source, sink, log := s.source, s.sink, s.log
	s.effects = append(s.effects, func() {
		source.Update(func(items []models.StoryItem) []models.StoryItem {
			for i := range items {
				if items[i].ID == event.ItemID {
					items[i].MarkSeen(event.ViewerID, event.SeenAt)
				}
			}
			return items
		})

		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := sink.Notify(ctx, event); err != nil {
			log.Warn().
				Err(err).
				Str("item_id", event.ItemID.String()).
				Msg("Failed to deliver watched notification")
		}
	})
}

func (s *Session) onSourceChanged() {
	s.do(s.reconcile)
}

// reconcile re-projects the context after an external collection change and
// exits if the context emptied or the active item disappeared
func (s *Session) reconcile() {
	if s.phase != phaseActive || s.active < 0 {
		return
	}

	items := BuildContext(s.source.Snapshot(), s.senderID, s.viewerID)
	if len(items) == 0 {
		s.exit(ExitEmptyContext)
		return
	}

	activeID := s.items[s.active].ID
	newActive := indexOf(items, activeID)
	if newActive < 0 {
		s.exit(ExitActiveRemoved)
		return
	}

	previous := make(map[uuid.UUID]itemState, len(s.items))
	for i, item := range s.items {
		previous[item.ID] = s.states[i]
	}

	states := make([]itemState, len(items))
	for i, item := range items {
		st := previous[item.ID]
		switch {
		case i < newActive:
			st.lifecycle = LifecycleCompleted
			st.progress = 100
		case i > newActive:
			st.lifecycle = LifecycleUpcoming
			st.progress = 0
		}
		st.watched = st.watched || item.SeenBy(s.viewerID)
		states[i] = st
	}

	s.items = items
	s.states = states
	s.active = newActive
}

func indexOf(items []models.StoryItem, id uuid.UUID) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

func percent(part, total time.Duration) float64 {
	if total <= 0 {
		return 100
	}
	return float64(part) / float64(total) * 100
}

func clampPercent(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
