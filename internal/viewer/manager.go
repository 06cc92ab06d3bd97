// Package viewer owns the playback sessions of connected viewers.
package viewer

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/samber/lo"
	"github.com/stwalsh4118/glimpse/internal/config"
	"github.com/stwalsh4118/glimpse/internal/logger"
	"github.com/stwalsh4118/glimpse/internal/playback"
)

// Options configures a Manager
type Options struct {
	Source    playback.Source
	Sink      playback.Sink
	Playback  config.PlaybackConfig
	Sessions  config.SessionsConfig
	Clock     clockwork.Clock    // optional; defaults to the real clock
	Scheduler playback.Scheduler // optional; shared by all sessions
}

// MediaState is what a client needs to drive its media element
type MediaState struct {
	ItemID  uuid.UUID      `json:"item_id"`
	Playing bool           `json:"playing"`
	SeekTo  *time.Duration `json:"seek_to,omitempty"`
}

type entry struct {
	session  *playback.Session
	media    *remoteMedia
	sender   string // cleared when the session exits
	lastSeen time.Time
}

// Manager keeps at most one playback session per viewer and closes
// sessions that have been idle for longer than the configured timeout
type Manager struct {
	mu       sync.Mutex
	opts     Options
	clock    clockwork.Clock
	sessions map[string]*entry
	cron     gocron.Scheduler
	stopOnce sync.Once
}

// NewManager creates a manager; call Start to run the idle reaper
func NewManager(opts Options) (*Manager, error) {
	if opts.Source == nil {
		return nil, playback.ErrMissingSource
	}
	if opts.Sink == nil {
		return nil, playback.ErrMissingSink
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	m := &Manager{
		opts:     opts,
		clock:    opts.Clock,
		sessions: make(map[string]*entry),
	}

	if opts.Sessions.ReapInterval > 0 && opts.Sessions.IdleTimeout > 0 {
		cron, err := gocron.NewScheduler(gocron.WithClock(opts.Clock))
		if err != nil {
			return nil, fmt.Errorf("failed to create reaper scheduler: %w", err)
		}
		_, err = cron.NewJob(
			gocron.DurationJob(opts.Sessions.ReapInterval),
			gocron.NewTask(func() {
				m.Reap()
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to schedule session reaper: %w", err)
		}
		m.cron = cron
	}

	return m, nil
}

// Start runs the idle-session reaper
func (m *Manager) Start() {
	if m.cron != nil {
		m.cron.Start()
		logger.Log.Info().
			Dur("idle_timeout", m.opts.Sessions.IdleTimeout).
			Dur("interval", m.opts.Sessions.ReapInterval).
			Msg("Session reaper started")
	}
}

// Stop stops the reaper and closes every session
func (m *Manager) Stop() error {
	var err error
	m.stopOnce.Do(func() {
		if m.cron == nil {
			return
		}
		if shutdownErr := m.cron.Shutdown(); shutdownErr != nil {
			err = fmt.Errorf("failed to stop session reaper: %w", shutdownErr)
		}
	})

	m.mu.Lock()
	entries := lo.Values(m.sessions)
	m.sessions = make(map[string]*entry)
	m.mu.Unlock()

	for _, e := range entries {
		e.session.Close()
	}
	return err
}

// Open loads senderID's stories into the viewer's session, creating the
// session on first use, and starts playback at startIndex
func (m *Manager) Open(viewerID, senderID string, startIndex int) (playback.SessionView, error) {
	e, err := m.getOrCreate(viewerID)
	if err != nil {
		return playback.SessionView{}, err
	}
	m.mu.Lock()
	previous := e.sender
	e.sender = senderID
	m.mu.Unlock()

	if err := e.session.LoadContext(senderID, startIndex); err != nil {
		m.mu.Lock()
		e.sender = previous
		m.mu.Unlock()
		return playback.SessionView{}, err
	}

	logger.Log.Info().
		Str("viewer_id", viewerID).
		Str("sender_id", senderID).
		Int("start_index", startIndex).
		Msg("Viewing session opened")

	return e.session.View(), nil
}

// Session returns the viewer's session and marks it as active
func (m *Manager) Session(viewerID string) (*playback.Session, error) {
	e, err := m.touch(viewerID)
	if err != nil {
		return nil, err
	}
	return e.session, nil
}

// Close dismisses and forgets the viewer's session
func (m *Manager) Close(viewerID string) error {
	m.mu.Lock()
	e, ok := m.sessions[viewerID]
	delete(m.sessions, viewerID)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, viewerID)
	}
	e.session.Close()

	logger.Log.Info().
		Str("viewer_id", viewerID).
		Msg("Viewing session closed")
	return nil
}

// ActiveSender returns the sender the viewer is currently watching.
// It is empty once the session has exited.
func (m *Manager) ActiveSender(viewerID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[viewerID]
	if !ok || e.sender == "" {
		return "", false
	}
	return e.sender, true
}

// Count returns the number of open sessions
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ReportMedia feeds a client's playback position into the active item's
// element and returns what the client should do next
func (m *Manager) ReportMedia(viewerID string, itemID uuid.UUID, current, duration time.Duration) (MediaState, error) {
	e, err := m.touch(viewerID)
	if err != nil {
		return MediaState{}, err
	}

	active, ok := e.session.ActiveItem()
	if !ok || active.ID != itemID {
		return MediaState{}, fmt.Errorf("%w: %s", ErrElementNotFound, itemID)
	}
	el, ok := e.media.lookup(itemID)
	if !ok {
		return MediaState{}, fmt.Errorf("%w: %s", ErrElementNotFound, itemID)
	}

	el.Report(current, duration)

	state := MediaState{ItemID: itemID, Playing: el.Playing()}
	if target, ok := el.Pending(); ok {
		state.SeekTo = &target
	}
	return state, nil
}

// Reap closes sessions idle for longer than the idle timeout and returns
// how many were closed
func (m *Manager) Reap() int {
	cutoff := m.clock.Now().Add(-m.opts.Sessions.IdleTimeout)

	m.mu.Lock()
	var idle []*entry
	for viewerID, e := range m.sessions {
		if e.lastSeen.Before(cutoff) {
			idle = append(idle, e)
			delete(m.sessions, viewerID)
		}
	}
	m.mu.Unlock()

	for _, e := range idle {
		e.session.Close()
		logger.Log.Info().
			Str("viewer_id", e.session.ViewerID()).
			Msg("Closed idle viewing session")
	}
	return len(idle)
}

// SetPlayback changes the timing used by sessions created from now on
func (m *Manager) SetPlayback(cfg config.PlaybackConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts.Playback = cfg
}

func (m *Manager) touch(viewerID string) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[viewerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, viewerID)
	}
	e.lastSeen = m.clock.Now()
	return e, nil
}

func (m *Manager) getOrCreate(viewerID string) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.sessions[viewerID]; ok {
		e.lastSeen = m.clock.Now()
		return e, nil
	}

	e := &entry{media: newRemoteMedia(), lastSeen: m.clock.Now()}
	session, err := playback.NewSession(playback.Options{
		ViewerID:  viewerID,
		Playback:  m.opts.Playback,
		Source:    m.opts.Source,
		Sink:      m.opts.Sink,
		Media:     e.media,
		Scheduler: m.opts.Scheduler,
		Clock:     m.clock,
		OnExit: func(reason playback.ExitReason) {
			m.exited(e, reason)
		},
	})
	if err != nil {
		return nil, err
	}

	e.session = session
	m.sessions[viewerID] = e
	return e, nil
}

// exited runs after a session leaves playback, outside the session lock
func (m *Manager) exited(e *entry, reason playback.ExitReason) {
	m.mu.Lock()
	e.sender = ""
	m.mu.Unlock()

	logger.Log.Debug().
		Str("viewer_id", e.session.ViewerID()).
		Str("reason", string(reason)).
		Msg("Viewing session exited")
}
