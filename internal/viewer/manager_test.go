package viewer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/glimpse/internal/config"
	"github.com/stwalsh4118/glimpse/internal/models"
	"github.com/stwalsh4118/glimpse/internal/playback"
	"github.com/stwalsh4118/glimpse/internal/store"
)

// idleScheduler starts timers that never fire
type idleScheduler struct {
	mu     sync.Mutex
	active int
}

func (s *idleScheduler) Every(time.Duration, func()) func() {
	s.mu.Lock()
	s.active++
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.active--
			s.mu.Unlock()
		})
	}
}

func (s *idleScheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

type testEnv struct {
	manager *Manager
	store   *store.Collection
	clock   *clockwork.FakeClock
	sched   *idleScheduler
}

func newTestEnv(t *testing.T, items ...models.StoryItem) *testEnv {
	t.Helper()
	env := &testEnv{
		store: store.NewCollection(items...),
		clock: clockwork.NewFakeClock(),
		sched: &idleScheduler{},
	}

	manager, err := NewManager(Options{
		Source: env.store,
		Sink: playback.SinkFunc(func(context.Context, playback.WatchedEvent) error {
			return nil
		}),
		Sessions: config.SessionsConfig{
			IdleTimeout:  15 * time.Minute,
			ReapInterval: time.Minute,
		},
		Clock:     env.clock,
		Scheduler: env.sched,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Stop() })
	env.manager = manager
	return env
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(Options{})
	assert.ErrorIs(t, err, playback.ErrMissingSource)

	_, err = NewManager(Options{Source: store.NewCollection()})
	assert.ErrorIs(t, err, playback.ErrMissingSink)
}

func TestManager_OpenReusesSession(t *testing.T) {
	env := newTestEnv(t,
		*models.NewTextStory("alice", "a", "bob"),
		*models.NewTextStory("carol", "c", "bob"),
	)

	view, err := env.manager.Open("bob", "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, playback.StatePlaying, view.State)
	assert.Equal(t, "alice", view.SenderID)

	first, err := env.manager.Session("bob")
	require.NoError(t, err)

	_, err = env.manager.Open("bob", "carol", 0)
	require.NoError(t, err)
	second, err := env.manager.Session("bob")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, env.manager.Count())
	assert.Equal(t, 1, env.sched.Active())

	sender, ok := env.manager.ActiveSender("bob")
	assert.True(t, ok)
	assert.Equal(t, "carol", sender)
}

func TestManager_OpenErrorKeepsSelection(t *testing.T) {
	env := newTestEnv(t, *models.NewTextStory("alice", "a", "bob"))

	_, err := env.manager.Open("bob", "alice", 0)
	require.NoError(t, err)

	_, err = env.manager.Open("bob", "alice", 5)
	assert.ErrorIs(t, err, playback.ErrIndexOutOfRange)

	sender, ok := env.manager.ActiveSender("bob")
	assert.True(t, ok)
	assert.Equal(t, "alice", sender)
}

func TestManager_ExitClearsSelection(t *testing.T) {
	env := newTestEnv(t, *models.NewTextStory("alice", "a", "bob"))

	_, err := env.manager.Open("bob", "alice", 0)
	require.NoError(t, err)

	session, err := env.manager.Session("bob")
	require.NoError(t, err)
	require.NoError(t, session.Advance())

	_, ok := env.manager.ActiveSender("bob")
	assert.False(t, ok)
	assert.Equal(t, playback.StateExiting, session.State())
	assert.Equal(t, 1, env.manager.Count(), "exited sessions stay until closed or reaped")

	view, err := env.manager.Open("bob", "dave", 0)
	require.NoError(t, err)
	assert.Equal(t, playback.ExitEmptyContext, view.ExitReason)
	_, ok = env.manager.ActiveSender("bob")
	assert.False(t, ok)
}

func TestManager_Close(t *testing.T) {
	env := newTestEnv(t, *models.NewTextStory("alice", "a", "bob"))

	_, err := env.manager.Open("bob", "alice", 0)
	require.NoError(t, err)
	session, err := env.manager.Session("bob")
	require.NoError(t, err)

	require.NoError(t, env.manager.Close("bob"))
	assert.Equal(t, playback.StateExiting, session.State())
	assert.Equal(t, playback.ExitDismissed, session.View().ExitReason)
	assert.Zero(t, env.manager.Count())
	assert.Zero(t, env.sched.Active())

	assert.ErrorIs(t, env.manager.Close("bob"), ErrSessionNotFound)
	_, err = env.manager.Session("bob")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_Reap(t *testing.T) {
	env := newTestEnv(t,
		*models.NewTextStory("alice", "a", "bob", "carol"),
	)

	_, err := env.manager.Open("bob", "alice", 0)
	require.NoError(t, err)
	_, err = env.manager.Open("carol", "alice", 0)
	require.NoError(t, err)

	env.clock.Advance(10 * time.Minute)
	_, err = env.manager.Session("carol")
	require.NoError(t, err)

	env.clock.Advance(6 * time.Minute)
	assert.Equal(t, 1, env.manager.Reap())
	assert.Equal(t, 1, env.manager.Count())

	_, err = env.manager.Session("bob")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = env.manager.Session("carol")
	assert.NoError(t, err)
}

func TestManager_ReportMedia(t *testing.T) {
	video := *models.NewMediaStory("alice", models.MediaDescriptor{MimeType: "video/mp4", DurationLabel: "00:20"}, "bob")
	text := *models.NewTextStory("alice", "after", "bob")
	env := newTestEnv(t, video, text)

	_, err := env.manager.Open("bob", "alice", 0)
	require.NoError(t, err)

	state, err := env.manager.ReportMedia("bob", video.ID, 5*time.Second, 20*time.Second)
	require.NoError(t, err)
	assert.True(t, state.Playing)
	assert.Nil(t, state.SeekTo)

	session, err := env.manager.Session("bob")
	require.NoError(t, err)
	assert.InDelta(t, 25.0, session.View().Items[0].Progress, 1e-9)

	require.NoError(t, session.Seek(50))
	state, err = env.manager.ReportMedia("bob", video.ID, 5*time.Second, 0)
	require.NoError(t, err)
	require.NotNil(t, state.SeekTo)
	assert.Equal(t, 10*time.Second, *state.SeekTo)

	session.Pause()
	state, err = env.manager.ReportMedia("bob", video.ID, 10*time.Second, 0)
	require.NoError(t, err)
	assert.False(t, state.Playing)

	_, err = env.manager.ReportMedia("bob", text.ID, time.Second, 0)
	assert.ErrorIs(t, err, ErrElementNotFound)
	_, err = env.manager.ReportMedia("nobody", video.ID, time.Second, 0)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	session.Resume()
	_, err = env.manager.ReportMedia("bob", video.ID, 20*time.Second, 0)
	require.NoError(t, err)
	active, ok := session.ActiveItem()
	require.True(t, ok)
	assert.Equal(t, text.ID, active.ID)
}

func TestManager_ReportMediaAfterBackwardSeek(t *testing.T) {
	video := *models.NewMediaStory("alice", models.MediaDescriptor{MimeType: "video/mp4", DurationLabel: "00:20"}, "bob")
	env := newTestEnv(t, video, *models.NewTextStory("alice", "after", "bob"))

	_, err := env.manager.Open("bob", "alice", 0)
	require.NoError(t, err)
	session, err := env.manager.Session("bob")
	require.NoError(t, err)

	_, err = env.manager.ReportMedia("bob", video.ID, 16*time.Second, 20*time.Second)
	require.NoError(t, err)
	assert.InDelta(t, 80.0, session.View().Items[0].Progress, 1e-9)

	require.NoError(t, session.Seek(20))

	// This report was sent before the client knew about the seek
	state, err := env.manager.ReportMedia("bob", video.ID, 16050*time.Millisecond, 20*time.Second)
	require.NoError(t, err)
	require.NotNil(t, state.SeekTo)
	assert.Equal(t, 4*time.Second, *state.SeekTo)
	assert.InDelta(t, 20.0, session.View().Items[0].Progress, 1e-9)

	state, err = env.manager.ReportMedia("bob", video.ID, 6*time.Second, 20*time.Second)
	require.NoError(t, err)
	assert.Nil(t, state.SeekTo)
	assert.InDelta(t, 30.0, session.View().Items[0].Progress, 1e-9)
}

func TestManager_MediaKeepsOnlyActiveElement(t *testing.T) {
	first := *models.NewMediaStory("alice", models.MediaDescriptor{MimeType: "video/mp4", DurationLabel: "00:20"}, "bob")
	second := *models.NewMediaStory("alice", models.MediaDescriptor{MimeType: "audio/mpeg", DurationLabel: "00:20"}, "bob")
	env := newTestEnv(t, first, second)

	_, err := env.manager.Open("bob", "alice", 0)
	require.NoError(t, err)
	session, err := env.manager.Session("bob")
	require.NoError(t, err)

	require.NoError(t, session.Advance())
	e, err := env.manager.touch("bob")
	require.NoError(t, err)

	_, ok := e.media.lookup(first.ID)
	assert.False(t, ok)
	_, ok = e.media.lookup(second.ID)
	assert.True(t, ok)
}

func TestManager_StartStop(t *testing.T) {
	env := newTestEnv(t, *models.NewTextStory("alice", "a", "bob"))
	env.manager.Start()

	_, err := env.manager.Open("bob", "alice", 0)
	require.NoError(t, err)

	require.NoError(t, env.manager.Stop())
	assert.Zero(t, env.manager.Count())
	assert.Zero(t, env.sched.Active())
}

func TestManager_SetPlaybackAppliesToNewSessions(t *testing.T) {
	env := newTestEnv(t, *models.NewTextStory("alice", "a", "bob", "carol"))

	view, err := env.manager.Open("bob", "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultPlayback().TextDuration, view.Duration)

	slow := config.DefaultPlayback()
	slow.TextDuration = 5 * time.Second
	env.manager.SetPlayback(slow)

	view, err = env.manager.Open("carol", "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, view.Duration)

	// bob's session keeps the timing it was created with
	view, err = env.manager.Open("bob", "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultPlayback().TextDuration, view.Duration)
}
