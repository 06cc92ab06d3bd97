package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/glimpse/internal/config"
	"github.com/stwalsh4118/glimpse/internal/db"
	"github.com/stwalsh4118/glimpse/internal/models"
	"github.com/stwalsh4118/glimpse/internal/playback"
	"github.com/stwalsh4118/glimpse/internal/store"
	"github.com/stwalsh4118/glimpse/internal/viewer"
)

// mockStoryRepository records calls and returns canned errors
type mockStoryRepository struct {
	mu        sync.Mutex
	created   []models.StoryItem
	deleted   []uuid.UUID
	createErr error
	deleteErr error
}

func (m *mockStoryRepository) Create(_ context.Context, story *models.StoryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, story.Clone())
	return nil
}

func (m *mockStoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

// stillScheduler starts timers that never fire, so playback only moves on request
type stillScheduler struct{}

func (stillScheduler) Every(time.Duration, func()) func() { return func() {} }

type testServer struct {
	router   *gin.Engine
	repo     *mockStoryRepository
	stories  *store.Collection
	sessions *viewer.Manager
}

func newTestServer(t *testing.T, items ...models.StoryItem) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{
		repo:    &mockStoryRepository{},
		stories: store.NewCollection(items...),
	}

	manager, err := viewer.NewManager(viewer.Options{
		Source: ts.stories,
		Sink: playback.SinkFunc(func(context.Context, playback.WatchedEvent) error {
			return nil
		}),
		Sessions:  config.SessionsConfig{},
		Clock:     clockwork.NewFakeClock(),
		Scheduler: stillScheduler{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Stop() })
	ts.sessions = manager

	router := gin.New()
	apiGroup := router.Group("/api")
	SetupStoryRoutes(apiGroup, ts.repo, ts.stories)
	SetupSessionRoutes(apiGroup, manager)
	ts.router = router
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

var (
	_ storyRepository = (*db.StoryRepository)(nil)
	_ sessionManager  = (*viewer.Manager)(nil)
)
