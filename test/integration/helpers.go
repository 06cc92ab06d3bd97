//go:build integration
// +build integration

package integration

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/glimpse/internal/config"
	"github.com/stwalsh4118/glimpse/internal/db"
	"github.com/stwalsh4118/glimpse/internal/models"
	"github.com/stwalsh4118/glimpse/internal/notify"
	"github.com/stwalsh4118/glimpse/internal/store"
	"github.com/stwalsh4118/glimpse/internal/viewer"
)

// fastPlayback keeps real-clock playback short enough for tests
var fastPlayback = config.PlaybackConfig{
	TickInterval:    10 * time.Millisecond,
	ImageDuration:   200 * time.Millisecond,
	TextDuration:    200 * time.Millisecond,
	MinWatchFloor:   50 * time.Millisecond,
	MetadataTimeout: 200 * time.Millisecond,
}

// setupTestDB creates a file-backed test database with migrations applied
func setupTestDB(t *testing.T) (*db.DB, *db.Repositories) {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "glimpse.db"), time.Second)
	require.NoError(t, err, "Failed to create test database")
	t.Cleanup(func() { _ = database.Close() })

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err, "Failed to get SQL DB")

	// Resolve migrations relative to this file so tests work from any directory
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "Failed to get current file path")
	rootDir := filepath.Dir(filepath.Dir(filepath.Dir(filename)))
	migrationsPath := "file://" + filepath.Join(rootDir, "migrations")

	require.NoError(t, db.RunMigrations(sqlDB, migrationsPath), "Failed to run migrations")

	return database, db.NewRepositories(database)
}

// setupManager wires the collection and a recording sink into a running manager
func setupManager(t *testing.T, repos *db.Repositories) (*store.Collection, *viewer.Manager) {
	t.Helper()

	collection := store.NewCollection()
	require.NoError(t, collection.Load(context.Background(), repos.Stories))

	manager, err := viewer.NewManager(viewer.Options{
		Source: collection,
		Sink: notify.NewGuarded(
			notify.NewRecorder(repos.Stories),
			notify.NewBreaker(3, time.Second, nil),
		),
		Playback: fastPlayback,
		Sessions: config.SessionsConfig{IdleTimeout: time.Minute, ReapInterval: time.Minute},
	})
	require.NoError(t, err)
	manager.Start()
	t.Cleanup(func() { _ = manager.Stop() })

	return collection, manager
}

// createTextStories persists count text stories from sender to receivers
func createTextStories(t *testing.T, repos *db.Repositories, sender string, count int, receivers ...string) []*models.StoryItem {
	t.Helper()

	items := make([]*models.StoryItem, count)
	for i := range items {
		items[i] = models.NewTextStory(sender, "story", receivers...)
		require.NoError(t, repos.Stories.Create(context.Background(), items[i]))
	}
	return items
}
