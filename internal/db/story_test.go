package db

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/glimpse/internal/models"
)

// setupTestDB opens a migrated database in a temp directory
func setupTestDB(t *testing.T) (*DB, *Repositories) {
	t.Helper()

	database, err := New(filepath.Join(t.TempDir(), "glimpse.db"), time.Second)
	require.NoError(t, err, "Failed to open test database")
	t.Cleanup(func() { _ = database.Close() })

	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "Failed to get current file path")
	rootDir := filepath.Dir(filepath.Dir(filepath.Dir(filename)))
	migrationsPath := "file://" + filepath.Join(rootDir, "migrations")

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)
	require.NoError(t, RunMigrations(sqlDB, migrationsPath))
	// Running again is a no-op
	require.NoError(t, RunMigrations(sqlDB, migrationsPath))

	return database, NewRepositories(database)
}

func TestDB_Health(t *testing.T) {
	database, _ := setupTestDB(t)
	assert.NoError(t, database.Health(context.Background()))
}

func TestStoryRepository_CreateAndList(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	video := models.NewMediaStory("alice", models.MediaDescriptor{
		MimeType:      "video/mp4",
		DurationLabel: "00:15",
		DisplayWidth:  720,
	}, "bob", "carol")
	text := models.NewTextStory("dave", "hello", "bob")
	noReceivers := models.NewTextStory("erin", "just me")

	for _, story := range []*models.StoryItem{video, text, noReceivers} {
		require.NoError(t, repos.Stories.Create(ctx, story))
	}

	stories, err := repos.Stories.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, stories, 3)

	got := stories[0]
	assert.Equal(t, video.ID, got.ID)
	assert.Equal(t, models.KindMedia, got.Kind)
	require.NotNil(t, got.Media)
	assert.Equal(t, *video.Media, *got.Media)
	assert.True(t, video.SentAt.Equal(got.SentAt))
	require.Len(t, got.Receivers, 2)
	assert.Equal(t, "bob", got.Receivers[0].ReceiverID)
	assert.Equal(t, "carol", got.Receivers[1].ReceiverID)
	assert.True(t, got.Receivers[0].SeenVisibilityAllowed)
	assert.Nil(t, got.Receivers[0].SeenAt)

	assert.Equal(t, text.ID, stories[1].ID)
	assert.Nil(t, stories[1].Media)
	assert.Equal(t, "hello", stories[1].Text)
	assert.Empty(t, stories[2].Receivers)
}

func TestStoryRepository_CreateDuplicate(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	story := models.NewTextStory("alice", "hi", "bob")
	require.NoError(t, repos.Stories.Create(ctx, story))

	err := repos.Stories.Create(ctx, story)
	assert.True(t, IsDuplicate(err), "got %v", err)
}

func TestStoryRepository_GetAndDelete(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	story := models.NewTextStory("alice", "hi", "bob")
	require.NoError(t, repos.Stories.Create(ctx, story))

	got, err := repos.Stories.GetByID(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.SenderID)

	require.NoError(t, repos.Stories.Delete(ctx, story.ID))
	_, err = repos.Stories.GetByID(ctx, story.ID)
	assert.True(t, IsNotFound(err))

	err = repos.Stories.Delete(ctx, story.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var receivers int64
	require.NoError(t, repos.Stories.db.Model(&receiverRow{}).Count(&receivers).Error)
	assert.Zero(t, receivers)
}

func TestStoryRepository_MarkSeen(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	story := models.NewTextStory("alice", "hi", "bob", "carol")
	require.NoError(t, repos.Stories.Create(ctx, story))
	at := time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)

	written, err := repos.Stories.MarkSeen(ctx, story.ID, "bob", at)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = repos.Stories.MarkSeen(ctx, story.ID, "bob", at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, written, "existing receipt is kept")

	_, err = repos.Stories.MarkSeen(ctx, story.ID, "mallory", at)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repos.Stories.MarkSeen(ctx, uuid.New(), "bob", at)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := repos.Stories.GetByID(ctx, story.ID)
	require.NoError(t, err)
	bob, ok := got.Receiver("bob")
	require.True(t, ok)
	require.NotNil(t, bob.SeenAt)
	assert.True(t, at.Equal(*bob.SeenAt))
	assert.False(t, got.SeenBy("carol"))
}

func TestMapGormError(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want error
	}{
		{"unique", "UNIQUE constraint failed: stories.id", ErrDuplicate},
		{"foreign key", "FOREIGN KEY constraint failed", ErrForeignKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, MapGormError(&testError{tt.msg}), tt.want)
		})
	}

	assert.NoError(t, MapGormError(nil))
	other := &testError{"disk I/O error"}
	assert.Equal(t, other, MapGormError(other))
}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
