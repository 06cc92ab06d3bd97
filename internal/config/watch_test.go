package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchPlayback_NoConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	assert.ErrorIs(t, WatchPlayback(func(PlaybackConfig) {}), ErrNoConfigFile)
}

func TestWatchPlayback_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("playback:\n  tickinterval: 50ms\n"), 0o600))

	var (
		mu   sync.Mutex
		seen []PlaybackConfig
	)
	require.NoError(t, WatchPlayback(func(p PlaybackConfig) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, p)
	}))

	// Invalid: a tick longer than an image
	require.NoError(t, os.WriteFile(path, []byte("playback:\n  tickinterval: 10s\n"), 0o600))
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("playback:\n  tickinterval: 25ms\n"), 0o600))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && seen[len(seen)-1].TickInterval == 25*time.Millisecond
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, p := range seen {
		assert.NotEqual(t, 10*time.Second, p.TickInterval)
		assert.Equal(t, defaultImageDuration, p.ImageDuration)
	}
}
