package config

import (
	"errors"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/stwalsh4118/glimpse/internal/logger"
)

// ErrNoConfigFile is returned by WatchPlayback when there is no config file to watch
var ErrNoConfigFile = errors.New("no config file found")

// WatchPlayback calls onChange with the playback section each time the config
// file is rewritten. Invalid edits are logged and ignored.
func WatchPlayback(onChange func(PlaybackConfig)) error {
	v := newViper()
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return ErrNoConfigFile
		}
		return fmt.Errorf("error reading config: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			logger.Log.Warn().Err(err).Str("file", e.Name).Msg("Ignoring unreadable config change")
			return
		}
		if err := cfg.Playback.Validate(); err != nil {
			logger.Log.Warn().Err(err).Str("file", e.Name).Msg("Ignoring invalid playback config")
			return
		}

		logger.Log.Info().
			Str("file", e.Name).
			Dur("tick_interval", cfg.Playback.TickInterval).
			Msg("Playback configuration reloaded")
		onChange(cfg.Playback)
	})
	v.WatchConfig()

	logger.Log.Info().Str("file", v.ConfigFileUsed()).Msg("Watching config file for playback changes")
	return nil
}
