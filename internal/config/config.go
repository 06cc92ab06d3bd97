// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config files.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

const (
	defaultServerPort                = 8080
	defaultServerHost                = "0.0.0.0"
	defaultReadTimeout               = 30 * time.Second
	defaultWriteTimeout              = 30 * time.Second
	defaultDatabasePath              = "./data/glimpse.db"
	defaultDatabaseConnectionTimeout = 5 * time.Second
	defaultMigrationsPath            = "file://./migrations"
	defaultLogLevel                  = "info"
	defaultLogPretty                 = false
	defaultTickInterval              = 50 * time.Millisecond
	defaultImageDuration             = 3 * time.Second
	defaultTextDuration              = 3 * time.Second
	defaultMinWatchFloor             = 2 * time.Second
	defaultMetadataTimeout           = 10 * time.Second
	defaultSessionIdleTimeout        = 15 * time.Minute
	defaultSessionReapInterval       = time.Minute
	defaultNotifyFailureThreshold    = 5
	defaultNotifyResetTimeout        = 30 * time.Second
	envPrefix                        = "GLIMPSE"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Playback PlaybackConfig
	Sessions SessionsConfig
	Notify   NotifyConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Path              string
	ConnectionTimeout time.Duration
	MigrationsPath    string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// PlaybackConfig holds the timing constants of the story playback engine
type PlaybackConfig struct {
	TickInterval    time.Duration // wall-clock tick period
	ImageDuration   time.Duration // fixed duration of image stories
	TextDuration    time.Duration // fixed duration of text stories
	MinWatchFloor   time.Duration // lower bound of the watched threshold
	MetadataTimeout time.Duration // how long to wait for unknown media durations
}

// SessionsConfig controls the lifetime of viewer sessions
type SessionsConfig struct {
	IdleTimeout  time.Duration
	ReapInterval time.Duration
}

// NotifyConfig controls the circuit breaker guarding the seen-receipt sink
type NotifyConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

// Load reads configuration from .env file, config files, environment variables, and defaults
func Load() (*Config, error) {
	// .env files are optional in production and CI where env vars are set directly
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := newViper()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// newViper builds a viper instance with defaults, search paths and env binding
func newViper() *viper.Viper {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/glimpse")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return v
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.readtimeout", defaultReadTimeout)
	v.SetDefault("server.writetimeout", defaultWriteTimeout)

	v.SetDefault("database.path", defaultDatabasePath)
	v.SetDefault("database.connectiontimeout", defaultDatabaseConnectionTimeout)
	v.SetDefault("database.migrationspath", defaultMigrationsPath)

	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)

	v.SetDefault("playback.tickinterval", defaultTickInterval)
	v.SetDefault("playback.imageduration", defaultImageDuration)
	v.SetDefault("playback.textduration", defaultTextDuration)
	v.SetDefault("playback.minwatchfloor", defaultMinWatchFloor)
	v.SetDefault("playback.metadatatimeout", defaultMetadataTimeout)

	v.SetDefault("sessions.idletimeout", defaultSessionIdleTimeout)
	v.SetDefault("sessions.reapinterval", defaultSessionReapInterval)

	v.SetDefault("notify.failurethreshold", defaultNotifyFailureThreshold)
	v.SetDefault("notify.resettimeout", defaultNotifyResetTimeout)
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v (must be > 0)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout: %v (must be > 0)", c.Server.WriteTimeout)
	}
	if c.Database.ConnectionTimeout <= 0 {
		return fmt.Errorf("invalid database connection timeout: %v (must be > 0)", c.Database.ConnectionTimeout)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !lo.Contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	if err := c.Playback.Validate(); err != nil {
		return err
	}

	if c.Sessions.IdleTimeout <= 0 {
		return fmt.Errorf("invalid session idle timeout: %v (must be > 0)", c.Sessions.IdleTimeout)
	}
	if c.Sessions.ReapInterval <= 0 {
		return fmt.Errorf("invalid session reap interval: %v (must be > 0)", c.Sessions.ReapInterval)
	}

	if c.Notify.FailureThreshold < 1 {
		return fmt.Errorf("invalid notify failure threshold: %d (must be >= 1)", c.Notify.FailureThreshold)
	}
	if c.Notify.ResetTimeout <= 0 {
		return fmt.Errorf("invalid notify reset timeout: %v (must be > 0)", c.Notify.ResetTimeout)
	}

	return nil
}

// Validate checks the playback timing constants
func (p PlaybackConfig) Validate() error {
	if p.TickInterval <= 0 {
		return fmt.Errorf("invalid tick interval: %v (must be > 0)", p.TickInterval)
	}
	if p.ImageDuration <= 0 {
		return fmt.Errorf("invalid image duration: %v (must be > 0)", p.ImageDuration)
	}
	if p.TextDuration <= 0 {
		return fmt.Errorf("invalid text duration: %v (must be > 0)", p.TextDuration)
	}
	if p.MinWatchFloor < 0 {
		return fmt.Errorf("invalid minimum watch floor: %v (must be >= 0)", p.MinWatchFloor)
	}
	if p.MetadataTimeout <= 0 {
		return fmt.Errorf("invalid metadata timeout: %v (must be > 0)", p.MetadataTimeout)
	}
	// A tick longer than an image would complete it in a single step
	if p.TickInterval > p.ImageDuration || p.TickInterval > p.TextDuration {
		return fmt.Errorf("tick interval %v must not exceed image/text durations", p.TickInterval)
	}
	return nil
}

// DefaultPlayback returns the built-in playback timing constants
func DefaultPlayback() PlaybackConfig {
	return PlaybackConfig{
		TickInterval:    defaultTickInterval,
		ImageDuration:   defaultImageDuration,
		TextDuration:    defaultTextDuration,
		MinWatchFloor:   defaultMinWatchFloor,
		MetadataTimeout: defaultMetadataTimeout,
	}
}
