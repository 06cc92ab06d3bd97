// Package logger provides structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const (
	logLevelDebug = "debug"
	logLevelInfo  = "info"
	logLevelWarn  = "warn"
	logLevelError = "error"
)

// Log is the global logger instance
var Log = zerolog.Nop()

// Init initializes the global logger with the specified level and output format
func Init(level string, pretty bool) {
	InitWithWriter(os.Stdout, level, pretty)
}

// InitWithWriter initializes the global logger writing to w instead of stdout
func InitWithWriter(w io.Writer, level string, pretty bool) {
	// Configure time format
	zerolog.TimeFieldFormat = time.RFC3339

	// Human-readable console output for development, JSON otherwise
	output := w
	if pretty {
		output = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	// Set global log level
	zerolog.SetGlobalLevel(parseLogLevel(level))

	// Create logger with timestamp and caller information
	Log = zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

// Session returns a child logger tagged with a viewing session's identity
func Session(viewerID, senderID string) zerolog.Logger {
	return Log.With().
		Str("viewer_id", viewerID).
		Str("sender_id", senderID).
		Logger()
}

// parseLogLevel converts a string log level to zerolog.Level
func parseLogLevel(level string) zerolog.Level {
	switch level {
	case logLevelDebug:
		return zerolog.DebugLevel
	case logLevelInfo:
		return zerolog.InfoLevel
	case logLevelWarn:
		return zerolog.WarnLevel
	case logLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
