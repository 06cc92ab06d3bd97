package playback

import "errors"

var (
	// ErrNoContext is returned by navigation calls before a context is loaded
	ErrNoContext = errors.New("no viewing context loaded")

	// ErrSessionExited is returned by navigation calls after the session exited
	ErrSessionExited = errors.New("viewing session has exited")

	// ErrIndexOutOfRange is returned when selecting an item outside the context
	ErrIndexOutOfRange = errors.New("story index out of range")

	// ErrMissingViewer is returned when a session is created without a viewer
	ErrMissingViewer = errors.New("viewer id is required")

	// ErrMissingSource is returned when a session is created without a story source
	ErrMissingSource = errors.New("story source is required")

	// ErrMissingSink is returned when a session is created without a notification sink
	ErrMissingSink = errors.New("notification sink is required")
)
