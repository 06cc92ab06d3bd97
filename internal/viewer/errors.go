package viewer

import "errors"

var (
	// ErrSessionNotFound is returned when a viewer has no open session
	ErrSessionNotFound = errors.New("viewing session not found")

	// ErrElementNotFound is returned when reporting media for an item that is not playing
	ErrElementNotFound = errors.New("media element not found")
)
