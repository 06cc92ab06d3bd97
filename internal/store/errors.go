package store

import "errors"

var (
	// ErrStoryNotFound is returned when a story ID is not in the collection
	ErrStoryNotFound = errors.New("story not found")

	// ErrDuplicateStory is returned when adding a story whose ID already exists
	ErrDuplicateStory = errors.New("story already exists")
)
