package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when a write would violate a uniqueness constraint.
	ErrConflict = errors.New("entity conflict")

	// ErrStaleState is returned when a conditional update found the row in a different
	// state than the caller expected.
	ErrStaleState = errors.New("entity state changed")
)
