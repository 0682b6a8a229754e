package errors

import "errors"

var (
	// ErrNotFound is returned when a space is not found by ID
	ErrNotFound = errors.New("space not found")

	// ErrInvalidID is returned when an ID format is invalid
	ErrInvalidID = errors.New("invalid space ID format")
)
