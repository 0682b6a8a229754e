package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrVersionConflict is returned when a write finds the stored version
	// has moved past the one that was read.
	ErrVersionConflict = errors.New("booking was modified concurrently")

	// ErrDuplicateExternal is returned when an active shadow already exists for
	// the same feed event.
	ErrDuplicateExternal = errors.New("external booking already exists")

	ErrInvalidTransition = errors.New("status transition not allowed")
)
