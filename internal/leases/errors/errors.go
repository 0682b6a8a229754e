package errors

import "errors"

var (
	// ErrLeaseHeld is returned when another owner holds an unexpired lease.
	ErrLeaseHeld = errors.New("lease is held by another owner")

	ErrNotOwner = errors.New("lease is not held by this owner")
)
