package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	ErrDuplicate = errors.New("booking already exists for this listing and stay")

	ErrListingNotFound = errors.New("listing not found")

	// ErrStaleStatus means a conditional update matched nothing because the
	// booking changed since it was read.
	ErrStaleStatus = errors.New("booking state changed concurrently")

	ErrClaimLost = errors.New("payment initiation claim no longer held")

	ErrLockHeld = errors.New("booking lock held by another request")

	ErrLockTimeout = errors.New("timed out waiting for booking lock")
)
