package errors

import "errors"

var (
	ErrNotFound = errors.New("reservation not found")

	ErrResourceNotFound = errors.New("resource not found")

	ErrInvalidID = errors.New("invalid ID format")

	// ErrStatusPrecondition is returned by guarded updates when the row is no
	// longer in the expected status.
	ErrStatusPrecondition = errors.New("reservation status changed concurrently")

	ErrLockHeld = errors.New("resource lock is held by another request")
)
