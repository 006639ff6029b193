package sighting

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by repositories. Handlers map these to HTTP
// status codes; they carry no upstream diagnostic detail.
var (
	// ErrNotFound is returned when no record matches the given id.
	ErrNotFound = errors.New("sighting not found")

	// ErrInvalidID is returned for malformed identifiers, before any
	// store round trip is attempted.
	ErrInvalidID = errors.New("invalid sighting id")

	// ErrNotOwner is returned when a patch names an expected owner and
	// the stored record belongs to someone else. Nothing is written.
	ErrNotOwner = errors.New("sighting owned by another user")

	// ErrUpstreamTimeout is returned when the store exceeded its bounded
	// wait and the operation was abandoned.
	ErrUpstreamTimeout = errors.New("store operation timed out")

	// ErrUpstreamUnavailable is returned when the store connection failed.
	ErrUpstreamUnavailable = errors.New("store unavailable")
)

// ValidationError reports a missing or malformed required field. It is
// always detected before any store write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid sighting: %s", e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
