// Package repository provides CRUD access to the collections inside
// the persisted store.  It defines the error kinds shared across the
// repositories and the session layer.  Structural input errors are
// always raised to the caller; storage faults are logged and absorbed
// here, degrading to the last-known in-memory view (an explicit,
// acknowledged trade-off of this design).
package repository

import (
	"errors"
	"fmt"
)

// ErrValidation marks errors caused by bad caller input: missing
// identifiers or field constraints violated.  Handlers should
// translate it into an HTTP 400 response.  Match with errors.Is.
var ErrValidation = errors.New("validation failed")

// ValidationError carries a human-readable reason for rejecting the
// caller's input.  It wraps ErrValidation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError with a formatted reason.
func Invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
