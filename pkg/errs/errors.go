// Package errs defines the error taxonomy shared by the pharmacy domain
// packages. Services return these sentinels (usually wrapped with %w and
// additional context) and HTTP handlers map them to status codes.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates an item, record, or profile is absent.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientStock indicates a deduction would drive stock negative.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrDuplicateRegistryCode indicates an inventory registry code collision.
	ErrDuplicateRegistryCode = errors.New("duplicate registry code")

	// ErrDuplicateRecordNumber indicates a dispense record number collision
	// that survived regeneration.
	ErrDuplicateRecordNumber = errors.New("duplicate record number")

	// ErrDuplicateInteractionPair indicates the interaction catalog already
	// has an entry for the medication pair.
	ErrDuplicateInteractionPair = errors.New("duplicate interaction pair")

	// ErrInvalidStateTransition indicates a dispensing state machine violation.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrValidation indicates malformed or missing input.
	ErrValidation = errors.New("validation error")

	// ErrExternalUnavailable indicates an external advisory call failed or
	// timed out. Callers degrade rather than propagate it to users.
	ErrExternalUnavailable = errors.New("external service unavailable")
)

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrNotFound}, args...)...)
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err is or wraps ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
