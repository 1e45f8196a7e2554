// Package engine defines the error taxonomy shared by the booking, package
// and group components. Handlers map these classes onto HTTP statuses; the
// components themselves only wrap and return them.
package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks missing or malformed input, rejected before any write.
	ErrValidation = errors.New("validation")
	// ErrNotFound marks an operation on a nonexistent row.
	ErrNotFound = errors.New("not found")
	// ErrInvariant marks a rejected write that would break a business invariant
	// (capacity exceeded, amount received above price, capacity below signups).
	ErrInvariant = errors.New("invariant violation")
)

// Validationf wraps ErrValidation with a formatted reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// NotFoundf wraps ErrNotFound with a formatted reason.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}

// Invariantf wraps ErrInvariant with a formatted reason.
func Invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvariant}, args...)...)
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvariant reports whether err is an invariant violation.
func IsInvariant(err error) bool { return errors.Is(err, ErrInvariant) }
