// internal/util/errors.go
package util

import "errors"

// Common application-specific errors.
var (
	ErrInvalidInput     = errors.New("invalid input provided")
	ErrAccountNotFound  = errors.New("account not found")
	ErrMovementNotFound = errors.New("movement not found")
	ErrSameAccount      = errors.New("source and destination account must differ")
	ErrInsufficientData = errors.New("not enough transaction history")

	// Defect signals. These are reported and surfaced, never corrected in place.
	ErrInvariantViolation = errors.New("internal invariant violation")
	ErrBalanceDrift       = errors.New("account balance drifted from movement log")
)

// IsError reports whether err matches target anywhere in its wrap chain.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}

// IsNotFound reports whether err is any of the not-found errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrMovementNotFound)
}
