// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
	"strings"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Training errors.
	ErrInsufficientData = errors.New("insufficient training data")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ValidationError reports why a submission was rejected. Reasons holds the
// first rule that failed; validation short-circuits.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Reasons, "; "))
}

// NewValidationError creates a validation error with the given reasons.
func NewValidationError(reasons ...string) error {
	return &ValidationError{Reasons: reasons}
}

// IsValidation reports whether err is a validation rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
