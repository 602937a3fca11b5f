// Package apperr defines the sentinel errors shared by the store, scheduler and API.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrInvalidFormat    = errors.New("invalid format")
	ErrPersistence      = errors.New("persistence failure")
	ErrPermissionDenied = errors.New("notification permission denied")
)

// Validation wraps err so that errors.Is(result, ErrValidation) holds.
func Validation(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

// InvalidFormat wraps a decode failure of an import payload.
func InvalidFormat(msg string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrInvalidFormat, msg)
	}
	return fmt.Errorf("%w: %s: %w", ErrInvalidFormat, msg, err)
}

// Persistence wraps an underlying store failure with the operation name.
func Persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
