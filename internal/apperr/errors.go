// Package apperr holds the error kinds shared by every layer of the service.
// Expected business outcomes (not deliverable, idempotent no-ops) are not errors.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrReservationRejected = errors.New("reservation rejected: insufficient available stock")
	ErrStorage             = errors.New("storage unavailable")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// Storage marks err as a transient persistence failure. Nil stays nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

func IsStorage(err error) bool { return errors.Is(err, ErrStorage) }
