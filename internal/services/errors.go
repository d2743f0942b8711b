package services

import (
	"errors"

	"github.com/yamdb/apiserver/internal/store"
)

// Caller-facing error kinds. Handlers map them to status codes; anything
// else is an internal failure.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("already exists")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
)

// FieldError is a caller error tied to one input field.
type FieldError struct {
	Field   string
	Message string
	Kind    error
}

func (e *FieldError) Error() string {
	return e.Message
}

func (e *FieldError) Unwrap() error {
	return e.Kind
}

func invalid(field, message string) error {
	return &FieldError{Field: field, Message: message, Kind: ErrValidation}
}

func conflict(field, message string) error {
	return &FieldError{Field: field, Message: message, Kind: ErrConflict}
}

func notFound(message string) error {
	return &FieldError{Message: message, Kind: ErrNotFound}
}

// normalize converts store sentinels that reach a service boundary into the
// caller-facing taxonomy.
func normalize(err error, missing string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return notFound(missing)
	case errors.Is(err, store.ErrInvalid):
		return &FieldError{Message: "value out of range", Kind: ErrValidation}
	case errors.Is(err, store.ErrReference):
		return &FieldError{Message: "referenced object does not exist", Kind: ErrValidation}
	}
	return err
}
