package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation failures.
var (
	ErrInvalidURL     = errors.New("invalid url")
	ErrInvalidScheme  = errors.New("unsupported url scheme")
	ErrMissingHost    = errors.New("url has no host")
	ErrEmptyContent   = errors.New("scraped content is empty")
	ErrInvalidTenant  = errors.New("invalid tenant id")
	ErrQueryTooShort  = errors.New("query too short")
	ErrQueryInjection = errors.New("query contains suspicious content")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
