package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvoiceNotFound     = fmt.Errorf("invoice %w", ErrNotFound)
	ErrLenderNotFound      = fmt.Errorf("lender %w", ErrNotFound)
	ErrUserNotFound        = fmt.Errorf("user %w", ErrNotFound)
	ErrAPIClientNotFound   = fmt.Errorf("api client %w", ErrNotFound)
	ErrDuplicateInvoice    = errors.New("invoice already exists for your lender account")
	ErrConflict            = errors.New("resource already exists")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrIdempotencyConflict = errors.New("request in progress")
	ErrIdempotencyMismatch = errors.New("key reuse with mismatched payload")
	ErrForbidden           = errors.New("not allowed to access this resource")
	ErrUnauthorized        = errors.New("invalid credentials")
)

// FieldError is a single field-level validation failure.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError collects every field failure of one request or row.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return strings.Join(parts, ", ")
}

// Add records a failure for field.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Err returns nil when nothing was recorded, so callers can build one
// unconditionally and return e.Err().
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Invalid is shorthand for a single-field ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// TransitionError reports a state change the lifecycle does not allow.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change invoice status from %s to %s", e.From, e.To)
}

// TransportError is a failed call to a remote HTTP service.
type TransportError struct {
	Status  int
	Message string
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("remote returned %d: %s", e.Status, e.Message)
}
