package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for per-item failures in batch operations.
var (
	ErrNotFound        = errors.New("Resource not found")
	ErrNoContent       = errors.New("No content to embed (content too short or missing)")
	ErrContentTooShort = errors.New("Content too short after cleaning")
	ErrNoChunks        = errors.New("No chunks generated")
)

// ValidationError reports missing or inconsistent client input. It is
// surfaced immediately, before any backend call, and is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// BackendError wraps a failure from an external collaborator (embedding or
// completion backend, vector store, record store) with the upstream message
// attached. It is never silently swallowed.
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// NewBackendError creates a BackendError.
func NewBackendError(backend, op string, err error) *BackendError {
	return &BackendError{Backend: backend, Op: op, Err: err}
}
