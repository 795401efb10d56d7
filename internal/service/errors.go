package service

import (
	"errors"
	"fmt"
)

// --- Error Definitions ---
var (
	ErrUnauthenticated = errors.New("authentication required")
	// ErrNotFoundOrUnauthorized covers both a missing record and one owned by
	// someone else. Callers cannot tell the two apart.
	ErrNotFoundOrUnauthorized = errors.New("not found")
	ErrHasDependentSets       = errors.New("exercise has logged sets; delete them first")
	ErrExportUnavailable      = errors.New("workout export is not configured")

	ErrUserAlreadyExists    = errors.New("user with this email already exists")
	ErrAuthenticationFailed = errors.New("authentication failed: invalid email or password")
	ErrHashingFailed        = errors.New("failed to hash password")
	ErrTokenGeneration      = errors.New("failed to generate authentication token")
)

// ValidationError reports the first invalid field of an input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// StorageError wraps an unexpected storage failure. Its text is logged but
// never shown to the caller.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageFailure(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
