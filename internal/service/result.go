package service

import (
	"context"
	"errors"
	"log/slog"

	"liftlog/workout-app/internal/metrics"
)

// ErrorKind classifies a failed entry point.
type ErrorKind string

const (
	KindNone                   ErrorKind = ""
	KindUnauthenticated        ErrorKind = "unauthenticated"
	KindNotFoundOrUnauthorized ErrorKind = "not_found_or_unauthorized"
	KindInvalidInput           ErrorKind = "invalid_input"
	KindHasDependentSets       ErrorKind = "has_dependent_sets"
	KindConflict               ErrorKind = "conflict"
	KindAuthenticationFailed   ErrorKind = "authentication_failed"
	KindUnavailable            ErrorKind = "unavailable"
	KindStorageFailure         ErrorKind = "storage_failure"
)

// storageFailureMessage is all a caller learns about an internal failure.
const storageFailureMessage = "something went wrong, please try again"

// Result is the uniform outcome of an entry point: either Success with Data,
// or a single Error message. Kind is for the transport layer only.
type Result[T any] struct {
	Success bool      `json:"success"`
	Data    T         `json:"data,omitzero"`
	Error   string    `json:"error,omitempty"`
	Kind    ErrorKind `json:"-"`
}

// Classify maps err onto the error taxonomy. Unknown errors are storage failures.
func Classify(err error) ErrorKind {
	var validationErr *ValidationError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrNotFoundOrUnauthorized):
		return KindNotFoundOrUnauthorized
	case errors.As(err, &validationErr):
		return KindInvalidInput
	case errors.Is(err, ErrHasDependentSets):
		return KindHasDependentSets
	case errors.Is(err, ErrUserAlreadyExists):
		return KindConflict
	case errors.Is(err, ErrAuthenticationFailed):
		return KindAuthenticationFailed
	case errors.Is(err, ErrExportUnavailable):
		return KindUnavailable
	default:
		return KindStorageFailure
	}
}

// Complete turns the (value, error) pair of an entry point into a Result.
// Storage failures are logged with their detail and replaced by a generic
// message; every other kind keeps its own message.
func Complete[T any](ctx context.Context, logger *slog.Logger, op string, data T, err error) Result[T] {
	kind := Classify(err)
	if kind == KindNone {
		metrics.Outcomes.WithLabelValues(op, "ok").Inc()
		return Result[T]{Success: true, Data: data}
	}
	metrics.Outcomes.WithLabelValues(op, string(kind)).Inc()

	message := err.Error()
	if kind == KindStorageFailure {
		logger.ErrorContext(ctx, "operation failed", "op", op, "error", err)
		message = storageFailureMessage
	}
	return Result[T]{Success: false, Error: message, Kind: kind}
}
