package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"liftlog/workout-app/internal/logging"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindNone},
		{ErrUnauthenticated, KindUnauthenticated},
		{ErrNotFoundOrUnauthorized, KindNotFoundOrUnauthorized},
		{fmt.Errorf("wrapped: %w", ErrNotFoundOrUnauthorized), KindNotFoundOrUnauthorized},
		{invalid("reps", "bad"), KindInvalidInput},
		{ErrHasDependentSets, KindHasDependentSets},
		{ErrUserAlreadyExists, KindConflict},
		{ErrAuthenticationFailed, KindAuthenticationFailed},
		{ErrExportUnavailable, KindUnavailable},
		{storageFailure("insert", errors.New("connection reset")), KindStorageFailure},
		{errors.New("anything else"), KindStorageFailure},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), "%v", tt.err)
	}
}

func TestCompleteHidesStorageDetail(t *testing.T) {
	ctx := context.Background()

	ok := Complete(ctx, logging.Discard(), "test_op", 42, nil)
	assert.True(t, ok.Success)
	assert.Equal(t, 42, ok.Data)
	assert.Empty(t, ok.Error)

	failed := Complete(ctx, logging.Discard(), "test_op", 0, storageFailure("insert set", errors.New("E11000 duplicate key")))
	assert.False(t, failed.Success)
	assert.Equal(t, KindStorageFailure, failed.Kind)
	assert.Equal(t, storageFailureMessage, failed.Error)
	assert.NotContains(t, failed.Error, "E11000")

	denied := Complete(ctx, logging.Discard(), "test_op", 0, ErrNotFoundOrUnauthorized)
	assert.Equal(t, "not found", denied.Error)
	assert.Equal(t, KindNotFoundOrUnauthorized, denied.Kind)
}
