package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liftlog/workout-app/internal/domain"
	"liftlog/workout-app/internal/logging"
	"liftlog/workout-app/internal/service"
	"liftlog/workout-app/internal/storage"
)

// brokenPresigner stores objects but cannot sign links.
type brokenPresigner struct {
	*storage.MemoryStorage
	deleted []string
}

func (b *brokenPresigner) GeneratePresignedDownloadURL(context.Context, string, time.Duration) (string, error) {
	return "", errors.New("signer offline")
}

func (b *brokenPresigner) DeleteObject(ctx context.Context, key string) error {
	b.deleted = append(b.deleted, key)
	return b.MemoryStorage.DeleteObject(ctx, key)
}

func TestExportWorkout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.workout(t, f.alice, "2024-05-01T18:00:00Z")
	we := f.slot(t, f.alice, w.ID, "Squat")
	f.set(t, f.alice, we.ID, 5)

	files := storage.NewMemoryStorage("exports-bucket")
	exports := service.NewExportService(f.workouts, files, 10*time.Minute, logging.Discard())

	export, err := exports.ExportWorkout(ctx, f.alice, w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.ID, export.WorkoutID)
	assert.True(t, strings.HasPrefix(export.ObjectKey, "exports/"+f.alice.Hex()+"/"+w.ID.Hex()+"/"))
	assert.True(t, strings.HasPrefix(export.DownloadURL, "memory://exports-bucket/exports/"))
	assert.Contains(t, export.DownloadURL, "expires=600")
	assert.Equal(t, export.ExportedAt.Add(10*time.Minute), export.ExpiresAt)

	obj, ok := files.Get(export.ObjectKey)
	require.True(t, ok)
	assert.Equal(t, "application/json", obj.ContentType)
	var tree domain.WorkoutTree
	require.NoError(t, json.Unmarshal(obj.Body, &tree))
	assert.Equal(t, w.ID, tree.ID)
	require.Len(t, tree.Exercises, 1)
	assert.Len(t, tree.Exercises[0].Sets, 1)

	t.Run("foreign workout", func(t *testing.T) {
		_, err := exports.ExportWorkout(ctx, f.bob, w.ID)
		assert.ErrorIs(t, err, service.ErrNotFoundOrUnauthorized)
	})
}

func TestExportWorkoutWithoutStorage(t *testing.T) {
	f := newFixture(t)
	w := f.workout(t, f.alice, "")
	exports := service.NewExportService(f.workouts, nil, 0, logging.Discard())

	_, err := exports.ExportWorkout(context.Background(), f.alice, w.ID)
	assert.ErrorIs(t, err, service.ErrExportUnavailable)
	assert.Equal(t, service.KindUnavailable, service.Classify(err))
}

func TestExportWorkoutRemovesUnsignedObject(t *testing.T) {
	f := newFixture(t)
	w := f.workout(t, f.alice, "")
	files := &brokenPresigner{MemoryStorage: storage.NewMemoryStorage("b")}
	exports := service.NewExportService(f.workouts, files, time.Minute, logging.Discard())

	_, err := exports.ExportWorkout(context.Background(), f.alice, w.ID)
	var storageErr *service.StorageError
	require.ErrorAs(t, err, &storageErr)
	require.Len(t, files.deleted, 1)
	_, ok := files.Get(files.deleted[0])
	assert.False(t, ok)
}
