package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liftlog/workout-app/internal/domain"
	"liftlog/workout-app/internal/service"
)

func names(list []domain.Exercise) []string {
	out := make([]string, len(list))
	for i, ex := range list {
		out[i] = ex.Name
	}
	return out
}

func TestGetOrCreateExerciseIgnoresCase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.exercises.GetOrCreateExercise(ctx, f.alice, "  Bench Press ")
	require.NoError(t, err)
	assert.Equal(t, "Bench Press", first.Name)

	again, err := f.exercises.GetOrCreateExercise(ctx, f.bob, "BENCH PRESS")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "Bench Press", again.Name, "the first spelling wins")

	_, err = f.exercises.GetOrCreateExercise(ctx, f.alice, "   ")
	assert.EqualError(t, err, "exerciseName is required")
}

func TestGetOrCreateExerciseConcurrently(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 16
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "hip thrust"
			if i%2 == 0 {
				name = "Hip Thrust"
			}
			ex, err := f.exercises.GetOrCreateExercise(ctx, f.alice, name)
			if assert.NoError(t, err) {
				ids[i] = ex.ID.Hex()
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}
	list, err := f.exercises.ListExercises(ctx, f.alice)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestListAndSearchExercises(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, name := range []string{"squat", "Front Squat", "Bench Press"} {
		_, err := f.exercises.GetOrCreateExercise(ctx, f.alice, name)
		require.NoError(t, err)
	}

	list, err := f.exercises.ListExercises(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bench Press", "Front Squat", "squat"}, names(list))

	found, err := f.exercises.SearchExercises(ctx, f.alice, "SQUAT", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Front Squat", "squat"}, names(found))

	found, err = f.exercises.SearchExercises(ctx, f.alice, "deadlift", 10)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestSearchExercisesLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 60; i++ {
		_, err := f.exercises.GetOrCreateExercise(ctx, f.alice, fmt.Sprintf("Drill %02d", i))
		require.NoError(t, err)
	}

	tests := []struct {
		limit int
		want  int
	}{
		{0, service.DefaultSearchLimit},
		{-3, service.DefaultSearchLimit},
		{25, 25},
		{500, service.MaxSearchLimit},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.limit), func(t *testing.T) {
			found, err := f.exercises.SearchExercises(ctx, f.alice, "drill", tt.limit)
			require.NoError(t, err)
			assert.Len(t, found, tt.want)
		})
	}
}
