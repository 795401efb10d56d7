package service_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"liftlog/workout-app/internal/domain"
	"liftlog/workout-app/internal/logging"
	"liftlog/workout-app/internal/repository"
	"liftlog/workout-app/internal/repository/memory"
	"liftlog/workout-app/internal/service"
)

type fixture struct {
	workouts  service.WorkoutService
	exercises service.ExerciseService
	alice     primitive.ObjectID
	bob       primitive.ObjectID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos := memory.NewStore().Repositories()
	return &fixture{
		workouts:  service.NewWorkoutService(repos, logging.Discard()),
		exercises: service.NewExerciseService(repos.Exercises),
		alice:     primitive.NewObjectID(),
		bob:       primitive.NewObjectID(),
	}
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func (f *fixture) workout(t *testing.T, owner primitive.ObjectID, startedAt string) *domain.Workout {
	t.Helper()
	input := service.WorkoutInput{}
	if startedAt != "" {
		input.StartedAt = strPtr(startedAt)
	}
	w, err := f.workouts.CreateWorkout(context.Background(), owner, input)
	require.NoError(t, err)
	return w
}

func (f *fixture) slot(t *testing.T, owner primitive.ObjectID, workoutID primitive.ObjectID, name string) *domain.WorkoutExercise {
	t.Helper()
	we, err := f.workouts.AddExercise(context.Background(), owner, workoutID, service.AddExerciseInput{ExerciseName: strPtr(name)})
	require.NoError(t, err)
	return we
}

func (f *fixture) set(t *testing.T, owner primitive.ObjectID, weID primitive.ObjectID, reps int) *domain.Set {
	t.Helper()
	s, err := f.workouts.AddSet(context.Background(), owner, weID, service.AddSetInput{Reps: intPtr(reps)})
	require.NoError(t, err)
	return s
}

func setNumbers(sets []domain.Set) []int {
	out := make([]int, len(sets))
	for i, s := range sets {
		out[i] = s.SetNumber
	}
	return out
}

func TestCreateWorkout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("defaults startedAt to now", func(t *testing.T) {
		before := time.Now().UTC().Add(-time.Second)
		w := f.workout(t, f.alice, "")
		assert.Equal(t, f.alice, w.UserID)
		assert.False(t, w.ID.IsZero())
		assert.True(t, w.StartedAt.After(before))
		assert.Nil(t, w.CompletedAt)
	})

	t.Run("reads timestamps without zone as UTC", func(t *testing.T) {
		w := f.workout(t, f.alice, "2024-03-10T07:30")
		assert.Equal(t, time.Date(2024, 3, 10, 7, 30, 0, 0, time.UTC), w.StartedAt)
	})

	t.Run("rejects a malformed startedAt", func(t *testing.T) {
		_, err := f.workouts.CreateWorkout(ctx, f.alice, service.WorkoutInput{StartedAt: strPtr("yesterday")})
		var vErr *service.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "startedAt", vErr.Field)
	})

	t.Run("rejects a blank name", func(t *testing.T) {
		_, err := f.workouts.CreateWorkout(ctx, f.alice, service.WorkoutInput{Name: strPtr("   ")})
		var vErr *service.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "name", vErr.Field)
	})

	t.Run("requires a caller", func(t *testing.T) {
		_, err := f.workouts.CreateWorkout(ctx, primitive.NilObjectID, service.WorkoutInput{})
		assert.ErrorIs(t, err, service.ErrUnauthenticated)
	})
}

func TestUpdateAndCompleteWorkout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.workout(t, f.alice, "2024-03-10T07:30:00Z")

	updated, err := f.workouts.UpdateWorkout(ctx, f.alice, w.ID, service.WorkoutInput{Name: strPtr("  Push day ")})
	require.NoError(t, err)
	require.NotNil(t, updated.Name)
	assert.Equal(t, "Push day", *updated.Name)
	assert.Equal(t, w.StartedAt, updated.StartedAt, "nil fields are left unchanged")

	completed, err := f.workouts.CompleteWorkout(ctx, f.alice, w.ID)
	require.NoError(t, err)
	require.NotNil(t, completed.CompletedAt)

	_, err = f.workouts.CompleteWorkout(ctx, f.bob, w.ID)
	assert.ErrorIs(t, err, service.ErrNotFoundOrUnauthorized)
}

// interleavingWorkouts runs between after the first read of the workout,
// putting another write between the ownership check and the update.
type interleavingWorkouts struct {
	repository.WorkoutRepository
	once    sync.Once
	between func()
}

func (r *interleavingWorkouts) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Workout, error) {
	w, err := r.WorkoutRepository.GetByID(ctx, id)
	r.once.Do(func() {
		if r.between != nil {
			r.between()
		}
	})
	return w, err
}

func TestInterleavedWorkoutWritesKeepEachOthersFields(t *testing.T) {
	ctx := context.Background()
	alice := primitive.NewObjectID()
	repos := memory.NewStore().Repositories()
	plain := service.NewWorkoutService(repos, logging.Discard())

	w, err := plain.CreateWorkout(ctx, alice, service.WorkoutInput{Name: strPtr("Morning")})
	require.NoError(t, err)

	t.Run("rename racing a complete keeps completedAt", func(t *testing.T) {
		interleaved := &interleavingWorkouts{WorkoutRepository: repos.Workouts}
		interleaved.between = func() {
			_, err := plain.CompleteWorkout(ctx, alice, w.ID)
			require.NoError(t, err)
		}
		wrapped := repos
		wrapped.Workouts = interleaved
		racing := service.NewWorkoutService(wrapped, logging.Discard())

		updated, err := racing.UpdateWorkout(ctx, alice, w.ID, service.WorkoutInput{Name: strPtr("Leg day")})
		require.NoError(t, err)
		require.NotNil(t, updated.Name)
		assert.Equal(t, "Leg day", *updated.Name)
		assert.NotNil(t, updated.CompletedAt)

		stored, err := repos.Workouts.GetByID(ctx, w.ID)
		require.NoError(t, err)
		assert.Equal(t, "Leg day", *stored.Name)
		assert.NotNil(t, stored.CompletedAt)
	})

	t.Run("complete racing a rename keeps the new name", func(t *testing.T) {
		interleaved := &interleavingWorkouts{WorkoutRepository: repos.Workouts}
		interleaved.between = func() {
			_, err := plain.UpdateWorkout(ctx, alice, w.ID, service.WorkoutInput{Name: strPtr("Pull day")})
			require.NoError(t, err)
		}
		wrapped := repos
		wrapped.Workouts = interleaved
		racing := service.NewWorkoutService(wrapped, logging.Discard())

		completed, err := racing.CompleteWorkout(ctx, alice, w.ID)
		require.NoError(t, err)
		require.NotNil(t, completed.Name)
		assert.Equal(t, "Pull day", *completed.Name)
		assert.NotNil(t, completed.CompletedAt)
	})

	t.Run("workout deleted before the write reads as missing", func(t *testing.T) {
		doomed, err := plain.CreateWorkout(ctx, alice, service.WorkoutInput{})
		require.NoError(t, err)
		interleaved := &interleavingWorkouts{WorkoutRepository: repos.Workouts}
		interleaved.between = func() {
			require.NoError(t, plain.DeleteWorkout(ctx, alice, doomed.ID))
		}
		wrapped := repos
		wrapped.Workouts = interleaved
		racing := service.NewWorkoutService(wrapped, logging.Discard())

		_, err = racing.CompleteWorkout(ctx, alice, doomed.ID)
		assert.ErrorIs(t, err, service.ErrNotFoundOrUnauthorized)
	})
}

func TestExerciseOrderStartsAtZero(t *testing.T) {
	f := newFixture(t)
	w := f.workout(t, f.alice, "")

	first := f.slot(t, f.alice, w.ID, "Squat")
	second := f.slot(t, f.alice, w.ID, "Bench Press")
	assert.Equal(t, 0, first.Order)
	assert.Equal(t, 1, second.Order)

	// Another workout has its own sequence.
	other := f.workout(t, f.alice, "")
	assert.Equal(t, 0, f.slot(t, f.alice, other.ID, "Squat").Order)
}

func TestSetNumbersStartAtOneAndAreNeverReused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.workout(t, f.alice, "")
	we := f.slot(t, f.alice, w.ID, "Deadlift")

	s1 := f.set(t, f.alice, we.ID, 5)
	s2 := f.set(t, f.alice, we.ID, 5)
	s3 := f.set(t, f.alice, we.ID, 5)
	assert.Equal(t, []int{1, 2, 3}, []int{s1.SetNumber, s2.SetNumber, s3.SetNumber})

	require.NoError(t, f.workouts.DeleteSet(ctx, f.alice, s2.ID))

	tree, err := f.workouts.GetWorkoutTree(ctx, f.alice, w.ID)
	require.NoError(t, err)
	require.Len(t, tree.Exercises, 1)
	assert.Equal(t, []int{1, 3}, setNumbers(tree.Exercises[0].Sets))

	assert.Equal(t, 4, f.set(t, f.alice, we.ID, 5).SetNumber)
}

func TestConcurrentAppendsGetDistinctPositions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.workout(t, f.alice, "")
	we := f.slot(t, f.alice, w.ID, "Row")

	const n = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []int
		orders  []int
	)
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s, err := f.workouts.AddSet(ctx, f.alice, we.ID, service.AddSetInput{Reps: intPtr(8)})
			if assert.NoError(t, err) {
				mu.Lock()
				numbers = append(numbers, s.SetNumber)
				mu.Unlock()
			}
		}()
		go func() {
			defer wg.Done()
			slot, err := f.workouts.AddExercise(ctx, f.alice, w.ID, service.AddExerciseInput{ExerciseName: strPtr("Curl")})
			if assert.NoError(t, err) {
				mu.Lock()
				orders = append(orders, slot.Order)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	sort.Ints(numbers)
	sort.Ints(orders)
	wantNumbers := make([]int, n)
	wantOrders := make([]int, n)
	for i := range wantNumbers {
		wantNumbers[i] = i + 1
		wantOrders[i] = i + 1 // "Row" holds order 0
	}
	assert.Equal(t, wantNumbers, numbers)
	assert.Equal(t, wantOrders, orders)
}

func TestAddExercise(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.workout(t, f.alice, "")

	t.Run("by name reuses the catalog entry", func(t *testing.T) {
		first := f.slot(t, f.alice, w.ID, "Overhead Press")
		second := f.slot(t, f.alice, w.ID, "overhead press")
		assert.Equal(t, first.ExerciseID, second.ExerciseID)
	})

	t.Run("by id", func(t *testing.T) {
		ex, err := f.exercises.GetOrCreateExercise(ctx, f.alice, "Pull Up")
		require.NoError(t, err)
		we, err := f.workouts.AddExercise(ctx, f.alice, w.ID, service.AddExerciseInput{ExerciseID: &ex.ID})
		require.NoError(t, err)
		assert.Equal(t, ex.ID, we.ExerciseID)
	})

	t.Run("unknown exercise id", func(t *testing.T) {
		missing := primitive.NewObjectID()
		_, err := f.workouts.AddExercise(ctx, f.alice, w.ID, service.AddExerciseInput{ExerciseID: &missing})
		assert.ErrorIs(t, err, service.ErrNotFoundOrUnauthorized)
	})

	t.Run("needs exactly one reference", func(t *testing.T) {
		id := primitive.NewObjectID()
		_, err := f.workouts.AddExercise(ctx, f.alice, w.ID, service.AddExerciseInput{})
		assert.Equal(t, service.KindInvalidInput, service.Classify(err))

		_, err = f.workouts.AddExercise(ctx, f.alice, w.ID, service.AddExerciseInput{ExerciseID: &id, ExerciseName: strPtr("Dip")})
		assert.Equal(t, service.KindInvalidInput, service.Classify(err))
	})

	t.Run("name too long", func(t *testing.T) {
		long := make([]byte, 101)
		for i := range long {
			long[i] = 'a'
		}
		_, err := f.workouts.AddExercise(ctx, f.alice, w.ID, service.AddExerciseInput{ExerciseName: strPtr(string(long))})
		var vErr *service.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "exerciseName", vErr.Field)
	})
}

func TestAddSetValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.workout(t, f.alice, "")
	we := f.slot(t, f.alice, w.ID, "Lunge")

	tests := []struct {
		name      string
		input     service.AddSetInput
		wantField string // empty means valid
	}{
		{"minimum reps", service.AddSetInput{Reps: intPtr(1)}, ""},
		{"maximum reps", service.AddSetInput{Reps: intPtr(1000)}, ""},
		{"zero reps", service.AddSetInput{Reps: intPtr(0)}, "reps"},
		{"too many reps", service.AddSetInput{Reps: intPtr(1001)}, "reps"},
		{"missing reps", service.AddSetInput{}, "reps"},
		{"zero rest", service.AddSetInput{Reps: intPtr(5), RestTime: intPtr(0)}, ""},
		{"maximum rest", service.AddSetInput{Reps: intPtr(5), RestTime: intPtr(3600)}, ""},
		{"negative rest", service.AddSetInput{Reps: intPtr(5), RestTime: intPtr(-1)}, "restTime"},
		{"rest over an hour", service.AddSetInput{Reps: intPtr(5), RestTime: intPtr(3601)}, "restTime"},
		{"decimal weight", service.AddSetInput{Reps: intPtr(5), Weight: strPtr("62.5")}, ""},
		{"three decimals", service.AddSetInput{Reps: intPtr(5), Weight: strPtr("62.125")}, "weight"},
		{"negative weight", service.AddSetInput{Reps: intPtr(5), Weight: strPtr("-5")}, "weight"},
		{"weight is checked first", service.AddSetInput{Reps: intPtr(0), Weight: strPtr("abc")}, "weight"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := f.workouts.AddSet(ctx, f.alice, we.ID, tt.input)
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, *tt.input.Reps, set.Reps)
				return
			}
			var vErr *service.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)
		})
	}

	t.Run("missing reps message", func(t *testing.T) {
		_, err := f.workouts.AddSet(ctx, f.alice, we.ID, service.AddSetInput{})
		assert.EqualError(t, err, "reps is required")
	})

	t.Run("stores the weight exactly", func(t *testing.T) {
		set, err := f.workouts.AddSet(ctx, f.alice, we.ID, service.AddSetInput{Reps: intPtr(3), Weight: strPtr("102.25")})
		require.NoError(t, err)
		require.NotNil(t, set.Weight)
		assert.Equal(t, "102.25", set.Weight.String())
	})
}

func TestForeignRecordsLookMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.workout(t, f.alice, "")
	we := f.slot(t, f.alice, w.ID, "Squat")
	s := f.set(t, f.alice, we.ID, 5)
	missing := primitive.NewObjectID()

	for _, id := range []primitive.ObjectID{w.ID, missing} {
		_, err := f.workouts.GetWorkoutTree(ctx, f.bob, id)
		assert.ErrorIs(t, err, service.ErrNotFoundOrUnauthorized)
		_, err = f.workouts.UpdateWorkout(ctx, f.bob, id, service.WorkoutInput{Name: strPtr("mine")})
		assert.ErrorIs(t, err, service.ErrNotFoundOrUnauthorized)
		_, err = f.workouts.AddExercise(ctx, f.bob, id, service.AddExerciseInput{ExerciseName: strPtr("Squat")})
		assert.ErrorIs(t, err, service.ErrNotFoundOrUnauthorized)
		assert.ErrorIs(t, f.workouts.DeleteWorkout(ctx, f.bob, id), service.ErrNotFoundOrUnauthorized)
	}
	for _, id := range []primitive.ObjectID{we.ID, missing} {
		_, err := f.workouts.AddSet(ctx, f.bob, id, service.AddSetInput{Reps: intPtr(1)})
		assert.ErrorIs(t, err, service.ErrNotFoundOrUnauthorized)
		assert.ErrorIs(t, f.workouts.DeleteWorkoutExercise(ctx, f.bob, id), service.ErrNotFoundOrUnauthorized)
	}
	for _, id := range []primitive.ObjectID{s.ID, missing} {
		assert.ErrorIs(t, f.workouts.DeleteSet(ctx, f.bob, id), service.ErrNotFoundOrUnauthorized)
	}

	t.Run("ownership is checked before input", func(t *testing.T) {
		_, err := f.workouts.AddSet(ctx, f.bob, we.ID, service.AddSetInput{Reps: intPtr(0)})
		assert.ErrorIs(t, err, service.ErrNotFoundOrUnauthorized)
	})

	t.Run("the owner's data is untouched", func(t *testing.T) {
		tree, err := f.workouts.GetWorkoutTree(ctx, f.alice, w.ID)
		require.NoError(t, err)
		assert.Nil(t, tree.Name)
		require.Len(t, tree.Exercises, 1)
		assert.Equal(t, []int{1}, setNumbers(tree.Exercises[0].Sets))
	})

	t.Run("lists only the caller's workouts", func(t *testing.T) {
		list, err := f.workouts.ListWorkouts(ctx, f.bob)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestUnauthenticatedCallsFailFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	nobody := primitive.NilObjectID
	id := primitive.NewObjectID()

	_, err := f.workouts.ListWorkouts(ctx, nobody)
	assert.ErrorIs(t, err, service.ErrUnauthenticated)
	_, err = f.workouts.ListWorkoutsForDay(ctx, nobody, "not-a-date", nil)
	assert.ErrorIs(t, err, service.ErrUnauthenticated)
	_, err = f.workouts.AddSet(ctx, nobody, id, service.AddSetInput{})
	assert.ErrorIs(t, err, service.ErrUnauthenticated)
	assert.ErrorIs(t, f.workouts.DeleteSet(ctx, nobody, id), service.ErrUnauthenticated)
	_, err = f.exercises.ListExercises(ctx, nobody)
	assert.ErrorIs(t, err, service.ErrUnauthenticated)
}

func TestDeleteWorkoutExerciseWithSets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.workout(t, f.alice, "")
	we := f.slot(t, f.alice, w.ID, "Press")
	s := f.set(t, f.alice, we.ID, 10)

	err := f.workouts.DeleteWorkoutExercise(ctx, f.alice, we.ID)
	assert.ErrorIs(t, err, service.ErrHasDependentSets)

	require.NoError(t, f.workouts.DeleteSet(ctx, f.alice, s.ID))
	require.NoError(t, f.workouts.DeleteWorkoutExercise(ctx, f.alice, we.ID))

	tree, err := f.workouts.GetWorkoutTree(ctx, f.alice, w.ID)
	require.NoError(t, err)
	assert.Empty(t, tree.Exercises)
}

func TestDeleteWorkoutCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.workout(t, f.alice, "")
	we := f.slot(t, f.alice, w.ID, "Squat")
	s := f.set(t, f.alice, we.ID, 5)

	require.NoError(t, f.workouts.DeleteWorkout(ctx, f.alice, w.ID))

	_, err := f.workouts.GetWorkoutTree(ctx, f.alice, w.ID)
	assert.ErrorIs(t, err, service.ErrNotFoundOrUnauthorized)
	assert.ErrorIs(t, f.workouts.DeleteSet(ctx, f.alice, s.ID), service.ErrNotFoundOrUnauthorized)
	_, err = f.workouts.AddSet(ctx, f.alice, we.ID, service.AddSetInput{Reps: intPtr(1)})
	assert.ErrorIs(t, err, service.ErrNotFoundOrUnauthorized)

	// The catalog is shared and survives.
	list, err := f.exercises.SearchExercises(ctx, f.alice, "squat", 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestListWorkoutsForDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	startOfDay := f.workout(t, f.alice, "2024-03-10T00:00:00Z")
	endOfDay := f.workout(t, f.alice, "2024-03-10T23:59:59.999Z")
	f.workout(t, f.alice, "2024-03-09T23:59:59Z")
	f.workout(t, f.alice, "2024-03-11T00:00:00Z")
	f.workout(t, f.bob, "2024-03-10T12:00:00Z")

	we := f.slot(t, f.alice, startOfDay.ID, "Squat")
	f.set(t, f.alice, we.ID, 5)
	f.set(t, f.alice, we.ID, 3)

	trees, err := f.workouts.ListWorkoutsForDay(ctx, f.alice, "2024-03-10", nil)
	require.NoError(t, err)
	require.Len(t, trees, 2)
	assert.Equal(t, endOfDay.ID, trees[0].ID, "newest first")
	assert.Equal(t, startOfDay.ID, trees[1].ID)
	assert.Empty(t, trees[0].Exercises)
	require.Len(t, trees[1].Exercises, 1)
	require.NotNil(t, trees[1].Exercises[0].Exercise)
	assert.Equal(t, "Squat", trees[1].Exercises[0].Exercise.Name)
	assert.Equal(t, []int{1, 2}, setNumbers(trees[1].Exercises[0].Sets))

	t.Run("day in another zone", func(t *testing.T) {
		plusTwo := time.FixedZone("UTC+2", 2*60*60)
		trees, err := f.workouts.ListWorkoutsForDay(ctx, f.alice, "2024-03-11", plusTwo)
		require.NoError(t, err)
		// 2024-03-10T23:59:59.999Z is already the 11th at UTC+2.
		require.Len(t, trees, 2)
		assert.Equal(t, endOfDay.ID, trees[1].ID)
	})

	t.Run("bad date", func(t *testing.T) {
		_, err := f.workouts.ListWorkoutsForDay(ctx, f.alice, "10/03/2024", nil)
		var vErr *service.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "date", vErr.Field)
	})
}

func TestDayBounds(t *testing.T) {
	from, to, err := service.DayBounds("2024-02-29", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 2, 29, 23, 59, 59, 999999999, time.UTC), to)

	_, _, err = service.DayBounds("2023-02-29", time.UTC)
	assert.Error(t, err)
}
