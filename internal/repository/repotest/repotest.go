// Package repotest holds the behavior every repository backend must share.
// Backend packages call Run from their tests against a live store. Records
// are created under fresh ids and names, so a shared database can be reused
// between runs.
package repotest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"liftlog/workout-app/internal/domain"
	"liftlog/workout-app/internal/repository"
)

// Concurrent appends issued per position test.
const writers = 12

// Run exercises repos through every repository contract.
func Run(t *testing.T, repos repository.Repositories) {
	t.Run("users", func(t *testing.T) { testUsers(t, repos) })
	t.Run("exercise catalog", func(t *testing.T) { testCatalog(t, repos) })
	t.Run("workout patch", func(t *testing.T) { testWorkoutPatch(t, repos) })
	t.Run("workout day range", func(t *testing.T) { testWorkoutRange(t, repos) })
	t.Run("exercise order", func(t *testing.T) { testExerciseOrder(t, repos) })
	t.Run("set numbers", func(t *testing.T) { testSetNumbers(t, repos) })
	t.Run("ownership chain", func(t *testing.T) { testOwnership(t, repos) })
	t.Run("delete if empty", func(t *testing.T) { testDeleteIfEmpty(t, repos) })
	t.Run("cascade", func(t *testing.T) { testCascade(t, repos) })
}

func unique(prefix string) string {
	return prefix + " " + primitive.NewObjectID().Hex()
}

func newWorkout(t *testing.T, repos repository.Repositories, owner primitive.ObjectID, startedAt time.Time) *domain.Workout {
	t.Helper()
	w := &domain.Workout{UserID: owner, StartedAt: startedAt}
	_, err := repos.Workouts.Create(context.Background(), w)
	require.NoError(t, err)
	return w
}

func newSlot(t *testing.T, repos repository.Repositories, owner primitive.ObjectID, workoutID primitive.ObjectID) *domain.WorkoutExercise {
	t.Helper()
	ctx := context.Background()
	ex, err := repos.Exercises.GetOrCreate(ctx, unique("Squat"))
	require.NoError(t, err)
	we := &domain.WorkoutExercise{WorkoutID: workoutID, ExerciseID: ex.ID}
	require.NoError(t, repos.WorkoutExercises.Append(ctx, we, owner))
	return we
}

func newSet(t *testing.T, repos repository.Repositories, weID primitive.ObjectID) *domain.Set {
	t.Helper()
	set := &domain.Set{WorkoutExerciseID: weID, Reps: 5}
	require.NoError(t, repos.Sets.Append(context.Background(), set))
	return set
}

func testUsers(t *testing.T, repos repository.Repositories) {
	ctx := context.Background()
	email := strings.ToLower(primitive.NewObjectID().Hex()) + "@example.com"

	user := &domain.User{Name: "Ada", Email: email, PasswordHash: "x"}
	id, err := repos.Users.Create(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)

	_, err = repos.Users.Create(ctx, &domain.User{Name: "Ada", Email: strings.ToUpper(email), PasswordHash: "x"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	found, err := repos.Users.GetByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, id, found.ID)
	assert.Equal(t, time.UTC, found.CreatedAt.Location())

	_, err = repos.Users.GetByID(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testCatalog(t *testing.T, repos repository.Repositories) {
	ctx := context.Background()
	name := unique("Bench Press")

	t.Run("get or create ignores case", func(t *testing.T) {
		first, err := repos.Exercises.GetOrCreate(ctx, name)
		require.NoError(t, err)
		again, err := repos.Exercises.GetOrCreate(ctx, strings.ToUpper(name))
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
		assert.Equal(t, name, again.Name, "the first writer's casing is kept")
	})

	t.Run("concurrent get or create yields one entry", func(t *testing.T) {
		contested := unique("Deadlift")
		ids := make([]primitive.ObjectID, writers)
		errs := make([]error, writers)
		var wg sync.WaitGroup
		for i := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				variant := contested
				if i%2 == 1 {
					variant = strings.ToLower(contested)
				}
				ex, err := repos.Exercises.GetOrCreate(ctx, variant)
				errs[i] = err
				if err == nil {
					ids[i] = ex.ID
				}
			}()
		}
		wg.Wait()
		for i := range writers {
			require.NoError(t, errs[i])
			assert.Equal(t, ids[0], ids[i])
		}

		found, err := repos.Exercises.Search(ctx, contested, 0)
		require.NoError(t, err)
		assert.Len(t, found, 1)
	})

	t.Run("search matches a substring and honors the limit", func(t *testing.T) {
		tag := primitive.NewObjectID().Hex()
		for _, n := range []string{"Front Squat ", "back squat ", "Squat Jump "} {
			_, err := repos.Exercises.GetOrCreate(ctx, n+tag)
			require.NoError(t, err)
		}
		found, err := repos.Exercises.Search(ctx, strings.ToUpper(tag), 0)
		require.NoError(t, err)
		require.Len(t, found, 3)
		assert.Equal(t, "back squat "+tag, found[0].Name, "sorted by name ignoring case")

		limited, err := repos.Exercises.Search(ctx, tag, 2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)

		byID, err := repos.Exercises.GetByIDs(ctx, []primitive.ObjectID{found[0].ID, found[1].ID, primitive.NewObjectID()})
		require.NoError(t, err)
		assert.Len(t, byID, 2)
	})
}

func testWorkoutPatch(t *testing.T, repos repository.Repositories) {
	ctx := context.Background()
	owner := primitive.NewObjectID()
	startedAt := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)
	w := newWorkout(t, repos, owner, startedAt)

	name := "Leg day"
	renamed, err := repos.Workouts.Update(ctx, w.ID, owner, repository.WorkoutPatch{Name: &name})
	require.NoError(t, err)
	require.NotNil(t, renamed.Name)
	assert.Equal(t, name, *renamed.Name)
	assert.Nil(t, renamed.CompletedAt)

	completedAt := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)
	completed, err := repos.Workouts.Update(ctx, w.ID, owner, repository.WorkoutPatch{CompletedAt: &completedAt})
	require.NoError(t, err)
	require.NotNil(t, completed.Name, "fields outside the patch are kept")
	assert.Equal(t, name, *completed.Name)
	require.NotNil(t, completed.CompletedAt)
	assert.True(t, completedAt.Equal(*completed.CompletedAt))
	assert.True(t, startedAt.Equal(completed.StartedAt))
	assert.Equal(t, time.UTC, completed.StartedAt.Location())

	_, err = repos.Workouts.Update(ctx, w.ID, primitive.NewObjectID(), repository.WorkoutPatch{Name: &name})
	assert.ErrorIs(t, err, repository.ErrNotFound, "foreign owner")
	_, err = repos.Workouts.Update(ctx, primitive.NewObjectID(), owner, repository.WorkoutPatch{Name: &name})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testWorkoutRange(t *testing.T, repos repository.Repositories) {
	ctx := context.Background()
	owner := primitive.NewObjectID()
	from := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(24*time.Hour - time.Millisecond)

	atStart := newWorkout(t, repos, owner, from)
	atEnd := newWorkout(t, repos, owner, to)
	newWorkout(t, repos, owner, from.Add(-time.Millisecond))
	newWorkout(t, repos, owner, to.Add(time.Millisecond))
	newWorkout(t, repos, primitive.NewObjectID(), from.Add(time.Hour))

	got, err := repos.Workouts.ListByUserBetween(ctx, owner, from, to)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, atEnd.ID, got[0].ID, "newest first")
	assert.Equal(t, atStart.ID, got[1].ID)

	all, err := repos.Workouts.ListByUser(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func testExerciseOrder(t *testing.T, repos repository.Repositories) {
	ctx := context.Background()
	owner := primitive.NewObjectID()
	w := newWorkout(t, repos, owner, time.Now().UTC())
	ex, err := repos.Exercises.GetOrCreate(ctx, unique("Row"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = repos.WorkoutExercises.Append(ctx, &domain.WorkoutExercise{WorkoutID: w.ID, ExerciseID: ex.ID}, owner)
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	slots, err := repos.WorkoutExercises.ListByWorkouts(ctx, []primitive.ObjectID{w.ID})
	require.NoError(t, err)
	require.Len(t, slots, writers)
	for i, we := range slots {
		assert.Equal(t, domain.FirstExerciseOrder+i, we.Order)
	}

	err = repos.WorkoutExercises.Append(ctx, &domain.WorkoutExercise{WorkoutID: w.ID, ExerciseID: ex.ID}, primitive.NewObjectID())
	assert.ErrorIs(t, err, repository.ErrNotFound, "foreign owner")
	err = repos.WorkoutExercises.Append(ctx, &domain.WorkoutExercise{WorkoutID: w.ID, ExerciseID: primitive.NewObjectID()}, owner)
	assert.ErrorIs(t, err, repository.ErrNotFound, "unknown exercise")
}

func testSetNumbers(t *testing.T, repos repository.Repositories) {
	ctx := context.Background()
	owner := primitive.NewObjectID()
	w := newWorkout(t, repos, owner, time.Now().UTC())
	we := newSlot(t, repos, owner, w.ID)

	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = repos.Sets.Append(ctx, &domain.Set{WorkoutExerciseID: we.ID, Reps: 8})
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	sets, err := repos.Sets.ListByWorkoutExercises(ctx, []primitive.ObjectID{we.ID})
	require.NoError(t, err)
	require.Len(t, sets, writers)
	numbers := make([]int, len(sets))
	for i, s := range sets {
		numbers[i] = s.SetNumber
		assert.Equal(t, w.ID, s.WorkoutID)
	}
	assert.True(t, sort.IntsAreSorted(numbers))
	for i, n := range numbers {
		assert.Equal(t, domain.FirstSetNumber+i, n)
	}

	// Removing a middle set leaves a gap; the next set still follows the highest.
	require.NoError(t, repos.Sets.Delete(ctx, sets[1].ID))
	next := newSet(t, repos, we.ID)
	assert.Equal(t, domain.FirstSetNumber+writers, next.SetNumber)

	assert.ErrorIs(t, repos.Sets.Delete(ctx, sets[1].ID), repository.ErrNotFound)
	err = repos.Sets.Append(ctx, &domain.Set{WorkoutExerciseID: primitive.NewObjectID(), Reps: 1})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testOwnership(t *testing.T, repos repository.Repositories) {
	ctx := context.Background()
	owner := primitive.NewObjectID()
	w := newWorkout(t, repos, owner, time.Now().UTC())
	we := newSlot(t, repos, owner, w.ID)
	set := newSet(t, repos, we.ID)

	slotOwner, err := repos.WorkoutExercises.ResolveOwner(ctx, we.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Ownership{WorkoutExerciseID: we.ID, WorkoutID: w.ID, UserID: owner}, *slotOwner)

	setOwner, err := repos.Sets.ResolveOwner(ctx, set.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Ownership{SetID: set.ID, WorkoutExerciseID: we.ID, WorkoutID: w.ID, UserID: owner}, *setOwner)

	_, err = repos.WorkoutExercises.ResolveOwner(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repos.Sets.ResolveOwner(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testDeleteIfEmpty(t *testing.T, repos repository.Repositories) {
	ctx := context.Background()
	owner := primitive.NewObjectID()
	w := newWorkout(t, repos, owner, time.Now().UTC())
	busy := newSlot(t, repos, owner, w.ID)
	idle := newSlot(t, repos, owner, w.ID)
	newSet(t, repos, busy.ID)

	assert.ErrorIs(t, repos.WorkoutExercises.DeleteIfEmpty(ctx, busy.ID), repository.ErrHasDependents)
	_, err := repos.WorkoutExercises.GetByID(ctx, busy.ID)
	require.NoError(t, err, "a slot with sets stays")

	require.NoError(t, repos.WorkoutExercises.DeleteIfEmpty(ctx, idle.ID))
	_, err = repos.WorkoutExercises.GetByID(ctx, idle.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, repos.WorkoutExercises.DeleteIfEmpty(ctx, idle.ID), repository.ErrNotFound)

	// The next order follows the highest remaining one.
	after := newSlot(t, repos, owner, w.ID)
	assert.Equal(t, busy.Order+1, after.Order)
}

func testCascade(t *testing.T, repos repository.Repositories) {
	ctx := context.Background()
	owner := primitive.NewObjectID()
	w := newWorkout(t, repos, owner, time.Now().UTC())
	we := newSlot(t, repos, owner, w.ID)
	set := newSet(t, repos, we.ID)

	assert.ErrorIs(t, repos.Workouts.Delete(ctx, w.ID, primitive.NewObjectID()), repository.ErrNotFound, "foreign owner")
	require.NoError(t, repos.Workouts.Delete(ctx, w.ID, owner))

	_, err := repos.Workouts.GetByID(ctx, w.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	slots, err := repos.WorkoutExercises.ListByWorkouts(ctx, []primitive.ObjectID{w.ID})
	require.NoError(t, err)
	assert.Empty(t, slots)
	sets, err := repos.Sets.ListByWorkoutExercises(ctx, []primitive.ObjectID{we.ID})
	require.NoError(t, err)
	assert.Empty(t, sets)
	_, err = repos.Sets.ResolveOwner(ctx, set.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
