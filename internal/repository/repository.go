package repository

import (
	"context"
	"time"

	"liftlog/workout-app/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for the repository layer. Every backend returns these so
// services never see driver-specific errors for expected conditions.
var (
	ErrNotFound      = RepositoryError("not found")
	ErrDuplicate     = RepositoryError("duplicate key")
	ErrHasDependents = RepositoryError("record has dependent records")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) // ErrDuplicate when the email is taken
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

// ExerciseRepository is the shared exercise catalog.
type ExerciseRepository interface {
	// GetOrCreate returns the entry whose name matches ignoring case, inserting
	// it atomically when absent. Concurrent callers always get the same row.
	GetOrCreate(ctx context.Context, name string) (*domain.Exercise, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Exercise, error)
	List(ctx context.Context) ([]domain.Exercise, error)                           // Sorted by name
	Search(ctx context.Context, term string, limit int) ([]domain.Exercise, error) // Case-insensitive substring
}

// WorkoutPatch holds the workout fields an update writes. Nil means unchanged.
type WorkoutPatch struct {
	Name        *string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// WorkoutRepository defines the interface for interacting with workout data.
// List methods filter by owner inside the query.
type WorkoutRepository interface {
	Create(ctx context.Context, workout *domain.Workout) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Workout, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Workout, error)                            // Newest first
	ListByUserBetween(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.Workout, error) // Inclusive, newest first
	// Update applies patch to the workout owned by userID and returns the
	// stored result. Fields left nil in patch are not written.
	Update(ctx context.Context, id, userID primitive.ObjectID, patch WorkoutPatch) (*domain.Workout, error)
	// Delete removes the workout owned by userID with all its exercises and sets.
	Delete(ctx context.Context, id, userID primitive.ObjectID) error
}

// WorkoutExerciseRepository manages the exercise slots of workouts.
type WorkoutExerciseRepository interface {
	// Append inserts we at the next order of its workout. The workout must be
	// owned by ownerID at insert time, otherwise ErrNotFound. Reading the
	// current maximum and inserting happen as one atomic unit.
	Append(ctx context.Context, we *domain.WorkoutExercise, ownerID primitive.ObjectID) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.WorkoutExercise, error)
	// ResolveOwner walks WorkoutExercise -> Workout in a single query.
	ResolveOwner(ctx context.Context, id primitive.ObjectID) (*domain.Ownership, error)
	ListByWorkouts(ctx context.Context, workoutIDs []primitive.ObjectID) ([]domain.WorkoutExercise, error) // Ascending order within each workout
	// DeleteIfEmpty removes the slot unless a set references it (ErrHasDependents).
	DeleteIfEmpty(ctx context.Context, id primitive.ObjectID) error
}

// SetRepository manages logged sets.
type SetRepository interface {
	// Append inserts set at the next set number of its workout exercise,
	// atomically with respect to other appends and to DeleteIfEmpty.
	Append(ctx context.Context, set *domain.Set) error
	// ResolveOwner walks Set -> WorkoutExercise -> Workout in a single query.
	ResolveOwner(ctx context.Context, id primitive.ObjectID) (*domain.Ownership, error)
	ListByWorkoutExercises(ctx context.Context, workoutExerciseIDs []primitive.ObjectID) ([]domain.Set, error) // Ascending setNumber within each parent
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// Repositories bundles one backend's implementations.
type Repositories struct {
	Users            UserRepository
	Exercises        ExerciseRepository
	Workouts         WorkoutRepository
	WorkoutExercises WorkoutExerciseRepository
	Sets             SetRepository
}
