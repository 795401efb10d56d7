package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"liftlog/workout-app/internal/domain"
	"liftlog/workout-app/internal/repository"
)

// postgresWorkoutRepository implements repository.WorkoutRepository
type postgresWorkoutRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresWorkoutRepository creates a new Workout repository backed by PostgreSQL.
func NewPostgresWorkoutRepository(pool *pgxpool.Pool) repository.WorkoutRepository {
	return &postgresWorkoutRepository{pool: pool}
}

const workoutColumns = `id, user_id, name, started_at, completed_at, created_at, updated_at`

func scanWorkout(row scanner) (*domain.Workout, error) {
	var (
		workout     domain.Workout
		id, ownerID string
	)
	err := row.Scan(&id, &ownerID, &workout.Name, &workout.StartedAt, &workout.CompletedAt,
		&workout.CreatedAt, &workout.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	inUTC(&workout.StartedAt, workout.CompletedAt, &workout.CreatedAt, &workout.UpdatedAt)
	if workout.ID, err = parseID(id); err != nil {
		return nil, err
	}
	if workout.UserID, err = parseID(ownerID); err != nil {
		return nil, err
	}
	return &workout, nil
}

// Create inserts a new workout.
func (r *postgresWorkoutRepository) Create(ctx context.Context, workout *domain.Workout) (primitive.ObjectID, error) {
	if workout.UserID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("workout requires userId")
	}
	workout.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	workout.CreatedAt = now
	workout.UpdatedAt = now

	_, err := r.pool.Exec(ctx,
		`INSERT INTO workouts (`+workoutColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		workout.ID.Hex(), workout.UserID.Hex(), workout.Name, workout.StartedAt, workout.CompletedAt,
		workout.CreatedAt, workout.UpdatedAt,
	)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("insert workout: %w", err)
	}
	return workout.ID, nil
}

// GetByID retrieves a single workout by its ID.
func (r *postgresWorkoutRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Workout, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+workoutColumns+` FROM workouts WHERE id = $1`, id.Hex())
	return scanWorkout(row)
}

// ListByUser retrieves every workout of a user, newest first.
func (r *postgresWorkoutRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Workout, error) {
	return r.query(ctx,
		`SELECT `+workoutColumns+` FROM workouts WHERE user_id = $1 ORDER BY started_at DESC, id DESC`,
		userID.Hex())
}

// ListByUserBetween retrieves the user's workouts started within [from, to].
func (r *postgresWorkoutRepository) ListByUserBetween(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.Workout, error) {
	return r.query(ctx,
		`SELECT `+workoutColumns+` FROM workouts
		 WHERE user_id = $1 AND started_at BETWEEN $2 AND $3
		 ORDER BY started_at DESC, id DESC`,
		userID.Hex(), from, to)
}

func (r *postgresWorkoutRepository) query(ctx context.Context, sql string, args ...any) ([]domain.Workout, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	workouts := []domain.Workout{}
	for rows.Next() {
		workout, err := scanWorkout(rows)
		if err != nil {
			return nil, err
		}
		workouts = append(workouts, *workout)
	}
	return workouts, rows.Err()
}

// Update sets only the columns present in patch, in one statement filtered
// by id and owner.
func (r *postgresWorkoutRepository) Update(ctx context.Context, id, userID primitive.ObjectID, patch repository.WorkoutPatch) (*domain.Workout, error) {
	args := []any{id.Hex(), userID.Hex(), time.Now().UTC()}
	assignments := []string{"updated_at = $3"}
	column := func(name string, value any) {
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", name, len(args)))
	}
	if patch.Name != nil {
		column("name", *patch.Name)
	}
	if patch.StartedAt != nil {
		column("started_at", patch.StartedAt.UTC())
	}
	if patch.CompletedAt != nil {
		column("completed_at", patch.CompletedAt.UTC())
	}

	row := r.pool.QueryRow(ctx,
		`UPDATE workouts SET `+strings.Join(assignments, ", ")+`
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+workoutColumns,
		args...)
	return scanWorkout(row)
}

// Delete removes the workout owned by userID. Exercises and sets go with it
// through the foreign key cascade.
func (r *postgresWorkoutRepository) Delete(ctx context.Context, id, userID primitive.ObjectID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM workouts WHERE id = $1 AND user_id = $2`, id.Hex(), userID.Hex())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
