package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"liftlog/workout-app/internal/domain"
	"liftlog/workout-app/internal/repository"
)

// postgresWorkoutExerciseRepository implements repository.WorkoutExerciseRepository
type postgresWorkoutExerciseRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresWorkoutExerciseRepository creates a new WorkoutExercise repository backed by PostgreSQL.
func NewPostgresWorkoutExerciseRepository(pool *pgxpool.Pool) repository.WorkoutExerciseRepository {
	return &postgresWorkoutExerciseRepository{pool: pool}
}

const workoutExerciseColumns = `id, workout_id, exercise_id, "order", created_at`

func scanWorkoutExercise(row scanner) (*domain.WorkoutExercise, error) {
	var (
		we                        domain.WorkoutExercise
		id, workoutID, exerciseID string
	)
	if err := row.Scan(&id, &workoutID, &exerciseID, &we.Order, &we.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	inUTC(&we.CreatedAt)
	var err error
	if we.ID, err = parseID(id); err != nil {
		return nil, err
	}
	if we.WorkoutID, err = parseID(workoutID); err != nil {
		return nil, err
	}
	if we.ExerciseID, err = parseID(exerciseID); err != nil {
		return nil, err
	}
	return &we, nil
}

// Append locks the workout row owned by ownerID, reads the highest order and
// inserts the next one in the same transaction.
func (r *postgresWorkoutExerciseRepository) Append(ctx context.Context, we *domain.WorkoutExercise, ownerID primitive.ObjectID) error {
	if we.WorkoutID == primitive.NilObjectID || we.ExerciseID == primitive.NilObjectID {
		return errors.New("workout exercise requires workoutId and exerciseId")
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var locked string
		err := tx.QueryRow(ctx,
			`SELECT id FROM workouts WHERE id = $1 AND user_id = $2 FOR UPDATE`,
			we.WorkoutID.Hex(), ownerID.Hex(),
		).Scan(&locked)
		if err != nil {
			return notFound(err)
		}

		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM exercises WHERE id = $1)`, we.ExerciseID.Hex()).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return repository.ErrNotFound
		}

		orders, err := highestPosition(ctx, tx,
			`SELECT "order" FROM workout_exercises WHERE workout_id = $1 ORDER BY "order" DESC LIMIT 1`,
			we.WorkoutID.Hex())
		if err != nil {
			return err
		}

		we.ID = primitive.NewObjectID()
		we.Order = domain.NextPosition(orders, domain.FirstExerciseOrder)
		we.CreatedAt = time.Now().UTC()
		_, err = tx.Exec(ctx,
			`INSERT INTO workout_exercises (`+workoutExerciseColumns+`) VALUES ($1, $2, $3, $4, $5)`,
			we.ID.Hex(), we.WorkoutID.Hex(), we.ExerciseID.Hex(), we.Order, we.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert workout exercise: %w", err)
		}
		return nil
	})
}

// highestPosition returns the single highest sibling position, or none.
func highestPosition(ctx context.Context, tx pgx.Tx, sql string, parentID string) ([]int, error) {
	var highest int
	err := tx.QueryRow(ctx, sql, parentID).Scan(&highest)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []int{highest}, nil
}

// GetByID retrieves a workout exercise by its ID.
func (r *postgresWorkoutExerciseRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.WorkoutExercise, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+workoutExerciseColumns+` FROM workout_exercises WHERE id = $1`, id.Hex())
	return scanWorkoutExercise(row)
}

// ResolveOwner joins the owning workout.
func (r *postgresWorkoutExerciseRepository) ResolveOwner(ctx context.Context, id primitive.ObjectID) (*domain.Ownership, error) {
	var weID, workoutID, userID string
	err := r.pool.QueryRow(ctx,
		`SELECT we.id, w.id, w.user_id
		 FROM workout_exercises we
		 JOIN workouts w ON w.id = we.workout_id
		 WHERE we.id = $1`,
		id.Hex(),
	).Scan(&weID, &workoutID, &userID)
	if err != nil {
		return nil, notFound(err)
	}
	return ownership("", weID, workoutID, userID)
}

func ownership(setID, weID, workoutID, userID string) (*domain.Ownership, error) {
	var (
		o   domain.Ownership
		err error
	)
	if setID != "" {
		if o.SetID, err = parseID(setID); err != nil {
			return nil, err
		}
	}
	if o.WorkoutExerciseID, err = parseID(weID); err != nil {
		return nil, err
	}
	if o.WorkoutID, err = parseID(workoutID); err != nil {
		return nil, err
	}
	if o.UserID, err = parseID(userID); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListByWorkouts retrieves the slots of several workouts, ascending by order.
func (r *postgresWorkoutExerciseRepository) ListByWorkouts(ctx context.Context, workoutIDs []primitive.ObjectID) ([]domain.WorkoutExercise, error) {
	list := []domain.WorkoutExercise{}
	if len(workoutIDs) == 0 {
		return list, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+workoutExerciseColumns+` FROM workout_exercises
		 WHERE workout_id = ANY($1) ORDER BY workout_id, "order"`,
		hexIDs(workoutIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		we, err := scanWorkoutExercise(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *we)
	}
	return list, rows.Err()
}

// DeleteIfEmpty locks the slot so no set can be appended between the check
// and the delete.
func (r *postgresWorkoutExerciseRepository) DeleteIfEmpty(ctx context.Context, id primitive.ObjectID) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var locked string
		if err := tx.QueryRow(ctx, `SELECT id FROM workout_exercises WHERE id = $1 FOR UPDATE`, id.Hex()).Scan(&locked); err != nil {
			return notFound(err)
		}

		var dependents bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sets WHERE workout_exercise_id = $1)`, id.Hex()).Scan(&dependents); err != nil {
			return err
		}
		if dependents {
			return repository.ErrHasDependents
		}

		_, err := tx.Exec(ctx, `DELETE FROM workout_exercises WHERE id = $1`, id.Hex())
		return err
	})
}
