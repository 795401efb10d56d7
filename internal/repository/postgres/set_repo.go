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

// postgresSetRepository implements repository.SetRepository
type postgresSetRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSetRepository creates a new Set repository backed by PostgreSQL.
func NewPostgresSetRepository(pool *pgxpool.Pool) repository.SetRepository {
	return &postgresSetRepository{pool: pool}
}

// Weight travels as text in both directions so NUMERIC keeps its exact value.
const setColumns = `id, workout_exercise_id, workout_id, set_number, weight::text, reps, rest_time, created_at`

func scanSet(row scanner) (*domain.Set, error) {
	var (
		set                 domain.Set
		id, weID, workoutID string
		weight              *string
	)
	err := row.Scan(&id, &weID, &workoutID, &set.SetNumber, &weight, &set.Reps, &set.RestTime, &set.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	inUTC(&set.CreatedAt)
	if set.ID, err = parseID(id); err != nil {
		return nil, err
	}
	if set.WorkoutExerciseID, err = parseID(weID); err != nil {
		return nil, err
	}
	if set.WorkoutID, err = parseID(workoutID); err != nil {
		return nil, err
	}
	if weight != nil {
		d, err := primitive.ParseDecimal128(*weight)
		if err != nil {
			return nil, fmt.Errorf("stored weight %q: %w", *weight, err)
		}
		set.Weight = &d
	}
	return &set, nil
}

// Append locks the parent workout exercise, reads the highest set number and
// inserts the next one in the same transaction.
func (r *postgresSetRepository) Append(ctx context.Context, set *domain.Set) error {
	if set.WorkoutExerciseID == primitive.NilObjectID {
		return errors.New("set requires workoutExerciseId")
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var workoutID string
		err := tx.QueryRow(ctx,
			`SELECT workout_id FROM workout_exercises WHERE id = $1 FOR UPDATE`,
			set.WorkoutExerciseID.Hex(),
		).Scan(&workoutID)
		if err != nil {
			return notFound(err)
		}

		numbers, err := highestPosition(ctx, tx,
			`SELECT set_number FROM sets WHERE workout_exercise_id = $1 ORDER BY set_number DESC LIMIT 1`,
			set.WorkoutExerciseID.Hex())
		if err != nil {
			return err
		}

		if set.WorkoutID, err = parseID(workoutID); err != nil {
			return err
		}
		var weight *string
		if set.Weight != nil {
			w := set.Weight.String()
			weight = &w
		}
		set.ID = primitive.NewObjectID()
		set.SetNumber = domain.NextPosition(numbers, domain.FirstSetNumber)
		set.CreatedAt = time.Now().UTC()
		_, err = tx.Exec(ctx,
			`INSERT INTO sets (id, workout_exercise_id, workout_id, set_number, weight, reps, rest_time, created_at)
			 VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)`,
			set.ID.Hex(), set.WorkoutExerciseID.Hex(), workoutID, set.SetNumber, weight, set.Reps, set.RestTime, set.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert set: %w", err)
		}
		return nil
	})
}

// ResolveOwner walks set -> workout exercise -> workout in one joined query.
func (r *postgresSetRepository) ResolveOwner(ctx context.Context, id primitive.ObjectID) (*domain.Ownership, error) {
	var setID, weID, workoutID, userID string
	err := r.pool.QueryRow(ctx,
		`SELECT s.id, we.id, w.id, w.user_id
		 FROM sets s
		 JOIN workout_exercises we ON we.id = s.workout_exercise_id
		 JOIN workouts w ON w.id = we.workout_id
		 WHERE s.id = $1`,
		id.Hex(),
	).Scan(&setID, &weID, &workoutID, &userID)
	if err != nil {
		return nil, notFound(err)
	}
	return ownership(setID, weID, workoutID, userID)
}

// ListByWorkoutExercises retrieves the sets of several slots, ascending by set number.
func (r *postgresSetRepository) ListByWorkoutExercises(ctx context.Context, workoutExerciseIDs []primitive.ObjectID) ([]domain.Set, error) {
	sets := []domain.Set{}
	if len(workoutExerciseIDs) == 0 {
		return sets, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+setColumns+` FROM sets
		 WHERE workout_exercise_id = ANY($1) ORDER BY workout_exercise_id, set_number`,
		hexIDs(workoutExerciseIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		set, err := scanSet(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, *set)
	}
	return sets, rows.Err()
}

// Delete removes one set. Remaining set numbers are left untouched.
func (r *postgresSetRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sets WHERE id = $1`, id.Hex())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
