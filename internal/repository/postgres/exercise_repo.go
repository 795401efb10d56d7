package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"liftlog/workout-app/internal/domain"
	"liftlog/workout-app/internal/repository"
)

// postgresExerciseRepository implements repository.ExerciseRepository
type postgresExerciseRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresExerciseRepository creates a new Exercise repository backed by PostgreSQL.
func NewPostgresExerciseRepository(pool *pgxpool.Pool) repository.ExerciseRepository {
	return &postgresExerciseRepository{pool: pool}
}

const exerciseColumns = `id, name, created_at, updated_at`

// likeEscaper escapes LIKE metacharacters so the term matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func scanExercise(row scanner) (*domain.Exercise, error) {
	var (
		exercise domain.Exercise
		id       string
	)
	if err := row.Scan(&id, &exercise.Name, &exercise.CreatedAt, &exercise.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	inUTC(&exercise.CreatedAt, &exercise.UpdatedAt)
	var err error
	if exercise.ID, err = parseID(id); err != nil {
		return nil, err
	}
	return &exercise, nil
}

// GetOrCreate inserts the name unless lower(name) already exists, in one
// statement. DO NOTHING returns no row on conflict, in which case the winner
// is read back. Both outcomes return the stored casing of the first writer.
func (r *postgresExerciseRepository) GetOrCreate(ctx context.Context, name string) (*domain.Exercise, error) {
	if name == "" {
		return nil, errors.New("exercise name is required")
	}

	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx,
		`INSERT INTO exercises (`+exerciseColumns+`) VALUES ($1, $2, $3, $3)
		 ON CONFLICT ((lower(name))) DO NOTHING
		 RETURNING `+exerciseColumns,
		primitive.NewObjectID().Hex(), name, now,
	)
	exercise, err := scanExercise(row)
	if err == nil {
		return exercise, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("upsert exercise: %w", err)
	}

	row = r.pool.QueryRow(ctx, `SELECT `+exerciseColumns+` FROM exercises WHERE lower(name) = lower($1)`, name)
	exercise, err = scanExercise(row)
	if err != nil {
		return nil, fmt.Errorf("re-read exercise after conflict: %w", err)
	}
	return exercise, nil
}

// GetByID retrieves an exercise by its ID.
func (r *postgresExerciseRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+exerciseColumns+` FROM exercises WHERE id = $1`, id.Hex())
	return scanExercise(row)
}

// GetByIDs retrieves the exercises among ids that exist.
func (r *postgresExerciseRepository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Exercise, error) {
	if len(ids) == 0 {
		return []domain.Exercise{}, nil
	}
	return r.query(ctx, `SELECT `+exerciseColumns+` FROM exercises WHERE id = ANY($1)`, hexIDs(ids))
}

// List returns the whole catalog sorted by name.
func (r *postgresExerciseRepository) List(ctx context.Context) ([]domain.Exercise, error) {
	return r.query(ctx, `SELECT `+exerciseColumns+` FROM exercises ORDER BY lower(name), id`)
}

// Search matches term anywhere in the name, ignoring case.
func (r *postgresExerciseRepository) Search(ctx context.Context, term string, limit int) ([]domain.Exercise, error) {
	pattern := "%" + likeEscaper.Replace(term) + "%"
	if limit <= 0 {
		return r.query(ctx,
			`SELECT `+exerciseColumns+` FROM exercises WHERE name ILIKE $1 ORDER BY lower(name), id`,
			pattern)
	}
	return r.query(ctx,
		`SELECT `+exerciseColumns+` FROM exercises WHERE name ILIKE $1 ORDER BY lower(name), id LIMIT $2`,
		pattern, limit)
}

func (r *postgresExerciseRepository) query(ctx context.Context, sql string, args ...any) ([]domain.Exercise, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectExercises(rows)
}

func collectExercises(rows pgx.Rows) ([]domain.Exercise, error) {
	exercises := []domain.Exercise{}
	for rows.Next() {
		exercise, err := scanExercise(rows)
		if err != nil {
			return nil, err
		}
		exercises = append(exercises, *exercise)
	}
	return exercises, rows.Err()
}
