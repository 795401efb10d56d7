// Package postgres is the PostgreSQL backend. Referential integrity, the
// case-insensitive catalog name and positional uniqueness are enforced by the
// schema; position assignment locks the parent row.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"liftlog/workout-app/internal/repository"
)

const (
	defaultTimeout = 10 * time.Second

	// uniqueViolation is the SQLSTATE for unique_violation.
	uniqueViolation = "23505"
)

// Connect opens a pool against dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// NewRepositories wires every PostgreSQL repository against pool.
func NewRepositories(pool *pgxpool.Pool) repository.Repositories {
	return repository.Repositories{
		Users:            NewPostgresUserRepository(pool),
		Exercises:        NewPostgresExerciseRepository(pool),
		Workouts:         NewPostgresWorkoutRepository(pool),
		WorkoutExercises: NewPostgresWorkoutExerciseRepository(pool),
		Sets:             NewPostgresSetRepository(pool),
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// notFound maps pgx.ErrNoRows to repository.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}

// inUTC rewrites scanned timestamps, which pgx decodes in time.Local.
func inUTC(ts ...*time.Time) {
	for _, t := range ts {
		if t != nil {
			*t = t.UTC()
		}
	}
}

// Identifiers are ObjectIDs in every backend; here they are stored as hex text.
func parseID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("stored id %q: %w", hex, err)
	}
	return id, nil
}

func hexIDs(ids []primitive.ObjectID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}
