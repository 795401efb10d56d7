package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS exercises (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL CHECK (char_length(name) BETWEEN 1 AND 100),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS exercises_name_ci_unique ON exercises (lower(name));

CREATE TABLE IF NOT EXISTS workouts (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name         TEXT CHECK (name IS NULL OR char_length(name) BETWEEN 1 AND 100),
	started_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_workouts_user_started ON workouts(user_id, started_at DESC);

CREATE TABLE IF NOT EXISTS workout_exercises (
	id          TEXT PRIMARY KEY,
	workout_id  TEXT NOT NULL REFERENCES workouts(id) ON DELETE CASCADE,
	exercise_id TEXT NOT NULL REFERENCES exercises(id) ON DELETE RESTRICT,
	"order"     INT NOT NULL CHECK ("order" >= 0),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (workout_id, "order")
);

CREATE INDEX IF NOT EXISTS idx_workout_exercises_exercise_id ON workout_exercises(exercise_id);

CREATE TABLE IF NOT EXISTS sets (
	id                  TEXT PRIMARY KEY,
	workout_exercise_id TEXT NOT NULL REFERENCES workout_exercises(id) ON DELETE CASCADE,
	workout_id          TEXT NOT NULL REFERENCES workouts(id) ON DELETE CASCADE,
	set_number          INT NOT NULL CHECK (set_number >= 1),
	weight              NUMERIC(10,2) CHECK (weight >= 0),
	reps                INT NOT NULL CHECK (reps BETWEEN 1 AND 1000),
	rest_time           INT CHECK (rest_time BETWEEN 0 AND 3600),
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (workout_exercise_id, set_number)
);
`

// Migrate ensures tables and indexes exist. Safe to run repeatedly.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
