package service

import (
	"context"
	"errors"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"liftlog/workout-app/internal/domain"
	"liftlog/workout-app/internal/metrics"
	"liftlog/workout-app/internal/repository"
)

// Resources named in denial logs and metrics.
const (
	resourceWorkout         = "workout"
	resourceWorkoutExercise = "workout_exercise"
	resourceSet             = "set"
	resourceExercise        = "exercise"
)

// Internal denial reasons. Both surface as ErrNotFoundOrUnauthorized.
const (
	reasonMissing      = "missing"
	reasonForeignOwner = "foreign_owner"
)

// guard performs the ownership checks shared by the workout entry points.
type guard struct {
	logger *slog.Logger
}

// requireCaller fails before any storage access when no caller was resolved.
func requireCaller(callerID primitive.ObjectID) error {
	if callerID.IsZero() {
		return ErrUnauthenticated
	}
	return nil
}

// deny records why access was refused and returns the merged error.
func (g guard) deny(ctx context.Context, resource, reason string, callerID, targetID primitive.ObjectID) error {
	metrics.AuthzDenials.WithLabelValues(resource, reason).Inc()
	trace.SpanFromContext(ctx).AddEvent("authz.denied", trace.WithAttributes(
		attribute.String("authz.resource", resource),
		attribute.String("authz.reason", reason),
	))
	g.logger.WarnContext(ctx, "access denied",
		"resource", resource,
		"reason", reason,
		"caller", callerID.Hex(),
		"target", targetID.Hex(),
	)
	return ErrNotFoundOrUnauthorized
}

// workout fetches a workout and confirms the caller owns it.
func (g guard) workout(ctx context.Context, repo repository.WorkoutRepository, callerID, workoutID primitive.ObjectID) (*domain.Workout, error) {
	workout, err := repo.GetByID(ctx, workoutID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, g.deny(ctx, resourceWorkout, reasonMissing, callerID, workoutID)
		}
		return nil, storageFailure("get workout", err)
	}
	if workout.UserID != callerID {
		return nil, g.deny(ctx, resourceWorkout, reasonForeignOwner, callerID, workoutID)
	}
	return workout, nil
}

// chain checks the result of a ResolveOwner call against the caller.
func (g guard) chain(ctx context.Context, resource string, callerID, targetID primitive.ObjectID, owner *domain.Ownership, err error) (*domain.Ownership, error) {
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, g.deny(ctx, resource, reasonMissing, callerID, targetID)
		}
		return nil, storageFailure("resolve "+resource+" owner", err)
	}
	if owner.UserID != callerID {
		return nil, g.deny(ctx, resource, reasonForeignOwner, callerID, targetID)
	}
	return owner, nil
}
