package service

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"liftlog/workout-app/internal/domain"
	"liftlog/workout-app/internal/repository"
)

// Search limits.
const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 50
)

// --- Service Interface ---

// ExerciseService serves the shared exercise catalog. The catalog has no
// owner, but every entry point still requires an authenticated caller.
type ExerciseService interface {
	// GetOrCreateExercise returns the catalog entry whose name matches ignoring
	// case, creating it with the trimmed name when none exists.
	GetOrCreateExercise(ctx context.Context, callerID primitive.ObjectID, name string) (*domain.Exercise, error)
	ListExercises(ctx context.Context, callerID primitive.ObjectID) ([]domain.Exercise, error)
	SearchExercises(ctx context.Context, callerID primitive.ObjectID, term string, limit int) ([]domain.Exercise, error)
}

// --- Service Implementation ---

// exerciseService implements the ExerciseService interface.
type exerciseService struct {
	exerciseRepo repository.ExerciseRepository
}

// NewExerciseService creates a new instance of exerciseService.
func NewExerciseService(exerciseRepo repository.ExerciseRepository) ExerciseService {
	return &exerciseService{
		exerciseRepo: exerciseRepo,
	}
}

type exerciseNameInput struct {
	Name string `json:"exerciseName" validate:"required,max=100"`
}

func (s *exerciseService) GetOrCreateExercise(ctx context.Context, callerID primitive.ObjectID, name string) (*domain.Exercise, error) {
	ctx, span := tracer.Start(ctx, "ExerciseService.GetOrCreateExercise")
	defer span.End()

	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	return getOrCreateExercise(ctx, s.exerciseRepo, name)
}

// getOrCreateExercise is shared with the workout service, which adds
// exercises by name.
func getOrCreateExercise(ctx context.Context, repo repository.ExerciseRepository, name string) (*domain.Exercise, error) {
	input := exerciseNameInput{Name: strings.TrimSpace(name)}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	exercise, err := repo.GetOrCreate(ctx, input.Name)
	if err != nil {
		return nil, storageFailure("get or create exercise", err)
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("exercise.id", exercise.ID.Hex()))
	return exercise, nil
}

func (s *exerciseService) ListExercises(ctx context.Context, callerID primitive.ObjectID) ([]domain.Exercise, error) {
	ctx, span := tracer.Start(ctx, "ExerciseService.ListExercises")
	defer span.End()

	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	exercises, err := s.exerciseRepo.List(ctx)
	if err != nil {
		return nil, storageFailure("list exercises", err)
	}
	return exercises, nil
}

// SearchExercises matches term anywhere in the name, ignoring case. A
// non-positive limit means DefaultSearchLimit; larger limits are capped.
func (s *exerciseService) SearchExercises(ctx context.Context, callerID primitive.ObjectID, term string, limit int) ([]domain.Exercise, error) {
	ctx, span := tracer.Start(ctx, "ExerciseService.SearchExercises")
	defer span.End()

	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = DefaultSearchLimit
	case limit > MaxSearchLimit:
		limit = MaxSearchLimit
	}
	exercises, err := s.exerciseRepo.Search(ctx, strings.TrimSpace(term), limit)
	if err != nil {
		return nil, storageFailure("search exercises", err)
	}
	return exercises, nil
}
