package service

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"liftlog/workout-app/internal/domain"
	"liftlog/workout-app/internal/repository"
)

var tracer = otel.Tracer("liftlog/internal/service")

// DayLayout is the accepted format of a dashboard date.
const DayLayout = "2006-01-02"

// --- Service Interface ---

// WorkoutService is the caller-scoped API over workouts, their exercise slots
// and logged sets. Every method requires a non-zero caller and checks that
// the caller owns the record it touches.
type WorkoutService interface {
	CreateWorkout(ctx context.Context, callerID primitive.ObjectID, input WorkoutInput) (*domain.Workout, error)
	UpdateWorkout(ctx context.Context, callerID, workoutID primitive.ObjectID, input WorkoutInput) (*domain.Workout, error)
	CompleteWorkout(ctx context.Context, callerID, workoutID primitive.ObjectID) (*domain.Workout, error)
	DeleteWorkout(ctx context.Context, callerID, workoutID primitive.ObjectID) error

	ListWorkouts(ctx context.Context, callerID primitive.ObjectID) ([]domain.Workout, error)
	// ListWorkoutsForDay returns the caller's workouts started on day (YYYY-MM-DD)
	// in loc, both ends inclusive, newest first, each with its full tree.
	ListWorkoutsForDay(ctx context.Context, callerID primitive.ObjectID, day string, loc *time.Location) ([]domain.WorkoutTree, error)
	GetWorkoutTree(ctx context.Context, callerID, workoutID primitive.ObjectID) (*domain.WorkoutTree, error)

	AddExercise(ctx context.Context, callerID, workoutID primitive.ObjectID, input AddExerciseInput) (*domain.WorkoutExercise, error)
	DeleteWorkoutExercise(ctx context.Context, callerID, workoutExerciseID primitive.ObjectID) error
	AddSet(ctx context.Context, callerID, workoutExerciseID primitive.ObjectID, input AddSetInput) (*domain.Set, error)
	DeleteSet(ctx context.Context, callerID, setID primitive.ObjectID) error
}

// WorkoutInput carries the editable fields of a workout. Nil fields are left
// unchanged on update; on create a nil StartedAt means now.
type WorkoutInput struct {
	Name      *string `json:"name" validate:"omitnil,min=1,max=100"`
	StartedAt *string `json:"startedAt" validate:"omitnil,timestamp"`
}

// AddExerciseInput names the catalog entry to add, by id or by name.
// Exactly one of the two must be set.
type AddExerciseInput struct {
	ExerciseID   *primitive.ObjectID
	ExerciseName *string
}

// AddSetInput carries one logged set. Weight is a decimal string.
type AddSetInput struct {
	Weight   *string `json:"weight" validate:"omitnil,decimal2"`
	Reps     *int    `json:"reps" validate:"required,min=1,max=1000"`
	RestTime *int    `json:"restTime" validate:"omitnil,min=0,max=3600"`
}

// --- Service Implementation ---

// workoutService implements the WorkoutService interface.
type workoutService struct {
	workoutRepo         repository.WorkoutRepository
	workoutExerciseRepo repository.WorkoutExerciseRepository
	setRepo             repository.SetRepository
	exerciseRepo        repository.ExerciseRepository
	guard               guard
	now                 func() time.Time
}

// NewWorkoutService creates a new instance of workoutService.
func NewWorkoutService(repos repository.Repositories, logger *slog.Logger) WorkoutService {
	return &workoutService{
		workoutRepo:         repos.Workouts,
		workoutExerciseRepo: repos.WorkoutExercises,
		setRepo:             repos.Sets,
		exerciseRepo:        repos.Exercises,
		guard:               guard{logger: logger},
		now:                 func() time.Time { return time.Now().UTC() },
	}
}

func startSpan(ctx context.Context, name string, callerID primitive.ObjectID) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.String("caller.id", callerID.Hex())))
}

// === Workouts ===

func (s *workoutService) CreateWorkout(ctx context.Context, callerID primitive.ObjectID, input WorkoutInput) (*domain.Workout, error) {
	ctx, span := startSpan(ctx, "WorkoutService.CreateWorkout", callerID)
	defer span.End()

	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	input.Name = trimmed(input.Name)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	workout := &domain.Workout{
		UserID:    callerID,
		Name:      input.Name,
		StartedAt: s.now(),
	}
	if input.StartedAt != nil {
		startedAt, _ := parseTimestamp(*input.StartedAt) // Validated above
		workout.StartedAt = startedAt.UTC()
	}

	if _, err := s.workoutRepo.Create(ctx, workout); err != nil {
		return nil, storageFailure("create workout", err)
	}
	span.SetAttributes(attribute.String("workout.id", workout.ID.Hex()))
	return workout, nil
}

func (s *workoutService) UpdateWorkout(ctx context.Context, callerID, workoutID primitive.ObjectID, input WorkoutInput) (*domain.Workout, error) {
	ctx, span := startSpan(ctx, "WorkoutService.UpdateWorkout", callerID)
	defer span.End()

	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	if _, err := s.guard.workout(ctx, s.workoutRepo, callerID, workoutID); err != nil {
		return nil, err
	}
	input.Name = trimmed(input.Name)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	patch := repository.WorkoutPatch{Name: input.Name}
	if input.StartedAt != nil {
		startedAt, _ := parseTimestamp(*input.StartedAt)
		patch.StartedAt = &startedAt
	}
	return s.patch(ctx, callerID, workoutID, patch)
}

// CompleteWorkout stamps completedAt with the current time. Completing an
// already completed workout moves the stamp forward.
func (s *workoutService) CompleteWorkout(ctx context.Context, callerID, workoutID primitive.ObjectID) (*domain.Workout, error) {
	ctx, span := startSpan(ctx, "WorkoutService.CompleteWorkout", callerID)
	defer span.End()

	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	if _, err := s.guard.workout(ctx, s.workoutRepo, callerID, workoutID); err != nil {
		return nil, err
	}
	completedAt := s.now()
	return s.patch(ctx, callerID, workoutID, repository.WorkoutPatch{CompletedAt: &completedAt})
}

// patch writes only the supplied fields, so concurrent updates touching
// different fields keep each other's values.
func (s *workoutService) patch(ctx context.Context, callerID, workoutID primitive.ObjectID, patch repository.WorkoutPatch) (*domain.Workout, error) {
	workout, err := s.workoutRepo.Update(ctx, workoutID, callerID, patch)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Deleted between the ownership check and the write.
			return nil, s.guard.deny(ctx, resourceWorkout, reasonMissing, callerID, workoutID)
		}
		return nil, storageFailure("update workout", err)
	}
	return workout, nil
}

// DeleteWorkout removes the workout together with its exercises and sets.
func (s *workoutService) DeleteWorkout(ctx context.Context, callerID, workoutID primitive.ObjectID) error {
	ctx, span := startSpan(ctx, "WorkoutService.DeleteWorkout", callerID)
	defer span.End()

	if err := requireCaller(callerID); err != nil {
		return err
	}
	if _, err := s.guard.workout(ctx, s.workoutRepo, callerID, workoutID); err != nil {
		return err
	}
	if err := s.workoutRepo.Delete(ctx, workoutID, callerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return s.guard.deny(ctx, resourceWorkout, reasonMissing, callerID, workoutID)
		}
		return storageFailure("delete workout", err)
	}
	return nil
}

// ListWorkouts returns the caller's workouts, newest first, without children.
func (s *workoutService) ListWorkouts(ctx context.Context, callerID primitive.ObjectID) ([]domain.Workout, error) {
	ctx, span := startSpan(ctx, "WorkoutService.ListWorkouts", callerID)
	defer span.End()

	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	workouts, err := s.workoutRepo.ListByUser(ctx, callerID)
	if err != nil {
		return nil, storageFailure("list workouts", err)
	}
	return workouts, nil
}

func (s *workoutService) ListWorkoutsForDay(ctx context.Context, callerID primitive.ObjectID, day string, loc *time.Location) ([]domain.WorkoutTree, error) {
	ctx, span := startSpan(ctx, "WorkoutService.ListWorkoutsForDay", callerID)
	defer span.End()

	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	from, to, err := DayBounds(day, loc)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("day.from", from.Format(time.RFC3339)))

	workouts, err := s.workoutRepo.ListByUserBetween(ctx, callerID, from, to)
	if err != nil {
		return nil, storageFailure("list workouts for day", err)
	}
	return s.buildTrees(ctx, workouts)
}

// DayBounds returns the first and the last instant of day in loc.
// A nil loc means UTC.
func DayBounds(day string, loc *time.Location) (from, to time.Time, err error) {
	if loc == nil {
		loc = time.UTC
	}
	start, err := time.ParseInLocation(DayLayout, day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, invalid("date", "date must be formatted as YYYY-MM-DD")
	}
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end, nil
}

func (s *workoutService) GetWorkoutTree(ctx context.Context, callerID, workoutID primitive.ObjectID) (*domain.WorkoutTree, error) {
	ctx, span := startSpan(ctx, "WorkoutService.GetWorkoutTree", callerID)
	defer span.End()

	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	workout, err := s.guard.workout(ctx, s.workoutRepo, callerID, workoutID)
	if err != nil {
		return nil, err
	}
	trees, err := s.buildTrees(ctx, []domain.Workout{*workout})
	if err != nil {
		return nil, err
	}
	return &trees[0], nil
}

// buildTrees nests exercises and sets under already authorized workouts.
// Each level is fetched with one query for all parents.
func (s *workoutService) buildTrees(ctx context.Context, workouts []domain.Workout) ([]domain.WorkoutTree, error) {
	trees := make([]domain.WorkoutTree, len(workouts))
	if len(workouts) == 0 {
		return trees, nil
	}

	workoutIDs := make([]primitive.ObjectID, len(workouts))
	for i, w := range workouts {
		workoutIDs[i] = w.ID
	}
	slots, err := s.workoutExerciseRepo.ListByWorkouts(ctx, workoutIDs)
	if err != nil {
		return nil, storageFailure("load workout exercises", err)
	}

	slotIDs := make([]primitive.ObjectID, 0, len(slots))
	exerciseIDs := make([]primitive.ObjectID, 0, len(slots))
	seen := make(map[primitive.ObjectID]bool, len(slots))
	for _, we := range slots {
		slotIDs = append(slotIDs, we.ID)
		if !seen[we.ExerciseID] {
			seen[we.ExerciseID] = true
			exerciseIDs = append(exerciseIDs, we.ExerciseID)
		}
	}

	// Sets and catalog entries only depend on the slots.
	var (
		sets      []domain.Set
		exercises []domain.Exercise
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sets, err = s.setRepo.ListByWorkoutExercises(gctx, slotIDs)
		return err
	})
	g.Go(func() error {
		var err error
		exercises, err = s.exerciseRepo.GetByIDs(gctx, exerciseIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, storageFailure("load workout tree", err)
	}

	setsBySlot := make(map[primitive.ObjectID][]domain.Set, len(slots))
	for _, set := range sets {
		setsBySlot[set.WorkoutExerciseID] = append(setsBySlot[set.WorkoutExerciseID], set)
	}
	catalog := make(map[primitive.ObjectID]*domain.Exercise, len(exercises))
	for i := range exercises {
		catalog[exercises[i].ID] = &exercises[i]
	}
	nodesByWorkout := make(map[primitive.ObjectID][]domain.WorkoutExerciseNode, len(workouts))
	for _, we := range slots {
		slotSets := setsBySlot[we.ID]
		if slotSets == nil {
			slotSets = []domain.Set{}
		}
		slices.SortStableFunc(slotSets, func(a, b domain.Set) int { return cmp.Compare(a.SetNumber, b.SetNumber) })
		nodesByWorkout[we.WorkoutID] = append(nodesByWorkout[we.WorkoutID], domain.WorkoutExerciseNode{
			WorkoutExercise: we,
			Exercise:        catalog[we.ExerciseID],
			Sets:            slotSets,
		})
	}

	for i, w := range workouts {
		nodes := nodesByWorkout[w.ID]
		if nodes == nil {
			nodes = []domain.WorkoutExerciseNode{}
		}
		slices.SortStableFunc(nodes, func(a, b domain.WorkoutExerciseNode) int { return cmp.Compare(a.Order, b.Order) })
		trees[i] = domain.WorkoutTree{Workout: w, Exercises: nodes}
	}
	return trees, nil
}

// === Workout exercises ===

// AddExercise appends a catalog exercise to the caller's workout at the next
// order. By name, the catalog entry is found or created ignoring case.
func (s *workoutService) AddExercise(ctx context.Context, callerID, workoutID primitive.ObjectID, input AddExerciseInput) (*domain.WorkoutExercise, error) {
	ctx, span := startSpan(ctx, "WorkoutService.AddExercise", callerID)
	defer span.End()

	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	if _, err := s.guard.workout(ctx, s.workoutRepo, callerID, workoutID); err != nil {
		return nil, err
	}
	if (input.ExerciseID == nil) == (input.ExerciseName == nil) {
		return nil, invalid("exerciseId", "provide either exerciseId or exerciseName")
	}

	var exercise *domain.Exercise
	if input.ExerciseName != nil {
		var err error
		if exercise, err = getOrCreateExercise(ctx, s.exerciseRepo, *input.ExerciseName); err != nil {
			return nil, err
		}
	} else {
		var err error
		exercise, err = s.exerciseRepo.GetByID(ctx, *input.ExerciseID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, s.guard.deny(ctx, resourceExercise, reasonMissing, callerID, *input.ExerciseID)
			}
			return nil, storageFailure("get exercise", err)
		}
	}

	we := &domain.WorkoutExercise{WorkoutID: workoutID, ExerciseID: exercise.ID}
	// Append re-checks ownership inside its transaction.
	if err := s.workoutExerciseRepo.Append(ctx, we, callerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, s.guard.deny(ctx, resourceWorkout, reasonMissing, callerID, workoutID)
		}
		return nil, storageFailure("append workout exercise", err)
	}
	span.SetAttributes(attribute.Int("workout_exercise.order", we.Order))
	return we, nil
}

// DeleteWorkoutExercise removes an exercise slot that has no sets left.
func (s *workoutService) DeleteWorkoutExercise(ctx context.Context, callerID, workoutExerciseID primitive.ObjectID) error {
	ctx, span := startSpan(ctx, "WorkoutService.DeleteWorkoutExercise", callerID)
	defer span.End()

	if err := requireCaller(callerID); err != nil {
		return err
	}
	owner, err := s.workoutExerciseRepo.ResolveOwner(ctx, workoutExerciseID)
	if _, err := s.guard.chain(ctx, resourceWorkoutExercise, callerID, workoutExerciseID, owner, err); err != nil {
		return err
	}

	switch err := s.workoutExerciseRepo.DeleteIfEmpty(ctx, workoutExerciseID); {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrHasDependents):
		return ErrHasDependentSets
	case errors.Is(err, repository.ErrNotFound):
		return s.guard.deny(ctx, resourceWorkoutExercise, reasonMissing, callerID, workoutExerciseID)
	default:
		return storageFailure("delete workout exercise", err)
	}
}

// === Sets ===

// AddSet logs a set at the next set number of the workout exercise.
func (s *workoutService) AddSet(ctx context.Context, callerID, workoutExerciseID primitive.ObjectID, input AddSetInput) (*domain.Set, error) {
	ctx, span := startSpan(ctx, "WorkoutService.AddSet", callerID)
	defer span.End()

	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	owner, err := s.workoutExerciseRepo.ResolveOwner(ctx, workoutExerciseID)
	if _, err := s.guard.chain(ctx, resourceWorkoutExercise, callerID, workoutExerciseID, owner, err); err != nil {
		return nil, err
	}
	input.Weight = trimmed(input.Weight)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	set := &domain.Set{
		WorkoutExerciseID: workoutExerciseID,
		Reps:              *input.Reps,
		RestTime:          input.RestTime,
	}
	if input.Weight != nil {
		weight, err := primitive.ParseDecimal128(*input.Weight)
		if err != nil {
			return nil, invalid("weight", "%s", fieldMessages["weight"])
		}
		set.Weight = &weight
	}

	if err := s.setRepo.Append(ctx, set); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, s.guard.deny(ctx, resourceWorkoutExercise, reasonMissing, callerID, workoutExerciseID)
		}
		return nil, storageFailure("append set", err)
	}
	span.SetAttributes(attribute.Int("set.number", set.SetNumber))
	return set, nil
}

// DeleteSet removes one set. Other set numbers are not renumbered.
func (s *workoutService) DeleteSet(ctx context.Context, callerID, setID primitive.ObjectID) error {
	ctx, span := startSpan(ctx, "WorkoutService.DeleteSet", callerID)
	defer span.End()

	if err := requireCaller(callerID); err != nil {
		return err
	}
	owner, err := s.setRepo.ResolveOwner(ctx, setID)
	if _, err := s.guard.chain(ctx, resourceSet, callerID, setID, owner, err); err != nil {
		return err
	}
	if err := s.setRepo.Delete(ctx, setID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return s.guard.deny(ctx, resourceSet, reasonMissing, callerID, setID)
		}
		return storageFailure("delete set", err)
	}
	return nil
}
