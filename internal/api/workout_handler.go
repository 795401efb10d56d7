package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"liftlog/workout-app/internal/service"
)

// WorkoutHandler serves workouts, their exercise slots, sets and exports.
type WorkoutHandler struct {
	workoutService service.WorkoutService
	exportService  service.ExportService
	logger         *slog.Logger
}

// NewWorkoutHandler creates a new WorkoutHandler.
func NewWorkoutHandler(workoutService service.WorkoutService, exportService service.ExportService, logger *slog.Logger) *WorkoutHandler {
	return &WorkoutHandler{
		workoutService: workoutService,
		exportService:  exportService,
		logger:         logger,
	}
}

// --- DTOs ---

// AddExerciseRequest references a catalog entry by id or by name.
type AddExerciseRequest struct {
	ExerciseID   *string `json:"exerciseId"`
	ExerciseName *string `json:"exerciseName"`
}

// AddSetRequest accepts weight as a JSON number or a numeric string.
type AddSetRequest struct {
	Weight   *json.Number `json:"weight"`
	Reps     *int         `json:"reps"`
	RestTime *int         `json:"restTime"`
}

// deleted is the payload of a successful delete.
type deleted struct {
	ID string `json:"id"`
}

// === Workouts ===

// ListWorkouts returns the caller's workouts. With ?date=YYYY-MM-DD it
// returns that day's workouts with their exercises and sets; ?tz= names the
// IANA zone the day is in (default UTC).
// @Router /api/v1/workouts [get]
func (h *WorkoutHandler) ListWorkouts(c *gin.Context) {
	ctx := c.Request.Context()
	day := c.Query("date")
	if day == "" {
		workouts, err := h.workoutService.ListWorkouts(ctx, callerID(c))
		respond(c, http.StatusOK, service.Complete(ctx, h.logger, "list_workouts", workouts, err))
		return
	}

	loc := time.UTC
	if tz := c.Query("tz"); tz != "" {
		var err error
		if loc, err = time.LoadLocation(tz); err != nil {
			respond(c, http.StatusOK, service.Result[any]{
				Error: "tz must be an IANA time zone name",
				Kind:  service.KindInvalidInput,
			})
			return
		}
	}
	trees, err := h.workoutService.ListWorkoutsForDay(ctx, callerID(c), day, loc)
	respond(c, http.StatusOK, service.Complete(ctx, h.logger, "list_workouts_for_day", trees, err))
}

// CreateWorkout starts a workout; startedAt defaults to now.
// @Router /api/v1/workouts [post]
func (h *WorkoutHandler) CreateWorkout(c *gin.Context) {
	var req service.WorkoutInput
	// An empty body starts an unnamed workout now.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		bindError(c)
		return
	}

	ctx := c.Request.Context()
	workout, err := h.workoutService.CreateWorkout(ctx, callerID(c), req)
	respond(c, http.StatusCreated, service.Complete(ctx, h.logger, "create_workout", workout, err))
}

// GetWorkout returns the workout tree.
// @Router /api/v1/workouts/{workoutId} [get]
func (h *WorkoutHandler) GetWorkout(c *gin.Context) {
	workoutID, ok := pathID(c, "workoutId")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	tree, err := h.workoutService.GetWorkoutTree(ctx, callerID(c), workoutID)
	respond(c, http.StatusOK, service.Complete(ctx, h.logger, "get_workout_tree", tree, err))
}

// UpdateWorkout changes the name and/or start time.
// @Router /api/v1/workouts/{workoutId} [patch]
func (h *WorkoutHandler) UpdateWorkout(c *gin.Context) {
	workoutID, ok := pathID(c, "workoutId")
	if !ok {
		return
	}
	var req service.WorkoutInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c)
		return
	}

	ctx := c.Request.Context()
	workout, err := h.workoutService.UpdateWorkout(ctx, callerID(c), workoutID, req)
	respond(c, http.StatusOK, service.Complete(ctx, h.logger, "update_workout", workout, err))
}

// CompleteWorkout marks the workout completed now.
// @Router /api/v1/workouts/{workoutId}/complete [post]
func (h *WorkoutHandler) CompleteWorkout(c *gin.Context) {
	workoutID, ok := pathID(c, "workoutId")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	workout, err := h.workoutService.CompleteWorkout(ctx, callerID(c), workoutID)
	respond(c, http.StatusOK, service.Complete(ctx, h.logger, "complete_workout", workout, err))
}

// DeleteWorkout removes the workout with everything under it.
// @Router /api/v1/workouts/{workoutId} [delete]
func (h *WorkoutHandler) DeleteWorkout(c *gin.Context) {
	workoutID, ok := pathID(c, "workoutId")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	err := h.workoutService.DeleteWorkout(ctx, callerID(c), workoutID)
	respond(c, http.StatusOK, service.Complete(ctx, h.logger, "delete_workout", deleted{ID: workoutID.Hex()}, err))
}

// ExportWorkout stores a JSON snapshot and returns a download link.
// @Router /api/v1/workouts/{workoutId}/export [post]
func (h *WorkoutHandler) ExportWorkout(c *gin.Context) {
	workoutID, ok := pathID(c, "workoutId")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	export, err := h.exportService.ExportWorkout(ctx, callerID(c), workoutID)
	respond(c, http.StatusCreated, service.Complete(ctx, h.logger, "export_workout", export, err))
}

// === Workout exercises ===

// AddExercise appends a catalog exercise to the workout.
// @Router /api/v1/workouts/{workoutId}/exercises [post]
func (h *WorkoutHandler) AddExercise(c *gin.Context) {
	workoutID, ok := pathID(c, "workoutId")
	if !ok {
		return
	}
	var req AddExerciseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c)
		return
	}

	input := service.AddExerciseInput{ExerciseName: req.ExerciseName}
	if req.ExerciseID != nil {
		exerciseID, err := primitive.ObjectIDFromHex(*req.ExerciseID)
		if err != nil {
			// Same answer as an id that does not exist.
			exerciseID = primitive.NilObjectID
		}
		input.ExerciseID = &exerciseID
	}

	ctx := c.Request.Context()
	we, err := h.workoutService.AddExercise(ctx, callerID(c), workoutID, input)
	respond(c, http.StatusCreated, service.Complete(ctx, h.logger, "add_exercise", we, err))
}

// DeleteWorkoutExercise removes an exercise slot without sets.
// @Router /api/v1/workout-exercises/{workoutExerciseId} [delete]
func (h *WorkoutHandler) DeleteWorkoutExercise(c *gin.Context) {
	weID, ok := pathID(c, "workoutExerciseId")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	err := h.workoutService.DeleteWorkoutExercise(ctx, callerID(c), weID)
	respond(c, http.StatusOK, service.Complete(ctx, h.logger, "delete_workout_exercise", deleted{ID: weID.Hex()}, err))
}

// === Sets ===

// AddSet logs a set against the exercise slot.
// @Router /api/v1/workout-exercises/{workoutExerciseId}/sets [post]
func (h *WorkoutHandler) AddSet(c *gin.Context) {
	weID, ok := pathID(c, "workoutExerciseId")
	if !ok {
		return
	}
	var req AddSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c)
		return
	}

	input := service.AddSetInput{Reps: req.Reps, RestTime: req.RestTime}
	if req.Weight != nil {
		weight := req.Weight.String()
		input.Weight = &weight
	}

	ctx := c.Request.Context()
	set, err := h.workoutService.AddSet(ctx, callerID(c), weID, input)
	respond(c, http.StatusCreated, service.Complete(ctx, h.logger, "add_set", set, err))
}

// DeleteSet removes one set.
// @Router /api/v1/sets/{setId} [delete]
func (h *WorkoutHandler) DeleteSet(c *gin.Context) {
	setID, ok := pathID(c, "setId")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	err := h.workoutService.DeleteSet(ctx, callerID(c), setID)
	respond(c, http.StatusOK, service.Complete(ctx, h.logger, "delete_set", deleted{ID: setID.Hex()}, err))
}
