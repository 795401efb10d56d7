package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"liftlog/workout-app/internal/service"
)

// ExerciseHandler serves the shared exercise catalog.
type ExerciseHandler struct {
	exerciseService service.ExerciseService
	logger          *slog.Logger
}

// NewExerciseHandler creates a new ExerciseHandler.
func NewExerciseHandler(exerciseService service.ExerciseService, logger *slog.Logger) *ExerciseHandler {
	return &ExerciseHandler{exerciseService: exerciseService, logger: logger}
}

// CreateExerciseRequest names a catalog entry to find or create.
type CreateExerciseRequest struct {
	Name string `json:"name"`
}

// ListExercises returns the whole catalog sorted by name.
// @Router /api/v1/exercises [get]
func (h *ExerciseHandler) ListExercises(c *gin.Context) {
	ctx := c.Request.Context()
	exercises, err := h.exerciseService.ListExercises(ctx, callerID(c))
	respond(c, http.StatusOK, service.Complete(ctx, h.logger, "list_exercises", exercises, err))
}

// SearchExercises matches ?q= anywhere in the name; ?limit= defaults to 10.
// @Router /api/v1/exercises/search [get]
func (h *ExerciseHandler) SearchExercises(c *gin.Context) {
	limit := service.DefaultSearchLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respond(c, http.StatusOK, service.Result[any]{
				Error: "limit must be a positive integer",
				Kind:  service.KindInvalidInput,
			})
			return
		}
		limit = n
	}

	ctx := c.Request.Context()
	exercises, err := h.exerciseService.SearchExercises(ctx, callerID(c), c.Query("q"), limit)
	respond(c, http.StatusOK, service.Complete(ctx, h.logger, "search_exercises", exercises, err))
}

// CreateExercise returns the existing entry for the name, ignoring case, or
// creates it.
// @Router /api/v1/exercises [post]
func (h *ExerciseHandler) CreateExercise(c *gin.Context) {
	var req CreateExerciseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c)
		return
	}

	ctx := c.Request.Context()
	exercise, err := h.exerciseService.GetOrCreateExercise(ctx, callerID(c), req.Name)
	respond(c, http.StatusOK, service.Complete(ctx, h.logger, "get_or_create_exercise", exercise, err))
}
