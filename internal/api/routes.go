package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"liftlog/workout-app/internal/logging"
	"liftlog/workout-app/internal/metrics"
	"liftlog/workout-app/internal/service"
)

// Services groups what the HTTP layer calls into.
type Services struct {
	Auth      service.AuthService
	Exercises service.ExerciseService
	Workouts  service.WorkoutService
	Export    service.ExportService
}

// SetupRoutes registers middleware and every route on router.
func SetupRoutes(router *gin.Engine, serviceName string, services Services, logger *slog.Logger) {
	authHandler := NewAuthHandler(services.Auth, logger)
	exerciseHandler := NewExerciseHandler(services.Exercises, logger)
	workoutHandler := NewWorkoutHandler(services.Workouts, services.Export, logger)

	router.Use(
		gin.Recovery(),
		otelgin.Middleware(serviceName),
		logging.GinMiddleware(logger),
		metrics.GinMiddleware(),
	)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(services.Auth))
	{
		protected.GET("/me", authHandler.Me)

		// --- Exercise catalog ---
		exerciseGroup := protected.Group("/exercises")
		{
			exerciseGroup.GET("", exerciseHandler.ListExercises)
			exerciseGroup.GET("/search", exerciseHandler.SearchExercises)
			exerciseGroup.POST("", exerciseHandler.CreateExercise)
		}

		// --- Workouts ---
		workoutGroup := protected.Group("/workouts")
		{
			workoutGroup.GET("", workoutHandler.ListWorkouts)
			workoutGroup.POST("", workoutHandler.CreateWorkout)
			workoutGroup.GET("/:workoutId", workoutHandler.GetWorkout)
			workoutGroup.PATCH("/:workoutId", workoutHandler.UpdateWorkout)
			workoutGroup.DELETE("/:workoutId", workoutHandler.DeleteWorkout)
			workoutGroup.POST("/:workoutId/complete", workoutHandler.CompleteWorkout)
			workoutGroup.POST("/:workoutId/exercises", workoutHandler.AddExercise)
			workoutGroup.POST("/:workoutId/export", workoutHandler.ExportWorkout)
		}

		// --- Exercise slots and sets ---
		protected.DELETE("/workout-exercises/:workoutExerciseId", workoutHandler.DeleteWorkoutExercise)
		protected.POST("/workout-exercises/:workoutExerciseId/sets", workoutHandler.AddSet)
		protected.DELETE("/sets/:setId", workoutHandler.DeleteSet)
	}
}
