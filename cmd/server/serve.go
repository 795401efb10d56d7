package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"liftlog/workout-app/internal/api"
	"liftlog/workout-app/internal/config"
	"liftlog/workout-app/internal/logging"
	"liftlog/workout-app/internal/repository"
	"liftlog/workout-app/internal/repository/memory"
	"liftlog/workout-app/internal/repository/mongo"
	"liftlog/workout-app/internal/repository/postgres"
	"liftlog/workout-app/internal/service"
	"liftlog/workout-app/internal/storage"
	"liftlog/workout-app/internal/telemetry"
)

// backend is an opened storage driver.
type backend struct {
	repos repository.Repositories
	close func()
}

// openBackend connects the configured driver. With migrate set it also
// creates indexes or applies the schema.
func openBackend(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger, migrate bool) (*backend, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		client, err := mongo.ConnectDB(cfg.URI)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.Name)
		closeFn := func() {
			logger.Info("disconnecting mongo")
			if err := mongo.DisconnectDB(client); err != nil {
				logger.Error("failed to disconnect mongo", "error", err)
			}
		}
		if migrate {
			indexCtx, cancel := context.WithTimeout(ctx, time.Minute)
			defer cancel()
			if err := mongo.EnsureIndexes(indexCtx, db); err != nil {
				closeFn()
				return nil, err
			}
			logger.Info("mongo indexes ensured", "database", cfg.Name)
		}
		return &backend{repos: mongo.NewRepositories(db), close: closeFn}, nil

	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
			logger.Info("postgres schema applied")
		}
		return &backend{repos: postgres.NewRepositories(pool), close: pool.Close}, nil

	case config.DriverMemory:
		logger.Warn("using in-memory storage; data is lost on exit")
		return &backend{repos: memory.NewStore().Repositories(), close: func() {}}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	b, err := openBackend(cmd.Context(), cfg.Database, logger, true)
	if err != nil {
		return err
	}
	b.close()
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	// --- Configuration ---
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	logger.Info("starting liftlog", "address", cfg.Server.Address, "driver", cfg.Database.Driver)

	ctx := cmd.Context()

	// --- Tracing ---
	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry, os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error("failed to flush traces", "error", err)
		}
	}()

	// --- Database ---
	// Indexes and schema are idempotent, so serve ensures them on startup too.
	b, err := openBackend(ctx, cfg.Database, logger, true)
	if err != nil {
		return err
	}
	defer b.close()

	// --- Storage ---
	var files storage.FileStorage
	if cfg.S3.BucketName != "" {
		if files, err = storage.NewS3Storage(ctx, cfg.S3, logger); err != nil {
			return fmt.Errorf("init s3 storage: %w", err)
		}
	} else {
		logger.Warn("s3.bucket_name is empty; workout export is disabled")
	}

	// --- Services ---
	authService := service.NewAuthService(b.repos.Users, cfg.JWT.Secret, cfg.JWT.Expiration)
	workoutService := service.NewWorkoutService(b.repos, logger)
	services := api.Services{
		Auth:      authService,
		Exercises: service.NewExerciseService(b.repos.Exercises),
		Workouts:  workoutService,
		Export:    service.NewExportService(workoutService, files, cfg.Export.URLExpiry, logger),
	}

	// --- HTTP ---
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	api.SetupRoutes(router, cfg.Telemetry.ServiceName, services, logger)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	logger.Info("server listening", "address", cfg.Server.Address)

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case sig := <-quit:
		logger.Info("shutting down server", "signal", sig.String())
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}
