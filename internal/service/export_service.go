package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"

	"liftlog/workout-app/internal/domain"
	"liftlog/workout-app/internal/storage"
)

const exportContentType = "application/json"

// ExportService writes JSON snapshots of workouts to object storage.
type ExportService interface {
	// ExportWorkout stores the caller's workout tree and returns a temporary
	// download link. ErrExportUnavailable when no storage is configured.
	ExportWorkout(ctx context.Context, callerID, workoutID primitive.ObjectID) (*domain.WorkoutExport, error)
}

// exportService implements the ExportService interface.
type exportService struct {
	workouts  WorkoutService
	files     storage.FileStorage
	urlExpiry time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewExportService creates a new instance of exportService. files may be nil.
func NewExportService(workouts WorkoutService, files storage.FileStorage, urlExpiry time.Duration, logger *slog.Logger) ExportService {
	if urlExpiry <= 0 {
		urlExpiry = storage.DefaultPresignedURLExpiry
	}
	return &exportService{
		workouts:  workouts,
		files:     files,
		urlExpiry: urlExpiry,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// exportKey builds exports/<userId>/<workoutId>/<uuid>.json.
func exportKey(userID, workoutID primitive.ObjectID) string {
	return fmt.Sprintf("exports/%s/%s/%s.json", userID.Hex(), workoutID.Hex(), uuid.NewString())
}

func (s *exportService) ExportWorkout(ctx context.Context, callerID, workoutID primitive.ObjectID) (*domain.WorkoutExport, error) {
	ctx, span := startSpan(ctx, "ExportService.ExportWorkout", callerID)
	defer span.End()

	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	if s.files == nil {
		return nil, ErrExportUnavailable
	}

	// 1. Load the tree; this is also the ownership check.
	tree, err := s.workouts.GetWorkoutTree(ctx, callerID, workoutID)
	if err != nil {
		return nil, err
	}

	// 2. Serialize and upload
	body, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode workout export: %w", err)
	}
	export := &domain.WorkoutExport{
		WorkoutID:  workoutID,
		ObjectKey:  exportKey(callerID, workoutID),
		ExportedAt: s.now(),
	}
	span.SetAttributes(attribute.String("export.key", export.ObjectKey))
	if err := s.files.PutObject(ctx, export.ObjectKey, exportContentType, body); err != nil {
		return nil, storageFailure("upload export", err)
	}

	// 3. Presign the download
	url, err := s.files.GeneratePresignedDownloadURL(ctx, export.ObjectKey, s.urlExpiry)
	if err != nil {
		// Nobody can download it without a link.
		if delErr := s.files.DeleteObject(ctx, export.ObjectKey); delErr != nil {
			s.logger.WarnContext(ctx, "failed to remove unpublished export", "key", export.ObjectKey, "error", delErr)
		}
		return nil, storageFailure("presign export", err)
	}
	export.DownloadURL = url
	export.ExpiresAt = export.ExportedAt.Add(s.urlExpiry)
	return export, nil
}
