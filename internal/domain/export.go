package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkoutExport describes a JSON snapshot of a WorkoutTree written to object
// storage. The file itself lives in the bucket; only the link is returned.
type WorkoutExport struct {
	WorkoutID   primitive.ObjectID `json:"workoutId"`
	ObjectKey   string             `json:"-"` // Bucket key, internal use
	DownloadURL string             `json:"downloadUrl"`
	ExpiresAt   time.Time          `json:"expiresAt"`
	ExportedAt  time.Time          `json:"exportedAt"`
}
