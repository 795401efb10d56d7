package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Workout is one user's training session.
type Workout struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"userId" json:"userId"` // Owner, never changes after creation
	Name        *string            `bson:"name,omitempty" json:"name,omitempty"`
	StartedAt   time.Time          `bson:"startedAt" json:"startedAt"`
	CompletedAt *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// WorkoutTree is a workout with its exercises in order, each carrying its sets.
type WorkoutTree struct {
	Workout
	Exercises []WorkoutExerciseNode `json:"exercises"`
}

// WorkoutExerciseNode is one exercise slot of a WorkoutTree.
type WorkoutExerciseNode struct {
	WorkoutExercise
	Exercise *Exercise `json:"exercise,omitempty"`
	Sets     []Set     `json:"sets"`
}
