package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Set is one logged set of an exercise within a workout.
type Set struct {
	ID                primitive.ObjectID    `bson:"_id,omitempty" json:"id"`
	WorkoutExerciseID primitive.ObjectID    `bson:"workoutExerciseId" json:"workoutExerciseId"`
	WorkoutID         primitive.ObjectID    `bson:"workoutId" json:"-"`         // Denormalized for cascade deletes
	SetNumber         int                   `bson:"setNumber" json:"setNumber"` // 1-based, never renumbered
	Weight            *primitive.Decimal128 `bson:"weight,omitempty" json:"weight,omitempty"`
	Reps              int                   `bson:"reps" json:"reps"`
	RestTime          *int                  `bson:"restTime,omitempty" json:"restTime,omitempty"` // Seconds
	CreatedAt         time.Time             `bson:"createdAt" json:"createdAt"`
}
