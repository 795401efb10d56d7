package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkoutExercise places a catalog Exercise inside a Workout at a position.
type WorkoutExercise struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	WorkoutID  primitive.ObjectID `bson:"workoutId" json:"workoutId"`
	ExerciseID primitive.ObjectID `bson:"exerciseId" json:"exerciseId"`
	Order      int                `bson:"order" json:"order"` // 0-based, assigned on insert
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
}

// Ownership is the resolved chain from a child record up to the owning user.
// SetID is zero when the chain starts at a WorkoutExercise.
type Ownership struct {
	SetID             primitive.ObjectID
	WorkoutExerciseID primitive.ObjectID
	WorkoutID         primitive.ObjectID
	UserID            primitive.ObjectID
}
