package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"liftlog/workout-app/internal/domain"
	"liftlog/workout-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoSetRepository implements repository.SetRepository
type mongoSetRepository struct {
	client           *mongo.Client
	collection       *mongo.Collection
	workoutExercises *mongo.Collection
}

// NewMongoSetRepository creates a new Set repository backed by MongoDB.
func NewMongoSetRepository(db *mongo.Database) repository.SetRepository {
	return &mongoSetRepository{
		client:           db.Client(),
		collection:       db.Collection(setCollectionName),
		workoutExercises: db.Collection(workoutExerciseCollectionName),
	}
}

// Append locks the parent workout exercise, reads the highest set number and
// inserts the next one inside a single transaction.
func (r *mongoSetRepository) Append(ctx context.Context, set *domain.Set) error {
	if set.WorkoutExerciseID == primitive.NilObjectID {
		return errors.New("set requires workoutExerciseId")
	}

	return runInTransaction(ctx, r.client, func(sc mongo.SessionContext) error {
		var parent domain.WorkoutExercise
		err := r.workoutExercises.FindOneAndUpdate(sc,
			bson.M{"_id": set.WorkoutExerciseID},
			bson.M{"$inc": bson.M{positionLockField: 1}},
		).Decode(&parent)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return repository.ErrNotFound
			}
			return err
		}

		var last domain.Set
		var numbers []int
		err = r.collection.FindOne(sc,
			bson.M{"workoutExerciseId": set.WorkoutExerciseID},
			options.FindOne().SetSort(bson.D{{Key: "setNumber", Value: -1}}),
		).Decode(&last)
		switch {
		case err == nil:
			numbers = []int{last.SetNumber}
		case !errors.Is(err, mongo.ErrNoDocuments):
			return err
		}

		set.ID = primitive.NewObjectID()
		set.WorkoutID = parent.WorkoutID
		set.SetNumber = domain.NextPosition(numbers, domain.FirstSetNumber)
		set.CreatedAt = time.Now().UTC()
		if _, err := r.collection.InsertOne(sc, set); err != nil {
			return fmt.Errorf("insert set: %w", err)
		}
		return nil
	})
}

// ResolveOwner walks set -> workout exercise -> workout in one aggregation.
func (r *mongoSetRepository) ResolveOwner(ctx context.Context, id primitive.ObjectID) (*domain.Ownership, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": id}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         workoutExerciseCollectionName,
			"localField":   "workoutExerciseId",
			"foreignField": "_id",
			"as":           "workoutExercise",
		}}},
		{{Key: "$unwind", Value: "$workoutExercise"}},
		{{Key: "$lookup", Value: bson.M{
			"from":         workoutCollectionName,
			"localField":   "workoutExercise.workoutId",
			"foreignField": "_id",
			"as":           "workout",
		}}},
		{{Key: "$unwind", Value: "$workout"}},
		{{Key: "$project", Value: bson.M{
			"workoutExerciseId": "$workoutExercise._id",
			"workoutId":         "$workout._id",
			"userId":            "$workout.userId",
		}}},
	}
	row, err := aggregateOwnership(ctx, r.collection, pipeline)
	if err != nil {
		return nil, err
	}
	return &domain.Ownership{
		SetID:             row.ID,
		WorkoutExerciseID: row.WorkoutExerciseID,
		WorkoutID:         row.WorkoutID,
		UserID:            row.UserID,
	}, nil
}

// ListByWorkoutExercises retrieves the sets of several slots, ascending by set number.
func (r *mongoSetRepository) ListByWorkoutExercises(ctx context.Context, workoutExerciseIDs []primitive.ObjectID) ([]domain.Set, error) {
	sets := []domain.Set{}
	if len(workoutExerciseIDs) == 0 {
		return sets, nil
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "workoutExerciseId", Value: 1}, {Key: "setNumber", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"workoutExerciseId": bson.M{"$in": workoutExerciseIDs}}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &sets); err != nil {
		return nil, err
	}
	return sets, nil
}

// Delete removes one set. Remaining set numbers are left untouched.
func (r *mongoSetRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureSetIndexes creates the set number uniqueness backstop and the cascade index.
func EnsureSetIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "workoutExerciseId", Value: 1}, {Key: "setNumber", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "workoutId", Value: 1}},
			Options: options.Index(),
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create indexes for %s: %w", collection.Name(), err)
	}
	return nil
}
