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

// mongoWorkoutExerciseRepository implements repository.WorkoutExerciseRepository
type mongoWorkoutExerciseRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
	workouts   *mongo.Collection
	exercises  *mongo.Collection
	sets       *mongo.Collection
}

// NewMongoWorkoutExerciseRepository creates a new WorkoutExercise repository backed by MongoDB.
func NewMongoWorkoutExerciseRepository(db *mongo.Database) repository.WorkoutExerciseRepository {
	return &mongoWorkoutExerciseRepository{
		client:     db.Client(),
		collection: db.Collection(workoutExerciseCollectionName),
		workouts:   db.Collection(workoutCollectionName),
		exercises:  db.Collection(exerciseCollectionName),
		sets:       db.Collection(setCollectionName),
	}
}

// ownershipRow is the projection produced by the ownership pipelines.
type ownershipRow struct {
	ID                primitive.ObjectID `bson:"_id"`
	WorkoutExerciseID primitive.ObjectID `bson:"workoutExerciseId"`
	WorkoutID         primitive.ObjectID `bson:"workoutId"`
	UserID            primitive.ObjectID `bson:"userId"`
}

// Append locks the owning workout, reads the highest order and inserts the
// next one, all inside one transaction.
func (r *mongoWorkoutExerciseRepository) Append(ctx context.Context, we *domain.WorkoutExercise, ownerID primitive.ObjectID) error {
	if we.WorkoutID == primitive.NilObjectID || we.ExerciseID == primitive.NilObjectID {
		return errors.New("workout exercise requires workoutId and exerciseId")
	}

	return runInTransaction(ctx, r.client, func(sc mongo.SessionContext) error {
		lock, err := r.workouts.UpdateOne(sc,
			bson.M{"_id": we.WorkoutID, "userId": ownerID},
			bson.M{"$inc": bson.M{positionLockField: 1}},
		)
		if err != nil {
			return err
		}
		if lock.MatchedCount == 0 {
			return repository.ErrNotFound
		}

		exists, err := r.exercises.CountDocuments(sc, bson.M{"_id": we.ExerciseID}, options.Count().SetLimit(1))
		if err != nil {
			return err
		}
		if exists == 0 {
			return repository.ErrNotFound
		}

		var last domain.WorkoutExercise
		var orders []int
		err = r.collection.FindOne(sc,
			bson.M{"workoutId": we.WorkoutID},
			options.FindOne().SetSort(bson.D{{Key: "order", Value: -1}}),
		).Decode(&last)
		switch {
		case err == nil:
			orders = []int{last.Order}
		case !errors.Is(err, mongo.ErrNoDocuments):
			return err
		}

		we.ID = primitive.NewObjectID()
		we.Order = domain.NextPosition(orders, domain.FirstExerciseOrder)
		we.CreatedAt = time.Now().UTC()
		if _, err := r.collection.InsertOne(sc, we); err != nil {
			return fmt.Errorf("insert workout exercise: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a workout exercise by its ID.
func (r *mongoWorkoutExerciseRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.WorkoutExercise, error) {
	var we domain.WorkoutExercise
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&we)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &we, nil
}

// ResolveOwner joins the workout in the same aggregation.
func (r *mongoWorkoutExerciseRepository) ResolveOwner(ctx context.Context, id primitive.ObjectID) (*domain.Ownership, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": id}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         workoutCollectionName,
			"localField":   "workoutId",
			"foreignField": "_id",
			"as":           "workout",
		}}},
		{{Key: "$unwind", Value: "$workout"}},
		{{Key: "$project", Value: bson.M{
			"workoutExerciseId": "$_id",
			"workoutId":         "$workout._id",
			"userId":            "$workout.userId",
		}}},
	}
	row, err := aggregateOwnership(ctx, r.collection, pipeline)
	if err != nil {
		return nil, err
	}
	return &domain.Ownership{
		WorkoutExerciseID: row.WorkoutExerciseID,
		WorkoutID:         row.WorkoutID,
		UserID:            row.UserID,
	}, nil
}

// aggregateOwnership runs an ownership pipeline expected to yield at most one row.
func aggregateOwnership(ctx context.Context, collection *mongo.Collection, pipeline mongo.Pipeline) (*ownershipRow, error) {
	cursor, err := collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		if err := cursor.Err(); err != nil {
			return nil, err
		}
		return nil, repository.ErrNotFound
	}
	var row ownershipRow
	if err := cursor.Decode(&row); err != nil {
		return nil, err
	}
	return &row, nil
}

// ListByWorkouts retrieves the slots of several workouts, ascending by order.
func (r *mongoWorkoutExerciseRepository) ListByWorkouts(ctx context.Context, workoutIDs []primitive.ObjectID) ([]domain.WorkoutExercise, error) {
	list := []domain.WorkoutExercise{}
	if len(workoutIDs) == 0 {
		return list, nil
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "workoutId", Value: 1}, {Key: "order", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"workoutId": bson.M{"$in": workoutIDs}}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// DeleteIfEmpty locks the slot, refuses when any set references it, then
// deletes it. Set appends lock the same document, so no set can slip in
// between the check and the delete.
func (r *mongoWorkoutExerciseRepository) DeleteIfEmpty(ctx context.Context, id primitive.ObjectID) error {
	return runInTransaction(ctx, r.client, func(sc mongo.SessionContext) error {
		lock, err := r.collection.UpdateOne(sc, bson.M{"_id": id}, bson.M{"$inc": bson.M{positionLockField: 1}})
		if err != nil {
			return err
		}
		if lock.MatchedCount == 0 {
			return repository.ErrNotFound
		}

		dependents, err := r.sets.CountDocuments(sc, bson.M{"workoutExerciseId": id}, options.Count().SetLimit(1))
		if err != nil {
			return err
		}
		if dependents > 0 {
			return repository.ErrHasDependents
		}

		if _, err := r.collection.DeleteOne(sc, bson.M{"_id": id}); err != nil {
			return err
		}
		return nil
	})
}

// EnsureWorkoutExerciseIndexes creates the positional uniqueness backstop.
func EnsureWorkoutExerciseIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "workoutId", Value: 1}, {Key: "order", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// Guards the restrict rule on catalog deletes.
			Keys:    bson.D{{Key: "exerciseId", Value: 1}},
			Options: options.Index(),
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create indexes for %s: %w", collection.Name(), err)
	}
	return nil
}
