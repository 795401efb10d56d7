package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"liftlog/workout-app/internal/domain"
	"liftlog/workout-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoExerciseRepository implements repository.ExerciseRepository
type mongoExerciseRepository struct {
	collection *mongo.Collection
}

// NewMongoExerciseRepository creates a new Exercise repository backed by MongoDB.
func NewMongoExerciseRepository(db *mongo.Database) repository.ExerciseRepository {
	return &mongoExerciseRepository{
		collection: db.Collection(exerciseCollectionName),
	}
}

// GetOrCreate upserts the catalog entry in a single statement. The filter
// matches under the case-insensitive collation, so an existing "Bench Press"
// satisfies a request for "bench press". On insert the name is seeded from
// the filter, keeping the caller's casing.
func (r *mongoExerciseRepository) GetOrCreate(ctx context.Context, name string) (*domain.Exercise, error) {
	if name == "" {
		return nil, errors.New("exercise name is required")
	}

	now := time.Now().UTC()
	filter := bson.M{"name": name}
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":       primitive.NewObjectID(),
			"createdAt": now,
			"updatedAt": now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After).
		SetCollation(caseInsensitive)

	var exercise domain.Exercise
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&exercise)
	if err == nil {
		return &exercise, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("upsert exercise: %w", err)
	}

	// A concurrent upsert won the unique index; its row is the answer.
	err = r.collection.FindOne(ctx, filter, options.FindOne().SetCollation(caseInsensitive)).Decode(&exercise)
	if err != nil {
		return nil, fmt.Errorf("re-read exercise after conflict: %w", err)
	}
	return &exercise, nil
}

// GetByID retrieves an exercise by its ID.
func (r *mongoExerciseRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error) {
	var exercise domain.Exercise
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&exercise)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &exercise, nil
}

// GetByIDs retrieves the exercises among ids that exist, in no particular order.
func (r *mongoExerciseRepository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Exercise, error) {
	if len(ids) == 0 {
		return []domain.Exercise{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
}

// List returns the whole catalog sorted by name.
func (r *mongoExerciseRepository) List(ctx context.Context) ([]domain.Exercise, error) {
	return r.find(ctx, bson.M{}, r.byName())
}

// Search matches term anywhere in the name, ignoring case.
func (r *mongoExerciseRepository) Search(ctx context.Context, term string, limit int) ([]domain.Exercise, error) {
	filter := bson.M{"name": primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}}
	findOptions := r.byName()
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}
	return r.find(ctx, filter, findOptions)
}

func (r *mongoExerciseRepository) byName() *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetCollation(caseInsensitive)
}

func (r *mongoExerciseRepository) find(ctx context.Context, filter bson.M, findOptions *options.FindOptions) ([]domain.Exercise, error) {
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	exercises := []domain.Exercise{}
	if err = cursor.All(ctx, &exercises); err != nil {
		return nil, err
	}
	return exercises, nil
}

// EnsureExerciseIndexes creates the case-insensitive unique name index.
func EnsureExerciseIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "name", Value: 1}},
			Options: options.Index().
				SetName("exercise_name_ci_unique").
				SetUnique(true).
				SetCollation(caseInsensitive),
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create indexes for %s: %w", collection.Name(), err)
	}
	return nil
}
