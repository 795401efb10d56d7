package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"golang.org/x/sync/errgroup"

	"liftlog/workout-app/internal/repository"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// Collection names.
const (
	userCollectionName            = "users"
	exerciseCollectionName        = "exercises"
	workoutCollectionName         = "workouts"
	workoutExerciseCollectionName = "workout_exercises"
	setCollectionName             = "sets"
)

// positionLockField is bumped on a parent document at the start of every
// transaction that assigns a child position or removes a child. Two such
// transactions on the same parent write-conflict, and the driver retries the
// loser, so "read max, insert next" runs serialized per parent.
const positionLockField = "positionVersion"

// caseInsensitive is the collation backing the unique exercise name index.
// Queries on names must use it to hit the index.
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

// ConnectDB establishes a connection to MongoDB using the provided URI.
// Transactions require a replica set or sharded deployment.
func ConnectDB(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	// The initial connection might succeed while the server is unresponsive.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// DisconnectDB gracefully disconnects the MongoDB client.
func DisconnectDB(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// NewRepositories wires every MongoDB repository against db.
func NewRepositories(db *mongo.Database) repository.Repositories {
	return repository.Repositories{
		Users:            NewMongoUserRepository(db),
		Exercises:        NewMongoExerciseRepository(db),
		Workouts:         NewMongoWorkoutRepository(db),
		WorkoutExercises: NewMongoWorkoutExerciseRepository(db),
		Sets:             NewMongoSetRepository(db),
	}
}

// EnsureIndexes creates the indexes of every collection concurrently.
// The unique indexes are the storage backstop for catalog names and positions.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return EnsureUserIndexes(ctx, db.Collection(userCollectionName)) })
	g.Go(func() error { return EnsureExerciseIndexes(ctx, db.Collection(exerciseCollectionName)) })
	g.Go(func() error { return EnsureWorkoutIndexes(ctx, db.Collection(workoutCollectionName)) })
	g.Go(func() error {
		return EnsureWorkoutExerciseIndexes(ctx, db.Collection(workoutExerciseCollectionName))
	})
	g.Go(func() error { return EnsureSetIndexes(ctx, db.Collection(setCollectionName)) })
	return g.Wait()
}

// runInTransaction executes fn inside a snapshot transaction. The driver
// retries fn on transient errors such as write conflicts; any other error
// returned by fn aborts the transaction and is passed through.
func runInTransaction(ctx context.Context, client *mongo.Client, fn func(sc mongo.SessionContext) error) error {
	session, err := client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	}, txnOpts)
	return err
}
