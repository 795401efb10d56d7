package mongo_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"liftlog/workout-app/internal/domain"
	mongorepo "liftlog/workout-app/internal/repository/mongo"
	"liftlog/workout-app/internal/repository/repotest"
)

// testDatabase connects to LIFTLOG_TEST_MONGO_URI, which must point at a
// replica set, and returns a fresh database with indexes in place. The
// database is dropped when the test ends.
func testDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("LIFTLOG_TEST_MONGO_URI")
	if uri == "" {
		t.Skipf("LIFTLOG_TEST_MONGO_URI not set")
	}
	client, err := mongorepo.ConnectDB(uri)
	require.NoError(t, err)

	db := client.Database("liftlog_test_" + primitive.NewObjectID().Hex())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = mongorepo.DisconnectDB(client)
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	require.NoError(t, mongorepo.EnsureIndexes(ctx, db))
	return db
}

func TestRepositoryContract(t *testing.T) {
	repotest.Run(t, mongorepo.NewRepositories(testDatabase(t)))
}

func TestEnsureIndexesIsIdempotent(t *testing.T) {
	db := testDatabase(t)
	assert.NoError(t, mongorepo.EnsureIndexes(context.Background(), db))
}

func TestAppendBumpsParentPositionVersion(t *testing.T) {
	db := testDatabase(t)
	repos := mongorepo.NewRepositories(db)
	ctx := context.Background()
	owner := primitive.NewObjectID()

	w := &domain.Workout{UserID: owner, StartedAt: time.Now().UTC()}
	_, err := repos.Workouts.Create(ctx, w)
	require.NoError(t, err)
	ex, err := repos.Exercises.GetOrCreate(ctx, "Overhead Press")
	require.NoError(t, err)
	we := &domain.WorkoutExercise{WorkoutID: w.ID, ExerciseID: ex.ID}
	require.NoError(t, repos.WorkoutExercises.Append(ctx, we, owner))
	for range 3 {
		require.NoError(t, repos.Sets.Append(ctx, &domain.Set{WorkoutExerciseID: we.ID, Reps: 5}))
	}

	var workoutDoc, slotDoc struct {
		PositionVersion int `bson:"positionVersion"`
	}
	require.NoError(t, db.Collection("workouts").FindOne(ctx, bson.M{"_id": w.ID}).Decode(&workoutDoc))
	require.NoError(t, db.Collection("workout_exercises").FindOne(ctx, bson.M{"_id": we.ID}).Decode(&slotDoc))
	assert.Equal(t, 1, workoutDoc.PositionVersion)
	assert.Equal(t, 3, slotDoc.PositionVersion)
}

func TestDuplicateCatalogNameIsRejectedByIndex(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()
	exercises := db.Collection("exercises")

	_, err := exercises.InsertOne(ctx, bson.M{"_id": primitive.NewObjectID(), "name": "Chin Up"})
	require.NoError(t, err)
	_, err = exercises.InsertOne(ctx, bson.M{"_id": primitive.NewObjectID(), "name": "chin up"})
	assert.True(t, mongo.IsDuplicateKeyError(err))
}
