// Package memory provides an in-process implementation of the repositories
// used for tests and ephemeral local runs. All state sits behind one mutex,
// which makes every read-then-write sequence atomic.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"liftlog/workout-app/internal/domain"
	"liftlog/workout-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store holds every collection of the in-memory backend.
type Store struct {
	mu               sync.Mutex
	users            map[primitive.ObjectID]domain.User
	exercises        map[primitive.ObjectID]domain.Exercise
	workouts         map[primitive.ObjectID]domain.Workout
	workoutExercises map[primitive.ObjectID]domain.WorkoutExercise
	sets             map[primitive.ObjectID]domain.Set
	now              func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:            make(map[primitive.ObjectID]domain.User),
		exercises:        make(map[primitive.ObjectID]domain.Exercise),
		workouts:         make(map[primitive.ObjectID]domain.Workout),
		workoutExercises: make(map[primitive.ObjectID]domain.WorkoutExercise),
		sets:             make(map[primitive.ObjectID]domain.Set),
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Users:            userRepo{s},
		Exercises:        exerciseRepo{s},
		Workouts:         workoutRepo{s},
		WorkoutExercises: workoutExerciseRepo{s},
		Sets:             setRepo{s},
	}
}

// Compile-time contract assertions.
var (
	_ repository.UserRepository            = userRepo{}
	_ repository.ExerciseRepository        = exerciseRepo{}
	_ repository.WorkoutRepository         = workoutRepo{}
	_ repository.WorkoutExerciseRepository = workoutExerciseRepo{}
	_ repository.SetRepository             = setRepo{}
)

// --- users ---

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	now := r.s.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.s.users[user.ID] = *user
	return user.ID, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

// --- exercises ---

type exerciseRepo struct{ s *Store }

func (r exerciseRepo) GetOrCreate(_ context.Context, name string) (*domain.Exercise, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ex := range r.s.exercises {
		if strings.EqualFold(ex.Name, name) {
			return &ex, nil
		}
	}
	now := r.s.now()
	ex := domain.Exercise{ID: primitive.NewObjectID(), Name: name, CreatedAt: now, UpdatedAt: now}
	r.s.exercises[ex.ID] = ex
	return &ex, nil
}

func (r exerciseRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Exercise, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ex, ok := r.s.exercises[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ex, nil
}

func (r exerciseRepo) GetByIDs(_ context.Context, ids []primitive.ObjectID) ([]domain.Exercise, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.Exercise{}
	for _, id := range ids {
		if ex, ok := r.s.exercises[id]; ok {
			out = append(out, ex)
		}
	}
	return out, nil
}

func (r exerciseRepo) List(_ context.Context) ([]domain.Exercise, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.Exercise, 0, len(r.s.exercises))
	for _, ex := range r.s.exercises {
		out = append(out, ex)
	}
	sortExercises(out)
	return out, nil
}

func (r exerciseRepo) Search(_ context.Context, term string, limit int) ([]domain.Exercise, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	needle := strings.ToLower(term)
	out := []domain.Exercise{}
	for _, ex := range r.s.exercises {
		if strings.Contains(strings.ToLower(ex.Name), needle) {
			out = append(out, ex)
		}
	}
	sortExercises(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortExercises(list []domain.Exercise) {
	sort.Slice(list, func(i, j int) bool {
		return strings.ToLower(list[i].Name) < strings.ToLower(list[j].Name)
	})
}

// --- workouts ---

type workoutRepo struct{ s *Store }

func (r workoutRepo) Create(_ context.Context, workout *domain.Workout) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	workout.ID = primitive.NewObjectID()
	now := r.s.now()
	workout.CreatedAt = now
	workout.UpdatedAt = now
	r.s.workouts[workout.ID] = *workout
	return workout.ID, nil
}

func (r workoutRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Workout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.workouts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &w, nil
}

func (r workoutRepo) ListByUser(_ context.Context, userID primitive.ObjectID) ([]domain.Workout, error) {
	return r.list(func(w domain.Workout) bool { return w.UserID == userID }), nil
}

func (r workoutRepo) ListByUserBetween(_ context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.Workout, error) {
	return r.list(func(w domain.Workout) bool {
		return w.UserID == userID && !w.StartedAt.Before(from) && !w.StartedAt.After(to)
	}), nil
}

func (r workoutRepo) list(keep func(domain.Workout) bool) []domain.Workout {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.Workout{}
	for _, w := range r.s.workouts {
		if keep(w) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

func (r workoutRepo) Update(_ context.Context, id, userID primitive.ObjectID, patch repository.WorkoutPatch) (*domain.Workout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.workouts[id]
	if !ok || w.UserID != userID {
		return nil, repository.ErrNotFound
	}
	if patch.Name != nil {
		name := *patch.Name
		w.Name = &name
	}
	if patch.StartedAt != nil {
		w.StartedAt = patch.StartedAt.UTC()
	}
	if patch.CompletedAt != nil {
		completedAt := patch.CompletedAt.UTC()
		w.CompletedAt = &completedAt
	}
	w.UpdatedAt = r.s.now()
	r.s.workouts[id] = w
	return &w, nil
}

func (r workoutRepo) Delete(_ context.Context, id, userID primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.workouts[id]
	if !ok || w.UserID != userID {
		return repository.ErrNotFound
	}
	for weID, we := range r.s.workoutExercises {
		if we.WorkoutID != id {
			continue
		}
		for setID, set := range r.s.sets {
			if set.WorkoutExerciseID == weID {
				delete(r.s.sets, setID)
			}
		}
		delete(r.s.workoutExercises, weID)
	}
	delete(r.s.workouts, id)
	return nil
}

// --- workout exercises ---

type workoutExerciseRepo struct{ s *Store }

func (r workoutExerciseRepo) Append(_ context.Context, we *domain.WorkoutExercise, ownerID primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.workouts[we.WorkoutID]
	if !ok || w.UserID != ownerID {
		return repository.ErrNotFound
	}
	if _, ok := r.s.exercises[we.ExerciseID]; !ok {
		return repository.ErrNotFound
	}
	var orders []int
	for _, sibling := range r.s.workoutExercises {
		if sibling.WorkoutID == we.WorkoutID {
			orders = append(orders, sibling.Order)
		}
	}
	we.ID = primitive.NewObjectID()
	we.Order = domain.NextPosition(orders, domain.FirstExerciseOrder)
	we.CreatedAt = r.s.now()
	r.s.workoutExercises[we.ID] = *we
	return nil
}

func (r workoutExerciseRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.WorkoutExercise, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	we, ok := r.s.workoutExercises[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &we, nil
}

func (r workoutExerciseRepo) ResolveOwner(_ context.Context, id primitive.ObjectID) (*domain.Ownership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.weOwnership(id)
}

// weOwnership must be called with the mutex held.
func (s *Store) weOwnership(weID primitive.ObjectID) (*domain.Ownership, error) {
	we, ok := s.workoutExercises[weID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	w, ok := s.workouts[we.WorkoutID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &domain.Ownership{WorkoutExerciseID: we.ID, WorkoutID: w.ID, UserID: w.UserID}, nil
}

func (r workoutExerciseRepo) ListByWorkouts(_ context.Context, workoutIDs []primitive.ObjectID) ([]domain.WorkoutExercise, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wanted := idSet(workoutIDs)
	out := []domain.WorkoutExercise{}
	for _, we := range r.s.workoutExercises {
		if wanted[we.WorkoutID] {
			out = append(out, we)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (r workoutExerciseRepo) DeleteIfEmpty(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.workoutExercises[id]; !ok {
		return repository.ErrNotFound
	}
	for _, set := range r.s.sets {
		if set.WorkoutExerciseID == id {
			return repository.ErrHasDependents
		}
	}
	delete(r.s.workoutExercises, id)
	return nil
}

// --- sets ---

type setRepo struct{ s *Store }

func (r setRepo) Append(_ context.Context, set *domain.Set) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	we, ok := r.s.workoutExercises[set.WorkoutExerciseID]
	if !ok {
		return repository.ErrNotFound
	}
	var numbers []int
	for _, sibling := range r.s.sets {
		if sibling.WorkoutExerciseID == set.WorkoutExerciseID {
			numbers = append(numbers, sibling.SetNumber)
		}
	}
	set.ID = primitive.NewObjectID()
	set.WorkoutID = we.WorkoutID
	set.SetNumber = domain.NextPosition(numbers, domain.FirstSetNumber)
	set.CreatedAt = r.s.now()
	r.s.sets[set.ID] = *set
	return nil
}

func (r setRepo) ResolveOwner(_ context.Context, id primitive.ObjectID) (*domain.Ownership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	set, ok := r.s.sets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	owner, err := r.s.weOwnership(set.WorkoutExerciseID)
	if err != nil {
		return nil, err
	}
	owner.SetID = set.ID
	return owner, nil
}

func (r setRepo) ListByWorkoutExercises(_ context.Context, workoutExerciseIDs []primitive.ObjectID) ([]domain.Set, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wanted := idSet(workoutExerciseIDs)
	out := []domain.Set{}
	for _, set := range r.s.sets {
		if wanted[set.WorkoutExerciseID] {
			out = append(out, set)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SetNumber < out[j].SetNumber })
	return out, nil
}

func (r setRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.sets[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.sets, id)
	return nil
}

func idSet(ids []primitive.ObjectID) map[primitive.ObjectID]bool {
	m := make(map[primitive.ObjectID]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}
