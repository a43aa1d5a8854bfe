// Package memory provides in-memory storage backends. Used by tests and by
// ephemeral runs where persistence across restarts does not matter.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/heraldbot/herald/internal/store"
)

// NewStores creates a full in-memory store set.
func NewStores() *store.Stores {
	return &store.Stores{
		Locks:      NewLockStore(),
		HookState:  NewHookStateStore(),
		Jobs:       NewJobStore(),
		Users:      NewUserStore(),
		Deliveries: NewDeliveryStore(),
	}
}

// LockStore implements store.LockStore with a mutex-guarded map.
type LockStore struct {
	mu    sync.Mutex
	locks map[string]store.GenerationLock
}

func NewLockStore() *LockStore {
	return &LockStore{locks: make(map[string]store.GenerationLock)}
}

func (s *LockStore) Acquire(ctx context.Context, key, generationID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks[key] = store.GenerationLock{Key: key, GenerationID: generationID, AcquiredAt: at}
	return nil
}

func (s *LockStore) Current(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locks[key].GenerationID, nil
}

func (s *LockStore) Release(ctx context.Context, key, generationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks[key].GenerationID == generationID {
		delete(s.locks, key)
	}
	return nil
}

// hookState separates "has a last run" from "has a cooldown override" so Get
// can fall back to the per-hook default cooldown when no override exists.
type hookState struct {
	lastRunAt   *time.Time
	cooldown    int
	hasCooldown bool
}

// HookStateStore implements store.HookStateStore.
type HookStateStore struct {
	mu     sync.Mutex
	states map[[2]string]hookState
}

func NewHookStateStore() *HookStateStore {
	return &HookStateStore{states: make(map[[2]string]hookState)}
}

func (s *HookStateStore) Get(ctx context.Context, userID, hookName string, defaultCooldown int) (store.HookRunState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := store.HookRunState{
		UserID:          userID,
		HookName:        hookName,
		CooldownMinutes: defaultCooldown,
	}
	if st, ok := s.states[[2]string{userID, hookName}]; ok {
		out.LastRunAt = st.lastRunAt
		if st.hasCooldown {
			out.CooldownMinutes = st.cooldown
		}
	}
	return out, nil
}

func (s *HookStateStore) MarkRun(ctx context.Context, userID, hookName string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := [2]string{userID, hookName}
	st := s.states[k]
	t := at
	st.lastRunAt = &t
	s.states[k] = st
	return nil
}

func (s *HookStateStore) SetCooldown(ctx context.Context, userID, hookName string, minutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := [2]string{userID, hookName}
	st := s.states[k]
	st.cooldown = minutes
	st.hasCooldown = true
	s.states[k] = st
	return nil
}

// JobStore implements store.JobStore.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]store.ScheduledJob
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]store.ScheduledJob)}
}

func (s *JobStore) Create(ctx context.Context, job store.ScheduledJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.UserID == job.UserID && j.Name == job.Name {
			return store.ErrDuplicateName
		}
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *JobStore) Get(ctx context.Context, id string) (store.ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return store.ScheduledJob{}, store.ErrNotFound
	}
	return j, nil
}

func (s *JobStore) ListByUser(ctx context.Context, userID string) ([]store.ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.ScheduledJob
	for _, j := range s.jobs {
		if j.UserID == userID {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out, nil
}

func (s *JobStore) Due(ctx context.Context, now time.Time) ([]store.ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.ScheduledJob
	for _, j := range s.jobs {
		if j.Enabled && !j.NextRunAt.After(now) {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].NextRunAt.Before(out[k].NextRunAt) })
	return out, nil
}

func (s *JobStore) UpdateRun(ctx context.Context, id string, lastRunAt, nextRunAt time.Time, lastResult string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	t := lastRunAt
	j.LastRunAt = &t
	j.NextRunAt = nextRunAt
	j.LastResult = lastResult
	j.UpdatedAt = time.Now()
	s.jobs[id] = j
	return nil
}

func (s *JobStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	j.Enabled = enabled
	j.UpdatedAt = time.Now()
	s.jobs[id] = j
	return nil
}

func (s *JobStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.jobs, id)
	return nil
}

// UserStore implements store.UserStore.
type UserStore struct {
	mu    sync.Mutex
	users map[string]store.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]store.User)}
}

func (s *UserStore) ListActive(ctx context.Context) ([]store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.User
	for _, u := range s.users {
		if u.Active {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (s *UserStore) Get(ctx context.Context, id string) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *UserStore) Upsert(ctx context.Context, u store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

// DeliveryStore implements store.DeliveryStore.
type DeliveryStore struct {
	mu   sync.Mutex
	rows []store.Delivery
}

func NewDeliveryStore() *DeliveryStore {
	return &DeliveryStore{}
}

func (s *DeliveryStore) Record(ctx context.Context, d store.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, d)
	return nil
}

// Recorded returns a copy of all recorded deliveries (test helper).
func (s *DeliveryStore) Recorded() []store.Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Delivery, len(s.rows))
	copy(out, s.rows)
	return out
}
