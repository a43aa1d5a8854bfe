package store

import (
	"context"
	"time"
)

// LockStore holds the current generation per coordination key.
//
// Acquire is an unconditional whole-value overwrite: it never fails because
// someone else holds the slot — the newest caller always wins, and the
// previous generation is expected to notice and abort itself. Release clears
// the slot only while it still belongs to the given generation; a release by
// a superseded generation is a no-op.
type LockStore interface {
	Acquire(ctx context.Context, key, generationID string, at time.Time) error
	Current(ctx context.Context, key string) (string, error)
	Release(ctx context.Context, key, generationID string) error
}

// HookStateStore persists per-(user, hook) run state.
//
// Get returns a zero-value state with the provided default cooldown when no
// row exists yet; MarkRun and SetCooldown upsert whole rows.
type HookStateStore interface {
	Get(ctx context.Context, userID, hookName string, defaultCooldown int) (HookRunState, error)
	MarkRun(ctx context.Context, userID, hookName string, at time.Time) error
	SetCooldown(ctx context.Context, userID, hookName string, minutes int) error
}

// JobStore persists user-authored scheduled jobs.
//
// Create must reject a second job with the same (userID, name) with
// ErrDuplicateName. Due returns enabled jobs with nextRunAt <= now.
type JobStore interface {
	Create(ctx context.Context, job ScheduledJob) error
	Get(ctx context.Context, id string) (ScheduledJob, error)
	ListByUser(ctx context.Context, userID string) ([]ScheduledJob, error)
	Due(ctx context.Context, now time.Time) ([]ScheduledJob, error)
	UpdateRun(ctx context.Context, id string, lastRunAt time.Time, nextRunAt time.Time, lastResult string) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
	Delete(ctx context.Context, id string) error
}

// UserStore enumerates accounts eligible for proactive scheduling.
type UserStore interface {
	ListActive(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id string) (User, error)
	Upsert(ctx context.Context, u User) error
}

// DeliveryStore records outbound notifications after the dispatcher sends them.
type DeliveryStore interface {
	Record(ctx context.Context, d Delivery) error
}

// Stores is the top-level container for all storage backends.
type Stores struct {
	Locks      LockStore
	HookState  HookStateStore
	Jobs       JobStore
	Users      UserStore
	Deliveries DeliveryStore
}

// Config selects and configures a storage backend.
type Config struct {
	// Backend is "sqlite" (default), "postgres", or "memory".
	Backend string
	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string
	// PostgresDSN comes from the environment only, never the config file.
	PostgresDSN string
}
