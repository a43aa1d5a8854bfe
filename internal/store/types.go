// Package store defines the persistence model and the backend interfaces the
// engine is wired against. Concrete backends live in the subpackages memory,
// sqlite, and pg.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicateName is returned when a job name collides for the same user.
var ErrDuplicateName = errors.New("store: duplicate name")

// GenerationLock is the current generation for one coordination key. There is
// at most one row per key; acquiring overwrites the row whole.
type GenerationLock struct {
	Key          string
	GenerationID string
	AcquiredAt   time.Time
}

// HookRunState is the persisted per-(user, hook) scheduling state.
// CooldownMinutes is the effective cooldown: the per-user override when one
// exists, otherwise the hook's default. LastRunAt is nil until the hook has
// run at least once.
type HookRunState struct {
	UserID          string
	HookName        string
	LastRunAt       *time.Time
	CooldownMinutes int
}

// Enabled reports whether the hook participates in scheduling at all.
// A cooldown of zero disables the hook for this user.
func (s HookRunState) Enabled() bool {
	return s.CooldownMinutes != 0
}

// Due reports whether the hook should run now: enabled, and either never run
// or past its cooldown.
func (s HookRunState) Due(now time.Time) bool {
	if !s.Enabled() {
		return false
	}
	if s.LastRunAt == nil {
		return true
	}
	cooldown := time.Duration(s.CooldownMinutes) * time.Minute
	return now.Sub(*s.LastRunAt) >= cooldown
}

// NotifyMode is a scheduled job's notification policy.
type NotifyMode string

const (
	// NotifyAlways delivers every non-empty job result.
	NotifyAlways NotifyMode = "always"
	// NotifySignificant delivers only results a judge deems worth interrupting for.
	NotifySignificant NotifyMode = "significant"
)

// Valid reports whether the mode is one of the known values.
func (m NotifyMode) Valid() bool {
	return m == NotifyAlways || m == NotifySignificant
}

// ScheduledJob is a user-authored recurring prompt.
type ScheduledJob struct {
	ID             string
	UserID         string
	ConversationID string
	IsGroup        bool
	Name           string
	Prompt         string
	CronSchedule   string
	Timezone       string
	NotifyMode     NotifyMode
	Enabled        bool
	LastRunAt      *time.Time
	NextRunAt      time.Time
	LastResult     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// User is an account eligible for proactive scheduling while Active.
type User struct {
	ID          string
	DisplayName string
	Active      bool
}

// Delivery is one outbound notification, logged after the dispatcher sends it.
type Delivery struct {
	ID        string
	Target    string
	Content   string
	CreatedAt time.Time
}
