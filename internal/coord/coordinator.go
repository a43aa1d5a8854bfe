package coord

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heraldbot/herald/internal/store"
)

// Coordinator mediates the supersession protocol over a LockStore.
//
// Acquire never blocks and never loses a race: it overwrites the slot whole,
// invalidating whatever generation was current before. Correctness comes from
// in-flight workers polling IsCurrent at their suspension points — before
// every externally visible side effect — not from exclusion at acquire time.
type Coordinator struct {
	locks store.LockStore
	now   func() time.Time
	log   *slog.Logger
}

// New creates a Coordinator. nowFn may be nil (defaults to time.Now).
func New(locks store.LockStore, nowFn func() time.Time) *Coordinator {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Coordinator{
		locks: locks,
		now:   nowFn,
		log:   slog.With("component", "coord"),
	}
}

// NewGenerationID mints a fresh opaque generation token.
func NewGenerationID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Acquire stores genID as the current generation for key, superseding any
// previous generation immediately.
func (c *Coordinator) Acquire(ctx context.Context, key Key, genID string) error {
	if err := c.locks.Acquire(ctx, string(key), genID, c.now()); err != nil {
		return err
	}
	c.log.Debug("generation acquired", "key", key, "generation", genID)
	return nil
}

// IsCurrent reports whether genID is still the current generation for key.
// A storage read failure reports not-current: a worker that cannot verify
// ownership must not produce side effects.
func (c *Coordinator) IsCurrent(ctx context.Context, key Key, genID string) bool {
	current, err := c.locks.Current(ctx, string(key))
	if err != nil {
		c.log.Warn("currency check failed, treating as superseded",
			"key", key, "generation", genID, "error", err)
		return false
	}
	return current == genID
}

// Release clears the slot if genID still owns it. Releasing after being
// superseded is a harmless no-op, so completion paths never need to check.
func (c *Coordinator) Release(ctx context.Context, key Key, genID string) {
	if err := c.locks.Release(ctx, string(key), genID); err != nil {
		c.log.Warn("release failed", "key", key, "generation", genID, "error", err)
	}
}
