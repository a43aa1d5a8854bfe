package coord

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/heraldbot/herald/internal/store/memory"
)

func TestAcquireSupersedes(t *testing.T) {
	ctx := context.Background()
	c := New(memory.NewLockStore(), nil)
	key := DMKey("conv-1")

	older := NewGenerationID()
	newer := NewGenerationID()

	if err := c.Acquire(ctx, key, older); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if !c.IsCurrent(ctx, key, older) {
		t.Fatal("first generation should be current after acquire")
	}

	// Acquire never fails or blocks on an occupied slot. The newest wins.
	if err := c.Acquire(ctx, key, newer); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if c.IsCurrent(ctx, key, older) {
		t.Error("superseded generation still reported current")
	}
	if !c.IsCurrent(ctx, key, newer) {
		t.Error("newest generation not current")
	}
}

func TestReleaseBySupersededIsNoOp(t *testing.T) {
	ctx := context.Background()
	c := New(memory.NewLockStore(), nil)
	key := DMKey("conv-1")

	older := NewGenerationID()
	newer := NewGenerationID()
	if err := c.Acquire(ctx, key, older); err != nil {
		t.Fatal(err)
	}
	if err := c.Acquire(ctx, key, newer); err != nil {
		t.Fatal(err)
	}

	// A stale worker that releases anyway must not clobber the new owner.
	c.Release(ctx, key, older)
	if !c.IsCurrent(ctx, key, newer) {
		t.Fatal("release by a superseded generation cleared the current owner")
	}

	c.Release(ctx, key, newer)
	if c.IsCurrent(ctx, key, newer) {
		t.Fatal("owner still current after its own release")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	c := New(memory.NewLockStore(), nil)

	keyA := GroupKey("room-9", "alice")
	keyB := GroupKey("room-9", "bob")
	genA := NewGenerationID()
	genB := NewGenerationID()

	if err := c.Acquire(ctx, keyA, genA); err != nil {
		t.Fatal(err)
	}
	if err := c.Acquire(ctx, keyB, genB); err != nil {
		t.Fatal(err)
	}
	if !c.IsCurrent(ctx, keyA, genA) || !c.IsCurrent(ctx, keyB, genB) {
		t.Fatal("acquires on distinct keys interfered with each other")
	}
}

type failingLockStore struct{}

func (failingLockStore) Acquire(ctx context.Context, key, generationID string, at time.Time) error {
	return errors.New("storage down")
}

func (failingLockStore) Current(ctx context.Context, key string) (string, error) {
	return "", errors.New("storage down")
}

func (failingLockStore) Release(ctx context.Context, key, generationID string) error {
	return errors.New("storage down")
}

func TestIsCurrentTreatsReadFailureAsSuperseded(t *testing.T) {
	c := New(failingLockStore{}, nil)
	if c.IsCurrent(context.Background(), DMKey("conv-1"), NewGenerationID()) {
		t.Fatal("a worker that cannot verify ownership must not be told it is current")
	}
}

func TestNewGenerationIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewGenerationID()
		if id == "" {
			t.Fatal("empty generation id")
		}
		if seen[id] {
			t.Fatalf("duplicate generation id %q", id)
		}
		seen[id] = true
	}
}
