package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/heraldbot/herald/internal/store"
)

func TestHookStateDefaultsAndOverride(t *testing.T) {
	ctx := context.Background()
	s := NewHookStateStore()

	// No row yet: the hook default applies.
	st, err := s.Get(ctx, "u1", "mail", 60)
	if err != nil {
		t.Fatal(err)
	}
	if st.CooldownMinutes != 60 {
		t.Fatalf("default cooldown = %d, want 60", st.CooldownMinutes)
	}
	if st.LastRunAt != nil {
		t.Fatal("fresh state should have nil LastRunAt")
	}

	// MarkRun must not invent a cooldown override.
	ranAt := time.Now()
	if err := s.MarkRun(ctx, "u1", "mail", ranAt); err != nil {
		t.Fatal(err)
	}
	st, err = s.Get(ctx, "u1", "mail", 60)
	if err != nil {
		t.Fatal(err)
	}
	if st.LastRunAt == nil || !st.LastRunAt.Equal(ranAt) {
		t.Fatalf("LastRunAt = %v, want %v", st.LastRunAt, ranAt)
	}
	if st.CooldownMinutes != 60 {
		t.Fatalf("cooldown after MarkRun = %d, want default 60", st.CooldownMinutes)
	}

	// An override sticks, including the disabling zero.
	if err := s.SetCooldown(ctx, "u1", "mail", 0); err != nil {
		t.Fatal(err)
	}
	st, err = s.Get(ctx, "u1", "mail", 60)
	if err != nil {
		t.Fatal(err)
	}
	if st.CooldownMinutes != 0 {
		t.Fatalf("cooldown override = %d, want 0", st.CooldownMinutes)
	}
	if st.Enabled() {
		t.Fatal("zero-cooldown state should be disabled")
	}
}

func TestJobStoreDuplicateName(t *testing.T) {
	ctx := context.Background()
	s := NewJobStore()

	base := store.ScheduledJob{ID: "j1", UserID: "u1", Name: "standup", Enabled: true}
	if err := s.Create(ctx, base); err != nil {
		t.Fatal(err)
	}

	dup := base
	dup.ID = "j2"
	if err := s.Create(ctx, dup); !errors.Is(err, store.ErrDuplicateName) {
		t.Fatalf("duplicate (user, name) error = %v, want ErrDuplicateName", err)
	}

	// Same name for another user is fine.
	other := base
	other.ID = "j3"
	other.UserID = "u2"
	if err := s.Create(ctx, other); err != nil {
		t.Fatalf("same name for another user: %v", err)
	}
}

func TestJobStoreDue(t *testing.T) {
	ctx := context.Background()
	s := NewJobStore()
	now := time.Now()

	jobs := []store.ScheduledJob{
		{ID: "past", UserID: "u1", Name: "past", Enabled: true, NextRunAt: now.Add(-time.Minute)},
		{ID: "exact", UserID: "u1", Name: "exact", Enabled: true, NextRunAt: now},
		{ID: "future", UserID: "u1", Name: "future", Enabled: true, NextRunAt: now.Add(time.Minute)},
		{ID: "disabled", UserID: "u1", Name: "disabled", Enabled: false, NextRunAt: now.Add(-time.Hour)},
	}
	for _, j := range jobs {
		if err := s.Create(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	due, err := s.Due(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	got := make(map[string]bool, len(due))
	for _, j := range due {
		got[j.ID] = true
	}
	if len(due) != 2 || !got["past"] || !got["exact"] {
		t.Fatalf("due = %v, want exactly {past, exact}", got)
	}
}

func TestJobStoreUpdateRun(t *testing.T) {
	ctx := context.Background()
	s := NewJobStore()
	now := time.Now()

	if err := s.Create(ctx, store.ScheduledJob{ID: "j1", UserID: "u1", Name: "n", Enabled: true, NextRunAt: now}); err != nil {
		t.Fatal(err)
	}
	next := now.Add(time.Hour)
	if err := s.UpdateRun(ctx, "j1", now, next, "ok"); err != nil {
		t.Fatal(err)
	}
	j, err := s.Get(ctx, "j1")
	if err != nil {
		t.Fatal(err)
	}
	if j.LastRunAt == nil || !j.LastRunAt.Equal(now) {
		t.Errorf("LastRunAt = %v, want %v", j.LastRunAt, now)
	}
	if !j.NextRunAt.Equal(next) {
		t.Errorf("NextRunAt = %v, want %v", j.NextRunAt, next)
	}
	if j.LastResult != "ok" {
		t.Errorf("LastResult = %q, want %q", j.LastResult, "ok")
	}

	if err := s.UpdateRun(ctx, "missing", now, next, ""); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("UpdateRun(missing) = %v, want ErrNotFound", err)
	}
}

func TestUserStoreListActive(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore()

	users := []store.User{
		{ID: "b", DisplayName: "Bea", Active: true},
		{ID: "a", DisplayName: "Ada", Active: true},
		{ID: "c", DisplayName: "Cal", Active: false},
	}
	for _, u := range users {
		if err := s.Upsert(ctx, u); err != nil {
			t.Fatal(err)
		}
	}

	active, err := s.ListActive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 2 || active[0].ID != "a" || active[1].ID != "b" {
		t.Fatalf("ListActive = %v, want [a b]", active)
	}
}
