package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/heraldbot/herald/internal/store"
)

// HookStateStore implements store.HookStateStore on sqlite.
// cooldown_minutes is NULL until a per-user override is set; Get substitutes
// the hook's default so overrides and defaults stay distinguishable.
type HookStateStore struct {
	d *DB
}

func (s *HookStateStore) Get(ctx context.Context, userID, hookName string, defaultCooldown int) (store.HookRunState, error) {
	out := store.HookRunState{
		UserID:          userID,
		HookName:        hookName,
		CooldownMinutes: defaultCooldown,
	}

	var lastRun sql.NullString
	var cooldown sql.NullInt64
	err := s.d.db.QueryRowContext(ctx,
		`SELECT last_run_at, cooldown_minutes FROM hook_run_state
		 WHERE user_id = ? AND hook_name = ?`,
		userID, hookName,
	).Scan(&lastRun, &cooldown)
	if errors.Is(err, sql.ErrNoRows) {
		return out, nil
	}
	if err != nil {
		return store.HookRunState{}, err
	}

	last, err := parseNullTime(lastRun)
	if err != nil {
		return store.HookRunState{}, err
	}
	out.LastRunAt = last
	if cooldown.Valid {
		out.CooldownMinutes = int(cooldown.Int64)
	}
	return out, nil
}

func (s *HookStateStore) MarkRun(ctx context.Context, userID, hookName string, at time.Time) error {
	_, err := s.d.db.ExecContext(ctx,
		`INSERT INTO hook_run_state (user_id, hook_name, last_run_at, cooldown_minutes)
		 VALUES (?, ?, ?, NULL)
		 ON CONFLICT(user_id, hook_name) DO UPDATE SET last_run_at = excluded.last_run_at`,
		userID, hookName, fmtTime(at),
	)
	return err
}

func (s *HookStateStore) SetCooldown(ctx context.Context, userID, hookName string, minutes int) error {
	_, err := s.d.db.ExecContext(ctx,
		`INSERT INTO hook_run_state (user_id, hook_name, last_run_at, cooldown_minutes)
		 VALUES (?, ?, NULL, ?)
		 ON CONFLICT(user_id, hook_name) DO UPDATE SET cooldown_minutes = excluded.cooldown_minutes`,
		userID, hookName, minutes,
	)
	return err
}
