package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/heraldbot/herald/internal/store"
)

// HookStateStore implements store.HookStateStore on Postgres.
// cooldown_minutes stays NULL until a per-user override is set.
type HookStateStore struct {
	db *sql.DB
}

func (s *HookStateStore) Get(ctx context.Context, userID, hookName string, defaultCooldown int) (store.HookRunState, error) {
	out := store.HookRunState{
		UserID:          userID,
		HookName:        hookName,
		CooldownMinutes: defaultCooldown,
	}

	var lastRun sql.NullTime
	var cooldown sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_run_at, cooldown_minutes FROM hook_run_state
		 WHERE user_id = $1 AND hook_name = $2`,
		userID, hookName,
	).Scan(&lastRun, &cooldown)
	if errors.Is(err, sql.ErrNoRows) {
		return out, nil
	}
	if err != nil {
		return store.HookRunState{}, err
	}

	if lastRun.Valid {
		t := lastRun.Time
		out.LastRunAt = &t
	}
	if cooldown.Valid {
		out.CooldownMinutes = int(cooldown.Int64)
	}
	return out, nil
}

func (s *HookStateStore) MarkRun(ctx context.Context, userID, hookName string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO hook_run_state (user_id, hook_name, last_run_at, cooldown_minutes)
		 VALUES ($1, $2, $3, NULL)
		 ON CONFLICT (user_id, hook_name) DO UPDATE SET last_run_at = EXCLUDED.last_run_at`,
		userID, hookName, at.UTC(),
	)
	return err
}

func (s *HookStateStore) SetCooldown(ctx context.Context, userID, hookName string, minutes int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO hook_run_state (user_id, hook_name, last_run_at, cooldown_minutes)
		 VALUES ($1, $2, NULL, $3)
		 ON CONFLICT (user_id, hook_name) DO UPDATE SET cooldown_minutes = EXCLUDED.cooldown_minutes`,
		userID, hookName, minutes,
	)
	return err
}
