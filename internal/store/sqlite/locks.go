package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// LockStore implements store.LockStore on sqlite.
type LockStore struct {
	d *DB
}

func (s *LockStore) Acquire(ctx context.Context, key, generationID string, at time.Time) error {
	_, err := s.d.db.ExecContext(ctx,
		`INSERT INTO generation_locks (key, generation_id, acquired_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   generation_id = excluded.generation_id,
		   acquired_at   = excluded.acquired_at`,
		key, generationID, fmtTime(at),
	)
	return err
}

func (s *LockStore) Current(ctx context.Context, key string) (string, error) {
	var genID string
	err := s.d.db.QueryRowContext(ctx,
		`SELECT generation_id FROM generation_locks WHERE key = ?`, key,
	).Scan(&genID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return genID, nil
}

func (s *LockStore) Release(ctx context.Context, key, generationID string) error {
	// Compare-and-clear: a release by a superseded generation matches no row.
	_, err := s.d.db.ExecContext(ctx,
		`DELETE FROM generation_locks WHERE key = ? AND generation_id = ?`,
		key, generationID,
	)
	return err
}
