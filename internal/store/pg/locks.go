package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// LockStore implements store.LockStore on Postgres.
type LockStore struct {
	db *sql.DB
}

func (s *LockStore) Acquire(ctx context.Context, key, generationID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generation_locks (key, generation_id, acquired_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET
		   generation_id = EXCLUDED.generation_id,
		   acquired_at   = EXCLUDED.acquired_at`,
		key, generationID, at.UTC(),
	)
	return err
}

func (s *LockStore) Current(ctx context.Context, key string) (string, error) {
	var genID string
	err := s.db.QueryRowContext(ctx,
		`SELECT generation_id FROM generation_locks WHERE key = $1`, key,
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
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM generation_locks WHERE key = $1 AND generation_id = $2`,
		key, generationID,
	)
	return err
}
