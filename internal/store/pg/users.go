package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/heraldbot/herald/internal/store"
)

// UserStore implements store.UserStore on Postgres.
type UserStore struct {
	db *sql.DB
}

func (s *UserStore) ListActive(ctx context.Context) ([]store.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, display_name, active FROM users WHERE active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.User
	for rows.Next() {
		var u store.User
		if err := rows.Scan(&u.ID, &u.DisplayName, &u.Active); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *UserStore) Get(ctx context.Context, id string) (store.User, error) {
	var u store.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, display_name, active FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.DisplayName, &u.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, store.ErrNotFound
	}
	return u, err
}

func (s *UserStore) Upsert(ctx context.Context, u store.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, display_name, active) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET
		   display_name = EXCLUDED.display_name,
		   active       = EXCLUDED.active`,
		u.ID, u.DisplayName, u.Active,
	)
	return err
}

// DeliveryStore implements store.DeliveryStore on Postgres.
type DeliveryStore struct {
	db *sql.DB
}

func (s *DeliveryStore) Record(ctx context.Context, d store.Delivery) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries (id, target, content, created_at) VALUES ($1, $2, $3, $4)`,
		d.ID, d.Target, d.Content, d.CreatedAt.UTC(),
	)
	return err
}
