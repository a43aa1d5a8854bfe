package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/heraldbot/herald/internal/store"
)

// UserStore implements store.UserStore on sqlite.
type UserStore struct {
	d *DB
}

func (s *UserStore) ListActive(ctx context.Context) ([]store.User, error) {
	rows, err := s.d.db.QueryContext(ctx,
		`SELECT id, display_name, active FROM users WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *UserStore) Get(ctx context.Context, id string) (store.User, error) {
	row := s.d.db.QueryRowContext(ctx,
		`SELECT id, display_name, active FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, store.ErrNotFound
	}
	return u, err
}

func (s *UserStore) Upsert(ctx context.Context, u store.User) error {
	_, err := s.d.db.ExecContext(ctx,
		`INSERT INTO users (id, display_name, active) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   display_name = excluded.display_name,
		   active       = excluded.active`,
		u.ID, u.DisplayName, boolToInt(u.Active),
	)
	return err
}

func scanUser(r rowScanner) (store.User, error) {
	var u store.User
	var active int
	if err := r.Scan(&u.ID, &u.DisplayName, &active); err != nil {
		return store.User{}, err
	}
	u.Active = active != 0
	return u, nil
}

// DeliveryStore implements store.DeliveryStore on sqlite.
type DeliveryStore struct {
	d *DB
}

func (s *DeliveryStore) Record(ctx context.Context, d store.Delivery) error {
	_, err := s.d.db.ExecContext(ctx,
		`INSERT INTO deliveries (id, target, content, created_at) VALUES (?, ?, ?, ?)`,
		d.ID, d.Target, d.Content, fmtTime(d.CreatedAt),
	)
	return err
}
