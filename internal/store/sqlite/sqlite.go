// Package sqlite provides the standalone storage backend. SQLite in WAL mode
// is the single shared mutable resource between independently scheduled
// workers; every write is a whole-row upsert, never a read-modify-write.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/heraldbot/herald/internal/store"

	_ "modernc.org/sqlite"
)

// DB wraps the shared connection for all sqlite-backed stores.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database and bootstraps the schema.
func Open(path string) (*DB, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error { return d.db.Close() }

func (d *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS generation_locks (
		key           TEXT PRIMARY KEY,
		generation_id TEXT NOT NULL,
		acquired_at   TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS hook_run_state (
		user_id          TEXT NOT NULL,
		hook_name        TEXT NOT NULL,
		last_run_at      TEXT,
		cooldown_minutes INTEGER,
		PRIMARY KEY (user_id, hook_name)
	);

	CREATE TABLE IF NOT EXISTS scheduled_jobs (
		id              TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		is_group        INTEGER NOT NULL DEFAULT 0,
		name            TEXT NOT NULL,
		prompt          TEXT NOT NULL,
		cron_schedule   TEXT NOT NULL,
		timezone        TEXT NOT NULL,
		notify_mode     TEXT NOT NULL,
		enabled         INTEGER NOT NULL DEFAULT 1,
		last_run_at     TEXT,
		next_run_at     TEXT NOT NULL,
		last_result     TEXT NOT NULL DEFAULT '',
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL,
		UNIQUE (user_id, name)
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_due ON scheduled_jobs(enabled, next_run_at);
	CREATE INDEX IF NOT EXISTS idx_jobs_user ON scheduled_jobs(user_id);

	CREATE TABLE IF NOT EXISTS users (
		id           TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		active       INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS deliveries (
		id         TEXT PRIMARY KEY,
		target     TEXT NOT NULL,
		content    TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`
	_, err := d.db.Exec(schema)
	return err
}

// NewStores creates the full sqlite-backed store set sharing one connection.
func NewStores(path string) (*store.Stores, *DB, error) {
	d, err := Open(path)
	if err != nil {
		return nil, nil, err
	}
	return &store.Stores{
		Locks:      &LockStore{d},
		HookState:  &HookStateStore{d},
		Jobs:       &JobStore{d},
		Users:      &UserStore{d},
		Deliveries: &DeliveryStore{d},
	}, d, nil
}

const timeLayout = time.RFC3339Nano

func fmtTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || strings.TrimSpace(ns.String) == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// isUniqueViolation matches the sqlite unique-constraint error text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
