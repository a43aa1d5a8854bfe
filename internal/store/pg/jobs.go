package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/heraldbot/herald/internal/store"
)

// JobStore implements store.JobStore on Postgres.
type JobStore struct {
	db *sql.DB
}

func (s *JobStore) Create(ctx context.Context, job store.ScheduledJob) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduled_jobs
		 (id, user_id, conversation_id, is_group, name, prompt, cron_schedule,
		  timezone, notify_mode, enabled, last_run_at, next_run_at, last_result,
		  created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULL, $11, '', $12, $13)`,
		job.ID, job.UserID, job.ConversationID, job.IsGroup, job.Name,
		job.Prompt, job.CronSchedule, job.Timezone, string(job.NotifyMode),
		job.Enabled, job.NextRunAt.UTC(), job.CreatedAt.UTC(), job.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return store.ErrDuplicateName
	}
	return err
}

func (s *JobStore) Get(ctx context.Context, id string) (store.ScheduledJob, error) {
	row := s.db.QueryRowContext(ctx, selectJob+` WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ScheduledJob{}, store.ErrNotFound
	}
	return job, err
}

func (s *JobStore) ListByUser(ctx context.Context, userID string) ([]store.ScheduledJob, error) {
	rows, err := s.db.QueryContext(ctx, selectJob+` WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (s *JobStore) Due(ctx context.Context, now time.Time) ([]store.ScheduledJob, error) {
	rows, err := s.db.QueryContext(ctx,
		selectJob+` WHERE enabled AND next_run_at <= $1 ORDER BY next_run_at`,
		now.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (s *JobStore) UpdateRun(ctx context.Context, id string, lastRunAt, nextRunAt time.Time, lastResult string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_jobs
		 SET last_run_at = $1, next_run_at = $2, last_result = $3, updated_at = now()
		 WHERE id = $4`,
		lastRunAt.UTC(), nextRunAt.UTC(), lastResult, id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *JobStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_jobs SET enabled = $1, updated_at = now() WHERE id = $2`,
		enabled, id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *JobStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_jobs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

const selectJob = `SELECT id, user_id, conversation_id, is_group, name, prompt,
	cron_schedule, timezone, notify_mode, enabled, last_run_at, next_run_at,
	last_result, created_at, updated_at FROM scheduled_jobs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(r rowScanner) (store.ScheduledJob, error) {
	var job store.ScheduledJob
	var notifyMode string
	var lastRun sql.NullTime
	err := r.Scan(&job.ID, &job.UserID, &job.ConversationID, &job.IsGroup, &job.Name,
		&job.Prompt, &job.CronSchedule, &job.Timezone, &notifyMode, &job.Enabled,
		&lastRun, &job.NextRunAt, &job.LastResult, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return store.ScheduledJob{}, err
	}
	job.NotifyMode = store.NotifyMode(notifyMode)
	if lastRun.Valid {
		t := lastRun.Time
		job.LastRunAt = &t
	}
	return job, nil
}

func scanJobs(rows *sql.Rows) ([]store.ScheduledJob, error) {
	var out []store.ScheduledJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
