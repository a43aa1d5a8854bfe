package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/heraldbot/herald/internal/store"
)

// JobStore implements store.JobStore on sqlite.
type JobStore struct {
	d *DB
}

func (s *JobStore) Create(ctx context.Context, job store.ScheduledJob) error {
	_, err := s.d.db.ExecContext(ctx,
		`INSERT INTO scheduled_jobs
		 (id, user_id, conversation_id, is_group, name, prompt, cron_schedule,
		  timezone, notify_mode, enabled, last_run_at, next_run_at, last_result,
		  created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, '', ?, ?)`,
		job.ID, job.UserID, job.ConversationID, boolToInt(job.IsGroup), job.Name,
		job.Prompt, job.CronSchedule, job.Timezone, string(job.NotifyMode),
		boolToInt(job.Enabled), fmtTime(job.NextRunAt),
		fmtTime(job.CreatedAt), fmtTime(job.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return store.ErrDuplicateName
	}
	return err
}

func (s *JobStore) Get(ctx context.Context, id string) (store.ScheduledJob, error) {
	row := s.d.db.QueryRowContext(ctx, selectJob+` WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ScheduledJob{}, store.ErrNotFound
	}
	return job, err
}

func (s *JobStore) ListByUser(ctx context.Context, userID string) ([]store.ScheduledJob, error) {
	rows, err := s.d.db.QueryContext(ctx, selectJob+` WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (s *JobStore) Due(ctx context.Context, now time.Time) ([]store.ScheduledJob, error) {
	rows, err := s.d.db.QueryContext(ctx,
		selectJob+` WHERE enabled = 1 AND next_run_at <= ? ORDER BY next_run_at`,
		fmtTime(now),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (s *JobStore) UpdateRun(ctx context.Context, id string, lastRunAt, nextRunAt time.Time, lastResult string) error {
	res, err := s.d.db.ExecContext(ctx,
		`UPDATE scheduled_jobs
		 SET last_run_at = ?, next_run_at = ?, last_result = ?, updated_at = ?
		 WHERE id = ?`,
		fmtTime(lastRunAt), fmtTime(nextRunAt), lastResult, fmtTime(time.Now()), id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *JobStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := s.d.db.ExecContext(ctx,
		`UPDATE scheduled_jobs SET enabled = ?, updated_at = ? WHERE id = ?`,
		boolToInt(enabled), fmtTime(time.Now()), id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *JobStore) Delete(ctx context.Context, id string) error {
	res, err := s.d.db.ExecContext(ctx, `DELETE FROM scheduled_jobs WHERE id = ?`, id)
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
	var (
		job              store.ScheduledJob
		isGroup, enabled int
		notifyMode       string
		lastRun          sql.NullString
		nextRun, cr, up  string
	)
	err := r.Scan(&job.ID, &job.UserID, &job.ConversationID, &isGroup, &job.Name,
		&job.Prompt, &job.CronSchedule, &job.Timezone, &notifyMode, &enabled,
		&lastRun, &nextRun, &job.LastResult, &cr, &up)
	if err != nil {
		return store.ScheduledJob{}, err
	}
	job.IsGroup = isGroup != 0
	job.Enabled = enabled != 0
	job.NotifyMode = store.NotifyMode(notifyMode)
	if job.LastRunAt, err = parseNullTime(lastRun); err != nil {
		return store.ScheduledJob{}, err
	}
	if job.NextRunAt, err = parseTime(nextRun); err != nil {
		return store.ScheduledJob{}, err
	}
	if job.CreatedAt, err = parseTime(cr); err != nil {
		return store.ScheduledJob{}, err
	}
	if job.UpdatedAt, err = parseTime(up); err != nil {
		return store.ScheduledJob{}, err
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

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
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
