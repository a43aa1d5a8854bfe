// Package cronjobs executes user-authored scheduled jobs: prompts run against
// the same agent as reactive replies, on a cron schedule in the job's
// timezone, with a per-job notify policy.
package cronjobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/heraldbot/herald/internal/agent"
	"github.com/heraldbot/herald/internal/deliver"
	"github.com/heraldbot/herald/internal/store"
)

// FallbackInterval is used when an existing job's schedule can no longer be
// evaluated at run time: rather than leaving the job stuck, its next run is
// pushed a day out. Creation-time validation should make this path rare.
const FallbackInterval = 24 * time.Hour

// maxParallelJobs bounds how many due jobs run at once in a polling pass.
const maxParallelJobs = 8

// Engine runs scheduled jobs.
type Engine struct {
	jobs       store.JobStore
	invoker    agent.Invoker
	judge      agent.Judge
	dispatcher *deliver.Dispatcher
	sched      Schedule
	now        func() time.Time
	log        *slog.Logger

	// disableAfter disables a job after this many consecutive failures.
	// 0 means never — disabling is an explicit opt-in, not a default.
	disableAfter int

	mu       sync.Mutex
	failures map[string]int // jobID → consecutive failure count
}

// EngineConfig wires an Engine.
type EngineConfig struct {
	Jobs         store.JobStore
	Invoker      agent.Invoker
	Judge        agent.Judge
	Dispatcher   *deliver.Dispatcher
	Schedule     Schedule
	Now          func() time.Time
	DisableAfter int
}

// NewEngine creates an Engine. Schedule defaults to GronxSchedule, Now to time.Now.
func NewEngine(cfg EngineConfig) *Engine {
	sched := cfg.Schedule
	if sched == nil {
		sched = GronxSchedule{}
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Engine{
		jobs:         cfg.Jobs,
		invoker:      cfg.Invoker,
		judge:        cfg.Judge,
		dispatcher:   cfg.Dispatcher,
		sched:        sched,
		now:          nowFn,
		log:          slog.With("component", "cronjobs"),
		disableAfter: cfg.DisableAfter,
		failures:     make(map[string]int),
	}
}

// CreateParams describes a new job request.
type CreateParams struct {
	UserID         string
	ConversationID string
	IsGroup        bool
	Name           string
	Prompt         string
	CronSchedule   string
	Timezone       string
	NotifyMode     store.NotifyMode
}

// CreateJob validates and persists a new scheduled job. The schedule is
// validated before anything is persisted; a malformed expression or timezone
// rejects the request synchronously.
func (e *Engine) CreateJob(ctx context.Context, p CreateParams) (store.ScheduledJob, error) {
	if strings.TrimSpace(p.Name) == "" {
		return store.ScheduledJob{}, fmt.Errorf("cronjobs: job name is required")
	}
	if strings.TrimSpace(p.Prompt) == "" {
		return store.ScheduledJob{}, fmt.Errorf("cronjobs: job prompt is required")
	}
	if p.Timezone == "" {
		p.Timezone = "UTC"
	}
	if p.NotifyMode == "" {
		p.NotifyMode = store.NotifyAlways
	}
	if !p.NotifyMode.Valid() {
		return store.ScheduledJob{}, fmt.Errorf("cronjobs: unknown notify mode %q", p.NotifyMode)
	}
	if err := e.sched.Validate(p.CronSchedule, p.Timezone); err != nil {
		return store.ScheduledJob{}, err
	}

	now := e.now()
	next, err := e.sched.NextAfter(p.CronSchedule, p.Timezone, now)
	if err != nil {
		return store.ScheduledJob{}, err
	}

	job := store.ScheduledJob{
		ID:             uuid.Must(uuid.NewV7()).String(),
		UserID:         p.UserID,
		ConversationID: p.ConversationID,
		IsGroup:        p.IsGroup,
		Name:           p.Name,
		Prompt:         p.Prompt,
		CronSchedule:   p.CronSchedule,
		Timezone:       p.Timezone,
		NotifyMode:     p.NotifyMode,
		Enabled:        true,
		NextRunAt:      next,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.jobs.Create(ctx, job); err != nil {
		return store.ScheduledJob{}, err
	}
	e.log.Info("job created", "job", job.ID, "name", job.Name, "user", job.UserID,
		"schedule", job.CronSchedule, "next_run", job.NextRunAt)
	return job, nil
}

// SetEnabled enables or disables a job. Re-enabling recomputes NextRunAt so a
// stale value from the disabled period does not fire immediately.
func (e *Engine) SetEnabled(ctx context.Context, jobID string, enabled bool) error {
	if err := e.jobs.SetEnabled(ctx, jobID, enabled); err != nil {
		return err
	}
	if !enabled {
		return nil
	}
	job, err := e.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	now := e.now()
	next := e.nextRun(job, now)
	last := now
	if job.LastRunAt != nil {
		last = *job.LastRunAt
	}
	return e.jobs.UpdateRun(ctx, jobID, last, next, job.LastResult)
}

// RunReport is the outcome of one job execution.
type RunReport struct {
	JobID     string
	JobName   string
	Delivered bool
	Result    string
	Err       error
	Disabled  bool
}

// RunDue executes every enabled job whose next run time has passed. Each job
// runs in its own unit of work; one job's failure never touches its siblings.
func (e *Engine) RunDue(ctx context.Context) ([]RunReport, error) {
	now := e.now()
	due, err := e.jobs.Due(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("select due jobs: %w", err)
	}
	return e.runAll(ctx, due), nil
}

// RunDueForUser executes the due jobs belonging to one user. Used by the
// scheduled-jobs hook; the engine's bookkeeping makes a near-simultaneous
// polling pass a harmless extra no-op, never a duplicate run of side effects
// beyond one agent call.
func (e *Engine) RunDueForUser(ctx context.Context, userID string) ([]RunReport, error) {
	now := e.now()
	due, err := e.jobs.Due(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("select due jobs: %w", err)
	}
	var mine []store.ScheduledJob
	for _, j := range due {
		if j.UserID == userID {
			mine = append(mine, j)
		}
	}
	return e.runAll(ctx, mine), nil
}

func (e *Engine) runAll(ctx context.Context, due []store.ScheduledJob) []RunReport {
	if len(due) == 0 {
		return nil
	}
	reports := make([]RunReport, len(due))
	g := new(errgroup.Group)
	g.SetLimit(maxParallelJobs)
	for i, job := range due {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					reports[i] = RunReport{JobID: job.ID, JobName: job.Name,
						Err: fmt.Errorf("job panicked: %v", r)}
				}
			}()
			reports[i] = e.runJob(ctx, job)
			return nil
		})
	}
	g.Wait()
	for _, r := range reports {
		if r.Err != nil {
			e.log.Error("job run failed", "job", r.JobID, "name", r.JobName, "error", r.Err)
		}
	}
	return reports
}

// runJob executes one job end to end: agent call, notify decision, delivery,
// and run-state bookkeeping. NextRunAt and LastRunAt are updated after every
// attempt — success, no-op, or failure — so a broken job cannot retry-storm.
func (e *Engine) runJob(ctx context.Context, job store.ScheduledJob) RunReport {
	ctx, span := otel.Tracer("herald/cronjobs").Start(ctx, "cronjobs.run")
	span.SetAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("job.name", job.Name),
	)
	defer span.End()

	report := RunReport{JobID: job.ID, JobName: job.Name}
	ranAt := e.now()

	result, err := e.invoker.Invoke(ctx, agent.Request{
		ConversationID: job.ConversationID,
		IsGroup:        job.IsGroup,
		UserID:         job.UserID,
		Instruction:    job.Prompt,
	}, nil)

	var text string
	if err != nil {
		report.Err = fmt.Errorf("invoke agent: %w", err)
		text = "error: " + err.Error()
	} else {
		text = resultText(result)
		report.Result = text
		if text != "" && e.shouldNotify(ctx, job, text) {
			target := deliver.Target{ConversationID: job.ConversationID, IsGroup: job.IsGroup}
			if derr := e.dispatcher.DeliverText(ctx, target, text); derr != nil {
				report.Err = fmt.Errorf("deliver: %w", derr)
			} else {
				report.Delivered = true
			}
		}
	}

	next := e.nextRun(job, ranAt)
	if uerr := e.jobs.UpdateRun(ctx, job.ID, ranAt, next, text); uerr != nil {
		e.log.Error("job bookkeeping failed", "job", job.ID, "error", uerr)
		if report.Err == nil {
			report.Err = uerr
		}
	}

	report.Disabled = e.trackFailure(ctx, job.ID, report.Err)
	return report
}

// shouldNotify applies the job's notify policy. A judge failure suppresses
// the notification: the stated worst case is a missed proactive message,
// never a spurious one.
func (e *Engine) shouldNotify(ctx context.Context, job store.ScheduledJob, text string) bool {
	if job.NotifyMode != store.NotifySignificant {
		return true
	}
	if e.judge == nil {
		return false
	}
	significant, err := e.judge.IsSignificant(ctx, job.Prompt, text)
	if err != nil {
		e.log.Warn("significance check failed, suppressing", "job", job.ID, "error", err)
		return false
	}
	return significant
}

// nextRun recomputes the next occurrence, falling back to a day out when the
// stored schedule can no longer be evaluated.
func (e *Engine) nextRun(job store.ScheduledJob, after time.Time) time.Time {
	next, err := e.sched.NextAfter(job.CronSchedule, job.Timezone, after)
	if err != nil {
		e.log.Warn("schedule recompute failed, using fallback",
			"job", job.ID, "schedule", job.CronSchedule, "error", err)
		return after.Add(FallbackInterval)
	}
	return next
}

// trackFailure maintains the consecutive-failure count and disables the job
// once the configured threshold is crossed. Returns true when it disabled.
func (e *Engine) trackFailure(ctx context.Context, jobID string, runErr error) bool {
	e.mu.Lock()
	if runErr == nil {
		delete(e.failures, jobID)
		e.mu.Unlock()
		return false
	}
	e.failures[jobID]++
	count := e.failures[jobID]
	e.mu.Unlock()

	if e.disableAfter <= 0 || count < e.disableAfter {
		return false
	}
	if err := e.jobs.SetEnabled(ctx, jobID, false); err != nil {
		e.log.Error("failed to disable failing job", "job", jobID, "error", err)
		return false
	}
	e.log.Warn("job disabled after repeated failures", "job", jobID, "failures", count)
	return true
}

// resultText flattens agent actions into the text a notification carries.
func resultText(res agent.Result) string {
	var parts []string
	for _, a := range res.Actions {
		if a.Text != "" {
			parts = append(parts, a.Text)
		}
	}
	if len(parts) == 0 && res.Summary != "" {
		return res.Summary
	}
	return strings.Join(parts, "\n")
}
