// Package fanout is the top-level periodic trigger for proactive work: it
// enumerates eligible users and spawns one independent scheduling pass per
// user, so one user's slow or failing checks never block another's.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/heraldbot/herald/internal/cronjobs"
	"github.com/heraldbot/herald/internal/hooks"
	"github.com/heraldbot/herald/internal/store"
)

// maxParallelUsers bounds concurrent per-user passes.
const maxParallelUsers = 16

// PassRunner runs one per-user proactive scheduling pass.
type PassRunner interface {
	RunPass(ctx context.Context, userID string) (hooks.PassReport, error)
}

// CronRunner executes all due scheduled jobs.
type CronRunner interface {
	RunDue(ctx context.Context) ([]cronjobs.RunReport, error)
}

// Dispatcher drives the proactive side of the engine.
type Dispatcher struct {
	users     store.UserStore
	scheduler PassRunner
	cron      CronRunner
	log       *slog.Logger
}

// New creates a Dispatcher.
func New(users store.UserStore, scheduler PassRunner, cron CronRunner) *Dispatcher {
	return &Dispatcher{
		users:     users,
		scheduler: scheduler,
		cron:      cron,
		log:       slog.With("component", "fanout"),
	}
}

// RunOnce performs one fan-out pass. With a non-empty override the pass runs
// exactly those user IDs (operational testing); otherwise every active user.
// Failures are collected per user and reported in aggregate — one user's
// failure never prevents another's pass from being spawned.
func (d *Dispatcher) RunOnce(ctx context.Context, override []string) error {
	tracer := otel.Tracer("herald/fanout")
	ctx, span := tracer.Start(ctx, "fanout.pass")
	defer span.End()

	userIDs := override
	if len(userIDs) == 0 {
		users, err := d.users.ListActive(ctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		for _, u := range users {
			userIDs = append(userIDs, u.ID)
		}
	}
	span.SetAttributes(attribute.Int("users", len(userIDs)))

	failures := make([]error, len(userIDs))
	g := new(errgroup.Group)
	g.SetLimit(maxParallelUsers)
	for i, userID := range userIDs {
		g.Go(func() error {
			failures[i] = d.runUser(ctx, userID)
			return nil
		})
	}
	g.Wait()

	var errs []error
	for i, err := range failures {
		if err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", userIDs[i], err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// runUser executes one per-user pass with panic containment.
func (d *Dispatcher) runUser(ctx context.Context, userID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pass panicked: %v", r)
		}
	}()

	tracer := otel.Tracer("herald/fanout")
	ctx, span := tracer.Start(ctx, "fanout.user")
	span.SetAttributes(attribute.String("user.id", userID))
	defer span.End()

	report, err := d.scheduler.RunPass(ctx, userID)
	if err != nil {
		return err
	}
	if report.Notified != "" {
		d.log.Info("proactive notification sent", "user", userID, "hook", report.Notified,
			"delivered", report.Delivered)
	}
	return nil
}

// PollCron runs one due-job polling pass of the cron engine.
func (d *Dispatcher) PollCron(ctx context.Context) {
	reports, err := d.cron.RunDue(ctx)
	if err != nil {
		d.log.Error("cron poll failed", "error", err)
		return
	}
	for _, r := range reports {
		if r.Err == nil {
			d.log.Debug("cron job ran", "job", r.JobID, "name", r.JobName, "delivered", r.Delivered)
		}
	}
}

// Start runs periodic fan-out and cron polling until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context, fanoutEvery, cronEvery time.Duration) {
	fanoutTicker := time.NewTicker(fanoutEvery)
	cronTicker := time.NewTicker(cronEvery)
	defer fanoutTicker.Stop()
	defer cronTicker.Stop()

	d.log.Info("fanout started", "fanout_interval", fanoutEvery, "cron_interval", cronEvery)
	for {
		select {
		case <-ctx.Done():
			d.log.Info("fanout stopped")
			return
		case <-fanoutTicker.C:
			if err := d.RunOnce(ctx, nil); err != nil {
				d.log.Error("fanout pass had failures", "error", err)
			}
		case <-cronTicker.C:
			d.PollCron(ctx)
		}
	}
}
