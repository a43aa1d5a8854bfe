package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/heraldbot/herald/internal/deliver"
	"github.com/heraldbot/herald/internal/store"
)

// TargetResolver maps a user to the conversation their proactive
// notifications go to. The default sends to the user's DM conversation.
type TargetResolver func(userID string) deliver.Target

func defaultTarget(userID string) deliver.Target {
	return deliver.Target{ConversationID: userID}
}

// Scheduler runs one proactive pass per user: compute which hooks are due,
// execute them in priority order, deliver the first winner's message.
type Scheduler struct {
	registry   *Registry
	state      store.HookStateStore
	dispatcher *deliver.Dispatcher
	target     TargetResolver
	now        func() time.Time
	log        *slog.Logger
}

// SchedulerConfig wires a Scheduler.
type SchedulerConfig struct {
	Registry   *Registry
	State      store.HookStateStore
	Dispatcher *deliver.Dispatcher
	Target     TargetResolver
	Now        func() time.Time
}

// NewScheduler creates a Scheduler. Target defaults to the user's DM; Now to
// time.Now.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	target := cfg.Target
	if target == nil {
		target = defaultTarget
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Scheduler{
		registry:   cfg.Registry,
		state:      cfg.State,
		dispatcher: cfg.Dispatcher,
		target:     target,
		now:        nowFn,
		log:        slog.With("component", "hooks"),
	}
}

// HookOutcome records what happened to one hook during a pass.
type HookOutcome struct {
	Name         string
	Due          bool
	Ran          bool
	ShouldNotify bool
	Message      string
	Err          error
}

// PassReport summarizes one per-user scheduling pass.
type PassReport struct {
	UserID    string
	Outcomes  []HookOutcome
	Notified  string // name of the winning hook, "" when none notified
	Delivered bool
}

// RunPass executes one proactive pass for a user.
//
// Every due hook runs — errors and panics in one hook are contained and do
// not stop later hooks. A failed hook's run state is left untouched so it
// stays due and is retried next pass. After all due hooks ran, the first one
// in priority order with ShouldNotify wins; the others ran for their side
// effects but their notifications are suppressed, so one pass never stacks
// multiple proactive messages.
func (s *Scheduler) RunPass(ctx context.Context, userID string) (PassReport, error) {
	report := PassReport{UserID: userID}
	now := s.now()

	for _, def := range s.registry.Definitions() {
		outcome := HookOutcome{Name: def.Name}

		state, err := s.state.Get(ctx, userID, def.Name, def.DefaultCooldownMinutes)
		if err != nil {
			outcome.Err = fmt.Errorf("load run state: %w", err)
			report.Outcomes = append(report.Outcomes, outcome)
			s.log.Error("hook state load failed", "user", userID, "hook", def.Name, "error", err)
			continue
		}
		if !state.Due(now) {
			report.Outcomes = append(report.Outcomes, outcome)
			continue
		}
		outcome.Due = true

		res, err := s.executeIsolated(ctx, def, Context{UserID: userID, Now: now, LastRunAt: state.LastRunAt})
		if err != nil {
			// Fail open: no MarkRun, the hook stays due and retries next pass.
			outcome.Err = err
			report.Outcomes = append(report.Outcomes, outcome)
			s.log.Error("hook execution failed", "user", userID, "hook", def.Name, "error", err)
			continue
		}
		outcome.Ran = true
		outcome.ShouldNotify = res.ShouldNotify
		outcome.Message = res.Message

		if err := s.state.MarkRun(ctx, userID, def.Name, now); err != nil {
			s.log.Error("hook state update failed", "user", userID, "hook", def.Name, "error", err)
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	// First winner in priority order gets the single notification slot.
	for _, o := range report.Outcomes {
		if !o.Ran || !o.ShouldNotify || o.Message == "" {
			continue
		}
		report.Notified = o.Name
		if err := s.dispatcher.DeliverText(ctx, s.target(userID), o.Message); err != nil {
			s.log.Warn("hook notification delivery failed", "user", userID, "hook", o.Name, "error", err)
		} else {
			report.Delivered = true
		}
		break
	}

	return report, nil
}

// executeIsolated runs one hook with panic containment.
func (s *Scheduler) executeIsolated(ctx context.Context, def Definition, hctx Context) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = fmt.Errorf("hook %q panicked: %v", def.Name, r)
		}
	}()
	return def.Execute(ctx, hctx)
}
