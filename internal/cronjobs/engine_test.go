package cronjobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/heraldbot/herald/internal/agent"
	"github.com/heraldbot/herald/internal/bus"
	"github.com/heraldbot/herald/internal/deliver"
	"github.com/heraldbot/herald/internal/store"
	"github.com/heraldbot/herald/internal/store/memory"
)

func engineNow() time.Time {
	return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
}

// fakeSchedule lets a test control occurrence computation, including making it
// fail for a stored job whose expression has gone stale.
type fakeSchedule struct {
	next    time.Time
	nextErr error
}

func (f fakeSchedule) NextAfter(expr, tz string, after time.Time) (time.Time, error) {
	if f.nextErr != nil {
		return time.Time{}, f.nextErr
	}
	if !f.next.IsZero() {
		return f.next, nil
	}
	return after.Add(time.Hour), nil
}

func (f fakeSchedule) Validate(expr, tz string) error {
	if f.nextErr != nil {
		return f.nextErr
	}
	return nil
}

type scriptedInvoker struct {
	mu      sync.Mutex
	text    string
	err     error
	invokes int
}

func (s *scriptedInvoker) Invoke(ctx context.Context, req agent.Request, onTool func(agent.ToolEvent)) (agent.Result, error) {
	s.mu.Lock()
	s.invokes++
	s.mu.Unlock()
	if s.err != nil {
		return agent.Result{}, s.err
	}
	return agent.Result{Actions: []agent.Action{{Kind: agent.ActionSendMessage, Text: s.text}}}, nil
}

type scriptedJudge struct {
	significant bool
	err         error
}

func (j scriptedJudge) IsSignificant(ctx context.Context, prompt, result string) (bool, error) {
	return j.significant, j.err
}

type engineFixture struct {
	engine     *Engine
	jobs       *memory.JobStore
	deliveries *memory.DeliveryStore
}

func newEngineFixture(t *testing.T, cfg EngineConfig) *engineFixture {
	t.Helper()
	jobs := memory.NewJobStore()
	deliveries := memory.NewDeliveryStore()
	cfg.Jobs = jobs
	cfg.Dispatcher = deliver.New(bus.New(), deliveries, 0)
	if cfg.Now == nil {
		cfg.Now = engineNow
	}
	if cfg.Invoker == nil {
		cfg.Invoker = &scriptedInvoker{text: "done"}
	}
	return &engineFixture{engine: NewEngine(cfg), jobs: jobs, deliveries: deliveries}
}

func mustCreate(t *testing.T, f *engineFixture, p CreateParams) store.ScheduledJob {
	t.Helper()
	if p.CronSchedule == "" {
		p.CronSchedule = "0 9 * * *"
	}
	job, err := f.engine.CreateJob(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	return job
}

func TestCreateJobValidation(t *testing.T) {
	tests := []struct {
		name    string
		params  CreateParams
		wantErr string
	}{
		{"missing name", CreateParams{UserID: "u1", Prompt: "p", CronSchedule: "0 9 * * *"}, "name is required"},
		{"missing prompt", CreateParams{UserID: "u1", Name: "n", CronSchedule: "0 9 * * *"}, "prompt is required"},
		{"bad notify mode", CreateParams{UserID: "u1", Name: "n", Prompt: "p",
			CronSchedule: "0 9 * * *", NotifyMode: "sometimes"}, "unknown notify mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(t, EngineConfig{Schedule: fakeSchedule{}})
			_, err := f.engine.CreateJob(context.Background(), tt.params)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("CreateJob error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCreateJobRejectsInvalidSchedule(t *testing.T) {
	// Real evaluator: creation must fail synchronously for malformed
	// expressions and unknown timezones, before anything is persisted.
	f := newEngineFixture(t, EngineConfig{})

	_, err := f.engine.CreateJob(context.Background(), CreateParams{
		UserID: "u1", Name: "n", Prompt: "p", CronSchedule: "not a cron",
	})
	if !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("bad expression error = %v, want ErrInvalidSchedule", err)
	}

	_, err = f.engine.CreateJob(context.Background(), CreateParams{
		UserID: "u1", Name: "n", Prompt: "p", CronSchedule: "0 9 * * *", Timezone: "Mars/Olympus",
	})
	if !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("bad timezone error = %v, want ErrInvalidSchedule", err)
	}

	if jobs, _ := f.jobs.ListByUser(context.Background(), "u1"); len(jobs) != 0 {
		t.Fatal("rejected job was persisted")
	}
}

func TestCreateJobDefaults(t *testing.T) {
	f := newEngineFixture(t, EngineConfig{Schedule: fakeSchedule{}})
	job := mustCreate(t, f, CreateParams{UserID: "u1", ConversationID: "c1", Name: "n", Prompt: "p"})

	if job.Timezone != "UTC" {
		t.Errorf("Timezone = %q, want UTC default", job.Timezone)
	}
	if job.NotifyMode != store.NotifyAlways {
		t.Errorf("NotifyMode = %q, want always default", job.NotifyMode)
	}
	if !job.Enabled {
		t.Error("new jobs should be enabled")
	}
	if job.NextRunAt.IsZero() {
		t.Error("NextRunAt not computed at creation")
	}
	if job.ID == "" {
		t.Error("job id not assigned")
	}
}

func TestCreateJobDuplicateName(t *testing.T) {
	f := newEngineFixture(t, EngineConfig{Schedule: fakeSchedule{}})
	mustCreate(t, f, CreateParams{UserID: "u1", Name: "standup", Prompt: "p"})

	_, err := f.engine.CreateJob(context.Background(), CreateParams{
		UserID: "u1", Name: "standup", Prompt: "p", CronSchedule: "0 9 * * *",
	})
	if !errors.Is(err, store.ErrDuplicateName) {
		t.Fatalf("duplicate name error = %v, want ErrDuplicateName", err)
	}
}

func TestRunDueDeliversAndReschedules(t *testing.T) {
	next := engineNow().Add(time.Hour)
	f := newEngineFixture(t, EngineConfig{
		Invoker:  &scriptedInvoker{text: "market summary"},
		Schedule: fakeSchedule{next: next},
	})
	job := mustCreate(t, f, CreateParams{UserID: "u1", ConversationID: "c1", Name: "n", Prompt: "p"})

	// Make the job due.
	if err := f.jobs.UpdateRun(context.Background(), job.ID, engineNow().Add(-time.Hour),
		engineNow().Add(-time.Minute), ""); err != nil {
		t.Fatal(err)
	}

	reports, err := f.engine.RunDue(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 || !reports[0].Delivered || reports[0].Err != nil {
		t.Fatalf("reports = %+v, want one delivered run", reports)
	}
	if got := f.deliveries.Recorded(); len(got) != 1 || got[0].Content != "market summary" {
		t.Fatalf("deliveries = %v", got)
	}

	updated, err := f.jobs.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !updated.NextRunAt.Equal(next) {
		t.Errorf("NextRunAt = %v, want recomputed %v", updated.NextRunAt, next)
	}
	if updated.LastRunAt == nil || !updated.LastRunAt.Equal(engineNow()) {
		t.Errorf("LastRunAt = %v, want run time", updated.LastRunAt)
	}
	if updated.LastResult != "market summary" {
		t.Errorf("LastResult = %q", updated.LastResult)
	}
}

func TestRunDueSkipsDisabledAndFutureJobs(t *testing.T) {
	inv := &scriptedInvoker{text: "x"}
	f := newEngineFixture(t, EngineConfig{Invoker: inv, Schedule: fakeSchedule{}})

	// NextRunAt lands an hour out at creation, so this one stays future.
	mustCreate(t, f, CreateParams{UserID: "u1", ConversationID: "c1", Name: "future", Prompt: "p"})
	disabled := mustCreate(t, f, CreateParams{UserID: "u1", ConversationID: "c1", Name: "disabled", Prompt: "p"})
	if err := f.jobs.UpdateRun(context.Background(), disabled.ID, engineNow().Add(-time.Hour),
		engineNow().Add(-time.Minute), ""); err != nil {
		t.Fatal(err)
	}
	if err := f.jobs.SetEnabled(context.Background(), disabled.ID, false); err != nil {
		t.Fatal(err)
	}

	reports, err := f.engine.RunDue(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 0 || inv.invokes != 0 {
		t.Fatalf("ran %d jobs (%d invokes), want none", len(reports), inv.invokes)
	}
}

func TestRunDueFallbackWhenScheduleUnevaluable(t *testing.T) {
	// Creation validated fine, but the stored schedule fails at run time (for
	// example a timezone database change). The run itself proceeds and the
	// next occurrence falls back a day out instead of erroring.
	sched := &switchableSchedule{}
	f := newEngineFixture(t, EngineConfig{
		Invoker:  &scriptedInvoker{text: "result"},
		Schedule: sched,
	})
	job := mustCreate(t, f, CreateParams{UserID: "u1", ConversationID: "c1", Name: "n", Prompt: "p"})
	if err := f.jobs.UpdateRun(context.Background(), job.ID, engineNow().Add(-time.Hour),
		engineNow().Add(-time.Minute), ""); err != nil {
		t.Fatal(err)
	}

	sched.fail = true
	reports, err := f.engine.RunDue(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 || reports[0].Err != nil {
		t.Fatalf("reports = %+v, want one clean run despite the schedule failure", reports)
	}
	if !reports[0].Delivered {
		t.Fatal("the run itself should still deliver")
	}

	updated, err := f.jobs.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := engineNow().Add(FallbackInterval)
	if !updated.NextRunAt.Equal(want) {
		t.Errorf("NextRunAt = %v, want fallback %v", updated.NextRunAt, want)
	}
}

// switchableSchedule validates at creation, then can be flipped to fail.
type switchableSchedule struct {
	fail bool
}

func (s *switchableSchedule) NextAfter(expr, tz string, after time.Time) (time.Time, error) {
	if s.fail {
		return time.Time{}, ErrInvalidSchedule
	}
	return after.Add(time.Hour), nil
}

func (s *switchableSchedule) Validate(expr, tz string) error {
	return nil
}

func TestRunDueBookkeepingAfterFailure(t *testing.T) {
	// A failing agent call still advances NextRunAt so the job cannot
	// retry-storm every polling pass.
	f := newEngineFixture(t, EngineConfig{
		Invoker:  &scriptedInvoker{err: errors.New("model down")},
		Schedule: fakeSchedule{next: engineNow().Add(time.Hour)},
	})
	job := mustCreate(t, f, CreateParams{UserID: "u1", ConversationID: "c1", Name: "n", Prompt: "p"})
	if err := f.jobs.UpdateRun(context.Background(), job.ID, engineNow().Add(-time.Hour),
		engineNow().Add(-time.Minute), ""); err != nil {
		t.Fatal(err)
	}

	reports, err := f.engine.RunDue(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 || reports[0].Err == nil {
		t.Fatalf("reports = %+v, want one failed run", reports)
	}

	updated, err := f.jobs.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !updated.NextRunAt.Equal(engineNow().Add(time.Hour)) {
		t.Errorf("NextRunAt = %v, want advanced past the failure", updated.NextRunAt)
	}
	if len(f.deliveries.Recorded()) != 0 {
		t.Error("failed run should not deliver")
	}
}

func TestNotifySignificantGating(t *testing.T) {
	tests := []struct {
		name          string
		judge         agent.Judge
		wantDelivered bool
	}{
		{"significant", scriptedJudge{significant: true}, true},
		{"not significant", scriptedJudge{significant: false}, false},
		{"judge error suppresses", scriptedJudge{err: errors.New("judge down")}, false},
		{"no judge wired", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(t, EngineConfig{
				Invoker:  &scriptedInvoker{text: "finding"},
				Judge:    tt.judge,
				Schedule: fakeSchedule{},
			})
			job := mustCreate(t, f, CreateParams{
				UserID: "u1", ConversationID: "c1", Name: "n", Prompt: "p",
				NotifyMode: store.NotifySignificant,
			})
			if err := f.jobs.UpdateRun(context.Background(), job.ID, engineNow().Add(-time.Hour),
				engineNow().Add(-time.Minute), ""); err != nil {
				t.Fatal(err)
			}

			reports, err := f.engine.RunDue(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if len(reports) != 1 {
				t.Fatalf("reports = %d, want 1", len(reports))
			}
			if reports[0].Delivered != tt.wantDelivered {
				t.Errorf("Delivered = %v, want %v", reports[0].Delivered, tt.wantDelivered)
			}
			if got := len(f.deliveries.Recorded()) > 0; got != tt.wantDelivered {
				t.Errorf("recorded deliveries present = %v, want %v", got, tt.wantDelivered)
			}
		})
	}
}

func TestRunDueForUserFiltersOthers(t *testing.T) {
	inv := &scriptedInvoker{text: "x"}
	f := newEngineFixture(t, EngineConfig{Invoker: inv, Schedule: fakeSchedule{}})

	mine := mustCreate(t, f, CreateParams{UserID: "u1", ConversationID: "c1", Name: "mine", Prompt: "p"})
	other := mustCreate(t, f, CreateParams{UserID: "u2", ConversationID: "c2", Name: "other", Prompt: "p"})
	for _, id := range []string{mine.ID, other.ID} {
		if err := f.jobs.UpdateRun(context.Background(), id, engineNow().Add(-time.Hour),
			engineNow().Add(-time.Minute), ""); err != nil {
			t.Fatal(err)
		}
	}

	reports, err := f.engine.RunDueForUser(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 || reports[0].JobID != mine.ID {
		t.Fatalf("reports = %+v, want only u1's job", reports)
	}
}

func TestDisableAfterConsecutiveFailures(t *testing.T) {
	inv := &scriptedInvoker{err: errors.New("model down")}
	f := newEngineFixture(t, EngineConfig{
		Invoker:      inv,
		Schedule:     fakeSchedule{},
		DisableAfter: 2,
	})
	job := mustCreate(t, f, CreateParams{UserID: "u1", ConversationID: "c1", Name: "n", Prompt: "p"})

	makeDue := func() {
		t.Helper()
		if err := f.jobs.UpdateRun(context.Background(), job.ID, engineNow().Add(-time.Hour),
			engineNow().Add(-time.Minute), ""); err != nil {
			t.Fatal(err)
		}
		if err := f.jobs.SetEnabled(context.Background(), job.ID, true); err != nil {
			t.Fatal(err)
		}
	}

	makeDue()
	reports, err := f.engine.RunDue(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 || reports[0].Disabled {
		t.Fatalf("first failure disabled the job: %+v", reports)
	}

	makeDue()
	reports, err = f.engine.RunDue(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 || !reports[0].Disabled {
		t.Fatalf("second consecutive failure should disable: %+v", reports)
	}

	got, err := f.jobs.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Enabled {
		t.Fatal("job still enabled after crossing the failure threshold")
	}
}

func TestDisableAfterZeroNeverDisables(t *testing.T) {
	inv := &scriptedInvoker{err: errors.New("model down")}
	f := newEngineFixture(t, EngineConfig{Invoker: inv, Schedule: fakeSchedule{}})
	job := mustCreate(t, f, CreateParams{UserID: "u1", ConversationID: "c1", Name: "n", Prompt: "p"})

	for i := 0; i < 5; i++ {
		if err := f.jobs.UpdateRun(context.Background(), job.ID, engineNow().Add(-time.Hour),
			engineNow().Add(-time.Minute), ""); err != nil {
			t.Fatal(err)
		}
		if _, err := f.engine.RunDue(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	got, err := f.jobs.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Enabled {
		t.Fatal("job disabled although no threshold is configured")
	}
}

func TestSetEnabledRecomputesNextRun(t *testing.T) {
	next := engineNow().Add(30 * time.Minute)
	f := newEngineFixture(t, EngineConfig{Schedule: fakeSchedule{next: next}})
	job := mustCreate(t, f, CreateParams{UserID: "u1", ConversationID: "c1", Name: "n", Prompt: "p"})

	if err := f.engine.SetEnabled(context.Background(), job.ID, false); err != nil {
		t.Fatal(err)
	}
	if err := f.engine.SetEnabled(context.Background(), job.ID, true); err != nil {
		t.Fatal(err)
	}

	got, err := f.jobs.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.NextRunAt.Equal(next) {
		t.Errorf("NextRunAt = %v after re-enable, want recomputed %v", got.NextRunAt, next)
	}
}

func TestResultText(t *testing.T) {
	tests := []struct {
		name string
		res  agent.Result
		want string
	}{
		{"joins action text", agent.Result{Actions: []agent.Action{
			{Text: "one"}, {Text: "two"},
		}}, "one\ntwo"},
		{"summary fallback", agent.Result{Summary: "quiet day"}, "quiet day"},
		{"empty", agent.Result{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resultText(tt.res); got != tt.want {
				t.Errorf("resultText = %q, want %q", got, tt.want)
			}
		})
	}
}
