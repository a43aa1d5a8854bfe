package hooks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/heraldbot/herald/internal/cronjobs"
)

// Hook names. The set is fixed at deploy time.
const (
	HookScheduledJobs      = "scheduled-jobs"
	HookCalendar           = "calendar"
	HookCodeHost           = "codehost"
	HookMail               = "mail"
	HookSocial             = "social"
	HookConnectionReminder = "connection-reminder"
	HookDeepResearch       = "deep-research"
)

// Clients bundles the optional collaborators behind the builtin hooks.
// Nil fields make the corresponding hook a quiet no-op for every user.
type Clients struct {
	Calendar CalendarClient
	CodeHost CodeHostClient
	Mail     MailClient
	Social   SocialClient
	Contacts ContactsClient
	Research ResearchClient
}

// dormantAfter is how long a contact must be silent before the
// connection-reminder hook suggests reaching out.
const dormantAfter = 60 * 24 * time.Hour

// BuiltinDefinitions returns the full proactive check set in its canonical
// priority order. User cron jobs run first so user-authored work is never
// starved by the builtin probes.
func BuiltinDefinitions(engine *cronjobs.Engine, clients Clients) []Definition {
	return []Definition{
		{
			Name:                   HookScheduledJobs,
			Priority:               0,
			DefaultCooldownMinutes: 5,
			Execute:                scheduledJobsHook(engine),
		},
		{
			Name:                   HookCalendar,
			Priority:               10,
			DefaultCooldownMinutes: 30,
			Execute:                calendarHook(clients.Calendar),
		},
		{
			Name:                   HookCodeHost,
			Priority:               20,
			DefaultCooldownMinutes: 60,
			Execute:                codeHostHook(clients.CodeHost),
		},
		{
			Name:                   HookMail,
			Priority:               30,
			DefaultCooldownMinutes: 60,
			Execute:                mailHook(clients.Mail),
		},
		{
			Name:                   HookSocial,
			Priority:               40,
			DefaultCooldownMinutes: 120,
			Execute:                socialHook(clients.Social),
		},
		{
			Name:                   HookConnectionReminder,
			Priority:               50,
			DefaultCooldownMinutes: 1440,
			Execute:                connectionReminderHook(clients.Contacts),
		},
		{
			Name:                   HookDeepResearch,
			Priority:               60,
			DefaultCooldownMinutes: 240,
			Execute:                deepResearchHook(clients.Research),
		},
	}
}

// scheduledJobsHook runs the user's due cron jobs. The jobs deliver their own
// results per their notify policy, so this hook never claims the pass's
// notification slot itself.
func scheduledJobsHook(engine *cronjobs.Engine) ExecuteFunc {
	return func(ctx context.Context, hctx Context) (Result, error) {
		if engine == nil {
			return Result{}, nil
		}
		if _, err := engine.RunDueForUser(ctx, hctx.UserID); err != nil {
			return Result{}, err
		}
		return Result{}, nil
	}
}

func calendarHook(client CalendarClient) ExecuteFunc {
	return func(ctx context.Context, hctx Context) (Result, error) {
		if client == nil {
			return Result{}, nil
		}
		events, err := client.UpcomingEvents(ctx, hctx.UserID, time.Hour)
		if err != nil {
			return Result{}, fmt.Errorf("calendar: %w", err)
		}
		if len(events) == 0 {
			return Result{}, nil
		}
		var b strings.Builder
		b.WriteString("Coming up:\n")
		for _, ev := range events {
			fmt.Fprintf(&b, "• %s at %s\n", ev.Title, ev.StartsAt.Format("15:04"))
		}
		return Result{ShouldNotify: true, Message: strings.TrimRight(b.String(), "\n")}, nil
	}
}

func codeHostHook(client CodeHostClient) ExecuteFunc {
	return func(ctx context.Context, hctx Context) (Result, error) {
		if client == nil {
			return Result{}, nil
		}
		reviews, err := client.PendingReviews(ctx, hctx.UserID)
		if err != nil {
			return Result{}, fmt.Errorf("codehost: %w", err)
		}
		if len(reviews) == 0 {
			return Result{}, nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%d review(s) waiting on you:\n", len(reviews))
		for _, r := range reviews {
			fmt.Fprintf(&b, "• %s — %s\n", r.Repo, r.Title)
		}
		return Result{ShouldNotify: true, Message: strings.TrimRight(b.String(), "\n")}, nil
	}
}

func mailHook(client MailClient) ExecuteFunc {
	return func(ctx context.Context, hctx Context) (Result, error) {
		if client == nil {
			return Result{}, nil
		}
		threads, err := client.FlaggedUnread(ctx, hctx.UserID)
		if err != nil {
			return Result{}, fmt.Errorf("mail: %w", err)
		}
		if len(threads) == 0 {
			return Result{}, nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%d flagged email(s) unread:\n", len(threads))
		for _, t := range threads {
			fmt.Fprintf(&b, "• %s: %s\n", t.From, t.Subject)
		}
		return Result{ShouldNotify: true, Message: strings.TrimRight(b.String(), "\n")}, nil
	}
}

func socialHook(client SocialClient) ExecuteFunc {
	return func(ctx context.Context, hctx Context) (Result, error) {
		if client == nil {
			return Result{}, nil
		}
		mentions, err := client.UnseenMentions(ctx, hctx.UserID)
		if err != nil {
			return Result{}, fmt.Errorf("social: %w", err)
		}
		if len(mentions) == 0 {
			return Result{}, nil
		}
		return Result{
			ShouldNotify: true,
			Message:      fmt.Sprintf("You have %d unseen mention(s), first from %s.", len(mentions), mentions[0].Author),
		}, nil
	}
}

func connectionReminderHook(client ContactsClient) ExecuteFunc {
	return func(ctx context.Context, hctx Context) (Result, error) {
		if client == nil {
			return Result{}, nil
		}
		contacts, err := client.DormantContacts(ctx, hctx.UserID, dormantAfter)
		if err != nil {
			return Result{}, fmt.Errorf("contacts: %w", err)
		}
		if len(contacts) == 0 {
			return Result{}, nil
		}
		c := contacts[0]
		return Result{
			ShouldNotify: true,
			Message: fmt.Sprintf("It's been a while since you talked to %s (last contact %s). Worth a message?",
				c.Name, c.LastContact.Format("Jan 2")),
		}, nil
	}
}

func deepResearchHook(client ResearchClient) ExecuteFunc {
	return func(ctx context.Context, hctx Context) (Result, error) {
		if client == nil {
			return Result{}, nil
		}
		since := hctx.Now.Add(-24 * time.Hour)
		if hctx.LastRunAt != nil {
			since = *hctx.LastRunAt
		}
		tasks, err := client.CompletedSince(ctx, hctx.UserID, since)
		if err != nil {
			return Result{}, fmt.Errorf("research: %w", err)
		}
		if len(tasks) == 0 {
			return Result{}, nil
		}
		var b strings.Builder
		b.WriteString("Research finished:\n")
		for _, t := range tasks {
			fmt.Fprintf(&b, "• %s — %s\n", t.Topic, t.Summary)
		}
		return Result{ShouldNotify: true, Message: strings.TrimRight(b.String(), "\n")}, nil
	}
}
