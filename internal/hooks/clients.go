package hooks

import (
	"context"
	"time"
)

// The builtin hooks each talk to one narrow collaborator. OAuth handling,
// pagination, and API details live behind these interfaces; a nil client
// makes the corresponding hook report nothing.

// CalendarEvent is one upcoming calendar entry.
type CalendarEvent struct {
	Title    string
	StartsAt time.Time
}

// CalendarClient lists events that may need a reminder.
type CalendarClient interface {
	UpcomingEvents(ctx context.Context, userID string, within time.Duration) ([]CalendarEvent, error)
}

// ReviewRequest is one pending code review.
type ReviewRequest struct {
	Repo  string
	Title string
	URL   string
}

// CodeHostClient lists reviews waiting on the user.
type CodeHostClient interface {
	PendingReviews(ctx context.Context, userID string) ([]ReviewRequest, error)
}

// MailThread is one flagged unread conversation.
type MailThread struct {
	From    string
	Subject string
}

// MailClient lists mail that looks like it needs attention.
type MailClient interface {
	FlaggedUnread(ctx context.Context, userID string) ([]MailThread, error)
}

// Mention is one social-feed item addressed to the user.
type Mention struct {
	Author string
	Text   string
}

// SocialClient lists unseen mentions.
type SocialClient interface {
	UnseenMentions(ctx context.Context, userID string) ([]Mention, error)
}

// Contact is someone the user has not spoken to in a while.
type Contact struct {
	Name        string
	LastContact time.Time
}

// ContactsClient suggests dormant connections worth reviving.
type ContactsClient interface {
	DormantContacts(ctx context.Context, userID string, dormantFor time.Duration) ([]Contact, error)
}

// ResearchTask is one finished deep-research assignment.
type ResearchTask struct {
	Topic   string
	Summary string
}

// ResearchClient lists research tasks that completed since the last check.
type ResearchClient interface {
	CompletedSince(ctx context.Context, userID string, since time.Time) ([]ResearchTask, error)
}
