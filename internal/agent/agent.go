// Package agent defines the boundary to the LLM agent collaborator. The
// engine treats the agent as a black box: conversation context in, a list of
// actions (possibly empty) out. Everything behind Invoker — prompting, tool
// execution, model choice, timeouts — is owned by the collaborator.
package agent

import (
	"context"
	"time"
)

// Message is one turn of conversation context handed to the agent.
type Message struct {
	Role     string    `json:"role"` // "user" or "assistant"
	SenderID string    `json:"sender_id,omitempty"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sent_at"`
}

// ActionKind classifies what the agent wants done.
type ActionKind string

const (
	ActionSendMessage ActionKind = "send_message"
	ActionSendFile    ActionKind = "send_file"
)

// Action is one externally visible step the agent decided on.
type Action struct {
	Kind     ActionKind        `json:"kind"`
	Text     string            `json:"text,omitempty"`
	FilePath string            `json:"file_path,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Request is one agent invocation. Reactive replies set Messages; proactive
// runs (hooks, cron jobs) set Instruction instead.
type Request struct {
	ConversationID string
	IsGroup        bool
	UserID         string
	Messages       []Message
	Instruction    string
}

// Result is what the agent produced. Zero actions is a valid outcome: the
// agent chose not to respond.
type Result struct {
	Actions []Action
	Summary string
}

// ToolEvent is an intermediate signal that the agent invoked a tool. The
// engine may translate some tool kinds into best-effort progress notices.
type ToolEvent struct {
	Tool string
}

// Invoker runs the agent. onTool may be nil; when set it is called for each
// intermediate tool invocation, on the invoker's goroutine.
type Invoker interface {
	Invoke(ctx context.Context, req Request, onTool func(ToolEvent)) (Result, error)
}

// Judge decides whether a scheduled job's result is significant enough to
// deliver under NotifySignificant. An LLM-backed classifier in production.
type Judge interface {
	IsSignificant(ctx context.Context, prompt, result string) (bool, error)
}

// ContextSource fetches recent conversation state for a generation attempt.
// Backed by the chat-history persistence layer, which is outside this engine.
type ContextSource interface {
	RecentMessages(ctx context.Context, conversationID string, isGroup bool) ([]Message, error)
}
