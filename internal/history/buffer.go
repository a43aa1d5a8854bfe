// Package history keeps a bounded in-memory window of recent conversation
// messages. The durable chat archive lives upstream; this buffer only feeds
// generation attempts with enough recent context to respond.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/heraldbot/herald/internal/agent"
)

// DefaultLimit is the per-conversation message cap.
const DefaultLimit = 50

// Buffer implements agent.ContextSource over an in-memory window.
type Buffer struct {
	mu    sync.RWMutex
	convs map[string][]agent.Message
	limit int
}

// NewBuffer creates a Buffer. limit <= 0 selects DefaultLimit.
func NewBuffer(limit int) *Buffer {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Buffer{
		convs: make(map[string][]agent.Message),
		limit: limit,
	}
}

// Append records one message, evicting the oldest past the cap.
func (b *Buffer) Append(conversationID string, msg agent.Message) {
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := append(b.convs[conversationID], msg)
	if len(msgs) > b.limit {
		msgs = msgs[len(msgs)-b.limit:]
	}
	b.convs[conversationID] = msgs
}

// RecentMessages returns a copy of the conversation window.
func (b *Buffer) RecentMessages(ctx context.Context, conversationID string, isGroup bool) ([]agent.Message, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	msgs := b.convs[conversationID]
	out := make([]agent.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}
