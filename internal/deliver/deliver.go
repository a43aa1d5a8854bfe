// Package deliver is the notification dispatcher: the single egress point
// through which both reactive replies and proactive notifications leave the
// engine. It rate-limits per conversation, hands messages to the transport
// via the bus, and records a delivery log row. The transport behind the bus
// owns the at-least-once contract; failures there are its to log, not ours
// to surface.
package deliver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/heraldbot/herald/internal/agent"
	"github.com/heraldbot/herald/internal/bus"
	"github.com/heraldbot/herald/internal/store"
)

// Target identifies where a notification goes.
type Target struct {
	ConversationID string
	IsGroup        bool
}

// Dispatcher fans finalized actions out to the transport.
type Dispatcher struct {
	bus        *bus.MessageBus
	deliveries store.DeliveryStore
	log        *slog.Logger

	// Per-conversation limiter: proactive sends must not burst into one chat.
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// New creates a Dispatcher. perMinute bounds sends per conversation; 0
// disables rate limiting.
func New(b *bus.MessageBus, deliveries store.DeliveryStore, perMinute int) *Dispatcher {
	d := &Dispatcher{
		bus:        b,
		deliveries: deliveries,
		log:        slog.With("component", "deliver"),
		limiters:   make(map[string]*rate.Limiter),
	}
	if perMinute > 0 {
		d.limit = rate.Limit(float64(perMinute) / 60.0)
		d.burst = perMinute
	}
	return d
}

func (d *Dispatcher) limiter(conversationID string) *rate.Limiter {
	if d.limit == 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	lim, ok := d.limiters[conversationID]
	if !ok {
		lim = rate.NewLimiter(d.limit, d.burst)
		d.limiters[conversationID] = lim
	}
	return lim
}

// Deliver sends each action to the target conversation. Returns an error only
// when the context is cancelled while waiting on the rate limiter; transport
// failures never come back through here.
func (d *Dispatcher) Deliver(ctx context.Context, target Target, actions []agent.Action) error {
	for _, a := range actions {
		text := a.Text
		if a.Kind == agent.ActionSendFile && text == "" {
			text = a.FilePath
		}
		if text == "" {
			continue
		}
		if err := d.DeliverText(ctx, target, text); err != nil {
			return err
		}
	}
	return nil
}

// DeliverText sends one message to the target conversation.
func (d *Dispatcher) DeliverText(ctx context.Context, target Target, text string) error {
	if lim := d.limiter(target.ConversationID); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return err
		}
	}

	d.bus.PublishOutbound(bus.OutboundMessage{
		ConversationID: target.ConversationID,
		IsGroup:        target.IsGroup,
		Content:        text,
	})

	if d.deliveries != nil {
		rec := store.Delivery{
			ID:        uuid.Must(uuid.NewV7()).String(),
			Target:    target.ConversationID,
			Content:   text,
			CreatedAt: time.Now(),
		}
		if err := d.deliveries.Record(ctx, rec); err != nil {
			d.log.Warn("delivery record failed", "target", target.ConversationID, "error", err)
		}
	}
	return nil
}
