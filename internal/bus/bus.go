// Package bus is the in-process message bus between transports and the
// response engine. Transports publish inbound chat events; the engine
// publishes outbound messages that transports drain and deliver.
package bus

import (
	"context"
	"log/slog"
	"sync"
)

const defaultBuffer = 256

// MessageBus routes inbound events to the engine and fans outbound messages
// to whichever transport consumes them. Safe for concurrent use.
type MessageBus struct {
	inbound  chan InboundEvent
	outbound chan OutboundMessage

	mu     sync.Mutex
	closed bool
}

// New creates a MessageBus with default buffering.
func New() *MessageBus {
	return &MessageBus{
		inbound:  make(chan InboundEvent, defaultBuffer),
		outbound: make(chan OutboundMessage, defaultBuffer),
	}
}

// PublishInbound enqueues an inbound event. Drops with a warning when the
// buffer is full — a stalled engine must not block transports.
func (b *MessageBus) PublishInbound(ev InboundEvent) {
	select {
	case b.inbound <- ev:
	default:
		slog.Warn("inbound buffer full, dropping event",
			"conversation", ev.ConversationID, "sender", ev.SenderID)
	}
}

// ConsumeInbound blocks until an inbound event is available or ctx is done.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundEvent, bool) {
	select {
	case ev := <-b.inbound:
		return ev, true
	case <-ctx.Done():
		return InboundEvent{}, false
	}
}

// PublishOutbound enqueues a message for delivery.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	select {
	case b.outbound <- msg:
	default:
		slog.Warn("outbound buffer full, dropping message",
			"conversation", msg.ConversationID)
	}
}

// SubscribeOutbound blocks until an outbound message is available or ctx is done.
func (b *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case msg := <-b.outbound:
		return msg, true
	case <-ctx.Done():
		return OutboundMessage{}, false
	}
}
