// Package generate runs one response generation attempt: fetch context,
// invoke the agent, deliver the resulting actions — while continuously
// checking that the attempt has not been superseded by a newer trigger.
package generate

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/heraldbot/herald/internal/agent"
	"github.com/heraldbot/herald/internal/coord"
	"github.com/heraldbot/herald/internal/deliver"
)

// Outcome is the terminal state of a generation attempt. Only OutcomeError
// pairs with a non-nil error; everything else is a successful result, even
// when nothing was sent.
type Outcome string

const (
	OutcomeDelivered  Outcome = "delivered"
	OutcomeNoMessages Outcome = "no_messages"
	OutcomeNoActions  Outcome = "no_actions"
	OutcomeSuperseded Outcome = "superseded"
	OutcomeError      Outcome = "error"
)

// Worker orchestrates generation attempts. It holds no per-attempt state;
// the coordination store is the only authority on who may act.
type Worker struct {
	coord      *coord.Coordinator
	source     agent.ContextSource
	invoker    agent.Invoker
	dispatcher *deliver.Dispatcher

	// notices maps a tool kind to the human-readable progress notice sent
	// while that tool runs. Tools without an entry stay silent.
	notices map[string]string

	log *slog.Logger
}

// Config wires a Worker.
type Config struct {
	Coordinator *coord.Coordinator
	Source      agent.ContextSource
	Invoker     agent.Invoker
	Dispatcher  *deliver.Dispatcher
	Notices     map[string]string
}

// NewWorker creates a Worker.
func NewWorker(cfg Config) *Worker {
	return &Worker{
		coord:      cfg.Coordinator,
		source:     cfg.Source,
		invoker:    cfg.Invoker,
		dispatcher: cfg.Dispatcher,
		notices:    cfg.Notices,
		log:        slog.With("component", "generate"),
	}
}

// Run executes one generation attempt for key under genID. The caller must
// have acquired the generation already. Suspension points — places where the
// attempt re-checks that it is still current — are: before invoking the
// agent, before each progress notice, and before final delivery. On the
// first failed check the attempt stops without releasing: the lock belongs
// to someone newer now.
func (w *Worker) Run(ctx context.Context, key coord.Key, genID string, userID string) (Outcome, error) {
	ctx, span := otel.Tracer("herald/generate").Start(ctx, "generate.run")
	span.SetAttributes(
		attribute.String("coord.key", string(key)),
		attribute.String("generation.id", genID),
	)
	defer span.End()

	target := deliver.Target{
		ConversationID: key.ConversationID(),
		IsGroup:        key.IsGroup(),
	}

	messages, err := w.source.RecentMessages(ctx, target.ConversationID, target.IsGroup)
	if err != nil {
		w.coord.Release(ctx, key, genID)
		return OutcomeError, fmt.Errorf("fetch context: %w", err)
	}
	if len(messages) == 0 {
		// Nothing to respond to; a clean no-op, not an error.
		w.coord.Release(ctx, key, genID)
		return OutcomeNoMessages, nil
	}

	if !w.coord.IsCurrent(ctx, key, genID) {
		return OutcomeSuperseded, nil
	}

	req := agent.Request{
		ConversationID: target.ConversationID,
		IsGroup:        target.IsGroup,
		UserID:         userID,
		Messages:       messages,
	}

	result, err := w.invoker.Invoke(ctx, req, func(ev agent.ToolEvent) {
		w.progressNotice(ctx, key, genID, target, ev)
	})
	if err != nil {
		w.coord.Release(ctx, key, genID)
		w.log.Error("agent invocation failed", "key", key, "generation", genID, "error", err)
		return OutcomeError, fmt.Errorf("invoke agent: %w", err)
	}

	// The agent may have finished after a newer trigger took over; its
	// output is discarded then, unconditionally.
	if !w.coord.IsCurrent(ctx, key, genID) {
		w.log.Debug("superseded after agent call, discarding output", "key", key, "generation", genID)
		return OutcomeSuperseded, nil
	}

	if len(result.Actions) == 0 {
		// The agent chose not to respond. Valid terminal outcome.
		w.coord.Release(ctx, key, genID)
		return OutcomeNoActions, nil
	}

	if err := w.dispatcher.Deliver(ctx, target, result.Actions); err != nil {
		w.coord.Release(ctx, key, genID)
		return OutcomeError, fmt.Errorf("deliver: %w", err)
	}

	w.coord.Release(ctx, key, genID)
	w.log.Info("generation delivered", "key", key, "generation", genID, "actions", len(result.Actions))
	return OutcomeDelivered, nil
}

// progressNotice sends one best-effort "working on it" message for a tool
// invocation. Failures are logged and never abort the main attempt.
func (w *Worker) progressNotice(ctx context.Context, key coord.Key, genID string, target deliver.Target, ev agent.ToolEvent) {
	notice, ok := w.notices[ev.Tool]
	if !ok || notice == "" {
		return
	}
	if !w.coord.IsCurrent(ctx, key, genID) {
		return
	}
	if err := w.dispatcher.DeliverText(ctx, target, notice); err != nil {
		w.log.Warn("progress notice failed", "key", key, "tool", ev.Tool, "error", err)
	}
}
