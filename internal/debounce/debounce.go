// Package debounce turns bursts of inbound chat events into single response
// attempts. Every trigger schedules its own delayed attempt; coalescing is
// not done here but falls out of the generation lock protocol — the attempt
// that acquires last wins, and earlier attempts abort themselves.
package debounce

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/heraldbot/herald/internal/coord"
	"github.com/heraldbot/herald/internal/generate"
)

// DefaultWindow is the quiet period after a trigger before generation starts.
const DefaultWindow = 1 * time.Second

// Coordinator schedules debounced generation attempts.
type Coordinator struct {
	coord  *coord.Coordinator
	worker *generate.Worker
	window atomic.Int64 // nanoseconds; mutable for config hot-reload
	log    *slog.Logger
	wg     sync.WaitGroup
}

// New creates a Coordinator. window <= 0 selects DefaultWindow.
func New(c *coord.Coordinator, w *generate.Worker, window time.Duration) *Coordinator {
	d := &Coordinator{
		coord:  c,
		worker: w,
		log:    slog.With("component", "debounce"),
	}
	d.SetWindow(window)
	return d
}

// SetWindow updates the quiet window. Attempts already waiting keep the old
// window; new triggers pick up the change.
func (d *Coordinator) SetWindow(window time.Duration) {
	if window <= 0 {
		window = DefaultWindow
	}
	d.window.Store(int64(window))
}

// OnTrigger handles one inbound chat event. It returns immediately; the
// attempt runs on its own goroutine after the quiet window. Group events
// key on (conversation, sender) so different participants debounce
// independently.
func (d *Coordinator) OnTrigger(ctx context.Context, conversationID, senderID string, isGroup bool) {
	key := coord.KeyFor(conversationID, senderID, isGroup)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.attempt(ctx, key, senderID)
	}()
}

// attempt waits out the quiet window, becomes the current generation, and
// runs the worker. Acquire after the window (not before) so the newest
// trigger is the one that ends up current.
func (d *Coordinator) attempt(ctx context.Context, key coord.Key, userID string) {
	timer := time.NewTimer(time.Duration(d.window.Load()))
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return
	}

	genID := coord.NewGenerationID()
	if err := d.coord.Acquire(ctx, key, genID); err != nil {
		d.log.Error("acquire failed", "key", key, "error", err)
		return
	}

	outcome, err := d.worker.Run(ctx, key, genID, userID)
	if err != nil {
		d.log.Error("generation failed", "key", key, "generation", genID, "error", err)
		return
	}
	d.log.Debug("generation finished", "key", key, "generation", genID, "outcome", outcome)
}

// Wait blocks until all scheduled attempts have finished. Used on shutdown
// and by tests.
func (d *Coordinator) Wait() {
	d.wg.Wait()
}
