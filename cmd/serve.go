package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/heraldbot/herald/internal/agent"
	"github.com/heraldbot/herald/internal/config"
	"github.com/heraldbot/herald/internal/observability"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the response and proactive-scheduling engine",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	setupLogging()

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.Setup(ctx, "herald", Version, cfg.Tracing)
	if err != nil {
		slog.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	eng, err := buildEngine(cfg)
	if err != nil {
		slog.Error("failed to build engine", "error", err)
		os.Exit(1)
	}
	defer eng.close()

	// Inbound: every persisted chat event becomes a debounced trigger.
	go func() {
		for {
			ev, ok := eng.bus.ConsumeInbound(ctx)
			if !ok {
				return
			}
			eng.history.Append(ev.ConversationID, agent.Message{
				Role:     "user",
				SenderID: ev.SenderID,
				Content:  ev.Content,
			})
			eng.debounce.OnTrigger(ctx, ev.ConversationID, ev.SenderID, ev.IsGroup)
		}
	}()

	// Outbound: drain deliveries to the attached transport. Until one is
	// attached, log them so standalone runs stay observable.
	go func() {
		for {
			msg, ok := eng.bus.SubscribeOutbound(ctx)
			if !ok {
				return
			}
			eng.history.Append(msg.ConversationID, agent.Message{
				Role:    "assistant",
				Content: msg.Content,
			})
			slog.Info("outbound message", "conversation", msg.ConversationID, "content", msg.Content)
		}
	}()

	// Config hot-reload for the knobs that are read per-use.
	go func() {
		err := config.Watch(ctx, cfgPath, func(fresh *config.Config) {
			eng.debounce.SetWindow(time.Duration(fresh.Engine.DebounceWindowMS) * time.Millisecond)
		})
		if err != nil {
			slog.Warn("config watch unavailable", "error", err)
		}
	}()

	go eng.fanout.Start(ctx,
		time.Duration(cfg.Fanout.IntervalSeconds)*time.Second,
		time.Duration(cfg.Cron.PollIntervalSeconds)*time.Second,
	)

	slog.Info("herald started",
		"version", Version,
		"backend", cfg.Database.Backend,
		"debounce_ms", cfg.Engine.DebounceWindowMS,
	)

	<-ctx.Done()
	slog.Info("shutting down")
	eng.debounce.Wait()
}
