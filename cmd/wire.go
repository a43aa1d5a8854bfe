package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/heraldbot/herald/internal/agent"
	"github.com/heraldbot/herald/internal/bootstrap"
	"github.com/heraldbot/herald/internal/bus"
	"github.com/heraldbot/herald/internal/config"
	"github.com/heraldbot/herald/internal/coord"
	"github.com/heraldbot/herald/internal/cronjobs"
	"github.com/heraldbot/herald/internal/debounce"
	"github.com/heraldbot/herald/internal/deliver"
	"github.com/heraldbot/herald/internal/fanout"
	"github.com/heraldbot/herald/internal/generate"
	"github.com/heraldbot/herald/internal/history"
	"github.com/heraldbot/herald/internal/hooks"
	"github.com/heraldbot/herald/internal/store"
	"github.com/heraldbot/herald/internal/store/memory"
	"github.com/heraldbot/herald/internal/store/pg"
	"github.com/heraldbot/herald/internal/store/sqlite"
)

func setupLogging() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))
}

// openStores creates the storage backend selected by config.
func openStores(cfg *config.Config) (*store.Stores, io.Closer, error) {
	switch cfg.Database.Backend {
	case "", "sqlite":
		path := config.ExpandHome(cfg.Database.SQLitePath)
		if err := bootstrap.EnsureDataDir(path); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
		stores, db, err := sqlite.NewStores(path)
		if err != nil {
			return nil, nil, err
		}
		return stores, db, nil
	case "postgres":
		if cfg.Database.PostgresDSN == "" {
			return nil, nil, fmt.Errorf("HERALD_POSTGRES_DSN environment variable is not set")
		}
		stores, db, err := pg.NewStores(store.Config{PostgresDSN: cfg.Database.PostgresDSN})
		if err != nil {
			return nil, nil, err
		}
		return stores, db, nil
	case "memory":
		return memory.NewStores(), io.NopCloser(nil), nil
	default:
		return nil, nil, fmt.Errorf("unknown database backend %q", cfg.Database.Backend)
	}
}

// engine bundles the wired runtime components.
type engine struct {
	bus        *bus.MessageBus
	stores     *store.Stores
	coord      *coord.Coordinator
	history    *history.Buffer
	dispatcher *deliver.Dispatcher
	debounce   *debounce.Coordinator
	cron       *cronjobs.Engine
	scheduler  *hooks.Scheduler
	fanout     *fanout.Dispatcher
	closer     io.Closer
}

// buildEngine wires the full engine on top of the configured store backend.
// The agent invoker is the stub until a model gateway is attached; every
// seam it plugs into is an interface.
func buildEngine(cfg *config.Config) (*engine, error) {
	stores, closer, err := openStores(cfg)
	if err != nil {
		return nil, err
	}

	msgBus := bus.New()
	coordinator := coord.New(stores.Locks, nil)
	dispatcher := deliver.New(msgBus, stores.Deliveries, cfg.Delivery.RatePerMinute)
	buffer := history.NewBuffer(0)

	var invoker agent.Invoker = agent.StubInvoker{}
	var judge agent.Judge = agent.StubJudge{}

	worker := generate.NewWorker(generate.Config{
		Coordinator: coordinator,
		Source:      buffer,
		Invoker:     invoker,
		Dispatcher:  dispatcher,
		Notices:     cfg.Engine.ProgressNotices,
	})
	deb := debounce.New(coordinator, worker,
		time.Duration(cfg.Engine.DebounceWindowMS)*time.Millisecond)

	cronEngine := cronjobs.NewEngine(cronjobs.EngineConfig{
		Jobs:         stores.Jobs,
		Invoker:      invoker,
		Judge:        judge,
		Dispatcher:   dispatcher,
		DisableAfter: cfg.Cron.DisableAfterFailures,
	})

	registry, err := hooks.NewRegistry(hooks.BuiltinDefinitions(cronEngine, hooks.Clients{}))
	if err != nil {
		return nil, fmt.Errorf("build hook registry: %w", err)
	}
	scheduler := hooks.NewScheduler(hooks.SchedulerConfig{
		Registry:   registry,
		State:      stores.HookState,
		Dispatcher: dispatcher,
	})

	return &engine{
		bus:        msgBus,
		stores:     stores,
		coord:      coordinator,
		history:    buffer,
		dispatcher: dispatcher,
		debounce:   deb,
		cron:       cronEngine,
		scheduler:  scheduler,
		fanout:     fanout.New(stores.Users, scheduler, cronEngine),
		closer:     closer,
	}, nil
}

func (e *engine) close() {
	if e.closer != nil {
		e.closer.Close()
	}
}
