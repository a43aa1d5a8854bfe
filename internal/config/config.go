// Package config loads herald's configuration: defaults, a JSON5 file, then
// environment overrides. Secrets (the Postgres DSN) come from the
// environment only, never the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"

	"github.com/heraldbot/herald/internal/observability"
)

// Config is the full engine configuration.
type Config struct {
	Engine   EngineConfig                `json:"engine"`
	Fanout   FanoutConfig                `json:"fanout"`
	Cron     CronConfig                  `json:"cron"`
	Delivery DeliveryConfig              `json:"delivery"`
	Database DatabaseConfig              `json:"database"`
	Tracing  observability.TracingConfig `json:"tracing"`
}

// EngineConfig tunes response generation.
type EngineConfig struct {
	// DebounceWindowMS is the quiet period after an inbound message before a
	// generation attempt starts.
	DebounceWindowMS int `json:"debounce_window_ms"`
	// ProgressNotices maps agent tool kinds to the human-readable notice sent
	// while that tool runs. Tools without an entry stay silent.
	ProgressNotices map[string]string `json:"progress_notices"`
}

// FanoutConfig tunes the proactive scheduling pass.
type FanoutConfig struct {
	IntervalSeconds int `json:"interval_seconds"`
}

// CronConfig tunes the scheduled-job engine.
type CronConfig struct {
	PollIntervalSeconds int `json:"poll_interval_seconds"`
	// DisableAfterFailures disables a job after this many consecutive
	// failures. 0 keeps failing jobs enabled.
	DisableAfterFailures int `json:"disable_after_failures"`
}

// DeliveryConfig tunes the notification dispatcher.
type DeliveryConfig struct {
	// RatePerMinute caps outbound messages per conversation. 0 = unlimited.
	RatePerMinute int `json:"rate_per_minute"`
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	// Backend is "sqlite" (default), "postgres", or "memory".
	Backend string `json:"backend"`
	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `json:"sqlite_path"`
	// PostgresDSN is populated from HERALD_POSTGRES_DSN only.
	PostgresDSN string `json:"-"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			DebounceWindowMS: 1000,
			ProgressNotices: map[string]string{
				"web_search":    "Looking that up…",
				"deep_research": "Digging into it, this may take a bit…",
			},
		},
		Fanout: FanoutConfig{
			IntervalSeconds: 300,
		},
		Cron: CronConfig{
			PollIntervalSeconds:  60,
			DisableAfterFailures: 0,
		},
		Delivery: DeliveryConfig{
			RatePerMinute: 20,
		},
		Database: DatabaseConfig{
			Backend:    "sqlite",
			SQLitePath: "~/.herald/herald.db",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file is not an error; defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("HERALD_POSTGRES_DSN"); v != "" {
		c.Database.PostgresDSN = v
	}
	if v := os.Getenv("HERALD_DB_BACKEND"); v != "" {
		c.Database.Backend = v
	}
	if v := os.Getenv("HERALD_SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("HERALD_DEBOUNCE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Engine.DebounceWindowMS = n
		}
	}
	if v := os.Getenv("HERALD_OTLP_ENDPOINT"); v != "" {
		c.Tracing.Enabled = true
		c.Tracing.OTLPEndpoint = v
	}
}

// ExpandHome expands a leading ~/ to the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
