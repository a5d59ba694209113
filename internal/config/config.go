package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the callout client.
type Config struct {
	API        APIConfig
	Sync       SyncConfig
	Schedule   ScheduleConfig
	Provider   ProviderConfig
	Metrics    MetricsConfig
	HistoryDB  string // path to the resolution journal
	AutoAccept bool   // skip confirmation prompts (for scripting)
}

// APIConfig points the client at the dispatch backend.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"` // expanded from env var by Load
	Timeout time.Duration // per-request timeout
}

// SyncConfig controls the offer sync loop.
type SyncConfig struct {
	Interval   time.Duration // gap between offer syncs
	MaxRetries int           // additional attempts after a transient fetch failure
	RetryDelay time.Duration // delay before the first retry, doubled each attempt
}

// ScheduleConfig controls the schedule gate.
type ScheduleConfig struct {
	EarlyStartMinutes int // how early a scheduled job may be started
}

// ProviderConfig describes the signed-in provider.
type ProviderConfig struct {
	Level int `yaml:"level"` // service level 1-4
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"` // e.g. ":9090"
}

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as strings).
type rawConfig struct {
	API        rawAPIConfig   `yaml:"api"`
	Sync       rawSyncConfig  `yaml:"sync"`
	Schedule   rawSchedule    `yaml:"schedule"`
	Provider   ProviderConfig `yaml:"provider"`
	Metrics    MetricsConfig  `yaml:"metrics"`
	HistoryDB  string         `yaml:"history_db"`
	AutoAccept bool           `yaml:"auto_accept"`
}

type rawAPIConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
	Timeout string `yaml:"timeout"`
}

type rawSyncConfig struct {
	Interval   string `yaml:"interval"`
	MaxRetries *int   `yaml:"max_retries"`
	RetryDelay string `yaml:"retry_delay"`
}

type rawSchedule struct {
	EarlyStartMinutes int `yaml:"early_start_minutes"`
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables (API tokens live in the environment).
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if raw.API.BaseURL == "" {
		return nil, fmt.Errorf("api.base_url is required")
	}

	timeout := 30 * time.Second // default
	if raw.API.Timeout != "" {
		timeout, err = time.ParseDuration(raw.API.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parse api.timeout %q: %w", raw.API.Timeout, err)
		}
	}

	interval := 15 * time.Second // default
	if raw.Sync.Interval != "" {
		interval, err = time.ParseDuration(raw.Sync.Interval)
		if err != nil {
			return nil, fmt.Errorf("parse sync.interval %q: %w", raw.Sync.Interval, err)
		}
	}

	maxRetries := 2 // default
	if raw.Sync.MaxRetries != nil {
		if *raw.Sync.MaxRetries < 0 {
			return nil, fmt.Errorf("sync.max_retries must be >= 0, got %d", *raw.Sync.MaxRetries)
		}
		maxRetries = *raw.Sync.MaxRetries
	}

	retryDelay := 5 * time.Second // default
	if raw.Sync.RetryDelay != "" {
		retryDelay, err = time.ParseDuration(raw.Sync.RetryDelay)
		if err != nil {
			return nil, fmt.Errorf("parse sync.retry_delay %q: %w", raw.Sync.RetryDelay, err)
		}
	}

	earlyStart := 30 // default: 30 minutes
	if raw.Schedule.EarlyStartMinutes > 0 {
		earlyStart = raw.Schedule.EarlyStartMinutes
	}

	level := raw.Provider.Level
	if level == 0 {
		level = 1
	}
	if level < 1 || level > 4 {
		return nil, fmt.Errorf("provider.level must be 1-4, got %d", level)
	}

	historyDB := raw.HistoryDB
	if historyDB == "" {
		historyDB = "callout.db"
	}

	metricsCfg := raw.Metrics
	if metricsCfg.Enabled && metricsCfg.Addr == "" {
		metricsCfg.Addr = ":9090"
	}

	return &Config{
		API: APIConfig{
			BaseURL: raw.API.BaseURL,
			Token:   raw.API.Token,
			Timeout: timeout,
		},
		Sync: SyncConfig{
			Interval:   interval,
			MaxRetries: maxRetries,
			RetryDelay: retryDelay,
		},
		Schedule: ScheduleConfig{
			EarlyStartMinutes: earlyStart,
		},
		Provider:   ProviderConfig{Level: level},
		Metrics:    metricsCfg,
		HistoryDB:  historyDB,
		AutoAccept: raw.AutoAccept,
	}, nil
}
