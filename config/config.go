// Package config loads tracker configuration from standard locations.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vinayprograms/taskkit/errors"
)

// Backend selects a storage implementation.
type Backend string

const (
	BackendFile   Backend = "file"
	BackendMemory Backend = "memory"
	BackendSQLite Backend = "sqlite"
)

// Config is the full tracker configuration, loadable from TOML.
type Config struct {
	Store    StoreConfig   `toml:"store"`
	Tracker  TrackerConfig `toml:"tracker"`
	Repair   RepairConfig  `toml:"repair"`
	Search   SearchConfig  `toml:"search"`
	LogLevel string        `toml:"log_level"`
}

// StoreConfig configures the storage backend.
type StoreConfig struct {
	// Backend is one of file, memory, sqlite.
	Backend Backend `toml:"backend"`

	// Path is the task file (file backend) or database file (sqlite).
	Path string `toml:"path"`

	// DebounceMillis coalesces rapid writes (file backend).
	DebounceMillis int `toml:"debounce_ms"`

	// RetryAttempts bounds write retries (file backend).
	RetryAttempts int `toml:"retry_attempts"`

	// RetryDelayMillis is the fixed delay between attempts.
	RetryDelayMillis int `toml:"retry_delay_ms"`
}

// TrackerConfig configures service behavior.
type TrackerConfig struct {
	// ReopenWindowHours bounds completed-to-pending transitions.
	ReopenWindowHours int `toml:"reopen_window_hours"`
}

// RepairConfig configures the background repair schedule.
type RepairConfig struct {
	// Enabled starts a repair schedule at startup.
	Enabled bool `toml:"enabled"`

	// IntervalMinutes is the schedule tick interval.
	IntervalMinutes int `toml:"interval_minutes"`

	// DryRun makes scheduled runs report-only.
	DryRun bool `toml:"dry_run"`

	// MaxRepairs caps repairs per scheduled run. Zero is unlimited.
	MaxRepairs int `toml:"max_repairs"`

	// HistorySize bounds the retained run summaries.
	HistorySize int `toml:"history_size"`
}

// SearchConfig configures the full-text index.
type SearchConfig struct {
	// IndexPath is the on-disk index directory. Empty keeps the index
	// in memory.
	IndexPath string `toml:"index_path"`
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:          BackendFile,
			Path:             "taskkit.json",
			DebounceMillis:   250,
			RetryAttempts:    3,
			RetryDelayMillis: 100,
		},
		Tracker: TrackerConfig{
			ReopenWindowHours: 24,
		},
		Repair: RepairConfig{
			IntervalMinutes: 60,
			HistorySize:     50,
		},
		LogLevel: "info",
	}
}

// StandardPaths returns the configuration file locations in priority
// order.
func StandardPaths() []string {
	paths := []string{"taskkit.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "taskkit", "config.toml"))
		paths = append(paths, filepath.Join(home, ".taskkit", "config.toml"))
	}
	return paths
}

// Load reads configuration from the first standard location that
// exists. A missing file is not an error: defaults apply.
func Load() (*Config, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			cfg, err := LoadFile(path)
			if err != nil {
				return nil, path, err
			}
			return cfg, path, nil
		}
	}
	return DefaultConfig(), "", nil
}

// LoadFile reads one configuration file. Values absent from the file
// keep their defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errors.Validation(
			fmt.Sprintf("parsing config file %s: %v", path, err))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendFile, BackendMemory, BackendSQLite:
	default:
		return errors.Validation(fmt.Sprintf("unknown store backend %q", c.Store.Backend))
	}
	if c.Store.Backend != BackendMemory && c.Store.Path == "" {
		return errors.Validation(fmt.Sprintf("%s backend requires a store path", c.Store.Backend))
	}
	if c.Store.DebounceMillis < 0 || c.Store.RetryAttempts < 0 || c.Store.RetryDelayMillis < 0 {
		return errors.Validation("store timings must not be negative")
	}
	if c.Tracker.ReopenWindowHours <= 0 {
		return errors.Validation("reopen window must be positive")
	}
	if c.Repair.Enabled && c.Repair.IntervalMinutes <= 0 {
		return errors.Validation("repair interval must be positive when the schedule is enabled")
	}
	if c.Repair.MaxRepairs < 0 || c.Repair.HistorySize < 0 {
		return errors.Validation("repair limits must not be negative")
	}
	return nil
}

// ReopenWindow returns the configured window as a duration.
func (c *Config) ReopenWindow() time.Duration {
	return time.Duration(c.Tracker.ReopenWindowHours) * time.Hour
}

// DebounceInterval returns the configured debounce as a duration.
func (c *Config) DebounceInterval() time.Duration {
	return time.Duration(c.Store.DebounceMillis) * time.Millisecond
}

// RetryDelay returns the configured retry delay as a duration.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Store.RetryDelayMillis) * time.Millisecond
}

// RepairInterval returns the configured schedule tick as a duration.
func (c *Config) RepairInterval() time.Duration {
	return time.Duration(c.Repair.IntervalMinutes) * time.Minute
}
