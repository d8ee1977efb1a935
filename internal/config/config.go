// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Ledgerkeep Authors

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for the
// ledger-sync application. It aggregates all sub-configurations and is
// populated by merging values from a .env file, environment variables,
// command-line flags, and an optional JSON file.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env: direct environment variable name for scalar fields.
type StructuredConfig struct {
	// Remote holds the endpoint and timeout settings for the remote store.
	Remote Remote `envPrefix:"REMOTE_"`

	// Storage holds configuration for the durable local queue store.
	Storage Storage `envPrefix:"STORAGE_"`

	// Sync holds retention and background job settings for the local queue.
	Sync Sync `envPrefix:"SYNC_"`

	// Realtime holds debounce and loop-protection settings for the change
	// subscription manager.
	Realtime Realtime `envPrefix:"REALTIME_"`

	// Log holds client logging settings.
	Log Log `envPrefix:"LOG_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged on top of the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// Remote holds the settings for reaching the remote store.
type Remote struct {
	// BaseURL is the HTTP endpoint of the remote store
	// (e.g. "https://api.ledgerkeep.app").
	// Env: REMOTE_BASE_URL
	BaseURL string `env:"BASE_URL"`

	// RequestTimeout is the default timeout for outbound requests
	// (e.g. "15s").
	// Env: REMOTE_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// Storage groups the configuration for the durable local persistence layer.
type Storage struct {
	// DB holds the local SQLite settings.
	DB DB `envPrefix:"DB_"`
}

// DB holds connection settings for the local SQLite database that backs the
// sync queue and the cached identity slot.
type DB struct {
	// DSN is the SQLite file path used to open the local database
	// (e.g. "ledger-sync.db").
	// Env: STORAGE_DB_DATABASE_URI
	DSN string `env:"DATABASE_URI"`
}

// Sync holds retention and background job settings for the queue store.
type Sync struct {
	// RetentionPeriod is how long synced records are kept before the
	// retention sweep removes them (default 168h, i.e. 7 days).
	// Env: SYNC_RETENTION_PERIOD
	RetentionPeriod time.Duration `env:"RETENTION_PERIOD"`

	// SweepInterval is how often the background sweeper runs.
	// Env: SYNC_SWEEP_INTERVAL
	SweepInterval time.Duration `env:"SWEEP_INTERVAL"`

	// FlushInterval is how often the background flusher drains the queue.
	// Env: SYNC_FLUSH_INTERVAL
	FlushInterval time.Duration `env:"FLUSH_INTERVAL"`

	// ProbeInterval is how often the connectivity probe pings the remote.
	// Env: SYNC_PROBE_INTERVAL
	ProbeInterval time.Duration `env:"PROBE_INTERVAL"`
}

// Realtime holds tuning knobs for the realtime change manager.
type Realtime struct {
	// SetupDelay is the debounce window applied to channel setup, absorbing
	// rapid mount/unmount cycles (default 300ms).
	// Env: REALTIME_SETUP_DELAY
	SetupDelay time.Duration `env:"SETUP_DELAY"`

	// DebounceWindow is the per-handler event delivery debounce window
	// (default 1s).
	// Env: REALTIME_DEBOUNCE_WINDOW
	DebounceWindow time.Duration `env:"DEBOUNCE_WINDOW"`

	// MaxSetupAttempts is the consecutive-failure ceiling before the
	// manager enters a cool-down (default 3).
	// Env: REALTIME_MAX_SETUP_ATTEMPTS
	MaxSetupAttempts int `env:"MAX_SETUP_ATTEMPTS"`

	// CoolDown is how long the manager pauses after the attempt ceiling is
	// exceeded (default 5s).
	// Env: REALTIME_COOL_DOWN
	CoolDown time.Duration `env:"COOL_DOWN"`
}

// Log holds client logging settings.
type Log struct {
	// FilePath is the rotated client log file location.
	// Env: LOG_FILE_PATH
	FilePath string `env:"FILE_PATH"`
}

// GetStructuredConfig loads, merges, and validates the application
// configuration from all available sources in the following priority order
// (last source wins for non-zero fields):
//  1. Environment variables (after an optional .env file is loaded)
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
//  4. Built-in defaults for fields still unset
//
// Returns a fully populated *StructuredConfig or an error if any source
// fails to load or the final config fails validation.
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withDotEnv().
		withEnv().
		withFlags().
		withJSON().
		withDefaults().
		build()
}
