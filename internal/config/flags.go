// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Ledgerkeep Authors

package config

import (
	"flag"
	"time"
)

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-a remote store base URL
//	-d local SQLite database path
//	-c/-config json file path with configs
//	-request-timeout outbound request timeout (e.g., "15s")
//	-retention retention period for synced records (e.g., "168h")
//	-sweep-interval background retention sweep interval
//	-flush-interval background queue flush interval
//	-probe-interval connectivity probe interval
//	-setup-delay realtime channel setup debounce window
//	-debounce-window realtime per-handler delivery debounce window
//	-max-setup-attempts consecutive setup failure ceiling
//	-cool-down pause after the setup failure ceiling is exceeded
//	-log-file client log file path
func ParseFlags() *StructuredConfig {
	var baseURL string
	var databaseDSN string
	var jsonConfigPath string
	var requestTimeout time.Duration
	var retentionPeriod time.Duration
	var sweepInterval time.Duration
	var flushInterval time.Duration
	var probeInterval time.Duration
	var setupDelay time.Duration
	var debounceWindow time.Duration
	var maxSetupAttempts int
	var coolDown time.Duration
	var logFilePath string

	flag.StringVar(&baseURL, "a", "", "Remote store base URL")
	flag.StringVar(&databaseDSN, "d", "", "Local SQLite database path")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 15s)")
	flag.DurationVar(&retentionPeriod, "retention", 0, "Retention period for synced records (e.g., 168h)")
	flag.DurationVar(&sweepInterval, "sweep-interval", 0, "Retention sweep interval")
	flag.DurationVar(&flushInterval, "flush-interval", 0, "Queue flush interval")
	flag.DurationVar(&probeInterval, "probe-interval", 0, "Connectivity probe interval")
	flag.DurationVar(&setupDelay, "setup-delay", 0, "Realtime setup debounce window")
	flag.DurationVar(&debounceWindow, "debounce-window", 0, "Realtime delivery debounce window")
	flag.IntVar(&maxSetupAttempts, "max-setup-attempts", 0, "Setup failure ceiling before cool-down")
	flag.DurationVar(&coolDown, "cool-down", 0, "Cool-down after the setup failure ceiling")
	flag.StringVar(&logFilePath, "log-file", "", "Client log file path")

	flag.Parse()

	return &StructuredConfig{
		Remote: Remote{
			BaseURL:        baseURL,
			RequestTimeout: requestTimeout,
		},
		Storage: Storage{
			DB: DB{
				DSN: databaseDSN,
			},
		},
		Sync: Sync{
			RetentionPeriod: retentionPeriod,
			SweepInterval:   sweepInterval,
			FlushInterval:   flushInterval,
			ProbeInterval:   probeInterval,
		},
		Realtime: Realtime{
			SetupDelay:       setupDelay,
			DebounceWindow:   debounceWindow,
			MaxSetupAttempts: maxSetupAttempts,
			CoolDown:         coolDown,
		},
		Log: Log{
			FilePath: logFilePath,
		},
		JSONFilePath: jsonConfigPath,
	}
}
