// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Ledgerkeep Authors

package config

// validate checks that the final merged [StructuredConfig] satisfies all
// application invariants before it is used at startup.
//
// Returns nil if the configuration is valid, or a descriptive error
// otherwise.
func (cfg *StructuredConfig) validate() error {
	return nil
}

func (cfg *ClientConfig) validate() error {
	if cfg.Storage.DB.DSN == "" {
		return ErrInvalidStorageConfigs
	}

	if cfg.Remote.BaseURL == "" || cfg.Remote.RequestTimeout == 0 {
		return ErrInvalidRemoteConfigs
	}

	if cfg.Sync.RetentionPeriod <= 0 || cfg.Sync.SweepInterval <= 0 ||
		cfg.Sync.FlushInterval <= 0 || cfg.Sync.ProbeInterval <= 0 {
		return ErrInvalidSyncConfigs
	}

	if cfg.Realtime.DebounceWindow <= 0 || cfg.Realtime.SetupDelay <= 0 ||
		cfg.Realtime.MaxSetupAttempts <= 0 || cfg.Realtime.CoolDown <= 0 {
		return ErrInvalidRealtimeConfigs
	}

	return nil
}
