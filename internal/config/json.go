// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Ledgerkeep Authors

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Duration wraps time.Duration so JSON config files can use human-readable
// strings like "15s" or "168h".
type Duration time.Duration

// UnmarshalJSON accepts either a duration string ("15s") or a raw nanosecond
// number.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("error parsing duration %q: %w", v, err)
		}
		*d = Duration(parsed)
		return nil
	case float64:
		*d = Duration(time.Duration(v))
		return nil
	default:
		return fmt.Errorf("invalid duration value: %v", raw)
	}
}

// StructuredJSONConfig mirrors [StructuredConfig] with JSON tags and
// string-friendly durations for file-based configuration.
type StructuredJSONConfig struct {
	Remote struct {
		BaseURL        string   `json:"base_url"`
		RequestTimeout Duration `json:"request_timeout"`
	} `json:"remote,omitempty"`

	Storage struct {
		DB struct {
			DSN string `json:"dsn"`
		} `json:"db,omitempty"`
	} `json:"storage,omitempty"`

	Sync struct {
		RetentionPeriod Duration `json:"retention_period"`
		SweepInterval   Duration `json:"sweep_interval"`
		FlushInterval   Duration `json:"flush_interval"`
		ProbeInterval   Duration `json:"probe_interval"`
	} `json:"sync,omitempty"`

	Realtime struct {
		SetupDelay       Duration `json:"setup_delay"`
		DebounceWindow   Duration `json:"debounce_window"`
		MaxSetupAttempts int      `json:"max_setup_attempts"`
		CoolDown         Duration `json:"cool_down"`
	} `json:"realtime,omitempty"`

	Log struct {
		FilePath string `json:"file_path"`
	} `json:"log,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		Remote: Remote{
			BaseURL:        jsonCfg.Remote.BaseURL,
			RequestTimeout: time.Duration(jsonCfg.Remote.RequestTimeout),
		},
		Storage: Storage{
			DB: DB{
				DSN: jsonCfg.Storage.DB.DSN,
			},
		},
		Sync: Sync{
			RetentionPeriod: time.Duration(jsonCfg.Sync.RetentionPeriod),
			SweepInterval:   time.Duration(jsonCfg.Sync.SweepInterval),
			FlushInterval:   time.Duration(jsonCfg.Sync.FlushInterval),
			ProbeInterval:   time.Duration(jsonCfg.Sync.ProbeInterval),
		},
		Realtime: Realtime{
			SetupDelay:       time.Duration(jsonCfg.Realtime.SetupDelay),
			DebounceWindow:   time.Duration(jsonCfg.Realtime.DebounceWindow),
			MaxSetupAttempts: jsonCfg.Realtime.MaxSetupAttempts,
			CoolDown:         time.Duration(jsonCfg.Realtime.CoolDown),
		},
		Log: Log{
			FilePath: jsonCfg.Log.FilePath,
		},
		JSONFilePath: "",
	}

	return cfg, nil
}
