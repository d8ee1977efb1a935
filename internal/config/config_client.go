package config

import (
	"fmt"
	"time"
)

// ClientRemote holds network settings used by the client transport layer.
type ClientRemote struct {
	// BaseURL is the remote store endpoint used by the client.
	BaseURL string
	// RequestTimeout is the default timeout for outbound client requests.
	RequestTimeout time.Duration
}

// ClientDB contains local database connection settings for the client.
type ClientDB struct {
	// DSN is the SQLite file path used by the client.
	DSN string
}

// ClientStorage groups client storage backend settings.
type ClientStorage struct {
	// DB holds local database settings.
	DB ClientDB
}

// ClientSync contains retention and background job settings.
type ClientSync struct {
	// RetentionPeriod is how long synced records are kept before sweeping.
	RetentionPeriod time.Duration
	// SweepInterval defines how often the retention sweeper runs.
	SweepInterval time.Duration
	// FlushInterval defines how often the background flusher drains the queue.
	FlushInterval time.Duration
	// ProbeInterval defines how often the connectivity probe runs.
	ProbeInterval time.Duration
}

// ClientRealtime contains realtime change manager settings.
type ClientRealtime struct {
	// SetupDelay is the channel setup debounce window.
	SetupDelay time.Duration
	// DebounceWindow is the per-handler delivery debounce window.
	DebounceWindow time.Duration
	// MaxSetupAttempts is the consecutive failure ceiling.
	MaxSetupAttempts int
	// CoolDown is the pause applied once the ceiling is exceeded.
	CoolDown time.Duration
}

// ClientConfig is the top-level client configuration assembled from
// [StructuredConfig].
type ClientConfig struct {
	// Remote contains client transport addresses and timeouts.
	Remote ClientRemote
	// Storage contains client storage settings.
	Storage ClientStorage
	// Sync contains retention and background job settings.
	Sync ClientSync
	// Realtime contains change subscription settings.
	Realtime ClientRealtime
	// LogFilePath is the rotated client log file location.
	LogFilePath string
}

// GetClientConfig builds and validates a client-specific config view from the
// merged structured configuration.
//
// It loads the base config via [GetStructuredConfig], maps only the fields
// relevant to the client runtime, and validates the resulting [ClientConfig].
func GetClientConfig() (*ClientConfig, error) {
	cfg, err := GetStructuredConfig()
	if err != nil {
		return nil, fmt.Errorf("error get structured config: %w", err)
	}

	clientCfg := &ClientConfig{
		Remote: ClientRemote{
			BaseURL:        cfg.Remote.BaseURL,
			RequestTimeout: cfg.Remote.RequestTimeout,
		},
		Storage: ClientStorage{
			DB: ClientDB{
				DSN: cfg.Storage.DB.DSN,
			},
		},
		Sync: ClientSync{
			RetentionPeriod: cfg.Sync.RetentionPeriod,
			SweepInterval:   cfg.Sync.SweepInterval,
			FlushInterval:   cfg.Sync.FlushInterval,
			ProbeInterval:   cfg.Sync.ProbeInterval,
		},
		Realtime: ClientRealtime{
			SetupDelay:       cfg.Realtime.SetupDelay,
			DebounceWindow:   cfg.Realtime.DebounceWindow,
			MaxSetupAttempts: cfg.Realtime.MaxSetupAttempts,
			CoolDown:         cfg.Realtime.CoolDown,
		},
		LogFilePath: cfg.Log.FilePath,
	}

	return clientCfg, clientCfg.validate()
}
