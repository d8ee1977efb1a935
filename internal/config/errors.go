package config

import "errors"

// Validation errors returned by [ClientConfig.validate] when required
// configuration groups are incomplete or invalid.
var (
	// ErrInvalidRemoteConfigs indicates invalid remote store settings
	// (for example, missing base URL or request timeout).
	ErrInvalidRemoteConfigs = errors.New("invalid remote configuration")
	// ErrInvalidStorageConfigs indicates invalid local storage settings
	// (for example, an empty DSN).
	ErrInvalidStorageConfigs = errors.New("invalid storage configuration")
	// ErrInvalidSyncConfigs indicates invalid retention or background job
	// settings (for example, a zero sweep interval).
	ErrInvalidSyncConfigs = errors.New("invalid sync configuration")
	// ErrInvalidRealtimeConfigs indicates invalid realtime manager settings
	// (for example, a zero debounce window or attempt ceiling).
	ErrInvalidRealtimeConfigs = errors.New("invalid realtime configuration")
)
