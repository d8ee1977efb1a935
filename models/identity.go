// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Ledgerkeep Authors

package models

import "time"

// Identity is the last known authenticated principal together with the
// credentials needed to authorize remote requests.
type Identity struct {
	// UserID is the remote-assigned principal identifier.
	UserID string `json:"user_id"`

	// Tenant is the logical tenant the principal's data is scoped by.
	Tenant string `json:"tenant"`

	// Email is informational principal metadata, if the remote supplies it.
	Email string `json:"email,omitempty"`

	// Token is the bearer token attached to every outbound request.
	Token string `json:"token"`

	// CachedAt is the time the identity was last refreshed from the remote
	// store.
	CachedAt time.Time `json:"cached_at"`

	// FromCache marks an identity served from the persisted last-known-good
	// copy rather than a live remote session.
	FromCache bool `json:"from_cache,omitempty"`
}
