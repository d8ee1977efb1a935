// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Ledgerkeep Authors

package models

import (
	"encoding/json"
	"time"
)

// EventKind is the kind of remote mutation carried by a ChangeEvent.
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// ChangeEvent is one remote mutation pushed over a live subscription.
type ChangeEvent struct {
	// Collection the mutation happened in.
	Collection Collection `json:"collection"`

	// Kind is insert, update or delete.
	Kind EventKind `json:"kind"`

	// Record is the affected entity body (for deletes, usually just the id).
	Record json.RawMessage `json:"record,omitempty"`

	// OccurredAt is the remote-side event timestamp.
	OccurredAt time.Time `json:"occurred_at"`
}

// SubscriptionState is the lifecycle state of one realtime subscription.
type SubscriptionState string

const (
	SubscriptionIdle         SubscriptionState = "idle"
	SubscriptionConnecting   SubscriptionState = "connecting"
	SubscriptionSubscribed   SubscriptionState = "subscribed"
	SubscriptionDisconnected SubscriptionState = "disconnected"
)
