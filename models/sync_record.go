// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Ledgerkeep Authors

package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Operation is the kind of mutation a SyncRecord carries.
type Operation string

const (
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// ParseOperation validates a raw operation name.
func ParseOperation(op string) (Operation, error) {
	switch Operation(op) {
	case OperationInsert, OperationUpdate, OperationDelete:
		return Operation(op), nil
	}
	return "", fmt.Errorf("unknown operation %q", op)
}

// SyncStatus is the lifecycle state of a SyncRecord. Records start pending
// and move to synced or error once the remote store acknowledges or rejects
// the mutation.
type SyncStatus string

const (
	StatusPending SyncStatus = "pending"
	StatusSynced  SyncStatus = "synced"
	StatusError   SyncStatus = "error"
)

// SyncRecord is one locally buffered mutation awaiting (or having received)
// remote confirmation. The payload is the opaque entity body; this layer
// never looks inside it.
type SyncRecord struct {
	// ID is the caller-assigned identifier correlating the local mutation to
	// the remote entity.
	ID string `json:"id"`

	// EntityType is the domain collection the mutation targets.
	EntityType Collection `json:"entity_type"`

	// Operation is one of insert, update, delete.
	Operation Operation `json:"operation"`

	// Payload is the opaque entity body.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Status is pending until remote acknowledgment, then synced or error.
	Status SyncStatus `json:"status"`

	// LastError holds the most recent sync failure message, if any.
	LastError string `json:"last_error,omitempty"`

	// RetryCount is incremented on each failed sync attempt. Bookkeeping
	// only: retry timing is a caller policy.
	RetryCount int `json:"retry_count"`

	// OwnerID scopes the record to the authenticated actor.
	OwnerID string `json:"owner_id"`

	// Timestamp is the creation time, used for retention and ordering.
	Timestamp time.Time `json:"timestamp"`
}

// QueueKey returns the composite key under which at most one keyed record
// may exist at a time.
func (r SyncRecord) QueueKey() string {
	return fmt.Sprintf("%s_%s", r.EntityType, r.ID)
}

// SyncStats holds per-status record counts for one owner or the whole store.
type SyncStats struct {
	Pending int `json:"pending"`
	Synced  int `json:"synced"`
	Error   int `json:"error"`
}
