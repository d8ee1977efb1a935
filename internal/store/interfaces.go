package store

import (
	"context"
	"time"

	"github.com/ledgerkeep/ledger-sync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/store_mock.go -package=mock

// QueueRepository is the durable local write-queue underneath the sync layer.
// It keeps two views of the same mutations: a keyed store with at most one
// record per (entityType, id), and an ordered FIFO queue holding only
// currently-unresolved records.
type QueueRepository interface {
	// Enqueue writes or overwrites the keyed record for (rec.EntityType,
	// rec.ID) with status pending and retry count zero, and appends a fresh
	// entry to the FIFO queue. Any unresolved queue entry for the same key
	// is replaced so the queue never holds two unresolved entries per key.
	Enqueue(ctx context.Context, rec models.SyncRecord) error

	// GetRecord returns the keyed record for (entityType, id).
	// Returns [ErrRecordNotFound] if no record occupies the key.
	GetRecord(ctx context.Context, entityType models.Collection, id string) (models.SyncRecord, error)

	// ListByType returns all keyed records of the given entity type. When
	// ownerID is non-empty the result is scoped to that owner. Order is not
	// significant.
	ListByType(ctx context.Context, entityType models.Collection, ownerID string) ([]models.SyncRecord, error)

	// ListQueue returns the unresolved records in FIFO order.
	ListQueue(ctx context.Context) ([]models.SyncRecord, error)

	// MarkStatus updates the keyed record's status. On synced the queue
	// entry for the key is removed; on error the retry count is incremented
	// in the keyed store and, if still queued, in the queue entry as well.
	// Returns [ErrRecordNotFound] if the keyed record does not exist.
	MarkStatus(ctx context.Context, entityType models.Collection, id string, status models.SyncStatus, errorInfo string) error

	// SweepOld removes keyed records whose status is synced and whose age
	// exceeds retention. Pending and error records are never removed,
	// regardless of age. Returns the number of removed records.
	SweepOld(ctx context.Context, retention time.Duration) (int64, error)

	// ClearForOwner purges all keyed records and queue entries belonging to
	// ownerID. Used on sign-out.
	ClearForOwner(ctx context.Context, ownerID string) error

	// Stats counts keyed records by status, optionally scoped to an owner
	// (empty ownerID counts everything).
	Stats(ctx context.Context, ownerID string) (models.SyncStats, error)
}

// IdentityRepository persists the single cached identity slot used by the
// session cache for offline fallback.
type IdentityRepository interface {
	// SaveIdentity overwrites the cached identity slot.
	SaveIdentity(ctx context.Context, identity models.Identity) error

	// GetIdentity returns the cached identity.
	// Returns [ErrIdentityNotFound] if the slot is empty.
	GetIdentity(ctx context.Context) (models.Identity, error)

	// ClearIdentity empties the slot. Clearing an already-empty slot is not
	// an error.
	ClearIdentity(ctx context.Context) error
}
