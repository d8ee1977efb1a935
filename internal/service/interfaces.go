// Package service contains the client-side sync services: the durable queue
// service that buffers local mutations and drains them against the remote
// store, and the retention sweeper that keeps the local store bounded.
package service

import (
	"context"
	"time"

	"github.com/ledgerkeep/ledger-sync/models"
)

// QueueService is the write-path of the sync layer. Local mutations are
// enqueued durably first; Flush later replays them against the remote store
// in FIFO order and records the outcome per record.
type QueueService interface {
	// Enqueue validates and stores one local mutation with status pending.
	// An unresolved mutation for the same (entityType, id) key is replaced,
	// so repeated local edits collapse to the most recent one.
	Enqueue(ctx context.Context, rec models.SyncRecord) error

	// GetRecord returns the buffered record for the key, or
	// [store.ErrRecordNotFound].
	GetRecord(ctx context.Context, entityType models.Collection, id string) (models.SyncRecord, error)

	// ListByType returns buffered records of one entity type, optionally
	// scoped to an owner.
	ListByType(ctx context.Context, entityType models.Collection, ownerID string) ([]models.SyncRecord, error)

	// ListQueue returns the unresolved records in FIFO order.
	ListQueue(ctx context.Context) ([]models.SyncRecord, error)

	// Flush drains the queue against the remote store in FIFO order. Each
	// acknowledged record is marked synced and leaves the queue; each
	// rejected record is marked error with its retry count incremented and
	// stays queued for the next flush. A failing record does not stop the
	// drain. Returns a per-outcome report.
	Flush(ctx context.Context) (FlushReport, error)

	// Stats counts buffered records by status.
	Stats(ctx context.Context, ownerID string) (models.SyncStats, error)

	// SweepOld removes synced records older than retention.
	SweepOld(ctx context.Context, retention time.Duration) (int64, error)

	// ClearForOwner purges all buffered state of one owner. Used on sign-out.
	ClearForOwner(ctx context.Context, ownerID string) error
}

// FlushReport summarises one queue drain.
type FlushReport struct {
	Attempted int
	Synced    int
	Failed    int
}

// SweepJob runs SweepOld periodically in the background.
type SweepJob interface {
	// Start launches the background sweeper. A previously running job is
	// stopped first.
	Start(ctx context.Context, retention, interval time.Duration)

	// Stop cancels the background goroutine and waits for it to exit. Safe
	// to call when not running.
	Stop()
}

// FlushJob drains the queue periodically and on reconnect.
type FlushJob interface {
	// Start launches the background flusher. A previously running job is
	// stopped first.
	Start(ctx context.Context, interval time.Duration)

	// Stop cancels the background goroutine and waits for it to exit. Safe
	// to call when not running.
	Stop()
}
