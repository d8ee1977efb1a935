// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Ledgerkeep Authors

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerkeep/ledger-sync/internal/logger"
	"github.com/ledgerkeep/ledger-sync/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db := &DB{DB: conn, logger: logger.Nop()}
	require.NoError(t, db.Migrate())

	return db
}

func newTestQueueRepo(t *testing.T) QueueRepository {
	t.Helper()
	return NewQueueRepository(newTestDB(t), logger.Nop())
}

func testRecord(id string, op models.Operation) models.SyncRecord {
	return models.SyncRecord{
		ID:         id,
		EntityType: models.CollectionTransactions,
		Operation:  op,
		Payload:    json.RawMessage(`{"amount":42}`),
		OwnerID:    "user-1",
		Timestamp:  time.Now().UTC(),
	}
}

// ── Enqueue ──────────────────────────────────────────────────────────────────

func TestQueueRepository_Enqueue_StoresPendingRecord(t *testing.T) {
	repo := newTestQueueRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Enqueue(ctx, testRecord("t1", models.OperationInsert)))

	rec, err := repo.GetRecord(ctx, models.CollectionTransactions, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, rec.Status)
	assert.Equal(t, models.OperationInsert, rec.Operation)
	assert.Equal(t, 0, rec.RetryCount)
	assert.JSONEq(t, `{"amount":42}`, string(rec.Payload))
}

func TestQueueRepository_Enqueue_LastWriteWinsPerKey(t *testing.T) {
	repo := newTestQueueRepo(t)
	ctx := context.Background()

	first := testRecord("t1", models.OperationInsert)
	require.NoError(t, repo.Enqueue(ctx, first))

	second := testRecord("t1", models.OperationUpdate)
	second.Payload = json.RawMessage(`{"amount":99}`)
	require.NoError(t, repo.Enqueue(ctx, second))

	// The keyed store has exactly one record for the key, holding the
	// later mutation.
	rec, err := repo.GetRecord(ctx, models.CollectionTransactions, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.OperationUpdate, rec.Operation)
	assert.JSONEq(t, `{"amount":99}`, string(rec.Payload))

	// The queue holds at most one unresolved entry for the key.
	queued, err := repo.ListQueue(ctx)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, models.OperationUpdate, queued[0].Operation)
}

func TestQueueRepository_Enqueue_ResetsErrorState(t *testing.T) {
	repo := newTestQueueRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Enqueue(ctx, testRecord("t1", models.OperationInsert)))
	require.NoError(t, repo.MarkStatus(ctx, models.CollectionTransactions, "t1", models.StatusError, "boom"))

	require.NoError(t, repo.Enqueue(ctx, testRecord("t1", models.OperationUpdate)))

	rec, err := repo.GetRecord(ctx, models.CollectionTransactions, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, rec.Status)
	assert.Equal(t, 0, rec.RetryCount)
	assert.Empty(t, rec.LastError)
}

func TestQueueRepository_Enqueue_ValidatesKeyAndOperation(t *testing.T) {
	repo := newTestQueueRepo(t)
	ctx := context.Background()

	rec := testRecord("", models.OperationInsert)
	assert.ErrorIs(t, repo.Enqueue(ctx, rec), ErrEmptyRecordID)

	rec = testRecord("t1", models.OperationInsert)
	rec.EntityType = ""
	assert.ErrorIs(t, repo.Enqueue(ctx, rec), ErrEmptyEntityType)

	rec = testRecord("t1", "upsert")
	assert.Error(t, repo.Enqueue(ctx, rec))
}

// ── FIFO ordering ────────────────────────────────────────────────────────────

func TestQueueRepository_ListQueue_FIFOOrder(t *testing.T) {
	repo := newTestQueueRepo(t)
	ctx := context.Background()

	ids := []string{"t1", "t2", "t3"}
	for _, id := range ids {
		require.NoError(t, repo.Enqueue(ctx, testRecord(id, models.OperationInsert)))
	}

	queued, err := repo.ListQueue(ctx)
	require.NoError(t, err)
	require.Len(t, queued, 3)
	for i, id := range ids {
		assert.Equal(t, id, queued[i].ID)
	}
}

func TestQueueRepository_ListQueue_ReenqueueMovesToTail(t *testing.T) {
	repo := newTestQueueRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Enqueue(ctx, testRecord("t1", models.OperationInsert)))
	require.NoError(t, repo.Enqueue(ctx, testRecord("t2", models.OperationInsert)))
	require.NoError(t, repo.Enqueue(ctx, testRecord("t1", models.OperationUpdate)))

	queued, err := repo.ListQueue(ctx)
	require.NoError(t, err)
	require.Len(t, queued, 2)
	assert.Equal(t, "t2", queued[0].ID)
	assert.Equal(t, "t1", queued[1].ID)
}

// ── MarkStatus ───────────────────────────────────────────────────────────────

func TestQueueRepository_MarkStatus_SyncedLeavesQueue(t *testing.T) {
	repo := newTestQueueRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Enqueue(ctx, testRecord("t1", models.OperationInsert)))
	require.NoError(t, repo.MarkStatus(ctx, models.CollectionTransactions, "t1", models.StatusSynced, ""))

	rec, err := repo.GetRecord(ctx, models.CollectionTransactions, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSynced, rec.Status)

	queued, err := repo.ListQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, queued)
}

func TestQueueRepository_MarkStatus_ErrorIncrementsRetryAndStaysQueued(t *testing.T) {
	repo := newTestQueueRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Enqueue(ctx, testRecord("t1", models.OperationInsert)))

	require.NoError(t, repo.MarkStatus(ctx, models.CollectionTransactions, "t1", models.StatusError, "remote rejected"))
	require.NoError(t, repo.MarkStatus(ctx, models.CollectionTransactions, "t1", models.StatusError, "remote rejected again"))

	rec, err := repo.GetRecord(ctx, models.CollectionTransactions, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, rec.Status)
	assert.Equal(t, 2, rec.RetryCount)
	assert.Equal(t, "remote rejected again", rec.LastError)

	queued, err := repo.ListQueue(ctx)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, 2, queued[0].RetryCount)
}

func TestQueueRepository_MarkStatus_UnknownKey(t *testing.T) {
	repo := newTestQueueRepo(t)

	err := repo.MarkStatus(context.Background(), models.CollectionBanks, "missing", models.StatusSynced, "")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

// ── SweepOld ─────────────────────────────────────────────────────────────────

func TestQueueRepository_SweepOld_RemovesOnlyAgedSynced(t *testing.T) {
	repo := newTestQueueRepo(t)
	ctx := context.Background()

	old := testRecord("old-synced", models.OperationInsert)
	old.Timestamp = time.Now().UTC().Add(-8 * 24 * time.Hour)
	require.NoError(t, repo.Enqueue(ctx, old))
	require.NoError(t, repo.MarkStatus(ctx, models.CollectionTransactions, "old-synced", models.StatusSynced, ""))

	oldPending := testRecord("old-pending", models.OperationInsert)
	oldPending.Timestamp = time.Now().UTC().Add(-8 * 24 * time.Hour)
	require.NoError(t, repo.Enqueue(ctx, oldPending))

	oldError := testRecord("old-error", models.OperationInsert)
	oldError.Timestamp = time.Now().UTC().Add(-8 * 24 * time.Hour)
	require.NoError(t, repo.Enqueue(ctx, oldError))
	require.NoError(t, repo.MarkStatus(ctx, models.CollectionTransactions, "old-error", models.StatusError, "boom"))

	fresh := testRecord("fresh-synced", models.OperationInsert)
	require.NoError(t, repo.Enqueue(ctx, fresh))
	require.NoError(t, repo.MarkStatus(ctx, models.CollectionTransactions, "fresh-synced", models.StatusSynced, ""))

	removed, err := repo.SweepOld(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	// Aged synced record is gone; everything else survives regardless of age.
	_, err = repo.GetRecord(ctx, models.CollectionTransactions, "old-synced")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	for _, id := range []string{"old-pending", "old-error", "fresh-synced"} {
		_, err = repo.GetRecord(ctx, models.CollectionTransactions, id)
		assert.NoError(t, err, "record %s should survive the sweep", id)
	}
}

// ── ClearForOwner / Stats / ListByType ───────────────────────────────────────

func TestQueueRepository_ClearForOwner(t *testing.T) {
	repo := newTestQueueRepo(t)
	ctx := context.Background()

	mine := testRecord("t1", models.OperationInsert)
	require.NoError(t, repo.Enqueue(ctx, mine))

	other := testRecord("t2", models.OperationInsert)
	other.OwnerID = "user-2"
	require.NoError(t, repo.Enqueue(ctx, other))

	require.NoError(t, repo.ClearForOwner(ctx, "user-1"))

	_, err := repo.GetRecord(ctx, models.CollectionTransactions, "t1")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	queued, err := repo.ListQueue(ctx)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, "t2", queued[0].ID)
}

func TestQueueRepository_ClearForOwner_EmptyOwner(t *testing.T) {
	repo := newTestQueueRepo(t)
	assert.Error(t, repo.ClearForOwner(context.Background(), ""))
}

func TestQueueRepository_Stats(t *testing.T) {
	repo := newTestQueueRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Enqueue(ctx, testRecord("t1", models.OperationInsert)))
	require.NoError(t, repo.Enqueue(ctx, testRecord("t2", models.OperationInsert)))
	require.NoError(t, repo.Enqueue(ctx, testRecord("t3", models.OperationInsert)))

	require.NoError(t, repo.MarkStatus(ctx, models.CollectionTransactions, "t1", models.StatusSynced, ""))
	require.NoError(t, repo.MarkStatus(ctx, models.CollectionTransactions, "t2", models.StatusError, "boom"))

	stats, err := repo.Stats(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.SyncStats{Pending: 1, Synced: 1, Error: 1}, stats)

	// Unknown owner sees nothing.
	stats, err = repo.Stats(ctx, "somebody-else")
	require.NoError(t, err)
	assert.Equal(t, models.SyncStats{}, stats)
}

func TestQueueRepository_ListByType_ScopesByOwner(t *testing.T) {
	repo := newTestQueueRepo(t)
	ctx := context.Background()

	mine := testRecord("t1", models.OperationInsert)
	require.NoError(t, repo.Enqueue(ctx, mine))

	other := testRecord("t2", models.OperationInsert)
	other.OwnerID = "user-2"
	require.NoError(t, repo.Enqueue(ctx, other))

	bank := testRecord("b1", models.OperationInsert)
	bank.EntityType = models.CollectionBanks
	require.NoError(t, repo.Enqueue(ctx, bank))

	all, err := repo.ListByType(ctx, models.CollectionTransactions, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := repo.ListByType(ctx, models.CollectionTransactions, "user-1")
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "t1", scoped[0].ID)
}
