// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Ledgerkeep Authors

package store

const (
	upsertKeyedRecord = `
		INSERT INTO sync_records (
			entity_type,
			record_id,
			operation,
			payload,
			status,
			last_error,
			retry_count,
			owner_id,
			created_at
		) VALUES ($1, $2, $3, $4, $5, '', 0, $6, $7)
		ON CONFLICT (entity_type, record_id) DO UPDATE SET
			operation   = excluded.operation,
			payload     = excluded.payload,
			status      = excluded.status,
			last_error  = '',
			retry_count = 0,
			owner_id    = excluded.owner_id,
			created_at  = excluded.created_at;`

	deleteQueueEntryForKey = `
		DELETE FROM sync_queue
		WHERE entity_type = $1 AND record_id = $2;`

	appendQueueEntry = `
		INSERT INTO sync_queue (
			entity_type,
			record_id,
			operation,
			payload,
			status,
			retry_count,
			owner_id,
			created_at
		) VALUES ($1, $2, $3, $4, $5, 0, $6, $7);`

	getKeyedRecord = `
		SELECT
			entity_type,
			record_id,
			operation,
			payload,
			status,
			last_error,
			retry_count,
			owner_id,
			created_at
		FROM sync_records
		WHERE entity_type = $1 AND record_id = $2;`

	listQueueFIFO = `
		SELECT
			entity_type,
			record_id,
			operation,
			payload,
			status,
			retry_count,
			owner_id,
			created_at
		FROM sync_queue
		ORDER BY seq ASC;`

	setKeyedStatus = `
		UPDATE sync_records SET
			status     = $1,
			last_error = $2
		WHERE entity_type = $3 AND record_id = $4;`

	incrementKeyedRetry = `
		UPDATE sync_records SET
			status      = $1,
			last_error  = $2,
			retry_count = retry_count + 1
		WHERE entity_type = $3 AND record_id = $4;`

	incrementQueueRetry = `
		UPDATE sync_queue SET
			status      = $1,
			retry_count = retry_count + 1
		WHERE entity_type = $2 AND record_id = $3;`

	sweepSyncedRecords = `
		DELETE FROM sync_records
		WHERE status = 'synced' AND created_at <= $1;`

	clearKeyedForOwner = `
		DELETE FROM sync_records
		WHERE owner_id = $1;`

	clearQueueForOwner = `
		DELETE FROM sync_queue
		WHERE owner_id = $1;`

	saveIdentitySlot = `
		INSERT INTO session_identity (slot, payload, cached_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (slot) DO UPDATE SET
			payload   = excluded.payload,
			cached_at = excluded.cached_at;`

	getIdentitySlot = `
		SELECT payload
		FROM session_identity
		WHERE slot = $1;`

	clearIdentitySlot = `
		DELETE FROM session_identity
		WHERE slot = $1;`
)

// identitySlotKey is the fixed namespace under which the single cached
// identity lives.
const identitySlotKey = "session"
