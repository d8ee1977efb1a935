package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/ledgerkeep/ledger-sync/internal/logger"
	"github.com/ledgerkeep/ledger-sync/models"
)

type queueRepository struct {
	*DB
	logger *logger.Logger
}

func NewQueueRepository(db *DB, logger *logger.Logger) QueueRepository {
	return &queueRepository{
		DB:     db,
		logger: logger,
	}
}

func (q *queueRepository) Enqueue(ctx context.Context, rec models.SyncRecord) error {
	log := logger.FromContext(ctx)

	if err := validateKey(rec.EntityType, rec.ID); err != nil {
		return err
	}
	if _, err := models.ParseOperation(string(rec.Operation)); err != nil {
		return err
	}

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	tx, err := q.DB.BeginTx(ctx, nil)
	if err != nil {
		log.Err(err).
			Str("func", "queueRepository.Enqueue").
			Msg("failed to begin enqueue transaction")
		return fmt.Errorf("failed to begin enqueue transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, upsertKeyedRecord,
		rec.EntityType,
		rec.ID,
		rec.Operation,
		[]byte(rec.Payload),
		models.StatusPending,
		rec.OwnerID,
		rec.Timestamp,
	)
	if err != nil {
		log.Err(err).
			Str("func", "queueRepository.Enqueue").
			Str("entity_type", string(rec.EntityType)).
			Str("record_id", rec.ID).
			Msg("failed to upsert keyed sync record")
		return fmt.Errorf("failed to upsert keyed sync record (key=%s): %w", rec.QueueKey(), err)
	}

	// The queue holds at most one unresolved entry per key: a later enqueue
	// replaces the earlier one instead of duplicating it.
	_, err = tx.ExecContext(ctx, deleteQueueEntryForKey, rec.EntityType, rec.ID)
	if err != nil {
		log.Err(err).
			Str("func", "queueRepository.Enqueue").
			Str("entity_type", string(rec.EntityType)).
			Str("record_id", rec.ID).
			Msg("failed to replace unresolved queue entry")
		return fmt.Errorf("failed to replace unresolved queue entry (key=%s): %w", rec.QueueKey(), err)
	}

	_, err = tx.ExecContext(ctx, appendQueueEntry,
		rec.EntityType,
		rec.ID,
		rec.Operation,
		[]byte(rec.Payload),
		models.StatusPending,
		rec.OwnerID,
		rec.Timestamp,
	)
	if err != nil {
		log.Err(err).
			Str("func", "queueRepository.Enqueue").
			Str("entity_type", string(rec.EntityType)).
			Str("record_id", rec.ID).
			Msg("failed to append queue entry")
		return fmt.Errorf("failed to append queue entry (key=%s): %w", rec.QueueKey(), err)
	}

	if err = tx.Commit(); err != nil {
		log.Err(err).
			Str("func", "queueRepository.Enqueue").
			Msg("failed to commit enqueue transaction")
		return fmt.Errorf("failed to commit enqueue transaction: %w", err)
	}

	return nil
}

func (q *queueRepository) GetRecord(ctx context.Context, entityType models.Collection, id string) (models.SyncRecord, error) {
	log := logger.FromContext(ctx)

	if err := validateKey(entityType, id); err != nil {
		return models.SyncRecord{}, err
	}

	row := q.DB.QueryRowContext(ctx, getKeyedRecord, entityType, id)

	rec, err := scanSyncRecord(row.Scan, true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SyncRecord{}, ErrRecordNotFound
		}
		log.Err(err).
			Str("func", "queueRepository.GetRecord").
			Str("entity_type", string(entityType)).
			Str("record_id", id).
			Msg("failed to scan keyed sync record")
		return models.SyncRecord{}, fmt.Errorf("failed to scan keyed sync record: %w", err)
	}

	return rec, nil
}

func (q *queueRepository) ListByType(ctx context.Context, entityType models.Collection, ownerID string) ([]models.SyncRecord, error) {
	log := logger.FromContext(ctx)

	if entityType == "" {
		return nil, ErrEmptyEntityType
	}

	builder := sq.Select(
		"entity_type",
		"record_id",
		"operation",
		"payload",
		"status",
		"last_error",
		"retry_count",
		"owner_id",
		"created_at",
	).
		From("sync_records").
		Where(sq.Eq{"entity_type": entityType})

	if ownerID != "" {
		builder = builder.Where(sq.Eq{"owner_id": ownerID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := q.DB.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "queueRepository.ListByType").
			Str("entity_type", string(entityType)).
			Msg("failed to execute query for listing keyed records")
		return nil, fmt.Errorf("failed to query keyed records: %w", err)
	}
	defer rows.Close()

	var items []models.SyncRecord

	for rows.Next() {
		rec, scanErr := scanSyncRecord(rows.Scan, true)
		if scanErr != nil {
			log.Err(scanErr).
				Str("func", "queueRepository.ListByType").
				Str("entity_type", string(entityType)).
				Msg("failed to scan keyed sync record row")
			return nil, fmt.Errorf("failed to scan keyed sync record row: %w", scanErr)
		}
		items = append(items, rec)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		log.Err(rowsErr).
			Str("func", "queueRepository.ListByType").
			Str("entity_type", string(entityType)).
			Msg("error occurred during rows iteration")
		return nil, fmt.Errorf("error iterating keyed record rows: %w", rowsErr)
	}

	return items, nil
}

func (q *queueRepository) ListQueue(ctx context.Context) ([]models.SyncRecord, error) {
	log := logger.FromContext(ctx)

	rows, err := q.DB.QueryContext(ctx, listQueueFIFO)
	if err != nil {
		log.Err(err).
			Str("func", "queueRepository.ListQueue").
			Msg("failed to execute query for listing the FIFO queue")
		return nil, fmt.Errorf("failed to query the FIFO queue: %w", err)
	}
	defer rows.Close()

	var items []models.SyncRecord

	for rows.Next() {
		rec, scanErr := scanSyncRecord(rows.Scan, false)
		if scanErr != nil {
			log.Err(scanErr).
				Str("func", "queueRepository.ListQueue").
				Msg("failed to scan queue entry row")
			return nil, fmt.Errorf("failed to scan queue entry row: %w", scanErr)
		}
		items = append(items, rec)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		log.Err(rowsErr).
			Str("func", "queueRepository.ListQueue").
			Msg("error occurred during rows iteration")
		return nil, fmt.Errorf("error iterating queue entry rows: %w", rowsErr)
	}

	return items, nil
}

func (q *queueRepository) MarkStatus(ctx context.Context, entityType models.Collection, id string, status models.SyncStatus, errorInfo string) error {
	log := logger.FromContext(ctx)

	if err := validateKey(entityType, id); err != nil {
		return err
	}

	tx, err := q.DB.BeginTx(ctx, nil)
	if err != nil {
		log.Err(err).
			Str("func", "queueRepository.MarkStatus").
			Msg("failed to begin mark-status transaction")
		return fmt.Errorf("failed to begin mark-status transaction: %w", err)
	}
	defer tx.Rollback()

	var result sql.Result
	switch status {
	case models.StatusError:
		result, err = tx.ExecContext(ctx, incrementKeyedRetry, status, errorInfo, entityType, id)
	default:
		result, err = tx.ExecContext(ctx, setKeyedStatus, status, errorInfo, entityType, id)
	}
	if err != nil {
		log.Err(err).
			Str("func", "queueRepository.MarkStatus").
			Str("entity_type", string(entityType)).
			Str("record_id", id).
			Msg("failed to update keyed record status")
		return fmt.Errorf("failed to update keyed record status (id=%s): %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected (id=%s): %w", id, err)
	}
	if affected == 0 {
		return ErrRecordNotFound
	}

	switch status {
	case models.StatusSynced:
		// Synced records leave the processing queue but stay retrievable in
		// the keyed store until the retention sweep.
		if _, err = tx.ExecContext(ctx, deleteQueueEntryForKey, entityType, id); err != nil {
			log.Err(err).
				Str("func", "queueRepository.MarkStatus").
				Str("entity_type", string(entityType)).
				Str("record_id", id).
				Msg("failed to remove synced entry from the queue")
			return fmt.Errorf("failed to remove synced entry from the queue (id=%s): %w", id, err)
		}
	case models.StatusError:
		if _, err = tx.ExecContext(ctx, incrementQueueRetry, status, entityType, id); err != nil {
			log.Err(err).
				Str("func", "queueRepository.MarkStatus").
				Str("entity_type", string(entityType)).
				Str("record_id", id).
				Msg("failed to increment queue entry retry count")
			return fmt.Errorf("failed to increment queue entry retry count (id=%s): %w", id, err)
		}
	}

	if err = tx.Commit(); err != nil {
		log.Err(err).
			Str("func", "queueRepository.MarkStatus").
			Msg("failed to commit mark-status transaction")
		return fmt.Errorf("failed to commit mark-status transaction: %w", err)
	}

	return nil
}

func (q *queueRepository) SweepOld(ctx context.Context, retention time.Duration) (int64, error) {
	log := logger.FromContext(ctx)

	cutoff := time.Now().UTC().Add(-retention)

	result, err := q.DB.ExecContext(ctx, sweepSyncedRecords, cutoff)
	if err != nil {
		log.Err(err).
			Str("func", "queueRepository.SweepOld").
			Msg("failed to execute retention sweep")
		return 0, fmt.Errorf("failed to execute retention sweep: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected by retention sweep: %w", err)
	}

	return removed, nil
}

func (q *queueRepository) ClearForOwner(ctx context.Context, ownerID string) error {
	log := logger.FromContext(ctx)

	if ownerID == "" {
		return errors.New("owner id must not be empty")
	}

	tx, err := q.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin clear-for-owner transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, clearKeyedForOwner, ownerID); err != nil {
		log.Err(err).
			Str("func", "queueRepository.ClearForOwner").
			Str("owner_id", ownerID).
			Msg("failed to clear keyed records for owner")
		return fmt.Errorf("failed to clear keyed records for owner %s: %w", ownerID, err)
	}

	if _, err = tx.ExecContext(ctx, clearQueueForOwner, ownerID); err != nil {
		log.Err(err).
			Str("func", "queueRepository.ClearForOwner").
			Str("owner_id", ownerID).
			Msg("failed to clear queue entries for owner")
		return fmt.Errorf("failed to clear queue entries for owner %s: %w", ownerID, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clear-for-owner transaction: %w", err)
	}

	return nil
}

func (q *queueRepository) Stats(ctx context.Context, ownerID string) (models.SyncStats, error) {
	log := logger.FromContext(ctx)

	builder := sq.Select("status", "COUNT(*)").
		From("sync_records").
		GroupBy("status")

	if ownerID != "" {
		builder = builder.Where(sq.Eq{"owner_id": ownerID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return models.SyncStats{}, fmt.Errorf("failed to build stats query: %w", err)
	}

	rows, err := q.DB.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "queueRepository.Stats").
			Msg("failed to execute stats query")
		return models.SyncStats{}, fmt.Errorf("failed to query sync stats: %w", err)
	}
	defer rows.Close()

	var stats models.SyncStats

	for rows.Next() {
		var status models.SyncStatus
		var count int
		if scanErr := rows.Scan(&status, &count); scanErr != nil {
			log.Err(scanErr).
				Str("func", "queueRepository.Stats").
				Msg("failed to scan stats row")
			return models.SyncStats{}, fmt.Errorf("failed to scan stats row: %w", scanErr)
		}

		switch status {
		case models.StatusPending:
			stats.Pending = count
		case models.StatusSynced:
			stats.Synced = count
		case models.StatusError:
			stats.Error = count
		}
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return models.SyncStats{}, fmt.Errorf("error iterating stats rows: %w", rowsErr)
	}

	return stats, nil
}

// scanSyncRecord reads one row produced by the keyed-store or queue queries.
// Queue rows carry no last_error column.
func scanSyncRecord(scan func(dest ...any) error, withLastError bool) (models.SyncRecord, error) {
	var rec models.SyncRecord
	var payload []byte

	dest := []any{
		&rec.EntityType,
		&rec.ID,
		&rec.Operation,
		&payload,
		&rec.Status,
	}
	if withLastError {
		dest = append(dest, &rec.LastError)
	}
	dest = append(dest,
		&rec.RetryCount,
		&rec.OwnerID,
		&rec.Timestamp,
	)

	if err := scan(dest...); err != nil {
		return models.SyncRecord{}, err
	}

	rec.Payload = payload
	return rec, nil
}

func validateKey(entityType models.Collection, id string) error {
	if entityType == "" {
		return ErrEmptyEntityType
	}
	if id == "" {
		return ErrEmptyRecordID
	}
	return nil
}
