// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Ledgerkeep Authors

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ledgerkeep/ledger-sync/internal/adapter"
	"github.com/ledgerkeep/ledger-sync/internal/connectivity"
	"github.com/ledgerkeep/ledger-sync/internal/logger"
	"github.com/ledgerkeep/ledger-sync/internal/store"
	"github.com/ledgerkeep/ledger-sync/models"
)

type queueService struct {
	repo    store.QueueRepository
	remote  adapter.RemoteStore
	monitor *connectivity.Monitor
	logger  *logger.Logger

	// flushMu serialises drains: overlapping flushes would replay the same
	// queue entries against the remote store twice.
	flushMu sync.Mutex
}

func NewQueueService(repo store.QueueRepository, remote adapter.RemoteStore, monitor *connectivity.Monitor, log *logger.Logger) QueueService {
	return &queueService{
		repo:    repo,
		remote:  remote,
		monitor: monitor,
		logger:  log,
	}
}

// Enqueue implements QueueService. The record is normalised before storage:
// status forced to pending, retry count zeroed, timestamp defaulted to now.
func (s *queueService) Enqueue(ctx context.Context, rec models.SyncRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	rec.Status = models.StatusPending
	rec.LastError = ""
	rec.RetryCount = 0
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	if err := s.repo.Enqueue(ctx, rec); err != nil {
		return fmt.Errorf("enqueue %s: %w", rec.QueueKey(), err)
	}

	s.logger.Debug().
		Str("func", "queueService.Enqueue").
		Str("key", rec.QueueKey()).
		Str("operation", string(rec.Operation)).
		Msg("mutation buffered")

	return nil
}

func (s *queueService) GetRecord(ctx context.Context, entityType models.Collection, id string) (models.SyncRecord, error) {
	return s.repo.GetRecord(ctx, entityType, id)
}

func (s *queueService) ListByType(ctx context.Context, entityType models.Collection, ownerID string) ([]models.SyncRecord, error) {
	return s.repo.ListByType(ctx, entityType, ownerID)
}

func (s *queueService) ListQueue(ctx context.Context) ([]models.SyncRecord, error) {
	return s.repo.ListQueue(ctx)
}

// Flush implements QueueService. Records are replayed strictly in FIFO
// order. The remote outcome of each record is persisted before the next one
// is attempted, so an interrupted flush never loses an acknowledgment.
func (s *queueService) Flush(ctx context.Context) (FlushReport, error) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	if s.monitor != nil && !s.monitor.Online() {
		return FlushReport{}, ErrOffline
	}

	queued, err := s.repo.ListQueue(ctx)
	if err != nil {
		return FlushReport{}, fmt.Errorf("list queue: %w", err)
	}

	report := FlushReport{Attempted: len(queued)}

	for _, rec := range queued {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		applyErr := s.apply(ctx, rec)
		if applyErr == nil {
			if err = s.repo.MarkStatus(ctx, rec.EntityType, rec.ID, models.StatusSynced, ""); err != nil {
				return report, fmt.Errorf("mark %s synced: %w", rec.QueueKey(), err)
			}
			report.Synced++
			continue
		}

		if errors.Is(applyErr, adapter.ErrUnavailable) {
			// Transport down mid-drain: stop without recording per-record
			// failures, the remaining entries will be retried whole.
			if s.monitor != nil {
				s.monitor.SetOnline(false)
			}
			return report, fmt.Errorf("flush interrupted: %w", applyErr)
		}

		if err = s.repo.MarkStatus(ctx, rec.EntityType, rec.ID, models.StatusError, applyErr.Error()); err != nil {
			return report, fmt.Errorf("mark %s failed: %w", rec.QueueKey(), err)
		}
		report.Failed++

		s.logger.Warn().
			Str("func", "queueService.Flush").
			Str("key", rec.QueueKey()).
			Err(applyErr).
			Msg("record rejected by remote store")
	}

	s.logger.Info().
		Str("func", "queueService.Flush").
		Int("attempted", report.Attempted).
		Int("synced", report.Synced).
		Int("failed", report.Failed).
		Msg("queue drained")

	return report, nil
}

// apply replays one buffered mutation against the remote store.
func (s *queueService) apply(ctx context.Context, rec models.SyncRecord) error {
	switch rec.Operation {
	case models.OperationInsert:
		return s.remote.Insert(ctx, rec.EntityType, []json.RawMessage{rec.Payload})
	case models.OperationUpdate:
		return s.remote.Update(ctx, rec.EntityType, rec.ID, rec.Payload)
	case models.OperationDelete:
		err := s.remote.Delete(ctx, rec.EntityType, rec.ID)
		if errors.Is(err, adapter.ErrNotFound) {
			// Already gone remotely, the delete has converged.
			return nil
		}
		return err
	}
	return fmt.Errorf("%w: operation %q", ErrInvalidRecord, rec.Operation)
}

func (s *queueService) Stats(ctx context.Context, ownerID string) (models.SyncStats, error) {
	return s.repo.Stats(ctx, ownerID)
}

func (s *queueService) SweepOld(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.SweepOld(ctx, retention)
}

func (s *queueService) ClearForOwner(ctx context.Context, ownerID string) error {
	return s.repo.ClearForOwner(ctx, ownerID)
}

func validateRecord(rec models.SyncRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: empty record id", ErrInvalidRecord)
	}
	if !models.KnownCollection(rec.EntityType) {
		return fmt.Errorf("%w: unknown collection %q", ErrInvalidRecord, rec.EntityType)
	}
	if _, err := models.ParseOperation(string(rec.Operation)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return nil
}
