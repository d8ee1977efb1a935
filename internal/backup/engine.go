// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Ledgerkeep Authors

// Package backup provides full-tenant export and dependency-ordered import
// of the finance dataset. Bundles are the one user-facing file artifact of
// the sync core: a versioned JSON document suitable for download/upload.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ledgerkeep/ledger-sync/internal/adapter"
	"github.com/ledgerkeep/ledger-sync/internal/logger"
	"github.com/ledgerkeep/ledger-sync/models"
)

// remoteFields are the remote-assigned identifier and audit columns stripped
// from every record on import. Ownership is re-stamped afterwards, so a
// bundle stays portable across tenants.
var remoteFields = []string{"id", "created_at", "updated_at"}

// ImportOptions controls how a bundle is written back into a tenant.
type ImportOptions struct {
	// OverwriteExisting deletes all existing rows of each collection under
	// the target tenant before the bundle's rows are inserted. Without it,
	// bundle rows land alongside existing data; duplication is accepted,
	// not deduplicated.
	OverwriteExisting bool

	// SkipTransactions omits the transactions collection from the import
	// order entirely.
	SkipTransactions bool
}

// ImportError reports a failure partway through an import. Import is
// sequential, not transactional: collections listed in Imported are already
// written, later ones are untouched, and the failing collection may be
// partially written. Collections imported with OverwriteExisting are safe to
// re-run.
type ImportError struct {
	Collection models.Collection
	Imported   []models.Collection
	Err        error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import failed at collection %s (%d collections already imported): %v",
		e.Collection, len(e.Imported), e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// Engine produces and consumes full-tenant snapshots through the same
// remote command interface the rest of the core uses. It bypasses the local
// write-queue entirely, operating in bulk against the remote store.
type Engine struct {
	remote adapter.RemoteStore
	logger *logger.Logger
}

func NewEngine(remote adapter.RemoteStore, log *logger.Logger) *Engine {
	return &Engine{
		remote: remote,
		logger: log,
	}
}

// Export snapshots every collection of the tenant with one concurrent bulk
// read per collection. Errors are collected from all reads before failing:
// a single failing collection fails the whole export with an aggregated
// error naming every failing collection, never a partial bundle. Export is
// read-only and has no side effects.
func (e *Engine) Export(ctx context.Context, owner, tenant string) (*models.BackupBundle, error) {
	specs := models.OrderedCollections()

	results := make([][]json.RawMessage, len(specs))
	errs := make([]error, len(specs))

	var wg sync.WaitGroup
	for i, spec := range specs {
		wg.Add(1)
		go func(i int, collection models.Collection) {
			defer wg.Done()
			records, err := e.remote.Query(ctx, collection, adapter.Filter{"tenant": tenant})
			if err != nil {
				errs[i] = fmt.Errorf("export collection %s: %w", collection, err)
				return
			}
			results[i] = records
		}(i, spec.Name)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("export aborted: %w", err)
	}

	bundle := &models.BackupBundle{
		FormatVersion: models.BackupFormatVersion,
		ExportedAt:    time.Now().UTC(),
		Owner:         owner,
		Tenant:        tenant,
		Collections:   make(map[models.Collection][]json.RawMessage, len(specs)),
	}
	for i, spec := range specs {
		bundle.Collections[spec.Name] = results[i]
	}

	e.logger.Info().
		Str("tenant", tenant).
		Int("collections", len(specs)).
		Msg("export completed")

	return bundle, nil
}

// Import writes the bundle into the target tenant, processing collections
// strictly in dependency order. Each record is stripped of remote-assigned
// identifiers and audit timestamps, then re-stamped with the importing
// owner and tenant. Collections are processed sequentially, not
// transactionally; on failure an [*ImportError] names the failing collection
// and every collection already imported.
func (e *Engine) Import(ctx context.Context, bundle *models.BackupBundle, owner, tenant string, opts ImportOptions) error {
	if err := Validate(bundle); err != nil {
		return err
	}

	var imported []models.Collection

	for _, spec := range models.OrderedCollections() {
		collection := spec.Name
		if opts.SkipTransactions && collection == models.CollectionTransactions {
			continue
		}

		if err := e.importCollection(ctx, bundle, collection, owner, tenant, opts); err != nil {
			return &ImportError{
				Collection: collection,
				Imported:   imported,
				Err:        err,
			}
		}
		imported = append(imported, collection)
	}

	e.logger.Info().
		Str("tenant", tenant).
		Int("collections", len(imported)).
		Bool("overwrite", opts.OverwriteExisting).
		Msg("import completed")

	return nil
}

func (e *Engine) importCollection(ctx context.Context, bundle *models.BackupBundle, collection models.Collection, owner, tenant string, opts ImportOptions) error {
	rows := bundle.Collections[collection]

	if opts.OverwriteExisting {
		if err := e.clearCollection(ctx, collection, tenant); err != nil {
			return err
		}
	}

	if len(rows) == 0 {
		return nil
	}

	sanitized := make([]json.RawMessage, 0, len(rows))
	for i, row := range rows {
		clean, err := sanitizeRecord(row, owner, tenant)
		if err != nil {
			return fmt.Errorf("record %d of %s: %w", i, collection, err)
		}
		sanitized = append(sanitized, clean)
	}

	if err := e.remote.Insert(ctx, collection, sanitized); err != nil {
		return fmt.Errorf("insert into %s: %w", collection, err)
	}

	return nil
}

func (e *Engine) clearCollection(ctx context.Context, collection models.Collection, tenant string) error {
	existing, err := e.remote.Query(ctx, collection, adapter.Filter{"tenant": tenant})
	if err != nil {
		return fmt.Errorf("list existing %s rows: %w", collection, err)
	}

	for _, row := range existing {
		var probe struct {
			ID string `json:"id"`
		}
		if err = json.Unmarshal(row, &probe); err != nil || probe.ID == "" {
			continue
		}
		if err = e.remote.Delete(ctx, collection, probe.ID); err != nil {
			return fmt.Errorf("delete existing %s/%s: %w", collection, probe.ID, err)
		}
	}

	return nil
}

// sanitizeRecord strips remote-assigned fields and re-stamps ownership.
func sanitizeRecord(row json.RawMessage, owner, tenant string) (json.RawMessage, error) {
	var fields map[string]any
	if err := json.Unmarshal(row, &fields); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}

	for _, f := range remoteFields {
		delete(fields, f)
	}
	fields["owner_id"] = owner
	fields["tenant"] = tenant

	clean, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	return clean, nil
}
