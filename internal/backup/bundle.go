package backup

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ledgerkeep/ledger-sync/models"
)

// Encode writes the bundle as indented JSON, the on-disk format handed to
// the user for download.
func Encode(w io.Writer, bundle *models.BackupBundle) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(bundle); err != nil {
		return fmt.Errorf("encode backup bundle: %w", err)
	}
	return nil
}

// Decode reads a bundle previously produced by Encode and validates it.
func Decode(r io.Reader) (*models.BackupBundle, error) {
	var bundle models.BackupBundle
	if err := json.NewDecoder(r).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("decode backup bundle: %w", err)
	}
	if err := Validate(&bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}

// Validate checks structural soundness of a bundle before import: supported
// format version and no collections outside the known set. Missing
// collections are fine and treated as empty.
func Validate(bundle *models.BackupBundle) error {
	if bundle == nil {
		return fmt.Errorf("%w: bundle is nil", ErrInvalidBundle)
	}
	if bundle.FormatVersion != models.BackupFormatVersion {
		return fmt.Errorf("%w: unsupported format version %d (supported: %d)",
			ErrInvalidBundle, bundle.FormatVersion, models.BackupFormatVersion)
	}
	for collection := range bundle.Collections {
		if !models.KnownCollection(collection) {
			return fmt.Errorf("%w: unknown collection %q", ErrInvalidBundle, collection)
		}
	}
	return nil
}

// Stats summarises a bundle without touching the remote store.
func Stats(bundle *models.BackupBundle) (*models.BackupStats, error) {
	if err := Validate(bundle); err != nil {
		return nil, err
	}

	stats := &models.BackupStats{
		Breakdown:     make(map[models.Collection]int, len(bundle.Collections)),
		ExportedAt:    bundle.ExportedAt,
		FormatVersion: bundle.FormatVersion,
	}
	for collection, rows := range bundle.Collections {
		stats.Breakdown[collection] = len(rows)
		stats.TotalRecords += len(rows)
	}

	return stats, nil
}
