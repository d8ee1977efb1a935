// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Ledgerkeep Authors

package models

import (
	"encoding/json"
	"time"
)

// BackupFormatVersion is the current schema version of the bundle document
// itself, distinct from any domain schema versioning.
const BackupFormatVersion = 1

// BackupBundle is a full, versioned snapshot of one tenant's data, suitable
// for download and later re-import. Collection ordering on import follows
// [OrderedCollections], not the map iteration order.
type BackupBundle struct {
	FormatVersion int       `json:"format_version"`
	ExportedAt    time.Time `json:"exported_at"`

	// Owner is the principal the bundle was exported for.
	Owner string `json:"owner"`

	// Tenant is the logical tenant the records belong to.
	Tenant string `json:"tenant"`

	// Collections maps collection name to its exported rows.
	Collections map[Collection][]json.RawMessage `json:"collections"`
}

// BackupStats is a pure summary of an already-loaded bundle.
type BackupStats struct {
	TotalRecords  int                `json:"total_records"`
	Breakdown     map[Collection]int `json:"breakdown"`
	ExportedAt    time.Time          `json:"exported_at"`
	FormatVersion int                `json:"format_version"`
}
