package store

import "errors"

// Sentinel errors returned by repository methods to signal well-known failure
// conditions. Callers should use [errors.Is] to match against these values.
var (
	// ErrRecordNotFound is returned when an operation targets a queue key
	// (entity_type, record_id) that has no keyed record.
	ErrRecordNotFound = errors.New("sync record was not found")

	// ErrIdentityNotFound is returned when the cached identity slot is empty.
	ErrIdentityNotFound = errors.New("cached identity was not found")

	// ErrEmptyEntityType is returned when a caller passes an empty entity
	// type. This is a programming error on the caller's side, not a storage
	// failure.
	ErrEmptyEntityType = errors.New("entity type must not be empty")

	// ErrEmptyRecordID is returned when a caller passes an empty record id.
	ErrEmptyRecordID = errors.New("record id must not be empty")
)
