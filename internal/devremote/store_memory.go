package devremote

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerkeep/ledger-sync/models"
)

// record is one stored row, kept decoded for filter matching.
type record map[string]any

// memoryStore holds per-tenant collection tables. All access is guarded by
// one mutex; the dev server trades concurrency for simplicity.
type memoryStore struct {
	mu sync.Mutex

	// tenants -> collection -> id -> row
	tenants map[string]map[models.Collection]map[string]record
}

func newMemoryStore() *memoryStore {
	return &memoryStore{tenants: make(map[string]map[models.Collection]map[string]record)}
}

func (s *memoryStore) table(tenant string, collection models.Collection) map[string]record {
	byCollection, ok := s.tenants[tenant]
	if !ok {
		byCollection = make(map[models.Collection]map[string]record)
		s.tenants[tenant] = byCollection
	}
	rows, ok := byCollection[collection]
	if !ok {
		rows = make(map[string]record)
		byCollection[collection] = rows
	}
	return rows
}

// Query returns all rows of the tenant's collection matching every filter
// field, ordered by created_at then id for stable output.
func (s *memoryStore) Query(tenant string, collection models.Collection, filter map[string]any) ([]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.table(tenant, collection)
	matched := make([]record, 0, len(rows))
	for _, row := range rows {
		if matches(row, filter) {
			matched = append(matched, row)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		ci, _ := matched[i]["created_at"].(string)
		cj, _ := matched[j]["created_at"].(string)
		if ci != cj {
			return ci < cj
		}
		idI, _ := matched[i]["id"].(string)
		idJ, _ := matched[j]["id"].(string)
		return idI < idJ
	})

	out := make([]json.RawMessage, 0, len(matched))
	for _, row := range matched {
		raw, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("encode row: %w", err)
		}
		out = append(out, raw)
	}
	return out, nil
}

// Insert stores the records, assigning a fresh id and audit timestamps to
// each, and returns the stored rows.
func (s *memoryStore) Insert(tenant string, collection models.Collection, records []json.RawMessage) ([]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.table(tenant, collection)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	out := make([]json.RawMessage, 0, len(records))
	for i, raw := range records {
		var row record
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", i, err)
		}
		id := uuid.NewString()
		row["id"] = id
		row["tenant"] = tenant
		row["created_at"] = now
		row["updated_at"] = now
		rows[id] = row

		stored, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("encode record %d: %w", i, err)
		}
		out = append(out, stored)
	}
	return out, nil
}

// Update merges the patch into the identified row and bumps updated_at.
// Returns the updated row, or errNotFound.
func (s *memoryStore) Update(tenant string, collection models.Collection, id string, patch json.RawMessage) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.table(tenant, collection)
	row, ok := rows[id]
	if !ok {
		return nil, errNotFound
	}

	var fields record
	if err := json.Unmarshal(patch, &fields); err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}
	for k, v := range fields {
		switch k {
		case "id", "tenant", "created_at", "updated_at":
			// server-owned fields, patches cannot touch them
		default:
			row[k] = v
		}
	}
	row["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	updated, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	return updated, nil
}

// Delete removes the identified row. Returns errNotFound if absent.
func (s *memoryStore) Delete(tenant string, collection models.Collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.table(tenant, collection)
	if _, ok := rows[id]; !ok {
		return errNotFound
	}
	delete(rows, id)
	return nil
}

func matches(row record, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := row[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
