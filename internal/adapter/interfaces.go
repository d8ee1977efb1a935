package adapter

import (
	"context"
	"encoding/json"

	"github.com/ledgerkeep/ledger-sync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/adapter_mock.go -package=mock

// Filter is an opaque set of field constraints applied to a collection query.
// The tenant/owner scoping filter is supplied by the caller; the adapter does
// not add it implicitly.
type Filter map[string]any

// ChangeHandlers carries the per-kind callbacks invoked for pushed remote
// mutations. Nil handlers are skipped.
type ChangeHandlers struct {
	OnInsert func(models.ChangeEvent)
	OnUpdate func(models.ChangeEvent)
	OnDelete func(models.ChangeEvent)
}

// UnsubscribeFunc tears down one live subscription. Safe to call more than
// once.
type UnsubscribeFunc func()

// RemoteStore is generic CRUD over named collections in the remote store.
type RemoteStore interface {
	// Query returns all records of the collection matching the filter.
	Query(ctx context.Context, collection models.Collection, filter Filter) ([]json.RawMessage, error)

	// Insert appends records to the collection in a single request.
	Insert(ctx context.Context, collection models.Collection, records []json.RawMessage) error

	// Update applies a partial patch to the record identified by id.
	Update(ctx context.Context, collection models.Collection, id string, patch json.RawMessage) error

	// Delete removes the record identified by id.
	Delete(ctx context.Context, collection models.Collection, id string) error
}

// RemoteEvents is the push-event primitive of the remote store. The concrete
// transport is opaque to consumers.
type RemoteEvents interface {
	// Subscribe opens a live subscription for the collection and dispatches
	// pushed mutations to the handlers until the returned UnsubscribeFunc is
	// called or ctx is cancelled. Returns an error if the channel cannot be
	// established.
	Subscribe(ctx context.Context, collection models.Collection, handlers ChangeHandlers) (UnsubscribeFunc, error)
}

// RemoteAuth is the remote session boundary consumed by the session cache.
type RemoteAuth interface {
	// SignIn authenticates with the remote store and stores the returned
	// bearer token via SetToken.
	SignIn(ctx context.Context, login, password string) (*models.Identity, error)

	// GetSession returns the identity of the current remote session, or nil
	// if the session is anonymous.
	GetSession(ctx context.Context) (*models.Identity, error)

	// RefreshSession revalidates the current session against the remote
	// store and returns the refreshed identity. The refreshed bearer token
	// is stored via SetToken.
	RefreshSession(ctx context.Context) (*models.Identity, error)

	// SignOut invalidates the remote session.
	SignOut(ctx context.Context) error
}

// RemoteAdapter defines transport-agnostic communication with the remote
// ledgerkeep store. Implementations are responsible for serialisation,
// authentication header management, and mapping transport-level errors to
// the sentinel values defined in this package.
type RemoteAdapter interface {
	RemoteStore
	RemoteEvents
	RemoteAuth

	// SetToken stores the bearer token attached to all subsequent
	// authenticated requests.
	SetToken(token string)

	// Token returns the bearer token currently stored in the adapter, or an
	// empty string if no token has been set yet.
	Token() string

	// Ping performs a lightweight reachability check against the remote
	// store. Used by the connectivity probe.
	Ping(ctx context.Context) error
}
