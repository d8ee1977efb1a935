package devremote

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerkeep/ledger-sync/internal/adapter"
	"github.com/ledgerkeep/ledger-sync/internal/config"
	"github.com/ledgerkeep/ledger-sync/internal/logger"
	"github.com/ledgerkeep/ledger-sync/models"
)

const (
	testEmail    = "dev@example.com"
	testPassword = "secret"
	testTenant   = "tenant-dev"
)

// newTestBackend starts the dev backend and returns the production adapter
// pointed at it. These tests double as integration coverage for the client
// transport: the same code paths the client uses in the field run against a
// live HTTP and websocket surface.
func newTestBackend(t *testing.T) (*Server, adapter.RemoteAdapter) {
	t.Helper()

	server := NewServer([]byte("test-signing-key"), logger.Nop())
	require.NoError(t, server.RegisterUser(testEmail, testPassword, testTenant))
	t.Cleanup(server.Close)

	httpServer := httptest.NewServer(server.Router())
	t.Cleanup(httpServer.Close)

	remote := adapter.NewHTTPRemoteAdapter(config.ClientRemote{
		BaseURL:        httpServer.URL,
		RequestTimeout: 5 * time.Second,
	}, logger.Nop())

	return server, remote
}

func signIn(t *testing.T, remote adapter.RemoteAdapter) *models.Identity {
	t.Helper()
	identity, err := remote.SignIn(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	return identity
}

func TestServer_SignIn(t *testing.T) {
	_, remote := newTestBackend(t)

	identity := signIn(t, remote)
	assert.Equal(t, testTenant, identity.Tenant)
	assert.Equal(t, testEmail, identity.Email)
	assert.NotEmpty(t, identity.Token)
	assert.Equal(t, identity.Token, remote.Token())
}

func TestServer_SignIn_BadCredentials(t *testing.T) {
	_, remote := newTestBackend(t)

	_, err := remote.SignIn(context.Background(), testEmail, "wrong")
	require.ErrorIs(t, err, adapter.ErrUnauthorized)

	_, err = remote.SignIn(context.Background(), "nobody@example.com", testPassword)
	require.ErrorIs(t, err, adapter.ErrUnauthorized)
}

func TestServer_GetSession(t *testing.T) {
	_, remote := newTestBackend(t)
	ctx := context.Background()

	// Anonymous: 204, not an error.
	identity, err := remote.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, identity)

	signIn(t, remote)

	identity, err = remote.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, testTenant, identity.Tenant)
}

func TestServer_RefreshAndSignOut(t *testing.T) {
	_, remote := newTestBackend(t)
	ctx := context.Background()

	signIn(t, remote)

	identity, err := remote.RefreshSession(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, identity.Token)
	assert.Equal(t, identity.Token, remote.Token())

	require.NoError(t, remote.SignOut(ctx))
}

func TestServer_RefreshWithoutToken(t *testing.T) {
	_, remote := newTestBackend(t)

	_, err := remote.RefreshSession(context.Background())
	require.ErrorIs(t, err, adapter.ErrUnauthorized)
}

func TestServer_CollectionLifecycle(t *testing.T) {
	_, remote := newTestBackend(t)
	ctx := context.Background()
	signIn(t, remote)

	require.NoError(t, remote.Insert(ctx, models.CollectionAccounts, []json.RawMessage{
		json.RawMessage(`{"name":"checking","balance":100}`),
	}))

	records, err := remote.Query(ctx, models.CollectionAccounts, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)

	var stored map[string]any
	require.NoError(t, json.Unmarshal(records[0], &stored))
	id, _ := stored["id"].(string)
	assert.NotEmpty(t, id, "server assigns the record id")
	assert.Equal(t, testTenant, stored["tenant"])
	assert.NotEmpty(t, stored["created_at"])
	assert.Equal(t, "checking", stored["name"])

	require.NoError(t, remote.Update(ctx, models.CollectionAccounts, id, json.RawMessage(`{"name":"savings"}`)))

	records, err = remote.Query(ctx, models.CollectionAccounts, adapter.Filter{"name": "savings"})
	require.NoError(t, err)
	require.Len(t, records, 1)

	var updated map[string]any
	require.NoError(t, json.Unmarshal(records[0], &updated))
	assert.Equal(t, id, updated["id"], "update must not reassign the id")
	assert.Equal(t, float64(100), updated["balance"], "patch leaves untouched fields alone")

	require.NoError(t, remote.Delete(ctx, models.CollectionAccounts, id))

	records, err = remote.Query(ctx, models.CollectionAccounts, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestServer_UpdateDeleteUnknownRecord(t *testing.T) {
	_, remote := newTestBackend(t)
	ctx := context.Background()
	signIn(t, remote)

	err := remote.Update(ctx, models.CollectionGoals, "missing", json.RawMessage(`{"name":"x"}`))
	require.ErrorIs(t, err, adapter.ErrNotFound)

	err = remote.Delete(ctx, models.CollectionGoals, "missing")
	require.ErrorIs(t, err, adapter.ErrNotFound)
}

func TestServer_UnknownCollection(t *testing.T) {
	_, remote := newTestBackend(t)
	ctx := context.Background()
	signIn(t, remote)

	err := remote.Insert(ctx, models.Collection("vehicles"), []json.RawMessage{json.RawMessage(`{}`)})
	require.ErrorIs(t, err, adapter.ErrNotFound)
}

func TestServer_RejectsUnauthenticatedMutations(t *testing.T) {
	_, remote := newTestBackend(t)

	err := remote.Insert(context.Background(), models.CollectionBanks, []json.RawMessage{json.RawMessage(`{}`)})
	require.ErrorIs(t, err, adapter.ErrUnauthorized)
}

func TestServer_TenantIsolation(t *testing.T) {
	server, remote := newTestBackend(t)
	ctx := context.Background()
	signIn(t, remote)

	require.NoError(t, remote.Insert(ctx, models.CollectionBanks, []json.RawMessage{
		json.RawMessage(`{"name":"First Bank"}`),
	}))

	// A second account in another tenant must not see the first tenant's
	// rows, even with a filter naming the other tenant.
	require.NoError(t, server.RegisterUser("other@example.com", "secret2", "tenant-other"))

	httpServer := httptest.NewServer(server.Router())
	defer httpServer.Close()
	other := adapter.NewHTTPRemoteAdapter(config.ClientRemote{
		BaseURL:        httpServer.URL,
		RequestTimeout: 5 * time.Second,
	}, logger.Nop())

	_, err := other.SignIn(ctx, "other@example.com", "secret2")
	require.NoError(t, err)

	records, err := other.Query(ctx, models.CollectionBanks, adapter.Filter{"tenant": testTenant})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestServer_SubscribeReceivesBroadcasts(t *testing.T) {
	_, remote := newTestBackend(t)
	ctx := context.Background()
	signIn(t, remote)

	events := make(chan models.ChangeEvent, 8)
	handler := func(ev models.ChangeEvent) { events <- ev }

	unsubscribe, err := remote.Subscribe(ctx, models.CollectionTransactions, adapter.ChangeHandlers{
		OnInsert: handler,
		OnUpdate: handler,
		OnDelete: handler,
	})
	require.NoError(t, err)
	defer unsubscribe()

	// The handshake completes before the server attaches the subscriber to
	// the hub; give it a beat so the first broadcast is not lost.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, remote.Insert(ctx, models.CollectionTransactions, []json.RawMessage{
		json.RawMessage(`{"amount":42}`),
	}))

	var inserted models.ChangeEvent
	select {
	case inserted = <-events:
	case <-time.After(2 * time.Second):
		t.Fatal("insert event never arrived")
	}
	assert.Equal(t, models.EventInsert, inserted.Kind)
	assert.Equal(t, models.CollectionTransactions, inserted.Collection)

	var row map[string]any
	require.NoError(t, json.Unmarshal(inserted.Record, &row))
	id, _ := row["id"].(string)
	require.NotEmpty(t, id)

	require.NoError(t, remote.Delete(ctx, models.CollectionTransactions, id))

	select {
	case deleted := <-events:
		assert.Equal(t, models.EventDelete, deleted.Kind)
		assert.JSONEq(t, `{"id":"`+id+`"}`, string(deleted.Record))
	case <-time.After(2 * time.Second):
		t.Fatal("delete event never arrived")
	}
}

func TestServer_SubscribeScopedToCollection(t *testing.T) {
	_, remote := newTestBackend(t)
	ctx := context.Background()
	signIn(t, remote)

	events := make(chan models.ChangeEvent, 8)
	unsubscribe, err := remote.Subscribe(ctx, models.CollectionGoals, adapter.ChangeHandlers{
		OnInsert: func(ev models.ChangeEvent) { events <- ev },
	})
	require.NoError(t, err)
	defer unsubscribe()

	time.Sleep(100 * time.Millisecond)

	// A mutation in another collection must not reach this subscriber.
	require.NoError(t, remote.Insert(ctx, models.CollectionBanks, []json.RawMessage{
		json.RawMessage(`{"name":"Elsewhere"}`),
	}))

	select {
	case ev := <-events:
		t.Fatalf("unexpected event for collection %s", ev.Collection)
	case <-time.After(200 * time.Millisecond):
	}
}
