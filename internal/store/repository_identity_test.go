package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerkeep/ledger-sync/internal/logger"
	"github.com/ledgerkeep/ledger-sync/models"
)

func newTestIdentityRepo(t *testing.T) IdentityRepository {
	t.Helper()
	return NewIdentityRepository(newTestDB(t), logger.Nop())
}

func TestIdentityRepository_SaveAndGet(t *testing.T) {
	repo := newTestIdentityRepo(t)
	ctx := context.Background()

	identity := models.Identity{
		UserID:   "u-1",
		Tenant:   "acme",
		Email:    "user@acme.test",
		Token:    "tok-abc",
		CachedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.SaveIdentity(ctx, identity))

	got, err := repo.GetIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, identity.UserID, got.UserID)
	assert.Equal(t, identity.Tenant, got.Tenant)
	assert.Equal(t, identity.Token, got.Token)
}

func TestIdentityRepository_Save_OverwritesSlot(t *testing.T) {
	repo := newTestIdentityRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveIdentity(ctx, models.Identity{UserID: "u-1", Token: "old"}))
	require.NoError(t, repo.SaveIdentity(ctx, models.Identity{UserID: "u-1", Token: "new"}))

	got, err := repo.GetIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Token)
}

func TestIdentityRepository_Get_EmptySlot(t *testing.T) {
	repo := newTestIdentityRepo(t)

	_, err := repo.GetIdentity(context.Background())
	assert.ErrorIs(t, err, ErrIdentityNotFound)
}

func TestIdentityRepository_Clear(t *testing.T) {
	repo := newTestIdentityRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveIdentity(ctx, models.Identity{UserID: "u-1"}))
	require.NoError(t, repo.ClearIdentity(ctx))

	_, err := repo.GetIdentity(ctx)
	assert.ErrorIs(t, err, ErrIdentityNotFound)

	// Clearing an already-empty slot is not an error.
	assert.NoError(t, repo.ClearIdentity(ctx))
}
