package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderedCollections_DependencyOrder(t *testing.T) {
	specs := OrderedCollections()

	want := []Collection{
		CollectionBanks,
		CollectionAccounts,
		CollectionCreditCards,
		CollectionCategories,
		CollectionGoals,
		CollectionDebts,
		CollectionTransactions,
	}

	require.Len(t, specs, len(want))
	for i, spec := range specs {
		assert.Equal(t, want[i], spec.Name)
		assert.Equal(t, i, spec.Rank)
	}
}

func TestOrderedCollections_ReturnsCopy(t *testing.T) {
	first := OrderedCollections()
	first[0].Name = "tampered"

	assert.Equal(t, CollectionBanks, OrderedCollections()[0].Name)
}

func TestParseCollection(t *testing.T) {
	c, err := ParseCollection("transactions")
	require.NoError(t, err)
	assert.Equal(t, CollectionTransactions, c)

	_, err = ParseCollection("vehicles")
	require.Error(t, err)

	_, err = ParseCollection("")
	require.Error(t, err)
}

func TestKnownCollection(t *testing.T) {
	assert.True(t, KnownCollection(CollectionGoals))
	assert.False(t, KnownCollection(Collection("vehicles")))
}

func TestParseOperation(t *testing.T) {
	for _, op := range []string{"insert", "update", "delete"} {
		parsed, err := ParseOperation(op)
		require.NoError(t, err)
		assert.Equal(t, Operation(op), parsed)
	}

	_, err := ParseOperation("upsert")
	require.Error(t, err)
}

func TestSyncRecord_QueueKey(t *testing.T) {
	rec := SyncRecord{ID: "t-1", EntityType: CollectionTransactions}
	assert.Equal(t, "transactions_t-1", rec.QueueKey())

	// Distinct collections with the same id never collide.
	other := SyncRecord{ID: "t-1", EntityType: CollectionAccounts}
	assert.NotEqual(t, rec.QueueKey(), other.QueueKey())
}
