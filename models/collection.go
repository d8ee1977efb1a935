// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Ledgerkeep Authors

package models

import "fmt"

// Collection is the name of one domain collection in the remote store.
// The sync core never inspects the rows themselves; collections are opaque
// bags of records scoped by tenant.
type Collection string

const (
	CollectionBanks        Collection = "banks"
	CollectionAccounts     Collection = "accounts"
	CollectionCreditCards  Collection = "credit_cards"
	CollectionCategories   Collection = "categories"
	CollectionGoals        Collection = "goals"
	CollectionDebts        Collection = "debts"
	CollectionTransactions Collection = "transactions"
)

// CollectionSpec ties a collection name to its dependency rank. Lower ranks
// must be imported before higher ones: transactions reference accounts,
// categories and cards, so they always come last.
type CollectionSpec struct {
	Name Collection
	Rank int
}

// collectionOrder is the single source of truth for the import dependency
// order. Export and stats iterate it too so that bundles are always produced
// and consumed in the same sequence.
var collectionOrder = []CollectionSpec{
	{Name: CollectionBanks, Rank: 0},
	{Name: CollectionAccounts, Rank: 1},
	{Name: CollectionCreditCards, Rank: 2},
	{Name: CollectionCategories, Rank: 3},
	{Name: CollectionGoals, Rank: 4},
	{Name: CollectionDebts, Rank: 5},
	{Name: CollectionTransactions, Rank: 6},
}

// OrderedCollections returns all known collections in dependency order.
// The returned slice is a copy and safe to mutate.
func OrderedCollections() []CollectionSpec {
	out := make([]CollectionSpec, len(collectionOrder))
	copy(out, collectionOrder)
	return out
}

// ParseCollection validates a raw collection name. Returns an error for names
// outside the fixed enumeration so that malformed bundles and bad caller
// input are rejected early.
func ParseCollection(name string) (Collection, error) {
	for _, spec := range collectionOrder {
		if string(spec.Name) == name {
			return spec.Name, nil
		}
	}
	return "", fmt.Errorf("unknown collection %q", name)
}

// KnownCollection reports whether c is part of the fixed enumeration.
func KnownCollection(c Collection) bool {
	_, err := ParseCollection(string(c))
	return err == nil
}
