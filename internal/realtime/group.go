package realtime

import (
	"sync"

	"github.com/ledgerkeep/ledger-sync/models"
)

// Group aggregates the connection flags of a set of collections. The flags
// are recomputed whenever any underlying per-collection channel changes
// state, and an optional OnChange callback observes the recomputed values.
type Group struct {
	collections []models.Collection
	cancelWatch func()

	mu       sync.Mutex
	states   map[models.Collection]models.SubscriptionState
	onChange func(allConnected, anyConnected bool)
}

// NewGroup builds a Group over the given collections. The initial flags are
// seeded from the registry's current states. onChange may be nil.
func NewGroup(registry *Registry, collections []models.Collection, onChange func(allConnected, anyConnected bool)) *Group {
	g := &Group{
		collections: collections,
		states:      make(map[models.Collection]models.SubscriptionState, len(collections)),
		onChange:    onChange,
	}

	for _, c := range collections {
		g.states[c] = registry.State(c)
	}

	g.cancelWatch = registry.WatchStates(func(collection models.Collection, state models.SubscriptionState) {
		g.handleState(collection, state)
	})

	return g
}

// Close detaches the group from the registry.
func (g *Group) Close() {
	if g.cancelWatch != nil {
		g.cancelWatch()
	}
}

// AllConnected reports whether every collection in the group is subscribed.
func (g *Group) AllConnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.allLocked()
}

// AnyConnected reports whether at least one collection in the group is
// subscribed.
func (g *Group) AnyConnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.anyLocked()
}

func (g *Group) handleState(collection models.Collection, state models.SubscriptionState) {
	g.mu.Lock()
	if _, tracked := g.states[collection]; !tracked {
		g.mu.Unlock()
		return
	}
	g.states[collection] = state
	all := g.allLocked()
	anyConn := g.anyLocked()
	onChange := g.onChange
	g.mu.Unlock()

	if onChange != nil {
		onChange(all, anyConn)
	}
}

func (g *Group) allLocked() bool {
	for _, c := range g.collections {
		if g.states[c] != models.SubscriptionSubscribed {
			return false
		}
	}
	return len(g.collections) > 0
}

func (g *Group) anyLocked() bool {
	for _, c := range g.collections {
		if g.states[c] == models.SubscriptionSubscribed {
			return true
		}
	}
	return false
}
