package devremote

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/ledgerkeep/ledger-sync/internal/logger"
	"github.com/ledgerkeep/ledger-sync/models"
)

const writeTimeout = 5 * time.Second

// subscriber is one open websocket scoped to (tenant, collection).
type subscriber struct {
	tenant     string
	collection models.Collection
	conn       *websocket.Conn
}

// eventHub fans mutation events out to websocket subscribers of the same
// tenant and collection. Slow or broken subscribers are dropped, not waited
// for.
type eventHub struct {
	logger *logger.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
}

func newEventHub(log *logger.Logger) *eventHub {
	return &eventHub{
		logger: log,
		subs:   make(map[int]*subscriber),
	}
}

// Attach registers a websocket and returns its removal func.
func (h *eventHub) Attach(tenant string, collection models.Collection, conn *websocket.Conn) (detach func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = &subscriber{tenant: tenant, collection: collection, conn: conn}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// Broadcast pushes one change event to every subscriber of the tenant's
// collection.
func (h *eventHub) Broadcast(tenant string, collection models.Collection, kind models.EventKind, record json.RawMessage) {
	event := models.ChangeEvent{
		Collection: collection,
		Kind:       kind,
		Record:     record,
		OccurredAt: time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Msg("encode change event")
		return
	}

	h.mu.Lock()
	targets := make([]*subscriber, 0, len(h.subs))
	ids := make([]int, 0, len(h.subs))
	for id, sub := range h.subs {
		if sub.tenant == tenant && sub.collection == collection {
			targets = append(targets, sub)
			ids = append(ids, id)
		}
	}
	h.mu.Unlock()

	for i, sub := range targets {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err = sub.conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			h.logger.Debug().
				Str("collection", string(collection)).
				Err(err).
				Msg("dropping dead subscriber")
			h.mu.Lock()
			delete(h.subs, ids[i])
			h.mu.Unlock()
			_ = sub.conn.Close(websocket.StatusGoingAway, "write failed")
		}
	}
}

// CloseAll terminates every open subscription. Used on server shutdown.
func (h *eventHub) CloseAll() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[int]*subscriber)
	h.mu.Unlock()

	for _, sub := range subs {
		_ = sub.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}
