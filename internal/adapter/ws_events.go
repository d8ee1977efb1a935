package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/ledgerkeep/ledger-sync/models"
)

// Subscribe opens one websocket per subscription against the remote
// subscription endpoint and pumps decoded change events into the handlers.
// The read loop exits when the connection drops, ctx is cancelled, or the
// returned UnsubscribeFunc is called.
func (h *httpRemoteAdapter) Subscribe(ctx context.Context, collection models.Collection, handlers ChangeHandlers) (UnsubscribeFunc, error) {
	header := http.Header{}
	if token := h.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	url := fmt.Sprintf("%s?collection=%s", h.wsURL, collection)
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("%w: subscribe dial %s: %v", ErrUnavailable, collection, err)
	}

	loopCtx, cancel := context.WithCancel(ctx)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			cancel()
			_ = conn.Close(websocket.StatusNormalClosure, "unsubscribed")
		})
	}

	go h.readEvents(loopCtx, conn, collection, handlers)

	return unsubscribe, nil
}

func (h *httpRemoteAdapter) readEvents(ctx context.Context, conn *websocket.Conn, collection models.Collection, handlers ChangeHandlers) {
	defer conn.CloseNow()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				h.logger.Debug().
					Str("collection", string(collection)).
					Err(err).
					Msg("subscription read loop terminated")
			}
			return
		}

		var event models.ChangeEvent
		if err = json.Unmarshal(data, &event); err != nil {
			h.logger.Warn().
				Str("collection", string(collection)).
				Err(err).
				Msg("dropping malformed change event")
			continue
		}

		switch event.Kind {
		case models.EventInsert:
			if handlers.OnInsert != nil {
				handlers.OnInsert(event)
			}
		case models.EventUpdate:
			if handlers.OnUpdate != nil {
				handlers.OnUpdate(event)
			}
		case models.EventDelete:
			if handlers.OnDelete != nil {
				handlers.OnDelete(event)
			}
		default:
			h.logger.Warn().
				Str("collection", string(collection)).
				Str("kind", string(event.Kind)).
				Msg("dropping change event of unknown kind")
		}
	}
}
