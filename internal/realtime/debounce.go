package realtime

import (
	"sync"
	"time"

	"github.com/ledgerkeep/ledger-sync/internal/logger"
	"github.com/ledgerkeep/ledger-sync/models"
)

// debouncer implements trailing-edge debouncing for one handler: every
// trigger restarts the timer, and when the window finally elapses the handler
// receives only the most recent event. Intermediate events are dropped.
type debouncer struct {
	window time.Duration
	fn     func(models.ChangeEvent)
	logger *logger.Logger

	mu      sync.Mutex
	timer   *time.Timer
	latest  models.ChangeEvent
	stopped bool
}

func newDebouncer(window time.Duration, fn func(models.ChangeEvent), log *logger.Logger) *debouncer {
	return &debouncer{
		window: window,
		fn:     fn,
		logger: log,
	}
}

// Trigger records ev as the latest payload and restarts the window.
func (d *debouncer) Trigger(ev models.ChangeEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.latest = ev
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

// Stop cancels any pending delivery. Safe to call repeatedly.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// fire runs on the timer goroutine, so one slow or panicking handler never
// blocks deliveries to other handlers.
func (d *debouncer) fire() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	ev := d.latest
	d.timer = nil
	d.mu.Unlock()

	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error().
				Str("collection", string(ev.Collection)).
				Str("kind", string(ev.Kind)).
				Any("panic", rec).
				Msg("change handler panicked")
		}
	}()

	d.fn(ev)
}
