package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerkeep/ledger-sync/internal/adapter"
	"github.com/ledgerkeep/ledger-sync/internal/connectivity"
	"github.com/ledgerkeep/ledger-sync/internal/logger"
	"github.com/ledgerkeep/ledger-sync/internal/session"
	"github.com/ledgerkeep/ledger-sync/models"
)

// ErrRegistryClosed is returned by Subscribe after Close has been called.
var ErrRegistryClosed = errors.New("realtime registry is closed")

// Config tunes setup debouncing, delivery debouncing and loop protection.
// Zero fields fall back to the defaults documented on each field.
type Config struct {
	// SetupDelay debounces channel setup (default 300ms).
	SetupDelay time.Duration
	// DebounceWindow debounces per-handler event delivery (default 1s).
	DebounceWindow time.Duration
	// MaxSetupAttempts is the consecutive failure ceiling (default 3).
	MaxSetupAttempts int
	// CoolDown is the pause once the ceiling is exceeded (default 5s).
	CoolDown time.Duration
}

func (c Config) withDefaults() Config {
	if c.SetupDelay <= 0 {
		c.SetupDelay = 300 * time.Millisecond
	}
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = time.Second
	}
	if c.MaxSetupAttempts <= 0 {
		c.MaxSetupAttempts = 3
	}
	if c.CoolDown <= 0 {
		c.CoolDown = 5 * time.Second
	}
	return c
}

// Handlers carries the caller's per-kind event callbacks. Each non-nil
// handler is debounced independently.
type Handlers struct {
	OnInsert func(models.ChangeEvent)
	OnUpdate func(models.ChangeEvent)
	OnDelete func(models.ChangeEvent)
}

// Subscription is the consumer-side handle for one Watch call. Cancel
// detaches the handlers, stops their debounce timers, and tears the managed
// channel down once the last consumer is gone.
type Subscription struct {
	// ChannelID is the process-unique identifier of this consumer instance.
	ChannelID string
	// Collection is the watched collection.
	Collection models.Collection

	registry *Registry
	once     sync.Once
}

// Cancel detaches this consumer. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.registry.cancelConsumer(s.Collection, s.ChannelID)
	})
}

type consumer struct {
	channelID  string
	debouncers map[models.EventKind]*debouncer
}

type channel struct {
	collection models.Collection
	state      models.SubscriptionState
	attempts   int
	cooling    bool
	// generation guards against a dial completing after the channel has been
	// torn down or reset; stale results are discarded.
	generation    uint64
	setupTimer    *time.Timer
	cooldownTimer *time.Timer
	unsubscribe   adapter.UnsubscribeFunc
	consumers     map[string]*consumer
}

// StateWatcher observes per-collection state transitions. Watchers are
// invoked synchronously while the registry lock is held and must not call
// back into the registry.
type StateWatcher func(collection models.Collection, state models.SubscriptionState)

// Registry owns one managed channel per watched collection. It is created at
// the composition root and passed by reference to consumers; there is no
// package-level registry.
type Registry struct {
	events   adapter.RemoteEvents
	sessions *session.Cache
	monitor  *connectivity.Monitor
	cfg      Config
	logger   *logger.Logger

	ctx         context.Context
	cancelWatch func()

	mu       sync.Mutex
	closed   bool
	channels map[models.Collection]*channel
	watchers map[int]StateWatcher
	nextID   int
}

// NewRegistry builds a Registry bound to ctx: remote subscriptions are
// dialled with it and die with it. The registry reacts to connectivity
// transitions: offline drops every live channel to disconnected, online
// re-arms setup for every channel that still has consumers.
func NewRegistry(ctx context.Context, events adapter.RemoteEvents, sessions *session.Cache, monitor *connectivity.Monitor, cfg Config, log *logger.Logger) *Registry {
	r := &Registry{
		events:   events,
		sessions: sessions,
		monitor:  monitor,
		cfg:      cfg.withDefaults(),
		logger:   log,
		ctx:      ctx,
		channels: make(map[models.Collection]*channel),
		watchers: make(map[int]StateWatcher),
	}

	r.cancelWatch = monitor.Subscribe(func(online bool) {
		if online {
			r.onOnline()
		} else {
			r.onOffline()
		}
	})

	return r
}

// Watch registers handlers for remote mutations of the collection and
// returns a cancellable consumer handle. The managed channel is set up
// lazily (after the setup debounce window) once the preconditions hold: an
// authenticated identity and an online connectivity report. Registering
// while offline is allowed; the channel connects when connectivity returns.
func (r *Registry) Watch(collection models.Collection, handlers Handlers) (*Subscription, error) {
	if !models.KnownCollection(collection) {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}

	cons := &consumer{
		channelID:  uuid.NewString(),
		debouncers: make(map[models.EventKind]*debouncer, 3),
	}
	if handlers.OnInsert != nil {
		cons.debouncers[models.EventInsert] = newDebouncer(r.cfg.DebounceWindow, handlers.OnInsert, r.logger)
	}
	if handlers.OnUpdate != nil {
		cons.debouncers[models.EventUpdate] = newDebouncer(r.cfg.DebounceWindow, handlers.OnUpdate, r.logger)
	}
	if handlers.OnDelete != nil {
		cons.debouncers[models.EventDelete] = newDebouncer(r.cfg.DebounceWindow, handlers.OnDelete, r.logger)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}

	ch, ok := r.channels[collection]
	if !ok {
		ch = &channel{
			collection: collection,
			state:      models.SubscriptionIdle,
			consumers:  make(map[string]*consumer),
		}
		r.channels[collection] = ch
	}
	ch.consumers[cons.channelID] = cons
	r.scheduleSetupLocked(ch)
	r.mu.Unlock()

	return &Subscription{
		ChannelID:  cons.channelID,
		Collection: collection,
		registry:   r,
	}, nil
}

// State reports the current state of the collection's managed channel.
// Collections without consumers are idle.
func (r *Registry) State(collection models.Collection) models.SubscriptionState {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ch, ok := r.channels[collection]; ok {
		return ch.state
	}
	return models.SubscriptionIdle
}

// WatchStates registers a state transition observer and returns a cancel
// func. See [StateWatcher] for the reentrancy restriction.
func (r *Registry) WatchStates(fn StateWatcher) (cancel func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.watchers[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.watchers, id)
		r.mu.Unlock()
	}
}

// Close detaches the registry from the connectivity monitor and tears down
// every managed channel. Subsequent Watch calls fail with
// [ErrRegistryClosed].
func (r *Registry) Close() {
	if r.cancelWatch != nil {
		r.cancelWatch()
	}

	r.mu.Lock()
	r.closed = true
	var unsubs []adapter.UnsubscribeFunc
	for collection, ch := range r.channels {
		for _, cons := range ch.consumers {
			cons.stop()
		}
		if unsub := r.teardownLocked(ch); unsub != nil {
			unsubs = append(unsubs, unsub)
		}
		delete(r.channels, collection)
	}
	r.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

func (c *consumer) stop() {
	for _, d := range c.debouncers {
		d.Stop()
	}
}

// scheduleSetupLocked (re)starts the setup debounce timer. Rapid consecutive
// calls collapse into a single setup attempt after the window elapses.
func (r *Registry) scheduleSetupLocked(ch *channel) {
	if ch.state == models.SubscriptionSubscribed || ch.state == models.SubscriptionConnecting {
		return
	}
	if ch.setupTimer != nil {
		ch.setupTimer.Stop()
	}
	collection := ch.collection
	ch.setupTimer = time.AfterFunc(r.cfg.SetupDelay, func() {
		r.attemptSetup(collection)
	})
}

func (r *Registry) attemptSetup(collection models.Collection) {
	r.mu.Lock()
	ch, ok := r.channels[collection]
	if !ok || r.closed || len(ch.consumers) == 0 || ch.cooling ||
		ch.state == models.SubscriptionSubscribed || ch.state == models.SubscriptionConnecting {
		r.mu.Unlock()
		return
	}

	// Preconditions: no subscription without an authenticated, online
	// session. Connectivity and session transitions re-arm setup later.
	if !r.monitor.Online() || r.sessions.GetIdentity() == nil {
		r.mu.Unlock()
		return
	}

	r.setStateLocked(ch, models.SubscriptionConnecting)
	gen := ch.generation
	r.mu.Unlock()

	unsub, err := r.events.Subscribe(r.ctx, collection, adapter.ChangeHandlers{
		OnInsert: func(ev models.ChangeEvent) { r.dispatch(collection, ev) },
		OnUpdate: func(ev models.ChangeEvent) { r.dispatch(collection, ev) },
		OnDelete: func(ev models.ChangeEvent) { r.dispatch(collection, ev) },
	})

	r.mu.Lock()
	ch, ok = r.channels[collection]
	if !ok || ch.generation != gen {
		// Torn down or reset while dialling; discard the result.
		r.mu.Unlock()
		if err == nil && unsub != nil {
			unsub()
		}
		return
	}

	if err != nil {
		r.onSetupFailureLocked(ch, err)
		r.mu.Unlock()
		return
	}

	ch.unsubscribe = unsub
	ch.attempts = 0
	r.setStateLocked(ch, models.SubscriptionSubscribed)
	r.mu.Unlock()

	r.logger.Debug().Str("collection", string(collection)).Msg("subscription established")
}

func (r *Registry) onSetupFailureLocked(ch *channel, err error) {
	ch.attempts++
	r.setStateLocked(ch, models.SubscriptionDisconnected)

	if ch.attempts > r.cfg.MaxSetupAttempts {
		// Loop protection: stop retrying for the cool-down window. Logged,
		// not raised, since this is expected degraded operation.
		ch.cooling = true
		r.logger.Warn().
			Str("collection", string(ch.collection)).
			Int("attempts", ch.attempts).
			Dur("cool_down", r.cfg.CoolDown).
			Err(err).
			Msg("subscription setup loop detected, entering cool-down")

		collection := ch.collection
		ch.cooldownTimer = time.AfterFunc(r.cfg.CoolDown, func() {
			r.mu.Lock()
			cooled, ok := r.channels[collection]
			if !ok {
				r.mu.Unlock()
				return
			}
			cooled.cooling = false
			cooled.attempts = 0
			retry := len(cooled.consumers) > 0
			if retry {
				r.scheduleSetupLocked(cooled)
			}
			r.mu.Unlock()
		})
		return
	}

	r.logger.Debug().
		Str("collection", string(ch.collection)).
		Int("attempts", ch.attempts).
		Err(err).
		Msg("subscription setup failed, will retry")
	r.scheduleSetupLocked(ch)
}

// dispatch fans one incoming event out to every consumer's debouncer for the
// event kind. Delivery itself happens later on the debounce timers, so a
// slow handler cannot block this path.
func (r *Registry) dispatch(collection models.Collection, ev models.ChangeEvent) {
	r.mu.Lock()
	ch, ok := r.channels[collection]
	if !ok {
		r.mu.Unlock()
		return
	}
	targets := make([]*debouncer, 0, len(ch.consumers))
	for _, cons := range ch.consumers {
		if d, exists := cons.debouncers[ev.Kind]; exists {
			targets = append(targets, d)
		}
	}
	r.mu.Unlock()

	for _, d := range targets {
		d.Trigger(ev)
	}
}

func (r *Registry) cancelConsumer(collection models.Collection, channelID string) {
	r.mu.Lock()
	ch, ok := r.channels[collection]
	if !ok {
		r.mu.Unlock()
		return
	}

	cons, exists := ch.consumers[channelID]
	if exists {
		delete(ch.consumers, channelID)
		cons.stop()
	}

	var unsub adapter.UnsubscribeFunc
	if len(ch.consumers) == 0 {
		unsub = r.teardownLocked(ch)
		delete(r.channels, collection)
	}
	r.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// teardownLocked cancels pending timers, bumps the generation so in-flight
// dials are discarded, and returns the remote unsubscribe func (if any) for
// the caller to invoke outside the lock.
func (r *Registry) teardownLocked(ch *channel) adapter.UnsubscribeFunc {
	if ch.setupTimer != nil {
		ch.setupTimer.Stop()
		ch.setupTimer = nil
	}
	if ch.cooldownTimer != nil {
		ch.cooldownTimer.Stop()
		ch.cooldownTimer = nil
	}
	ch.cooling = false
	ch.attempts = 0
	ch.generation++

	unsub := ch.unsubscribe
	ch.unsubscribe = nil
	r.setStateLocked(ch, models.SubscriptionIdle)

	return unsub
}

func (r *Registry) onOffline() {
	r.mu.Lock()
	var unsubs []adapter.UnsubscribeFunc
	for _, ch := range r.channels {
		if ch.state != models.SubscriptionSubscribed {
			continue
		}
		ch.generation++
		if ch.unsubscribe != nil {
			unsubs = append(unsubs, ch.unsubscribe)
			ch.unsubscribe = nil
		}
		r.setStateLocked(ch, models.SubscriptionDisconnected)
	}
	r.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

func (r *Registry) onOnline() {
	r.mu.Lock()
	for _, ch := range r.channels {
		if len(ch.consumers) > 0 {
			r.scheduleSetupLocked(ch)
		}
	}
	r.mu.Unlock()
}

func (r *Registry) setStateLocked(ch *channel, state models.SubscriptionState) {
	if ch.state == state {
		return
	}
	ch.state = state

	for id := 0; id < r.nextID; id++ {
		if fn, ok := r.watchers[id]; ok {
			fn(ch.collection, state)
		}
	}
}
