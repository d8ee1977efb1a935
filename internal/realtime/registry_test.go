package realtime

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ledgerkeep/ledger-sync/internal/adapter"
	"github.com/ledgerkeep/ledger-sync/internal/connectivity"
	"github.com/ledgerkeep/ledger-sync/internal/logger"
	"github.com/ledgerkeep/ledger-sync/internal/mock"
	"github.com/ledgerkeep/ledger-sync/internal/session"
	"github.com/ledgerkeep/ledger-sync/models"
)

// fastConfig keeps the registry timers short enough for tests while
// preserving the real ordering of setup, retry and cool-down.
func fastConfig() Config {
	return Config{
		SetupDelay:       5 * time.Millisecond,
		DebounceWindow:   10 * time.Millisecond,
		MaxSetupAttempts: 2,
		CoolDown:         150 * time.Millisecond,
	}
}

// newTestSessions builds a session cache primed with a persisted identity so
// the registry's authenticated-session precondition holds. Remote session
// calls triggered by connectivity transitions are stubbed permissively.
func newTestSessions(t *testing.T, ctrl *gomock.Controller, monitor *connectivity.Monitor) *session.Cache {
	t.Helper()

	ident := models.Identity{
		UserID:   "user-1",
		Tenant:   "tenant-1",
		Token:    "token-1",
		CachedAt: time.Now(),
	}

	remote := mock.NewMockRemoteAdapter(ctrl)
	repo := mock.NewMockIdentityRepository(ctrl)

	repo.EXPECT().GetIdentity(gomock.Any()).Return(ident, nil).AnyTimes()
	repo.EXPECT().SaveIdentity(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	remote.EXPECT().SetToken(gomock.Any()).AnyTimes()
	remote.EXPECT().RefreshSession(gomock.Any()).
		DoAndReturn(func(context.Context) (*models.Identity, error) {
			cp := ident
			return &cp, nil
		}).
		AnyTimes()

	cache := session.NewCache(remote, repo, monitor, logger.Nop())
	t.Cleanup(cache.Close)
	return cache
}

func TestRegistry_WatchRejectsUnknownCollection(t *testing.T) {
	ctrl := gomock.NewController(t)
	monitor := connectivity.NewMonitor(true, logger.Nop())
	sessions := newTestSessions(t, ctrl, monitor)
	events := mock.NewMockRemoteEvents(ctrl)

	r := NewRegistry(context.Background(), events, sessions, monitor, fastConfig(), logger.Nop())
	defer r.Close()

	_, err := r.Watch(models.Collection("vehicles"), Handlers{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown collection")
}

func TestRegistry_WatchEstablishesSubscriptionAndDeliversEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	monitor := connectivity.NewMonitor(true, logger.Nop())
	sessions := newTestSessions(t, ctrl, monitor)
	events := mock.NewMockRemoteEvents(ctrl)

	captured := make(chan adapter.ChangeHandlers, 1)
	events.EXPECT().
		Subscribe(gomock.Any(), models.CollectionTransactions, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ models.Collection, h adapter.ChangeHandlers) (adapter.UnsubscribeFunc, error) {
			captured <- h
			return func() {}, nil
		})

	r := NewRegistry(context.Background(), events, sessions, monitor, fastConfig(), logger.Nop())
	defer r.Close()

	rec := &eventRecorder{}
	sub, err := r.Watch(models.CollectionTransactions, Handlers{OnInsert: rec.record})
	require.NoError(t, err)
	defer sub.Cancel()

	require.Eventually(t, func() bool {
		return r.State(models.CollectionTransactions) == models.SubscriptionSubscribed
	}, time.Second, 5*time.Millisecond)

	var handlers adapter.ChangeHandlers
	select {
	case handlers = <-captured:
	case <-time.After(time.Second):
		t.Fatal("remote handlers never captured")
	}

	// Two remote events inside one debounce window collapse into a single
	// delivery carrying the most recent payload.
	handlers.OnInsert(models.ChangeEvent{Collection: models.CollectionTransactions, Kind: models.EventInsert, Record: []byte(`{"id":"1"}`)})
	handlers.OnInsert(models.ChangeEvent{Collection: models.CollectionTransactions, Kind: models.EventInsert, Record: []byte(`{"id":"2"}`)})

	require.Eventually(t, func() bool { return len(rec.snapshot()) > 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	delivered := rec.snapshot()
	require.Len(t, delivered, 1)
	assert.JSONEq(t, `{"id":"2"}`, string(delivered[0].Record))
}

func TestRegistry_RapidWatchesCollapseIntoOneSetup(t *testing.T) {
	ctrl := gomock.NewController(t)
	monitor := connectivity.NewMonitor(true, logger.Nop())
	sessions := newTestSessions(t, ctrl, monitor)
	events := mock.NewMockRemoteEvents(ctrl)

	events.EXPECT().
		Subscribe(gomock.Any(), models.CollectionAccounts, gomock.Any()).
		Return(adapter.UnsubscribeFunc(func() {}), nil).
		Times(1)

	r := NewRegistry(context.Background(), events, sessions, monitor, fastConfig(), logger.Nop())
	defer r.Close()

	sub1, err := r.Watch(models.CollectionAccounts, Handlers{OnInsert: func(models.ChangeEvent) {}})
	require.NoError(t, err)
	defer sub1.Cancel()
	sub2, err := r.Watch(models.CollectionAccounts, Handlers{OnUpdate: func(models.ChangeEvent) {}})
	require.NoError(t, err)
	defer sub2.Cancel()

	require.Eventually(t, func() bool {
		return r.State(models.CollectionAccounts) == models.SubscriptionSubscribed
	}, time.Second, 5*time.Millisecond)
}

func TestRegistry_SetupFailureLoopEntersCoolDown(t *testing.T) {
	ctrl := gomock.NewController(t)
	monitor := connectivity.NewMonitor(true, logger.Nop())
	sessions := newTestSessions(t, ctrl, monitor)
	events := mock.NewMockRemoteEvents(ctrl)

	var calls atomic.Int64
	events.EXPECT().
		Subscribe(gomock.Any(), models.CollectionGoals, gomock.Any()).
		DoAndReturn(func(context.Context, models.Collection, adapter.ChangeHandlers) (adapter.UnsubscribeFunc, error) {
			calls.Add(1)
			return nil, errors.New("dial refused")
		}).
		AnyTimes()

	r := NewRegistry(context.Background(), events, sessions, monitor, fastConfig(), logger.Nop())
	defer r.Close()

	sub, err := r.Watch(models.CollectionGoals, Handlers{OnInsert: func(models.ChangeEvent) {}})
	require.NoError(t, err)
	defer sub.Cancel()

	// MaxSetupAttempts is 2: the third consecutive failure trips the
	// cool-down and retries pause.
	require.Eventually(t, func() bool { return calls.Load() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.SubscriptionDisconnected, r.State(models.CollectionGoals))

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int64(3), calls.Load(), "no attempts while cooling")

	// Retries resume once the cool-down window elapses.
	require.Eventually(t, func() bool { return calls.Load() > 3 }, time.Second, 5*time.Millisecond)
}

func TestRegistry_CancelLastConsumerTearsChannelDown(t *testing.T) {
	ctrl := gomock.NewController(t)
	monitor := connectivity.NewMonitor(true, logger.Nop())
	sessions := newTestSessions(t, ctrl, monitor)
	events := mock.NewMockRemoteEvents(ctrl)

	var unsubscribed atomic.Bool
	events.EXPECT().
		Subscribe(gomock.Any(), models.CollectionBanks, gomock.Any()).
		Return(adapter.UnsubscribeFunc(func() { unsubscribed.Store(true) }), nil)

	r := NewRegistry(context.Background(), events, sessions, monitor, fastConfig(), logger.Nop())
	defer r.Close()

	sub, err := r.Watch(models.CollectionBanks, Handlers{OnDelete: func(models.ChangeEvent) {}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return r.State(models.CollectionBanks) == models.SubscriptionSubscribed
	}, time.Second, 5*time.Millisecond)

	sub.Cancel()
	assert.True(t, unsubscribed.Load())
	assert.Equal(t, models.SubscriptionIdle, r.State(models.CollectionBanks))

	// Cancel is idempotent.
	assert.NotPanics(t, sub.Cancel)
}

func TestRegistry_OfflineDropsChannelAndOnlineRearms(t *testing.T) {
	ctrl := gomock.NewController(t)
	monitor := connectivity.NewMonitor(true, logger.Nop())
	sessions := newTestSessions(t, ctrl, monitor)
	events := mock.NewMockRemoteEvents(ctrl)

	var unsubscribed atomic.Bool
	events.EXPECT().
		Subscribe(gomock.Any(), models.CollectionDebts, gomock.Any()).
		DoAndReturn(func(context.Context, models.Collection, adapter.ChangeHandlers) (adapter.UnsubscribeFunc, error) {
			return func() { unsubscribed.Store(true) }, nil
		}).
		Times(2)

	r := NewRegistry(context.Background(), events, sessions, monitor, fastConfig(), logger.Nop())
	defer r.Close()

	sub, err := r.Watch(models.CollectionDebts, Handlers{OnInsert: func(models.ChangeEvent) {}})
	require.NoError(t, err)
	defer sub.Cancel()

	require.Eventually(t, func() bool {
		return r.State(models.CollectionDebts) == models.SubscriptionSubscribed
	}, time.Second, 5*time.Millisecond)

	monitor.SetOnline(false)
	assert.Equal(t, models.SubscriptionDisconnected, r.State(models.CollectionDebts))
	assert.True(t, unsubscribed.Load())

	monitor.SetOnline(true)
	require.Eventually(t, func() bool {
		return r.State(models.CollectionDebts) == models.SubscriptionSubscribed
	}, time.Second, 5*time.Millisecond)
}

func TestRegistry_WatchWhileOfflineConnectsOnReconnect(t *testing.T) {
	ctrl := gomock.NewController(t)
	monitor := connectivity.NewMonitor(false, logger.Nop())
	sessions := newTestSessions(t, ctrl, monitor)
	events := mock.NewMockRemoteEvents(ctrl)

	events.EXPECT().
		Subscribe(gomock.Any(), models.CollectionCategories, gomock.Any()).
		Return(adapter.UnsubscribeFunc(func() {}), nil).
		Times(1)

	r := NewRegistry(context.Background(), events, sessions, monitor, fastConfig(), logger.Nop())
	defer r.Close()

	sub, err := r.Watch(models.CollectionCategories, Handlers{OnInsert: func(models.ChangeEvent) {}})
	require.NoError(t, err)
	defer sub.Cancel()

	// Offline: the setup attempt fires but the precondition blocks it.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, models.SubscriptionIdle, r.State(models.CollectionCategories))

	monitor.SetOnline(true)
	require.Eventually(t, func() bool {
		return r.State(models.CollectionCategories) == models.SubscriptionSubscribed
	}, time.Second, 5*time.Millisecond)
}

func TestRegistry_WatchAfterCloseFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	monitor := connectivity.NewMonitor(true, logger.Nop())
	sessions := newTestSessions(t, ctrl, monitor)
	events := mock.NewMockRemoteEvents(ctrl)

	var unsubscribed atomic.Bool
	events.EXPECT().
		Subscribe(gomock.Any(), models.CollectionTransactions, gomock.Any()).
		Return(adapter.UnsubscribeFunc(func() { unsubscribed.Store(true) }), nil)

	r := NewRegistry(context.Background(), events, sessions, monitor, fastConfig(), logger.Nop())

	sub, err := r.Watch(models.CollectionTransactions, Handlers{OnInsert: func(models.ChangeEvent) {}})
	require.NoError(t, err)
	defer sub.Cancel()

	require.Eventually(t, func() bool {
		return r.State(models.CollectionTransactions) == models.SubscriptionSubscribed
	}, time.Second, 5*time.Millisecond)

	r.Close()
	assert.True(t, unsubscribed.Load())

	_, err = r.Watch(models.CollectionAccounts, Handlers{})
	require.ErrorIs(t, err, ErrRegistryClosed)
}

func TestGroup_FlagsTrackSubscriptionStates(t *testing.T) {
	ctrl := gomock.NewController(t)
	monitor := connectivity.NewMonitor(true, logger.Nop())
	sessions := newTestSessions(t, ctrl, monitor)
	events := mock.NewMockRemoteEvents(ctrl)

	// Accounts connects, goals never does.
	events.EXPECT().
		Subscribe(gomock.Any(), models.CollectionAccounts, gomock.Any()).
		Return(adapter.UnsubscribeFunc(func() {}), nil).
		AnyTimes()
	events.EXPECT().
		Subscribe(gomock.Any(), models.CollectionGoals, gomock.Any()).
		Return(nil, errors.New("dial refused")).
		AnyTimes()

	r := NewRegistry(context.Background(), events, sessions, monitor, fastConfig(), logger.Nop())
	defer r.Close()

	g := NewGroup(r, []models.Collection{models.CollectionAccounts, models.CollectionGoals}, nil)
	defer g.Close()

	assert.False(t, g.AnyConnected())
	assert.False(t, g.AllConnected())

	subA, err := r.Watch(models.CollectionAccounts, Handlers{OnInsert: func(models.ChangeEvent) {}})
	require.NoError(t, err)
	defer subA.Cancel()
	subG, err := r.Watch(models.CollectionGoals, Handlers{OnInsert: func(models.ChangeEvent) {}})
	require.NoError(t, err)
	defer subG.Cancel()

	require.Eventually(t, g.AnyConnected, time.Second, 5*time.Millisecond)
	assert.False(t, g.AllConnected())
}

func TestGroup_OnChangeObservesRecomputedFlags(t *testing.T) {
	ctrl := gomock.NewController(t)
	monitor := connectivity.NewMonitor(true, logger.Nop())
	sessions := newTestSessions(t, ctrl, monitor)
	events := mock.NewMockRemoteEvents(ctrl)

	events.EXPECT().
		Subscribe(gomock.Any(), models.CollectionBanks, gomock.Any()).
		Return(adapter.UnsubscribeFunc(func() {}), nil)

	r := NewRegistry(context.Background(), events, sessions, monitor, fastConfig(), logger.Nop())
	defer r.Close()

	var sawAll atomic.Bool
	g := NewGroup(r, []models.Collection{models.CollectionBanks}, func(allConnected, anyConnected bool) {
		if allConnected && anyConnected {
			sawAll.Store(true)
		}
	})
	defer g.Close()

	sub, err := r.Watch(models.CollectionBanks, Handlers{OnInsert: func(models.ChangeEvent) {}})
	require.NoError(t, err)
	defer sub.Cancel()

	require.Eventually(t, sawAll.Load, time.Second, 5*time.Millisecond)
	require.Eventually(t, g.AllConnected, time.Second, 5*time.Millisecond)
}
