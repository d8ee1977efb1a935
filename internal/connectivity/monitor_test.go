package connectivity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerkeep/ledger-sync/internal/logger"
)

// ── Monitor ──────────────────────────────────────────────────────────────────

func TestMonitor_InitialState(t *testing.T) {
	assert.True(t, NewMonitor(true, logger.Nop()).Online())
	assert.False(t, NewMonitor(false, logger.Nop()).Online())
}

func TestMonitor_NotifiesOnlyOnTransitions(t *testing.T) {
	m := NewMonitor(false, logger.Nop())

	var notifications []bool
	m.Subscribe(func(online bool) { notifications = append(notifications, online) })

	m.SetOnline(false) // no transition
	m.SetOnline(true)
	m.SetOnline(true) // no transition
	m.SetOnline(false)

	assert.Equal(t, []bool{true, false}, notifications)
}

func TestMonitor_NotifiesInRegistrationOrder(t *testing.T) {
	m := NewMonitor(false, logger.Nop())

	var order []string
	m.Subscribe(func(bool) { order = append(order, "first") })
	m.Subscribe(func(bool) { order = append(order, "second") })

	m.SetOnline(true)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestMonitor_CancelledSubscriberNotNotified(t *testing.T) {
	m := NewMonitor(false, logger.Nop())

	var calls int
	cancel := m.Subscribe(func(bool) { calls++ })
	cancel()

	m.SetOnline(true)
	assert.Zero(t, calls)
}

// ── Prober ───────────────────────────────────────────────────────────────────

type fakePinger struct {
	fail  atomic.Bool
	calls atomic.Int64
}

func (p *fakePinger) Ping(context.Context) error {
	p.calls.Add(1)
	if p.fail.Load() {
		return errors.New("unreachable")
	}
	return nil
}

func TestProber_FlipsMonitorWithProbeResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pinger := &fakePinger{}
	pinger.fail.Store(true)
	m := NewMonitor(true, logger.Nop())

	NewProber(ctx, m, pinger, 10*time.Millisecond, logger.Nop()).Run()

	require.Eventually(t, func() bool { return !m.Online() }, time.Second, 5*time.Millisecond,
		"failing probes should flip the monitor offline")

	pinger.fail.Store(false)
	require.Eventually(t, func() bool { return m.Online() }, time.Second, 5*time.Millisecond,
		"a succeeding probe should flip the monitor back online")
}

func TestProber_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	pinger := &fakePinger{}
	m := NewMonitor(false, logger.Nop())
	NewProber(ctx, m, pinger, 10*time.Millisecond, logger.Nop()).Run()

	require.Eventually(t, func() bool { return pinger.calls.Load() > 0 }, time.Second, 5*time.Millisecond)

	cancel()
	time.Sleep(30 * time.Millisecond)
	after := pinger.calls.Load()
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, after, pinger.calls.Load(), "no probes after context cancellation")
}
