// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Ledgerkeep Authors

// Package connectivity provides the process-wide online/offline observable
// the session cache and the realtime change manager depend on.
//
// A single [Monitor] is created at the composition root and lives for the
// lifetime of the process. Transitions come from the background probe worker
// (see [Prober]) or from explicit [Monitor.SetOnline] calls.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/ledgerkeep/ledger-sync/internal/logger"
)

// Pinger is the reachability check the probe worker runs against the remote
// store. Satisfied by the remote adapter.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor is the process-wide connectivity observable. Subscribers are
// notified only on actual transitions, never on repeated identical reports.
type Monitor struct {
	logger *logger.Logger

	mu     sync.RWMutex
	online bool
	nextID int
	subs   map[int]func(online bool)
}

// NewMonitor creates a Monitor with the given initial state. Starting
// offline is the safe default; the first successful probe flips it online.
func NewMonitor(initialOnline bool, log *logger.Logger) *Monitor {
	return &Monitor{
		logger: log,
		online: initialOnline,
		subs:   make(map[int]func(online bool)),
	}
}

// Online reports the last observed connectivity state.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// SetOnline records a connectivity observation. Subscribers are invoked
// synchronously, in registration order, only when the state actually changes.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online

	callbacks := make([]func(bool), 0, len(m.subs))
	for id := 0; id < m.nextID; id++ {
		if cb, ok := m.subs[id]; ok {
			callbacks = append(callbacks, cb)
		}
	}
	m.mu.Unlock()

	m.logger.Info().Bool("online", online).Msg("connectivity transition")

	for _, cb := range callbacks {
		cb(online)
	}
}

// Subscribe registers a transition callback and returns a cancel func that
// removes it. The callback runs on the goroutine that reported the
// transition; long work should be handed off.
func (m *Monitor) Subscribe(fn func(online bool)) (cancel func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Prober is the background worker that keeps the monitor current by pinging
// the remote store on a fixed interval. It implements the workers.Worker
// contract via Run.
type Prober struct {
	monitor  *Monitor
	pinger   Pinger
	interval time.Duration
	logger   *logger.Logger

	ctx context.Context
}

// NewProber creates a probe worker. If interval is zero or negative it
// defaults to 30 seconds.
func NewProber(ctx context.Context, monitor *Monitor, pinger Pinger, interval time.Duration, log *logger.Logger) *Prober {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &Prober{
		monitor:  monitor,
		pinger:   pinger,
		interval: interval,
		logger:   log,
		ctx:      ctx,
	}
}

// Run starts the probe loop in a background goroutine. An immediate probe is
// fired before the first tick so startup does not wait a full interval for
// the initial state.
func (p *Prober) Run() {
	go func() {
		p.probe()

		t := time.NewTicker(p.interval)
		defer t.Stop()

		for {
			select {
			case <-p.ctx.Done():
				return
			case <-t.C:
				p.probe()
			}
		}
	}()
}

func (p *Prober) probe() {
	ctx, cancel := context.WithTimeout(p.ctx, p.interval)
	defer cancel()

	err := p.pinger.Ping(ctx)
	if err != nil {
		p.logger.Debug().Err(err).Msg("connectivity probe failed")
	}
	p.monitor.SetOnline(err == nil)
}
