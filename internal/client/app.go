package client

import (
	"context"
	"fmt"

	"github.com/ledgerkeep/ledger-sync/internal/adapter"
	"github.com/ledgerkeep/ledger-sync/internal/backup"
	"github.com/ledgerkeep/ledger-sync/internal/config"
	"github.com/ledgerkeep/ledger-sync/internal/connectivity"
	"github.com/ledgerkeep/ledger-sync/internal/logger"
	"github.com/ledgerkeep/ledger-sync/internal/realtime"
	"github.com/ledgerkeep/ledger-sync/internal/service"
	"github.com/ledgerkeep/ledger-sync/internal/session"
	"github.com/ledgerkeep/ledger-sync/internal/store"
	"github.com/ledgerkeep/ledger-sync/internal/workers"
)

// App is the assembled sync client. Embedding applications reach the
// individual subsystems through the exported fields; Run drives the
// background lifecycle.
type App struct {
	Remote   adapter.RemoteAdapter
	Storages *store.Storages
	Monitor  *connectivity.Monitor
	Sessions *session.Cache
	Services *service.Services
	Realtime *realtime.Registry
	Backup   *backup.Engine

	cfg     *config.ClientConfig
	logger  *logger.Logger
	workers *workers.Workers
	prober  *connectivity.Prober
}

// NewApp wires every subsystem from the client configuration. The returned
// App is idle until Run is called.
func NewApp(ctx context.Context, cfg *config.ClientConfig, log *logger.Logger) (*App, error) {
	remote := adapter.NewHTTPRemoteAdapter(cfg.Remote, log)

	storages, err := store.NewStorages(cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}

	// The client assumes reachability until the first probe says otherwise.
	monitor := connectivity.NewMonitor(true, log)
	prober := connectivity.NewProber(ctx, monitor, remote, cfg.Sync.ProbeInterval, log)

	sessions := session.NewCache(remote, storages.Identity, monitor, log)

	services := service.NewServices(storages, remote, monitor, log)

	registry := realtime.NewRegistry(ctx, remote, sessions, monitor, realtime.Config{
		SetupDelay:       cfg.Realtime.SetupDelay,
		DebounceWindow:   cfg.Realtime.DebounceWindow,
		MaxSetupAttempts: cfg.Realtime.MaxSetupAttempts,
		CoolDown:         cfg.Realtime.CoolDown,
	}, log)

	app := &App{
		Remote:   remote,
		Storages: storages,
		Monitor:  monitor,
		Sessions: sessions,
		Services: services,
		Realtime: registry,
		Backup:   backup.NewEngine(remote, log),
		cfg:      cfg,
		logger:   log,
		prober:   prober,
	}
	app.workers = workers.NewWorkers(workers.WorkerFunc(prober.Run))

	return app, nil
}

// Run starts the connectivity probe and the background jobs, then blocks
// until ctx is cancelled. Shutdown is orderly: jobs stop before the local
// store closes.
func (a *App) Run(ctx context.Context) error {
	a.workers.Run()

	a.Services.FlushJob.Start(ctx, a.cfg.Sync.FlushInterval)
	a.Services.SweepJob.Start(ctx, a.cfg.Sync.RetentionPeriod, a.cfg.Sync.SweepInterval)

	a.logger.Info().
		Str("remote", a.cfg.Remote.BaseURL).
		Str("db", a.cfg.Storage.DB.DSN).
		Msg("sync client started")

	<-ctx.Done()

	a.Services.FlushJob.Stop()
	a.Services.SweepJob.Stop()
	a.Realtime.Close()
	a.Sessions.Close()

	if err := a.Storages.Close(); err != nil {
		return fmt.Errorf("close local storage: %w", err)
	}

	a.logger.Info().Msg("sync client stopped")
	return nil
}
