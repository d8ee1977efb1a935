package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ledgerkeep/ledger-sync/internal/connectivity"
	"github.com/ledgerkeep/ledger-sync/internal/logger"
)

type flushJob struct {
	queue   QueueService
	monitor *connectivity.Monitor
	logger  *logger.Logger

	mu          sync.Mutex
	cancel      context.CancelFunc
	cancelWatch func()
	wg          sync.WaitGroup
}

// NewFlushJob creates a flushJob that drains the queue on a ticker and
// immediately after each offline-to-online transition. The job is idle until
// Start is called.
func NewFlushJob(queue QueueService, monitor *connectivity.Monitor, log *logger.Logger) FlushJob {
	return &flushJob{queue: queue, monitor: monitor, logger: log}
}

// Start implements FlushJob. It stops any previously running job, then
// launches a background goroutine that calls Flush every interval. Zero or
// negative interval defaults to 1 minute. A reconnect wakes the goroutine
// without waiting for the next tick.
func (j *flushJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	j.Stop()

	wake := make(chan struct{}, 1)

	j.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	if j.monitor != nil {
		j.cancelWatch = j.monitor.Subscribe(func(online bool) {
			if !online {
				return
			}
			select {
			case wake <- struct{}{}:
			default:
			}
		})
	}
	j.wg.Add(1)
	j.mu.Unlock()

	go func() {
		defer j.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				j.flush(jobCtx)
			case <-wake:
				j.flush(jobCtx)
			}
		}
	}()
}

func (j *flushJob) flush(ctx context.Context) {
	report, err := j.queue.Flush(ctx)
	if err != nil {
		if errors.Is(err, ErrOffline) {
			return
		}
		j.logger.Error().
			Str("func", "flushJob.flush").
			Err(err).
			Msg("background flush failed")
		return
	}
	if report.Attempted > 0 {
		j.logger.Debug().
			Str("func", "flushJob.flush").
			Int("synced", report.Synced).
			Int("failed", report.Failed).
			Msg("background flush completed")
	}
}

// Stop implements FlushJob. It cancels the background goroutine's context
// and blocks until the goroutine has fully exited. Safe to call when the job
// is not running.
func (j *flushJob) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	cancelWatch := j.cancelWatch
	j.cancel = nil
	j.cancelWatch = nil
	j.mu.Unlock()

	if cancelWatch != nil {
		cancelWatch()
	}
	if cancel != nil {
		cancel()
	}
	j.wg.Wait()
}
