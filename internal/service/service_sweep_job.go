package service

import (
	"context"
	"sync"
	"time"

	"github.com/ledgerkeep/ledger-sync/internal/logger"
)

type sweepJob struct {
	queue  QueueService
	logger *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweepJob creates a sweepJob that removes aged synced records on a
// ticker. The job is idle until Start is called.
func NewSweepJob(queue QueueService, log *logger.Logger) SweepJob {
	return &sweepJob{queue: queue, logger: log}
}

// Start implements SweepJob. It stops any previously running job, then
// launches a background goroutine that calls SweepOld every interval. Zero
// or negative interval defaults to 5 minutes, zero or negative retention to
// 7 days. The goroutine exits when ctx is cancelled or Stop is called.
func (j *sweepJob) Start(ctx context.Context, retention, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}

	j.Stop()

	j.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
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
				j.sweep(jobCtx, retention)
			}
		}
	}()
}

func (j *sweepJob) sweep(ctx context.Context, retention time.Duration) {
	removed, err := j.queue.SweepOld(ctx, retention)
	if err != nil {
		j.logger.Error().
			Str("func", "sweepJob.sweep").
			Err(err).
			Msg("retention sweep failed")
		return
	}
	if removed > 0 {
		j.logger.Info().
			Str("func", "sweepJob.sweep").
			Int64("removed", removed).
			Msg("aged synced records removed")
	}
}

// Stop implements SweepJob. It cancels the background goroutine's context
// and blocks until the goroutine has fully exited. Safe to call when the job
// is not running (no-op in that case).
func (j *sweepJob) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	j.wg.Wait()
}
