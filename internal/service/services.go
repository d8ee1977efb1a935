package service

import (
	"github.com/ledgerkeep/ledger-sync/internal/adapter"
	"github.com/ledgerkeep/ledger-sync/internal/connectivity"
	"github.com/ledgerkeep/ledger-sync/internal/logger"
	"github.com/ledgerkeep/ledger-sync/internal/store"
)

type Services struct {
	Queue    QueueService
	FlushJob FlushJob
	SweepJob SweepJob
}

func NewServices(storages *store.Storages, remote adapter.RemoteStore, monitor *connectivity.Monitor, log *logger.Logger) *Services {
	queue := NewQueueService(storages.Queue, remote, monitor, log)

	return &Services{
		Queue:    queue,
		FlushJob: NewFlushJob(queue, monitor, log),
		SweepJob: NewSweepJob(queue, log),
	}
}
