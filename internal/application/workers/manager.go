// Package workers
package workers

import (
	"context"

	"bluegreen-server/internal/config"
	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/logger"
)

type Manager struct {
	scheduler *Scheduler
	cfg       *config.Config
	log       logger.Logger

	services *ManagerServices
}

type ManagerServices struct {
	Status  domain.StatusService
	History domain.HistoryService
}

type Worker interface {
	Name() string
	Run(ctx context.Context) error
}

func NewManager(scheduler *Scheduler, cfg *config.Config, log logger.Logger, services *ManagerServices) *Manager {
	return &Manager{
		scheduler: scheduler,
		cfg:       cfg,
		log:       log,

		services: services,
	}
}

func (m *Manager) Start(ctx context.Context) {
	m.log.Info("worker: manager started")

	if m.cfg.StatusWatchInterval > 0 {
		m.scheduler.RunByDuration(ctx, m.cfg.StatusWatchInterval, NewStatusWatchWorker(m.services.Status, m.log))
	} else {
		m.log.Info("worker: status watch disabled")
	}

	if m.cfg.HistoryRetention > 0 && m.services.History != nil {
		m.scheduler.RunDaily(ctx, DailySchedule{Hour: 3, Minute: 0}, NewHistoryCleanupWorker(m.services.History, m.cfg.HistoryRetention, m.log))
	}
}
