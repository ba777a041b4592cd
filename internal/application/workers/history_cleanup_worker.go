package workers

import (
	"context"
	"fmt"
	"time"

	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/logger"
)

type HistoryCleanupWorker struct {
	svc       domain.HistoryService
	retention time.Duration
	log       logger.Logger

	now func() time.Time
}

func NewHistoryCleanupWorker(svc domain.HistoryService, retention time.Duration, log logger.Logger) Worker {
	return &HistoryCleanupWorker{
		svc:       svc,
		retention: retention,
		log:       log,
		now:       time.Now,
	}
}

func (w *HistoryCleanupWorker) Name() string {
	return "history_cleanup"
}

func (w *HistoryCleanupWorker) Run(ctx context.Context) error {
	before := w.now().Add(-w.retention)

	deleted, err := w.svc.Prune(ctx, before)
	if err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}

	if deleted > 0 {
		w.log.Info("worker: history pruned", "deleted", deleted, "before", before.UTC())
	}
	return nil
}
