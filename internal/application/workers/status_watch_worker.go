package workers

import (
	"context"
	"fmt"

	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/logger"
)

// StatusWatchWorker resolves the status of every application. It never
// mutates anything; the status service publishes each observation on the bus
// for the websocket stream and the live slot gauge.
type StatusWatchWorker struct {
	svc domain.StatusService
	log logger.Logger
}

func NewStatusWatchWorker(svc domain.StatusService, log logger.Logger) Worker {
	return &StatusWatchWorker{
		svc: svc,
		log: log,
	}
}

func (w *StatusWatchWorker) Name() string {
	return "status_watch"
}

func (w *StatusWatchWorker) Run(ctx context.Context) error {
	statuses, err := w.svc.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list statuses: %w", err)
	}

	for _, st := range statuses {
		if !st.Live.Healthy {
			w.log.Warn("worker: live slot is down", "app", st.App, "slot", st.Live.Slot, "address", st.Live.Address)
		}
		if !st.LoadBalancer.Operational {
			w.log.Warn("worker: load balancer routing unknown", "app", st.App)
		}
	}

	w.log.Debug("worker: status observed", "applications", len(statuses))
	return nil
}
