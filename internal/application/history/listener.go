package history

import (
	"context"
	"fmt"
	"time"

	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/event"
	"bluegreen-server/internal/logger"
)

const recordTimeout = 5 * time.Second

// Listener turns deployment and switch events into audit log entries.
type Listener struct {
	svc domain.HistoryService
	log logger.Logger
}

func NewListener(svc domain.HistoryService, log logger.Logger) *Listener {
	return &Listener{
		svc: svc,
		log: log,
	}
}

func (l *Listener) Register(bus *event.Bus) {
	bus.Subscribe(domain.EventDeploymentFinished, l.handleDeploymentFinished)
	bus.Subscribe(domain.EventSwitchApprovalRequired, l.switchHandler(domain.OperationApprovalRequired))
	bus.Subscribe(domain.EventSwitchRejected, l.switchHandler(domain.OperationRejected))
	bus.Subscribe(domain.EventTrafficSwitched, l.switchHandler(domain.OperationSucceeded))
	bus.Subscribe(domain.EventSwitchFailed, l.switchHandler(domain.OperationFailed))
}

func (l *Listener) handleDeploymentFinished(event any) {
	ev, ok := event.(domain.DeploymentFinishedEvent)
	if !ok || ev.Run == nil {
		return
	}
	run := ev.Run

	op := &domain.Operation{
		TraceID:    run.ID,
		App:        run.App,
		Kind:       domain.OperationDeploy,
		Status:     domain.OperationSucceeded,
		Actor:      run.Actor,
		ToSlot:     run.Target,
		Detail:     deployDetail(run),
		Error:      run.Error,
		ErrorKind:  run.ErrorKind,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
	if !run.Ready {
		op.Status = domain.OperationFailed
	}

	l.record(op)
}

func (l *Listener) switchHandler(status domain.OperationStatus) event.Handler {
	return func(event any) {
		ev, ok := event.(domain.SwitchEvent)
		if !ok {
			return
		}

		op := &domain.Operation{
			TraceID:    ev.TraceID,
			App:        ev.App,
			Kind:       domain.OperationSwitch,
			Status:     status,
			Actor:      ev.Actor,
			FromSlot:   ev.From,
			ToSlot:     ev.To,
			Emergency:  ev.Options.Emergency,
			Error:      ev.Error,
			ErrorKind:  ev.ErrorKind,
			StartedAt:  ev.StartedAt,
			FinishedAt: ev.At,
		}
		if ev.ErrorKind == "state_inconsistency" {
			op.Status = domain.OperationInconsistent
		}
		if ev.Result != nil {
			op.Detail = fmt.Sprintf("switch #%d", ev.Result.SwitchCount)
		}

		l.record(op)
	}
}

func (l *Listener) record(op *domain.Operation) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := l.svc.Record(ctx, op); err != nil {
		l.log.Error("history: failed to record operation", "app", op.App, "kind", op.Kind, "status", op.Status, "error", err)
	}
}

func deployDetail(run *domain.DeploymentRun) string {
	if failed, ok := run.FailedStep(); ok {
		return fmt.Sprintf("failed at %s after %d steps", failed.Name, len(run.Completed()))
	}
	if run.Commit != nil && run.Commit.Hash != "" {
		return "commit " + run.Commit.Hash
	}
	return fmt.Sprintf("%d steps", len(run.Completed()))
}
