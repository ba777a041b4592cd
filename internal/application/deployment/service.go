// Package deployment
package deployment

import (
	"context"
	"fmt"
	"time"

	"bluegreen-server/internal/application/guard"
	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/event"
	"bluegreen-server/internal/logger"

	"github.com/google/uuid"
)

type Service struct {
	registry    domain.ApplicationRegistry
	topology    domain.TopologyResolver
	exec        domain.RemoteExecutor
	health      domain.HealthChecker
	guard       *guard.Guard
	bus         *event.Bus
	log         logger.Logger
	stepTimeout time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewService(
	registry domain.ApplicationRegistry,
	topology domain.TopologyResolver,
	exec domain.RemoteExecutor,
	health domain.HealthChecker,
	guard *guard.Guard,
	bus *event.Bus,
	stepTimeout time.Duration,
	log logger.Logger,
) *Service {
	return &Service{
		registry:    registry,
		topology:    topology,
		exec:        exec,
		health:      health,
		guard:       guard,
		bus:         bus,
		log:         log,
		stepTimeout: stepTimeout,
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// Deploy runs the pipeline against the standby slot of appName. Completed
// steps are never rolled back; the returned run lists them together with the
// failed step, if any. The run is returned even when err is non-nil, except
// when the application could not be resolved or another operation holds it.
func (s *Service) Deploy(ctx context.Context, appName string, opts domain.DeployOptions, actor string) (*domain.DeploymentRun, error) {
	app, err := s.registry.Lookup(appName)
	if err != nil {
		return nil, err
	}

	lease, err := s.guard.TryAcquire(app.Name, domain.OperationDeploy)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	topo, err := s.topology.Resolve(ctx, app.Name)
	if err != nil {
		lease.Cancel()
		return nil, err
	}

	// without observed routing the default state could name the live slot as standby
	if topo.StateErr != nil && topo.Source != domain.SourceObserved {
		lease.Cancel()
		return nil, fmt.Errorf("deploy %s: live slot unknown, routing and state both unreachable: %w", app.Name, topo.StateErr)
	}

	standby := topo.Standby
	run := &domain.DeploymentRun{
		ID:        uuid.New(),
		App:       app.Name,
		Target:    standby,
		Address:   app.Slot(standby).Address,
		AccessURL: app.AccessURL(standby),
		Options:   opts,
		StartedAt: s.now(),
		Actor:     actor,
	}

	log := s.log.With("app", app.Name, "run_id", run.ID, "target", standby)
	log.Info("deploy: started", "live", topo.Live, "source", topo.Source, "actor", actor)

	s.bus.Publish(domain.EventDeploymentStarted, domain.DeploymentStartedEvent{
		RunID:     run.ID,
		App:       app.Name,
		Target:    standby,
		Options:   opts,
		Actor:     actor,
		StartedAt: run.StartedAt,
	})

	p := &pipeline{
		svc:  s,
		app:  app,
		slot: standby,
		run:  run,
		log:  log,
	}

	err = p.execute(ctx)

	run.FinishedAt = s.now()
	if err != nil {
		run.Error = err.Error()
		run.ErrorKind = domain.ErrorKind(err)
		log.Error("deploy: failed", "error", err, "completed", run.Completed())
	} else {
		run.Ready = true
		log.Info("deploy: standby ready", "address", run.Address, "duration", run.FinishedAt.Sub(run.StartedAt))
	}

	s.bus.Publish(domain.EventDeploymentFinished, domain.DeploymentFinishedEvent{Run: run})

	return run, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
