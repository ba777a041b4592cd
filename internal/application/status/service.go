// Package status
package status

import (
	"context"
	"time"

	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/event"
	"bluegreen-server/internal/logger"

	"golang.org/x/sync/errgroup"
)

const (
	LabelOnline = "ONLINE"
	LabelReady  = "READY"
	LabelDown   = "DOWN"

	LoadBalancerOperational = "OPERATIONAL"
	LoadBalancerError       = "ERROR"

	backendUnknown = "unknown"
)

type Service struct {
	registry domain.ApplicationRegistry
	topology domain.TopologyResolver
	health   domain.HealthChecker
	bus      *event.Bus
	log      logger.Logger

	now func() time.Time
}

func NewService(
	registry domain.ApplicationRegistry,
	topology domain.TopologyResolver,
	health domain.HealthChecker,
	bus *event.Bus,
	log logger.Logger,
) *Service {
	return &Service{
		registry: registry,
		topology: topology,
		health:   health,
		bus:      bus,
		log:      log,
		now:      time.Now,
	}
}

// Status reports the reconciled topology of appName together with a fresh
// health probe of both slots. It never mutates anything.
func (s *Service) Status(ctx context.Context, appName string) (*domain.DeploymentStatus, error) {
	app, err := s.registry.Lookup(appName)
	if err != nil {
		return nil, err
	}

	topo, err := s.topology.Resolve(ctx, app.Name)
	if err != nil {
		return nil, err
	}

	var live, standby domain.HealthResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		live = s.health.Check(gctx, app, topo.Live)
		return nil
	})
	g.Go(func() error {
		standby = s.health.Check(gctx, app, topo.Standby)
		return nil
	})
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st := &domain.DeploymentStatus{
		App:          app.Name,
		DisplayName:  app.DisplayName,
		Live:         slotStatus(app, topo.Live, live, LabelOnline),
		Standby:      slotStatus(app, topo.Standby, standby, LabelReady),
		LoadBalancer: loadBalancerStatus(topo),
		History: domain.SwitchHistory{
			LastSwitch:    topo.State.LastSwitch,
			TotalSwitches: topo.State.SwitchCount,
		},
		CheckedAt: s.now(),
	}

	if !live.Healthy {
		s.log.Warn("status: live slot unhealthy", "app", app.Name, "slot", topo.Live, "error", live.Error)
	}

	s.bus.Publish(domain.EventStatusObserved, domain.StatusObservedEvent{Status: st})

	return st, nil
}

// List returns the status of every registered application. An application
// whose status cannot be resolved is skipped and logged.
func (s *Service) List(ctx context.Context) ([]*domain.DeploymentStatus, error) {
	apps := s.registry.List()
	out := make([]*domain.DeploymentStatus, len(apps))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, app := range apps {
		g.Go(func() error {
			st, err := s.Status(gctx, app.Name)
			if err != nil {
				s.log.Warn("status: failed to resolve application", "app", app.Name, "error", err)
				return nil
			}
			out[i] = st
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := make([]*domain.DeploymentStatus, 0, len(out))
	for _, st := range out {
		if st != nil {
			result = append(result, st)
		}
	}
	return result, nil
}

func slotStatus(app *domain.AppDefinition, slot domain.Slot, h domain.HealthResult, healthyLabel string) domain.SlotStatus {
	label := LabelDown
	if h.Healthy {
		label = healthyLabel
	}
	return domain.SlotStatus{
		SlotView: domain.ViewOf(app, slot),
		Healthy:  h.Healthy,
		Status:   label,
		Health:   h,
	}
}

func loadBalancerStatus(topo *domain.Topology) domain.LoadBalancerStatus {
	if !topo.Observed.Known {
		return domain.LoadBalancerStatus{
			Backend: backendUnknown,
			Status:  LoadBalancerError,
			Source:  topo.Source,
		}
	}
	return domain.LoadBalancerStatus{
		Backend:     topo.Observed.Slot.Lower(),
		Operational: true,
		Status:      LoadBalancerOperational,
		Source:      topo.Source,
	}
}
