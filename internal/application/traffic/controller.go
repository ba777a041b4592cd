// Package traffic
package traffic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bluegreen-server/internal/application/guard"
	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/event"
	"bluegreen-server/internal/logger"

	"github.com/google/uuid"
)

// persistTimeout bounds the state write that follows a routing change. The
// write runs even if the caller went away, since routing already changed.
const persistTimeout = 30 * time.Second

type Controller struct {
	registry domain.ApplicationRegistry
	topology domain.TopologyResolver
	lb       domain.LoadBalancer
	store    domain.StateStore
	health   domain.HealthChecker
	guard    *guard.Guard
	bus      *event.Bus
	log      logger.Logger

	now func() time.Time
}

func NewController(
	registry domain.ApplicationRegistry,
	topology domain.TopologyResolver,
	lb domain.LoadBalancer,
	store domain.StateStore,
	health domain.HealthChecker,
	guard *guard.Guard,
	bus *event.Bus,
	log logger.Logger,
) *Controller {
	return &Controller{
		registry: registry,
		topology: topology,
		lb:       lb,
		store:    store,
		health:   health,
		guard:    guard,
		bus:      bus,
		log:      log,
		now:      time.Now,
	}
}

// Switch promotes the standby slot of appName to live.
//
// Without Emergency the standby must be healthy. With RequireApproval (and no
// Emergency) nothing is changed and the result describes the plan. An
// unreachable state record or a routing failure leaves state untouched; a
// state write failure after routing changed returns
// domain.ErrStateInconsistency together with the result.
func (c *Controller) Switch(ctx context.Context, appName string, opts domain.SwitchOptions, actor string) (*domain.SwitchResult, error) {
	app, err := c.registry.Lookup(appName)
	if err != nil {
		return nil, err
	}

	mutating := opts.Emergency || !opts.RequireApproval

	var lease *guard.Lease
	if mutating {
		lease, err = c.guard.TryAcquire(app.Name, domain.OperationSwitch)
		if err != nil {
			return nil, err
		}
		defer lease.Release()
	}

	// refused switches do not count against the hourly budget
	refuse := func() {
		if lease != nil {
			lease.Cancel()
		}
	}

	topo, err := c.topology.Resolve(ctx, app.Name)
	if err != nil {
		refuse()
		return nil, err
	}

	oldLive, newLive := topo.Live, topo.Standby
	log := c.log.With("app", app.Name, "from", oldLive, "to", newLive)

	ev := domain.SwitchEvent{
		TraceID:   uuid.New(),
		App:       app.Name,
		Actor:     actor,
		Options:   opts,
		From:      oldLive,
		To:        newLive,
		StartedAt: c.now(),
	}

	result := &domain.SwitchResult{
		App:           app.Name,
		PreviousLive:  domain.ViewOf(app, oldLive),
		Live:          domain.ViewOf(app, oldLive),
		Standby:       domain.ViewOf(app, newLive),
		SwitchCount:   topo.State.SwitchCount,
		LastSwitch:    topo.State.LastSwitch,
		Emergency:     opts.Emergency,
		ProductionURL: app.ProductionURL,
		StatsURL:      app.StatsURL,
	}

	if opts.Emergency {
		log.Warn("switch: emergency override, skipping standby health check", "actor", actor)
	} else {
		h := c.health.Check(ctx, app, newLive)
		healthy := h.Healthy
		result.StandbyHealthy = &healthy

		if !healthy {
			err := fmt.Errorf("%w: standby %s (%s) is unhealthy: %s", domain.ErrHealthGate, newLive, app.Slot(newLive).Address, h.Error)
			log.Warn("switch: rejected, standby unhealthy", "error", h.Error)
			refuse()
			c.publish(domain.EventSwitchRejected, ev, result, err)
			return nil, err
		}
	}

	if !mutating {
		result.Status = domain.SwitchApprovalRequired
		result.Plan = plan(app, topo, newLive)
		log.Info("switch: approval required")
		c.publish(domain.EventSwitchApprovalRequired, ev, result, nil)
		return result, nil
	}

	if topo.StateErr != nil {
		err := fmt.Errorf("switch %s: state record unreachable, routing unchanged: %w", app.Name, topo.StateErr)
		log.Error("switch: refused, state unreachable", "error", topo.StateErr)
		refuse()
		c.publish(domain.EventSwitchFailed, ev, result, err)
		return nil, err
	}

	if err := c.lb.Route(ctx, app, newLive); err != nil {
		err = fmt.Errorf("switch %s to %s: %w", app.Name, newLive, err)
		log.Error("switch: routing failed, state unchanged", "error", err)
		c.publish(domain.EventSwitchFailed, ev, result, err)
		return nil, err
	}

	switchedAt := c.now()
	result.Status = domain.SwitchCompleted
	result.SwitchedAt = &switchedAt
	result.Live = domain.ViewOf(app, newLive)
	result.Standby = domain.ViewOf(app, oldLive)

	next := domain.DeploymentState{
		Live:        newLive,
		Standby:     oldLive,
		LastSwitch:  &switchedAt,
		SwitchCount: topo.State.SwitchCount + 1,
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	written, err := c.store.Write(writeCtx, app, topo.State.Version, next)
	if err != nil {
		err = fmt.Errorf("%w: %s now routes to %s but the state record was not updated: %w",
			domain.ErrStateInconsistency, app.Name, newLive, err)
		log.Error("switch: state inconsistency", "error", err)
		c.publish(domain.EventSwitchFailed, ev, result, err)
		return result, err
	}

	result.SwitchCount = written.SwitchCount
	result.LastSwitch = written.LastSwitch

	log.Info("switch: traffic switched", "switch_count", written.SwitchCount, "emergency", opts.Emergency, "actor", actor)
	c.publish(domain.EventTrafficSwitched, ev, result, nil)

	return result, nil
}

func (c *Controller) publish(name string, ev domain.SwitchEvent, result *domain.SwitchResult, err error) {
	ev.Result = result
	ev.At = c.now()
	if err != nil {
		ev.Error = err.Error()
		ev.ErrorKind = domain.ErrorKind(err)
	}
	c.bus.Publish(name, ev)
}

func plan(app *domain.AppDefinition, topo *domain.Topology, newLive domain.Slot) []string {
	oldLive := topo.Live
	return []string{
		fmt.Sprintf("Current live: %s (%s), source %s", oldLive, app.Slot(oldLive).Address, topo.Source),
		fmt.Sprintf("New live: %s (%s)", newLive, app.Slot(newLive).Address),
		fmt.Sprintf("Point %q at %s in %s on %s", app.Control.Directive, app.BackendName(newLive), app.Control.HAProxyConfig, app.Control.Target),
		fmt.Sprintf("Reload HAProxy with %q", strings.Join(app.Control.ReloadCommand, " ")),
		fmt.Sprintf("Record %s as live, switch #%d", newLive, topo.State.SwitchCount+1),
	}
}
