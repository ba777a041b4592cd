// Package topology
package topology

import (
	"context"

	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/logger"

	"golang.org/x/sync/errgroup"
)

// Resolver applies the reconciliation rule: observed routing, when known,
// decides the live slot; the persisted record is the fallback.
type Resolver struct {
	registry domain.ApplicationRegistry
	lb       domain.LoadBalancer
	store    domain.StateStore
	log      logger.Logger
}

func NewResolver(registry domain.ApplicationRegistry, lb domain.LoadBalancer, store domain.StateStore, log logger.Logger) domain.TopologyResolver {
	return &Resolver{
		registry: registry,
		lb:       lb,
		store:    store,
		log:      log,
	}
}

func (r *Resolver) Resolve(ctx context.Context, appName string) (*domain.Topology, error) {
	app, err := r.registry.Lookup(appName)
	if err != nil {
		return nil, err
	}

	var (
		observed domain.Observation
		state    domain.DeploymentState
		stateErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		observed = r.lb.Observe(gctx, app)
		return nil
	})
	g.Go(func() error {
		state, stateErr = r.store.Read(gctx, app)
		return nil
	})
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t := domain.Reconcile(app, state, observed)
	t.StateErr = stateErr
	if t.Source == domain.SourceObserved && t.Live != state.Live {
		r.log.Warn("topology: persisted state is stale, using observed routing",
			"app", app.Name, "observed", t.Live, "persisted", state.Live)
	}

	return &t, nil
}
