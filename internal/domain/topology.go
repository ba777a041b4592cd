package domain

import "context"

// Observation is what the load balancer currently routes to. Known is false
// when the routing rule could not be inspected or was ambiguous.
type Observation struct {
	Slot  Slot   `json:"slot,omitempty"`
	Known bool   `json:"known"`
	Line  string `json:"line,omitempty"`
	Error string `json:"error,omitempty"`
}

type LoadBalancer interface {
	Observe(ctx context.Context, app *AppDefinition) Observation
	Route(ctx context.Context, app *AppDefinition, slot Slot) error
}

type LiveSource string

const (
	SourceObserved  LiveSource = "observed"
	SourcePersisted LiveSource = "persisted"
)

// Topology is the reconciled view of an application: observed routing wins
// over the persisted record whenever it is known.
type Topology struct {
	App      *AppDefinition
	State    DeploymentState
	Observed Observation
	Live     Slot
	Standby  Slot
	Source   LiveSource

	// StateErr is set when the persisted record exists but could not be
	// fetched; State then holds the default.
	StateErr error
}

func Reconcile(app *AppDefinition, state DeploymentState, observed Observation) Topology {
	t := Topology{
		App:      app,
		State:    state,
		Observed: observed,
		Live:     state.Live,
		Source:   SourcePersisted,
	}
	if observed.Known && observed.Slot.Valid() {
		t.Live = observed.Slot
		t.Source = SourceObserved
	}
	t.Standby = t.Live.Complement()
	return t
}

type TopologyResolver interface {
	Resolve(ctx context.Context, appName string) (*Topology, error)
}
