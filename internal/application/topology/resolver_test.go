package topology

import (
	"context"
	"errors"
	"testing"

	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	apps map[string]*domain.AppDefinition
}

func (f *fakeRegistry) Lookup(name string) (*domain.AppDefinition, error) {
	if app, ok := f.apps[name]; ok {
		return app, nil
	}
	return nil, domain.ErrApplicationNotFound
}

func (f *fakeRegistry) List() []*domain.AppDefinition { return nil }

type fakeLB struct {
	obs domain.Observation
}

func (f *fakeLB) Observe(context.Context, *domain.AppDefinition) domain.Observation { return f.obs }

func (f *fakeLB) Route(context.Context, *domain.AppDefinition, domain.Slot) error { return nil }

type fakeStore struct {
	state domain.DeploymentState
	err   error
}

func (f *fakeStore) Read(context.Context, *domain.AppDefinition) (domain.DeploymentState, error) {
	return f.state, f.err
}

func (f *fakeStore) Write(_ context.Context, _ *domain.AppDefinition, _ int64, s domain.DeploymentState) (domain.DeploymentState, error) {
	return s, nil
}

func newResolver(obs domain.Observation, state domain.DeploymentState) domain.TopologyResolver {
	reg := &fakeRegistry{apps: map[string]*domain.AppDefinition{"sample": {Name: "sample"}}}
	return NewResolver(reg, &fakeLB{obs: obs}, &fakeStore{state: state}, logger.Nop())
}

func TestResolve_ObservedOverridesPersisted(t *testing.T) {
	r := newResolver(
		domain.Observation{Slot: domain.SlotGreen, Known: true},
		domain.DefaultDeploymentState(),
	)

	topo, err := r.Resolve(context.Background(), "sample")
	require.NoError(t, err)

	assert.Equal(t, domain.SlotGreen, topo.Live)
	assert.Equal(t, domain.SlotBlue, topo.Standby)
	assert.Equal(t, domain.SourceObserved, topo.Source)
	assert.Equal(t, domain.SlotBlue, topo.State.Live)
}

func TestResolve_UnknownFallsBackToPersisted(t *testing.T) {
	r := newResolver(
		domain.Observation{Error: "connection refused"},
		domain.DeploymentState{Live: domain.SlotGreen, Standby: domain.SlotBlue, SwitchCount: 3, Version: 3},
	)

	topo, err := r.Resolve(context.Background(), "sample")
	require.NoError(t, err)

	assert.Equal(t, domain.SlotGreen, topo.Live)
	assert.Equal(t, domain.SlotBlue, topo.Standby)
	assert.Equal(t, domain.SourcePersisted, topo.Source)
	assert.Equal(t, int64(3), topo.State.SwitchCount)
}

func TestResolve_StandbyAlwaysComplement(t *testing.T) {
	for _, obs := range []domain.Observation{
		{Slot: domain.SlotBlue, Known: true},
		{Slot: domain.SlotGreen, Known: true},
		{},
	} {
		for _, state := range []domain.DeploymentState{
			{Live: domain.SlotBlue, Standby: domain.SlotGreen},
			{Live: domain.SlotGreen, Standby: domain.SlotBlue},
		} {
			topo, err := newResolver(obs, state).Resolve(context.Background(), "sample")
			require.NoError(t, err)
			assert.NotEqual(t, topo.Live, topo.Standby)
			assert.Equal(t, topo.Live.Complement(), topo.Standby)
		}
	}
}

func TestResolve_UnknownApp(t *testing.T) {
	_, err := newResolver(domain.Observation{}, domain.DefaultDeploymentState()).Resolve(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestResolve_CarriesUnreachableState(t *testing.T) {
	reg := &fakeRegistry{apps: map[string]*domain.AppDefinition{"sample": {Name: "sample"}}}
	unreachable := &domain.RemoteError{Target: "pve", Err: errors.New("i/o timeout")}
	r := NewResolver(reg,
		&fakeLB{obs: domain.Observation{Slot: domain.SlotGreen, Known: true}},
		&fakeStore{state: domain.DefaultDeploymentState(), err: unreachable},
		logger.Nop(),
	)

	topo, err := r.Resolve(context.Background(), "sample")
	require.NoError(t, err)

	assert.Equal(t, domain.SlotGreen, topo.Live)
	assert.ErrorIs(t, topo.StateErr, domain.ErrRemoteExecution)
}
