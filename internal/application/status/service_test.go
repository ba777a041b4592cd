package status

import (
	"context"
	"sync"
	"testing"
	"time"

	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/event"
	"bluegreen-server/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	apps []*domain.AppDefinition
}

func (f *fakeRegistry) Lookup(name string) (*domain.AppDefinition, error) {
	for _, a := range f.apps {
		if a.Name == name {
			return a, nil
		}
	}
	return nil, domain.ErrApplicationNotFound
}

func (f *fakeRegistry) List() []*domain.AppDefinition { return f.apps }

type fakeTopology struct {
	reg      *fakeRegistry
	state    domain.DeploymentState
	observed domain.Observation
}

func (f *fakeTopology) Resolve(_ context.Context, name string) (*domain.Topology, error) {
	app, err := f.reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	t := domain.Reconcile(app, f.state, f.observed)
	return &t, nil
}

type fakeHealth struct {
	mu      sync.Mutex
	healthy map[domain.Slot]bool
}

func (f *fakeHealth) Check(_ context.Context, _ *domain.AppDefinition, slot domain.Slot) domain.HealthResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.healthy[slot] {
		return domain.HealthResult{Healthy: true, StatusCode: 200}
	}
	return domain.HealthResult{StatusCode: 503, Error: "unexpected status 503"}
}

func app(name string) *domain.AppDefinition {
	return &domain.AppDefinition{
		Name:         name,
		DisplayName:  "Sample",
		HealthPath:   "/api/health",
		HealthScheme: "http",
		Slots: map[domain.Slot]domain.SlotTarget{
			domain.SlotBlue:  {Address: "10.0.0.11:3001", Container: "101"},
			domain.SlotGreen: {Address: "10.0.0.12:3001", Container: "102"},
		},
	}
}

func newService(topo *fakeTopology, health *fakeHealth, bus *event.Bus) *Service {
	s := NewService(topo.reg, topo, health, bus, logger.Nop())
	s.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return s
}

func TestStatus_ObservedRoutingWinsOverPersistedState(t *testing.T) {
	last := time.Date(2026, 2, 20, 8, 0, 0, 0, time.UTC)
	reg := &fakeRegistry{apps: []*domain.AppDefinition{app("sample")}}
	topo := &fakeTopology{
		reg:      reg,
		state:    domain.DeploymentState{Live: domain.SlotBlue, Standby: domain.SlotGreen, SwitchCount: 3, LastSwitch: &last},
		observed: domain.Observation{Slot: domain.SlotGreen, Known: true},
	}
	svc := newService(topo, &fakeHealth{healthy: map[domain.Slot]bool{domain.SlotBlue: true, domain.SlotGreen: true}}, event.New())

	st, err := svc.Status(context.Background(), "sample")
	require.NoError(t, err)

	assert.Equal(t, domain.SlotGreen, st.Live.Slot)
	assert.Equal(t, "10.0.0.12:3001", st.Live.Address)
	assert.Equal(t, "102", st.Live.Container)
	assert.Equal(t, LabelOnline, st.Live.Status)
	assert.Equal(t, domain.SlotBlue, st.Standby.Slot)
	assert.Equal(t, LabelReady, st.Standby.Status)

	assert.Equal(t, "green", st.LoadBalancer.Backend)
	assert.True(t, st.LoadBalancer.Operational)
	assert.Equal(t, LoadBalancerOperational, st.LoadBalancer.Status)
	assert.Equal(t, domain.SourceObserved, st.LoadBalancer.Source)

	assert.EqualValues(t, 3, st.History.TotalSwitches)
	require.NotNil(t, st.History.LastSwitch)
	assert.True(t, last.Equal(*st.History.LastSwitch))
}

func TestStatus_UnknownRoutingFallsBackToPersisted(t *testing.T) {
	reg := &fakeRegistry{apps: []*domain.AppDefinition{app("sample")}}
	topo := &fakeTopology{
		reg:      reg,
		state:    domain.DeploymentState{Live: domain.SlotGreen, Standby: domain.SlotBlue},
		observed: domain.Observation{Error: "no default_backend line"},
	}
	svc := newService(topo, &fakeHealth{healthy: map[domain.Slot]bool{domain.SlotGreen: true}}, event.New())

	st, err := svc.Status(context.Background(), "sample")
	require.NoError(t, err)

	assert.Equal(t, domain.SlotGreen, st.Live.Slot)
	assert.Equal(t, LabelOnline, st.Live.Status)
	assert.Equal(t, LabelDown, st.Standby.Status)
	assert.False(t, st.Standby.Healthy)
	assert.Equal(t, 503, st.Standby.Health.StatusCode)

	assert.Equal(t, "unknown", st.LoadBalancer.Backend)
	assert.False(t, st.LoadBalancer.Operational)
	assert.Equal(t, LoadBalancerError, st.LoadBalancer.Status)
	assert.Equal(t, domain.SourcePersisted, st.LoadBalancer.Source)
}

func TestStatus_FreshApplicationDefaultsToBlue(t *testing.T) {
	reg := &fakeRegistry{apps: []*domain.AppDefinition{app("sample")}}
	topo := &fakeTopology{reg: reg, state: domain.DefaultDeploymentState()}
	svc := newService(topo, &fakeHealth{}, event.New())

	st, err := svc.Status(context.Background(), "sample")
	require.NoError(t, err)

	assert.Equal(t, domain.SlotBlue, st.Live.Slot)
	assert.Equal(t, LabelDown, st.Live.Status)
	assert.Zero(t, st.History.TotalSwitches)
	assert.Nil(t, st.History.LastSwitch)
}

func TestStatus_UnknownApplication(t *testing.T) {
	reg := &fakeRegistry{apps: []*domain.AppDefinition{app("sample")}}
	svc := newService(&fakeTopology{reg: reg, state: domain.DefaultDeploymentState()}, &fakeHealth{}, event.New())

	_, err := svc.Status(context.Background(), "other")
	assert.ErrorIs(t, err, domain.ErrApplicationNotFound)
}

func TestStatus_PublishesObservation(t *testing.T) {
	reg := &fakeRegistry{apps: []*domain.AppDefinition{app("sample")}}
	bus := event.New()

	var got []*domain.DeploymentStatus
	bus.Subscribe(domain.EventStatusObserved, func(ev any) {
		got = append(got, ev.(domain.StatusObservedEvent).Status)
	})

	svc := newService(&fakeTopology{reg: reg, state: domain.DefaultDeploymentState()}, &fakeHealth{}, bus)
	_, err := svc.Status(context.Background(), "sample")
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "sample", got[0].App)
}

func TestList_ReturnsEveryApplicationInOrder(t *testing.T) {
	reg := &fakeRegistry{apps: []*domain.AppDefinition{app("alpha"), app("beta"), app("gamma")}}
	svc := newService(&fakeTopology{reg: reg, state: domain.DefaultDeploymentState()}, &fakeHealth{}, nil)

	list, err := svc.List(context.Background())
	require.NoError(t, err)

	require.Len(t, list, 3)
	assert.Equal(t, "alpha", list[0].App)
	assert.Equal(t, "beta", list[1].App)
	assert.Equal(t, "gamma", list[2].App)
}

func TestList_CancelledContext(t *testing.T) {
	reg := &fakeRegistry{apps: []*domain.AppDefinition{app("alpha")}}
	svc := newService(&fakeTopology{reg: reg, state: domain.DefaultDeploymentState()}, &fakeHealth{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
