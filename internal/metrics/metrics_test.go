package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/event"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup() (*Metrics, *event.Bus) {
	m := New()
	bus := event.New()
	m.Register(bus)
	return m, bus
}

func TestMetrics_CountsSwitchOutcomes(t *testing.T) {
	m, bus := setup()

	ev := domain.SwitchEvent{App: "sample", From: domain.SlotBlue, To: domain.SlotGreen}
	bus.Publish(domain.EventSwitchApprovalRequired, ev)
	bus.Publish(domain.EventTrafficSwitched, ev)

	emergency := ev
	emergency.Options.Emergency = true
	bus.Publish(domain.EventTrafficSwitched, emergency)

	failed := ev
	failed.ErrorKind = "state_inconsistency"
	bus.Publish(domain.EventSwitchFailed, failed)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.switches.WithLabelValues("sample", "approval_required")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.switches.WithLabelValues("sample", "switched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.switches.WithLabelValues("sample", "emergency")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.switches.WithLabelValues("sample", "inconsistent")))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.liveSlot.WithLabelValues("sample", "GREEN")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.liveSlot.WithLabelValues("sample", "BLUE")))
}

func TestMetrics_CountsDeployments(t *testing.T) {
	m, bus := setup()

	bus.Publish(domain.EventDeploymentFinished, domain.DeploymentFinishedEvent{Run: &domain.DeploymentRun{App: "sample", Ready: true}})
	bus.Publish(domain.EventDeploymentFinished, domain.DeploymentFinishedEvent{Run: &domain.DeploymentRun{App: "sample"}})
	bus.Publish(domain.EventDeploymentStepFinished, domain.DeploymentStepFinishedEvent{
		App:  "sample",
		Step: domain.StepResult{Name: domain.StepBuild, Status: domain.StepSucceeded, Duration: 42 * time.Second},
	})
	bus.Publish(domain.EventDeploymentStepFinished, domain.DeploymentStepFinishedEvent{
		App:  "sample",
		Step: domain.StepResult{Name: domain.StepMigration, Status: domain.StepSkipped},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.deployments.WithLabelValues("sample", "ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deployments.WithLabelValues("sample", "failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.stepDuration))
}

func TestMetrics_StatusObservation(t *testing.T) {
	m, bus := setup()

	bus.Publish(domain.EventStatusObserved, domain.StatusObservedEvent{Status: &domain.DeploymentStatus{
		App:     "sample",
		Live:    domain.SlotStatus{SlotView: domain.SlotView{Slot: domain.SlotBlue}, Healthy: true},
		Standby: domain.SlotStatus{SlotView: domain.SlotView{Slot: domain.SlotGreen}},
	}})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.liveSlot.WithLabelValues("sample", "BLUE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.probes.WithLabelValues("sample", "live", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.probes.WithLabelValues("sample", "standby", "false")))
}

func TestMetrics_Handler(t *testing.T) {
	m, bus := setup()
	bus.Publish(domain.EventTrafficSwitched, domain.SwitchEvent{App: "sample", To: domain.SlotGreen})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `bluegreen_switches_total{app="sample",outcome="switched"} 1`)
	assert.Contains(t, rec.Body.String(), "bluegreen_live_slot")
}
