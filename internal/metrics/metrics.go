// Package metrics exposes orchestrator activity to Prometheus. All values are
// derived from bus events.
package metrics

import (
	"net/http"

	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/event"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	switches     *prometheus.CounterVec
	deployments  *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	probes       *prometheus.CounterVec
	liveSlot     *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		switches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bluegreen_switches_total",
				Help: "Traffic switch attempts by outcome",
			},
			[]string{"app", "outcome"},
		),
		deployments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bluegreen_deployments_total",
				Help: "Standby deployments by result",
			},
			[]string{"app", "result"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bluegreen_deployment_step_duration_seconds",
				Help:    "Duration of deployment pipeline steps",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"app", "step", "status"},
		),
		probes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bluegreen_slot_probes_total",
				Help: "Slot health observations by slot role and health",
			},
			[]string{"app", "role", "healthy"},
		),
		liveSlot: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bluegreen_live_slot",
				Help: "1 for the slot currently serving production traffic, 0 otherwise",
			},
			[]string{"app", "slot"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.switches,
		m.deployments,
		m.stepDuration,
		m.probes,
		m.liveSlot,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Register(bus *event.Bus) {
	bus.Subscribe(domain.EventDeploymentStepFinished, m.handleStepFinished)
	bus.Subscribe(domain.EventDeploymentFinished, m.handleDeploymentFinished)
	bus.Subscribe(domain.EventSwitchApprovalRequired, m.switchHandler("approval_required"))
	bus.Subscribe(domain.EventSwitchRejected, m.switchHandler("rejected"))
	bus.Subscribe(domain.EventTrafficSwitched, m.handleSwitched)
	bus.Subscribe(domain.EventSwitchFailed, m.handleSwitchFailed)
	bus.Subscribe(domain.EventStatusObserved, m.handleStatusObserved)
}

func (m *Metrics) handleStepFinished(event any) {
	ev, ok := event.(domain.DeploymentStepFinishedEvent)
	if !ok || ev.Step.Status == domain.StepSkipped {
		return
	}
	m.stepDuration.WithLabelValues(ev.App, string(ev.Step.Name), string(ev.Step.Status)).Observe(ev.Step.Duration.Seconds())
}

func (m *Metrics) handleDeploymentFinished(event any) {
	ev, ok := event.(domain.DeploymentFinishedEvent)
	if !ok || ev.Run == nil {
		return
	}

	result := "ready"
	if !ev.Run.Ready {
		result = "failed"
	}
	m.deployments.WithLabelValues(ev.Run.App, result).Inc()
}

func (m *Metrics) switchHandler(outcome string) event.Handler {
	return func(event any) {
		ev, ok := event.(domain.SwitchEvent)
		if !ok {
			return
		}
		m.switches.WithLabelValues(ev.App, outcome).Inc()
	}
}

func (m *Metrics) handleSwitched(event any) {
	ev, ok := event.(domain.SwitchEvent)
	if !ok {
		return
	}

	outcome := "switched"
	if ev.Options.Emergency {
		outcome = "emergency"
	}
	m.switches.WithLabelValues(ev.App, outcome).Inc()
	m.setLive(ev.App, ev.To)
}

// handleSwitchFailed also moves the gauge on an inconsistency, since routing
// already points at the new slot.
func (m *Metrics) handleSwitchFailed(event any) {
	ev, ok := event.(domain.SwitchEvent)
	if !ok {
		return
	}

	outcome := "failed"
	if ev.ErrorKind == "state_inconsistency" {
		outcome = "inconsistent"
		m.setLive(ev.App, ev.To)
	}
	m.switches.WithLabelValues(ev.App, outcome).Inc()
}

func (m *Metrics) handleStatusObserved(event any) {
	ev, ok := event.(domain.StatusObservedEvent)
	if !ok || ev.Status == nil {
		return
	}
	st := ev.Status

	m.setLive(st.App, st.Live.Slot)
	m.probes.WithLabelValues(st.App, "live", healthyLabel(st.Live.Healthy)).Inc()
	m.probes.WithLabelValues(st.App, "standby", healthyLabel(st.Standby.Healthy)).Inc()
}

func (m *Metrics) setLive(app string, live domain.Slot) {
	for _, s := range domain.Slots {
		v := 0.0
		if s == live {
			v = 1
		}
		m.liveSlot.WithLabelValues(app, string(s)).Set(v)
	}
}

func healthyLabel(ok bool) string {
	if ok {
		return "true"
	}
	return "false"
}
