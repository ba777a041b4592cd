// Package subscribers forwards bus events to websocket channels.
package subscribers

import (
	"bluegreen-server/internal/adapters/ws/userws"
	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/event"
)

type EventBus interface {
	Subscribe(name string, h event.Handler)
}

type Broadcaster interface {
	Broadcast(ev *domain.WsServerEvent)
}

var _ Broadcaster = (*userws.Hub)(nil)

func Register(bus EventBus, hub Broadcaster) {
	// Deployment Events
	deployment := NewDeploymentEvents(hub)

	bus.Subscribe(domain.EventDeploymentStarted, deployment.Handle(domain.EventDeploymentStarted))
	bus.Subscribe(domain.EventDeploymentStepFinished, deployment.Handle(domain.EventDeploymentStepFinished))
	bus.Subscribe(domain.EventDeploymentLog, deployment.Handle(domain.EventDeploymentLog))
	bus.Subscribe(domain.EventDeploymentFinished, deployment.Handle(domain.EventDeploymentFinished))

	// Switch Events
	switches := NewSwitchEvents(hub)

	bus.Subscribe(domain.EventSwitchApprovalRequired, switches.Handle(domain.EventSwitchApprovalRequired))
	bus.Subscribe(domain.EventSwitchRejected, switches.Handle(domain.EventSwitchRejected))
	bus.Subscribe(domain.EventTrafficSwitched, switches.Handle(domain.EventTrafficSwitched))
	bus.Subscribe(domain.EventSwitchFailed, switches.Handle(domain.EventSwitchFailed))

	// Status Events
	status := NewStatusObserved(hub)

	bus.Subscribe(domain.EventStatusObserved, status.Handle)
}
