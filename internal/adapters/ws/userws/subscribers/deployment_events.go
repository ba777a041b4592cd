package subscribers

import (
	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/event"
)

type DeploymentEvents struct {
	hub Broadcaster
}

func NewDeploymentEvents(hub Broadcaster) *DeploymentEvents {
	return &DeploymentEvents{hub: hub}
}

// Handle publishes the event on the deployments channel and on the
// application's own channel.
func (s *DeploymentEvents) Handle(name string) event.Handler {
	return func(ev any) {
		app := deploymentApp(ev)
		if app == "" {
			return
		}

		s.hub.Broadcast(&domain.WsServerEvent{
			Channel: domain.WsChannelDeployments,
			Event:   name,
			Payload: ev,
		})
		s.hub.Broadcast(&domain.WsServerEvent{
			Channel: domain.GetAppChannel(app),
			Event:   name,
			Payload: ev,
		})
	}
}

func deploymentApp(ev any) string {
	switch e := ev.(type) {
	case domain.DeploymentStartedEvent:
		return e.App
	case domain.DeploymentStepFinishedEvent:
		return e.App
	case domain.DeploymentLogEvent:
		return e.App
	case domain.DeploymentFinishedEvent:
		if e.Run != nil {
			return e.Run.App
		}
	}
	return ""
}
