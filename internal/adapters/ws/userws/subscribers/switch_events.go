package subscribers

import (
	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/event"
)

type SwitchEvents struct {
	hub Broadcaster
}

func NewSwitchEvents(hub Broadcaster) *SwitchEvents {
	return &SwitchEvents{hub: hub}
}

func (s *SwitchEvents) Handle(name string) event.Handler {
	return func(ev any) {
		evt, ok := ev.(domain.SwitchEvent)
		if !ok {
			return
		}

		s.hub.Broadcast(&domain.WsServerEvent{
			Channel: domain.WsChannelSwitches,
			Event:   name,
			Payload: evt,
		})
		s.hub.Broadcast(&domain.WsServerEvent{
			Channel: domain.GetAppChannel(evt.App),
			Event:   name,
			Payload: evt,
		})
	}
}
