package subscribers

import "bluegreen-server/internal/domain"

type StatusObserved struct {
	hub Broadcaster
}

func NewStatusObserved(hub Broadcaster) *StatusObserved {
	return &StatusObserved{hub: hub}
}

func (s *StatusObserved) Handle(event any) {
	evt, ok := event.(domain.StatusObservedEvent)
	if !ok || evt.Status == nil {
		return
	}

	s.hub.Broadcast(&domain.WsServerEvent{
		Channel: domain.GetAppChannel(evt.Status.App),
		Event:   domain.EventStatusObserved,
		Payload: evt.Status,
	})
}
