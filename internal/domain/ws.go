package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	WsChannelDeployments = "deployments"
	WsChannelSwitches    = "switches"
	WsChannelAppTemplate = "app:%s"
)

const (
	WsSubscribe   = "subscribe"
	WsUnsubscribe = "unsubscribe"
)

type WsClientMessage struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type WsServerEvent struct {
	Channel string `json:"channel"`
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

func GetAppChannel(app string) string {
	return fmt.Sprintf(WsChannelAppTemplate, app)
}

// IsKnownChannel reports whether clients may subscribe to the channel.
func IsKnownChannel(channel string) bool {
	switch channel {
	case WsChannelDeployments, WsChannelSwitches:
		return true
	}
	name, ok := strings.CutPrefix(channel, "app:")
	return ok && name != ""
}
