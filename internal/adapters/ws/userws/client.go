package userws

import (
	"encoding/json"
	"time"

	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

type Client struct {
	ID    string
	Actor string

	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	log  logger.Logger

	// owned by the hub goroutine
	dropped bool
}

func NewClient(hub *Hub, conn *websocket.Conn, log logger.Logger, actor string) *Client {
	id := uuid.NewString()
	return &Client{
		ID:    id,
		Actor: actor,
		hub:   hub,
		conn:  conn,
		send:  make(chan []byte, 256),
		log:   log.With("client_id", id),
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("ws: client disconnected", "error", err)
			}
			return
		}

		var msg domain.WsClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.log.Warn("ws: invalid json message", "error", err)
			continue
		}

		if !domain.IsKnownChannel(msg.Channel) {
			c.log.Warn("ws: unknown channel", "channel", msg.Channel)
			continue
		}

		var target chan *Subscription
		switch msg.Type {
		case domain.WsSubscribe:
			target = c.hub.subscribe
		case domain.WsUnsubscribe:
			target = c.hub.unsubscribe
		default:
			c.log.Warn("ws: unknown message type", "type", msg.Type)
			continue
		}

		select {
		case target <- &Subscription{client: c, channel: msg.Channel}:
			c.log.Debug("ws: subscription changed", "type", msg.Type, "channel", msg.Channel)
		case <-c.hub.ctx.Done():
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
