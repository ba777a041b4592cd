package userws

import (
	"net/http"
	"slices"

	"bluegreen-server/internal/adapters/http/middleware"
	"bluegreen-server/internal/auth"
	"bluegreen-server/internal/logger"

	"github.com/gorilla/websocket"
)

type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	log      logger.Logger

	secret         string
	allowedOrigins []string
}

func NewHandler(hub *Hub, log logger.Logger, secret string, allowedOrigins []string) *Handler {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			allowed := slices.Contains(allowedOrigins, origin)
			if !allowed {
				log.Warn("ws auth: origin rejected", "origin", origin)
			}

			return allowed
		},
	}

	return &Handler{
		hub:      hub,
		upgrader: upgrader,
		log:      log,

		secret:         secret,
		allowedOrigins: allowedOrigins,
	}
}

// Serve authenticates with the same tokens as the REST API. Browsers cannot
// set headers on a websocket handshake, so a token query parameter is also
// accepted.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromRequest(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}

	claims, err := auth.ValidateToken(token, h.secret)
	if err != nil {
		h.log.Warn("ws auth: invalid credentials", "error", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	actor, err := auth.Subject(claims)
	if err != nil {
		h.log.Warn("ws auth: invalid credentials", "error", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("ws: upgrade failed", "error", err)
		return
	}

	c := NewClient(h.hub, conn, h.log, actor)

	select {
	case h.hub.register <- c:
	case <-h.hub.ctx.Done():
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}
