// Package ws implements the WebSocket transport: one connection actor per
// client, dispatching chat commands and forwarding broadcast generation
// events for subscribed conversations.
package ws

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"openchat/backend/internal/event"
	"openchat/backend/internal/interfaces"
	"openchat/backend/internal/stopstore"
)

type Handler struct {
	chat        interfaces.ChatService
	generations interfaces.GenerationService
	stops       stopstore.Store
	broker      *event.Broker
	upgrader    websocket.Upgrader
}

func NewHandler(chat interfaces.ChatService, generations interfaces.GenerationService, stops stopstore.Store, broker *event.Broker) *Handler {
	return &Handler{
		chat:        chat,
		generations: generations,
		stops:       stops,
		broker:      broker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Same-origin policy is enforced by the deployment, not here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and runs the actor's pumps.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	c := newClient(conn, h)
	go c.writePump()
	c.readPump()
}
