package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rowerg/live-platform/live"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Erg readers connect from the venue LAN and viewers from anywhere;
		// origin policy is enforced at the proxy.
		return true
	},
}

// LiveHandler upgrades connections into the live coordinator. Every role
// (admin console, viewer, telemetry source) shares the endpoint; roles are
// established by the messages a connection sends, not by the URL.
type LiveHandler struct {
	hub    *live.Hub
	router *live.Router
	logger *slog.Logger
}

func NewLiveHandler(hub *live.Hub, router *live.Router, logger *slog.Logger) *LiveHandler {
	return &LiveHandler{
		hub:    hub,
		router: router,
		logger: logger,
	}
}

func (h *LiveHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade connection", slog.Any("error", err))
		return
	}

	client := h.hub.Register(conn)

	go client.WritePump()
	go client.ReadPump(h.router.HandleMessage)
}
