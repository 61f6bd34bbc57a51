package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"chatrelay/internal/relay"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients connect from arbitrary origins; auth happens on
		// the token, not the Origin header.
		return true
	},
}

type WebSocketHandler struct {
	hub    *relay.Hub
	logger *slog.Logger
}

func NewWebSocketHandler(hub *relay.Hub, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{hub: hub, logger: logger}
}

// Serve godoc
// @Summary      WebSocket endpoint
// @Description  Upgrades to a WebSocket connection. Pass the JWT via the token query parameter.
// @Tags         websocket
// @Param        token query string true "JWT"
// @Success      101
// @Router       /ws [get]
func (h *WebSocketHandler) Serve(c *gin.Context) {
	token := c.Query("token")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	h.hub.ServeConn(conn, token)
}
