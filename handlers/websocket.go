package handlers

import (
	"net/http"

	ws "survey-service/websocket"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
)

// WebSocketHandler handles dashboard WebSocket connections
type WebSocketHandler struct {
	hub *ws.Hub
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *ws.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Dashboards connect from other origins; auth sits in front of this
		// service in deployment.
		return true
	},
}

// ListenSubmissions streams submitted surveys to a supervisor dashboard.
func (h *WebSocketHandler) ListenSubmissions(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("Failed to upgrade connection to WebSocket: %v", err)
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	log.Infof("Dashboard WebSocket connection established from %s", c.ClientIP())
}

// Stats reports hub statistics alongside health.
func (h *WebSocketHandler) Stats(c *gin.Context) {
	connected, broadcasts := h.hub.GetStats()
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": connected,
		"broadcasts":        broadcasts,
	})
}
