package websocket

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs runs one connection until it closes. The read pump runs on the
// caller's goroutine, as fiber's websocket handler expects. The client is
// registered before any frame is read, so a join is never answered before the
// joiner can receive.
func ServeWs(hub *Hub, c *websocket.Conn, userID, displayName string) {
	<-hub.Ready()

	client := &Client{
		Hub:         hub,
		Conn:        c,
		ID:          uuid.NewString(),
		UserID:      userID,
		DisplayName: displayName,
		Send:        make(chan []byte, hub.sendBuffer),
		kicked:      make(chan struct{}),
	}
	if !hub.add(client) {
		c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		return
	}

	go client.writePump()
	client.readPump()
}
