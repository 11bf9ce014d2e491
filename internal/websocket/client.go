package websocket

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// ID is unique per physical connection.
	ID string

	// Identity taken from the handshake token.
	UserID      string
	DisplayName string

	// Buffered channel of outbound frames.
	Send chan []byte

	kicked     chan struct{}
	kickOnce   sync.Once
	kickCode   int
	kickReason string
}

// kick asks the write pump to close the connection with the given close code.
// Only the first call counts; safe from any goroutine.
func (c *Client) kick(code int, reason string) {
	c.kickOnce.Do(func() {
		c.kickCode, c.kickReason = code, reason
		close(c.kicked)
	})
}

// readPump pumps frames from the websocket connection to the dispatcher.
func (c *Client) readPump() {
	defer func() {
		c.Hub.dispatcher.HandleDisconnect(c)
		c.Hub.remove(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(c.Hub.maxMessageBytes)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.Hub.logger.Warn("Client", "Connection closed unexpectedly", map[string]interface{}{"connection_id": c.ID, "user_id": c.UserID, "error": err.Error()})
			}
			break
		}
		c.Hub.dispatcher.HandleFrame(c, frame)
	}
}

// writePump pumps frames from the hub to the websocket connection. Each
// frame goes out as its own text message.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-c.kicked:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(c.kickCode, c.kickReason))
			return
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
