package collabclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"letscollab-be/internal/pkg/logger"
	"letscollab-be/pkg/realtime"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

var (
	ErrJoinRejected = errors.New("join rejected")
	ErrConnClosed   = errors.New("connection closed")
)

// JoinError carries the server's reason for refusing a join.
type JoinError struct {
	Code    realtime.ErrorCode
	Message string
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("join rejected (%s): %s", e.Code, e.Message)
}

func (e *JoinError) Unwrap() error {
	return ErrJoinRejected
}

// Handlers receive inbound events. Every field is optional. Callbacks run on
// the connection's read goroutine and must not block for long.
type Handlers struct {
	OnPresence       func(documentID string, presence realtime.PresencePayload)
	OnMutation       func(documentID, originUserID string, elements []json.RawMessage)
	OnCursor         func(documentID, originUserID, originConnectionID string, cursor realtime.CursorPayload)
	OnTitle          func(documentID, originUserID, title string)
	OnError          func(documentID string, payload realtime.ErrorPayload)
	OnTransportError func(err error)
}

// Conn is one collaboration socket. It is safe for concurrent use.
type Conn struct {
	ws       *websocket.Conn
	handlers Handlers
	logger   logger.ILogger

	writeMu sync.Mutex
	seq     uint64

	mu           sync.Mutex
	connectionID string
	waiters      map[string]chan realtime.Message
	closing      bool
	err          error

	done chan struct{}
}

// SocketURL derives the websocket endpoint from an HTTP base URL.
func SocketURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/ws"
	return u.String(), nil
}

// Dial opens a socket authenticated with cfg.Token.
func Dial(ctx context.Context, cfg Config, handlers Handlers) (*Conn, error) {
	cfg = cfg.withDefaults()

	endpoint, err := SocketURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.Token)

	ws, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial %s: %w (status %d)", endpoint, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}

	c := &Conn{
		ws:       ws,
		handlers: handlers,
		logger:   cfg.Logger,
		waiters:  make(map[string]chan realtime.Message),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// ConnectionID is the server-assigned id, known after the first join.
func (c *Conn) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectionID
}

// Done is closed when the socket stops reading.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err reports why the socket stopped. Nil after an intentional Close.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Join enters a board's room and waits for the presence update that confirms
// it, or for the server's rejection.
func (c *Conn) Join(ctx context.Context, documentID, displayName string) (realtime.PresencePayload, error) {
	waiter := make(chan realtime.Message, 1)
	c.mu.Lock()
	c.waiters[documentID] = waiter
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.waiters[documentID] == waiter {
			delete(c.waiters, documentID)
		}
		c.mu.Unlock()
	}()

	if err := c.send(realtime.KindJoin, documentID, realtime.JoinPayload{DisplayName: displayName}); err != nil {
		return realtime.PresencePayload{}, err
	}

	select {
	case msg := <-waiter:
		if msg.Kind == realtime.KindError {
			var payload realtime.ErrorPayload
			_ = msg.Decode(&payload)
			return realtime.PresencePayload{}, &JoinError{Code: payload.Code, Message: payload.Message}
		}
		var presence realtime.PresencePayload
		if err := msg.Decode(&presence); err != nil {
			return realtime.PresencePayload{}, err
		}
		c.mu.Lock()
		c.connectionID = presence.ConnectionID
		c.mu.Unlock()
		return presence, nil
	case <-ctx.Done():
		return realtime.PresencePayload{}, ctx.Err()
	case <-c.done:
		return realtime.PresencePayload{}, ErrConnClosed
	}
}

func (c *Conn) Leave(documentID string) error {
	return c.send(realtime.KindLeave, documentID, nil)
}

func (c *Conn) EmitMutation(documentID string, elements []json.RawMessage) error {
	if elements == nil {
		elements = []json.RawMessage{}
	}
	return c.send(realtime.KindMutation, documentID, realtime.MutationPayload{Elements: elements})
}

func (c *Conn) EmitCursor(documentID string, x, y float64, displayName string) error {
	return c.send(realtime.KindCursor, documentID, realtime.CursorPayload{X: x, Y: y, DisplayName: displayName})
}

func (c *Conn) EmitTitle(documentID, title string) error {
	return c.send(realtime.KindTitle, documentID, realtime.TitlePayload{Title: title})
}

func (c *Conn) send(kind realtime.Kind, documentID string, payload interface{}) error {
	msg, err := realtime.NewMessage(kind, documentID, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	c.seq++
	msg.Seq = c.seq
	frame, err := msg.Encode()
	if err != nil {
		return err
	}

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

// Close says goodbye to the server and releases the socket. The read
// goroutine exits without reporting a transport error.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()

	err := c.ws.Close()
	<-c.done
	return err
}

func (c *Conn) readLoop() {
	var readErr error
	defer func() {
		c.mu.Lock()
		closing := c.closing
		if !closing {
			c.err = readErr
		}
		c.mu.Unlock()
		close(c.done)

		if !closing && c.handlers.OnTransportError != nil {
			c.handlers.OnTransportError(readErr)
		}
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			readErr = err
			return
		}

		msg, err := realtime.Parse(data)
		if err != nil {
			c.logger.Warn("COLLAB_CLIENT", "Dropped malformed frame", map[string]interface{}{"error": err.Error()})
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Conn) dispatch(msg realtime.Message) {
	switch msg.Kind {
	case realtime.KindPresence, realtime.KindError:
		c.mu.Lock()
		waiter, ok := c.waiters[msg.DocumentID]
		if ok {
			delete(c.waiters, msg.DocumentID)
		}
		c.mu.Unlock()
		if ok {
			waiter <- msg
		}

		if msg.Kind == realtime.KindPresence {
			var presence realtime.PresencePayload
			if err := msg.Decode(&presence); err == nil && c.handlers.OnPresence != nil {
				c.handlers.OnPresence(msg.DocumentID, presence)
			}
			return
		}
		// A rejected join is answered through Join only.
		if !ok && c.handlers.OnError != nil {
			var payload realtime.ErrorPayload
			if err := msg.Decode(&payload); err == nil {
				c.handlers.OnError(msg.DocumentID, payload)
			}
		}

	case realtime.KindMutation:
		var payload realtime.MutationPayload
		if err := msg.Decode(&payload); err != nil {
			return
		}
		if c.handlers.OnMutation != nil {
			c.handlers.OnMutation(msg.DocumentID, msg.OriginUserID, payload.Elements)
		}

	case realtime.KindCursor:
		var payload realtime.CursorPayload
		if err := msg.Decode(&payload); err != nil {
			return
		}
		if c.handlers.OnCursor != nil {
			c.handlers.OnCursor(msg.DocumentID, msg.OriginUserID, msg.OriginConnectionID, payload)
		}

	case realtime.KindTitle:
		var payload realtime.TitlePayload
		if err := msg.Decode(&payload); err != nil {
			return
		}
		if c.handlers.OnTitle != nil {
			c.handlers.OnTitle(msg.DocumentID, msg.OriginUserID, payload.Title)
		}
	}
}
