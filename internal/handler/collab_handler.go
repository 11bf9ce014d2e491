package handler

import (
	"context"
	"errors"

	"letscollab-be/internal/pkg/logger"
	"letscollab-be/internal/pkg/serverutils"
	"letscollab-be/internal/service"
	internalWS "letscollab-be/internal/websocket"
	"letscollab-be/pkg/realtime"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// CollabHandler upgrades authenticated requests to collaboration sockets and
// routes their frames to the room and relay services.
type CollabHandler struct {
	rooms     *service.RoomService
	relay     *service.RelayService
	hub       *internalWS.Hub
	jwtSecret string
	logger    logger.ILogger
}

func NewCollabHandler(rooms *service.RoomService, relay *service.RelayService, hub *internalWS.Hub, jwtSecret string, log logger.ILogger) *CollabHandler {
	return &CollabHandler{
		rooms:     rooms,
		relay:     relay,
		hub:       hub,
		jwtSecret: jwtSecret,
		logger:    log,
	}
}

// ServeWs authenticates the handshake, then hands the connection to the hub.
// Token comes from ?token= (browsers) or the Authorization header (tooling).
func (h *CollabHandler) ServeWs(c *fiber.Ctx) error {
	identity, err := serverutils.ParseUserToken(serverutils.BearerToken(c), h.jwtSecret)
	if err != nil {
		h.logger.Warn("CollabHandler", "Rejected WS handshake", map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, err.Error()))
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("CollabHandler", "Starting WebSocket session", map[string]interface{}{"user_id": identity.UserID})
		internalWS.ServeWs(h.hub, conn, identity.UserID, identity.Name)
		h.logger.Info("CollabHandler", "WebSocket session ended", map[string]interface{}{"user_id": identity.UserID})
	}, websocket.Config{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	})(c)
}

func (h *CollabHandler) HandleFrame(client *internalWS.Client, frame []byte) {
	ctx := context.Background()

	msg, err := realtime.Parse(frame)
	if err != nil {
		h.sendError(client, "", realtime.ErrorInvalidRequest, err.Error())
		return
	}

	switch msg.Kind {
	case realtime.KindJoin:
		displayName := client.DisplayName
		var payload realtime.JoinPayload
		if len(msg.Data) > 0 {
			if err := msg.Decode(&payload); err != nil {
				h.sendError(client, msg.DocumentID, realtime.ErrorInvalidRequest, err.Error())
				return
			}
			if payload.DisplayName != "" {
				displayName = payload.DisplayName
			}
		}
		res := h.rooms.Join(ctx, msg.DocumentID, client.UserID, displayName, client.ID)
		if !res.Accepted {
			h.sendError(client, msg.DocumentID, res.Reason, "join rejected: "+string(res.Reason))
		}

	case realtime.KindLeave:
		h.rooms.Leave(ctx, msg.DocumentID, client.ID)

	case realtime.KindMutation, realtime.KindCursor, realtime.KindTitle:
		if _, err := h.relay.Relay(ctx, client.ID, client.UserID, msg); err != nil {
			if errors.Is(err, service.ErrNotJoined) {
				h.logger.Debug("CollabHandler", "Dropped frame for unjoined document", map[string]interface{}{"connection_id": client.ID, "document_id": msg.DocumentID, "kind": msg.Kind})
				return
			}
			h.logger.Warn("CollabHandler", "Relay failed", map[string]interface{}{"connection_id": client.ID, "error": err.Error()})
		}

	default:
		h.sendError(client, msg.DocumentID, realtime.ErrorInvalidRequest, "unsupported kind: "+string(msg.Kind))
	}
}

func (h *CollabHandler) HandleDisconnect(client *internalWS.Client) {
	h.rooms.Disconnect(context.Background(), client.ID)
}

func (h *CollabHandler) HandleClusterFrame(documentID, originConnectionID string, frame []byte) {
	h.relay.DeliverLocal(documentID, originConnectionID, frame)
}

func (h *CollabHandler) sendError(client *internalWS.Client, documentID string, code realtime.ErrorCode, message string) {
	msg, err := realtime.NewMessage(realtime.KindError, documentID, realtime.ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	frame, err := msg.Encode()
	if err != nil {
		return
	}
	h.hub.Deliver([]string{client.ID}, frame)
}

// RegisterRoutes registers the collaboration socket.
func (h *CollabHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws", h.ServeWs)
}
