package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"letscollab-be/internal/pkg/logger"
	"letscollab-be/internal/presence"
	"letscollab-be/pkg/activity"
	"letscollab-be/pkg/realtime"

	"github.com/google/uuid"
)

// Delivery pushes encoded frames to live connections. Implementations must not
// block; a connection that cannot keep up is dropped instead.
type Delivery interface {
	Deliver(connectionIDs []string, frame []byte)
}

// BoardAuthorizer answers whether a user may enter a board's room.
type BoardAuthorizer interface {
	IsOwnerOrCollaborator(ctx context.Context, boardId uuid.UUID, userId uuid.UUID) (bool, error)
}

// JoinResult is the outcome of a join attempt. Presence is set when accepted,
// Reason when rejected.
type JoinResult struct {
	Accepted bool
	Reason   realtime.ErrorCode
	Presence []realtime.Participant
}

type membership struct {
	documentID  string
	userID      string
	displayName string
}

// RoomService owns room membership. Each membership change and the presence
// broadcast it causes happen under one lock, so every connection observes
// presence updates for a room in the order the changes were made.
type RoomService struct {
	mu          sync.Mutex
	registry    *presence.Registry
	memberships map[string]membership // connection id -> joined room

	authorizer BoardAuthorizer
	delivery   Delivery
	activity   activity.Publisher
	logger     logger.ILogger
	now        func() time.Time
}

func NewRoomService(
	registry *presence.Registry,
	authorizer BoardAuthorizer,
	delivery Delivery,
	activity activity.Publisher,
	logger logger.ILogger,
) *RoomService {
	return &RoomService{
		registry:    registry,
		memberships: make(map[string]membership),
		authorizer:  authorizer,
		delivery:    delivery,
		activity:    activity,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *RoomService) authorize(ctx context.Context, documentID, userID string) realtime.ErrorCode {
	if documentID == "" {
		return realtime.ErrorInvalidRequest
	}
	boardId, err := uuid.Parse(documentID)
	if err != nil {
		return realtime.ErrorNotFound
	}
	userId, err := uuid.Parse(userID)
	if err != nil {
		return realtime.ErrorAccessDenied
	}

	ok, err := s.authorizer.IsOwnerOrCollaborator(ctx, boardId, userId)
	switch {
	case errors.Is(err, ErrBoardNotFound):
		return realtime.ErrorNotFound
	case err != nil:
		s.logger.Error("ROOM", "Authorization lookup failed", map[string]interface{}{"document_id": documentID, "user_id": userID, "error": err.Error()})
		return realtime.ErrorInternal
	case !ok:
		return realtime.ErrorAccessDenied
	}
	return ""
}

// Join authorizes the user, registers the connection and broadcasts the
// deduplicated presence list to the whole room, joiner included. A connection
// already in another room leaves it first.
func (s *RoomService) Join(ctx context.Context, documentID, userID, displayName, connectionID string) JoinResult {
	// Authorization may hit the database, keep it outside the lock.
	if reason := s.authorize(ctx, documentID, userID); reason != "" {
		s.logger.Info("ROOM", "Join rejected", map[string]interface{}{"document_id": documentID, "user_id": userID, "reason": reason})
		return JoinResult{Reason: reason}
	}

	var left *membership
	var userDeparted bool

	s.mu.Lock()
	prev, inRoom := s.memberships[connectionID]
	if inRoom && prev.documentID != documentID {
		userDeparted = s.leaveLocked(connectionID, prev)
		left = &prev
	}
	rejoin := inRoom && prev.documentID == documentID

	s.registry.Register(documentID, realtime.Participant{
		ConnectionID: connectionID,
		UserID:       userID,
		DisplayName:  displayName,
		JoinedAt:     s.now(),
	})
	s.memberships[connectionID] = membership{documentID: documentID, userID: userID, displayName: displayName}

	userArrived := !rejoin && s.registry.ConnectionCount(documentID, userID) == 1
	participants := s.registry.ListUnique(documentID)
	s.broadcastPresenceLocked(documentID, realtime.PresencePayload{
		Event:        realtime.PresenceJoined,
		UserID:       userID,
		DisplayName:  displayName,
		ConnectionID: connectionID,
		UserArrived:  userArrived,
		Participants: participants,
	})
	s.mu.Unlock()

	if left != nil {
		s.publishLeft(ctx, *left, connectionID, userDeparted)
	}
	s.publishJoined(ctx, documentID, userID, connectionID, userArrived)

	s.logger.Info("ROOM", "Participant joined", map[string]interface{}{"document_id": documentID, "user_id": userID, "connection_id": connectionID})
	return JoinResult{Accepted: true, Presence: participants}
}

// Leave removes the connection from the room it joined. Leaving a room the
// connection is not in is a no-op and returns false.
func (s *RoomService) Leave(ctx context.Context, documentID, connectionID string) bool {
	s.mu.Lock()
	m, ok := s.memberships[connectionID]
	if !ok || m.documentID != documentID {
		s.mu.Unlock()
		return false
	}
	userDeparted := s.leaveLocked(connectionID, m)
	s.mu.Unlock()

	s.publishLeft(ctx, m, connectionID, userDeparted)
	return true
}

// Disconnect is Leave for whichever room the connection was in.
func (s *RoomService) Disconnect(ctx context.Context, connectionID string) {
	s.mu.Lock()
	m, ok := s.memberships[connectionID]
	if !ok {
		s.mu.Unlock()
		return
	}
	userDeparted := s.leaveLocked(connectionID, m)
	s.mu.Unlock()

	s.publishLeft(ctx, m, connectionID, userDeparted)
}

func (s *RoomService) leaveLocked(connectionID string, m membership) bool {
	delete(s.memberships, connectionID)
	remaining := s.registry.Unregister(m.documentID, connectionID)
	userDeparted := s.registry.ConnectionCount(m.documentID, m.userID) == 0

	s.logger.Info("ROOM", "Participant left", map[string]interface{}{"document_id": m.documentID, "user_id": m.userID, "connection_id": connectionID, "remaining": remaining})
	if remaining == 0 {
		return userDeparted
	}

	s.broadcastPresenceLocked(m.documentID, realtime.PresencePayload{
		Event:        realtime.PresenceLeft,
		UserID:       m.userID,
		DisplayName:  m.displayName,
		ConnectionID: connectionID,
		UserDeparted: userDeparted,
		Participants: s.registry.ListUnique(m.documentID),
	})
	return userDeparted
}

func (s *RoomService) broadcastPresenceLocked(documentID string, payload realtime.PresencePayload) {
	msg, err := realtime.NewMessage(realtime.KindPresence, documentID, payload)
	if err != nil {
		return
	}
	frame, err := msg.Encode()
	if err != nil {
		return
	}
	s.delivery.Deliver(s.registry.Connections(documentID), frame)
}

func (s *RoomService) publishJoined(ctx context.Context, documentID, userID, connectionID string, userArrived bool) {
	boardId, _ := uuid.Parse(documentID)
	userId, _ := uuid.Parse(userID)
	s.activity.PublishParticipantJoined(ctx, boardId, userId, connectionID, userArrived)
}

func (s *RoomService) publishLeft(ctx context.Context, m membership, connectionID string, userDeparted bool) {
	boardId, _ := uuid.Parse(m.documentID)
	userId, _ := uuid.Parse(m.userID)
	s.activity.PublishParticipantLeft(ctx, boardId, userId, connectionID, userDeparted)
}

// RoomOf returns the room a connection has joined.
func (s *RoomService) RoomOf(connectionID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[connectionID]
	return m.documentID, ok
}

// Recipients lists the room's connections minus the excluded one.
func (s *RoomService) Recipients(documentID, excludeConnectionID string) []string {
	all := s.registry.Connections(documentID)
	out := make([]string, 0, len(all))
	for _, id := range all {
		if id != excludeConnectionID {
			out = append(out, id)
		}
	}
	return out
}

// Presence returns the current deduplicated participant list.
func (s *RoomService) Presence(documentID string) []realtime.Participant {
	return s.registry.ListUnique(documentID)
}
