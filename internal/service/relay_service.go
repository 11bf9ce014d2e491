package service

import (
	"context"
	"errors"

	"letscollab-be/internal/pkg/logger"
	"letscollab-be/pkg/realtime"
)

var (
	ErrNotRelayable = errors.New("frame kind is not relayed")
	ErrNotJoined    = errors.New("connection has not joined this document")
)

// RoomDirectory is the read side of room membership the relay needs.
type RoomDirectory interface {
	RoomOf(connectionID string) (string, bool)
	Recipients(documentID, excludeConnectionID string) []string
}

// ClusterPublisher forwards relayed frames to other instances.
type ClusterPublisher interface {
	PublishCluster(ctx context.Context, documentID, originConnectionID string, frame []byte)
}

// RelayService fans mutation, cursor and title frames out to the rest of a
// room. It keeps no state and never looks inside payloads.
type RelayService struct {
	rooms    RoomDirectory
	delivery Delivery
	cluster  ClusterPublisher
	logger   logger.ILogger
}

// NewRelayService accepts a nil cluster for single instance deployments.
func NewRelayService(rooms RoomDirectory, delivery Delivery, cluster ClusterPublisher, logger logger.ILogger) *RelayService {
	return &RelayService{
		rooms:    rooms,
		delivery: delivery,
		cluster:  cluster,
		logger:   logger,
	}
}

// Relay stamps the origin onto msg and delivers it to every other connection
// in the sender's room. Frames for a room the sender has not joined are
// dropped with ErrNotJoined.
func (s *RelayService) Relay(ctx context.Context, connectionID, userID string, msg realtime.Message) (int, error) {
	if !msg.Kind.Relayable() {
		return 0, ErrNotRelayable
	}

	room, ok := s.rooms.RoomOf(connectionID)
	if !ok || msg.DocumentID == "" || room != msg.DocumentID {
		return 0, ErrNotJoined
	}

	msg.OriginUserID = userID
	msg.OriginConnectionID = connectionID
	frame, err := msg.Encode()
	if err != nil {
		return 0, err
	}

	n := s.DeliverLocal(msg.DocumentID, connectionID, frame)
	if s.cluster != nil {
		s.cluster.PublishCluster(ctx, msg.DocumentID, connectionID, frame)
	}
	return n, nil
}

// DeliverLocal hands an already stamped frame to this instance's members of
// the room, skipping the origin connection. Rooms without members swallow it.
func (s *RelayService) DeliverLocal(documentID, originConnectionID string, frame []byte) int {
	recipients := s.rooms.Recipients(documentID, originConnectionID)
	if len(recipients) == 0 {
		return 0
	}
	s.delivery.Deliver(recipients, frame)
	return len(recipients)
}
