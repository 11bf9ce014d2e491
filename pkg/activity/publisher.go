package activity

import (
	"context"

	"letscollab-be/internal/pkg/logger"
	pkgEvents "letscollab-be/pkg/events"

	"github.com/google/uuid"
)

const (
	ParticipantJoined = "BOARD_PARTICIPANT_JOINED"
	ParticipantLeft   = "BOARD_PARTICIPANT_LEFT"
	SnapshotSaved     = "BOARD_SNAPSHOT_SAVED"
	BoardDeleted      = "BOARD_DELETED"
)

// Sink is the transport the publisher hands events to. *nats.Publisher
// satisfies it.
type Sink interface {
	Publish(ctx context.Context, event pkgEvents.Event) error
}

// Publisher abstracts board activity publishing.
type Publisher interface {
	PublishParticipantJoined(ctx context.Context, boardID, userID uuid.UUID, connectionID string, userArrived bool)
	PublishParticipantLeft(ctx context.Context, boardID, userID uuid.UUID, connectionID string, userDeparted bool)
	PublishSnapshotSaved(ctx context.Context, boardID, userID uuid.UUID, elementCount int, titleChanged bool)
	PublishBoardDeleted(ctx context.Context, boardID, userID uuid.UUID)
}

// NatsPublisher publishes best effort; failures are logged, never returned.
type NatsPublisher struct {
	sink   Sink
	logger logger.ILogger
}

// NewNatsPublisher accepts a nil sink when NATS is unavailable.
func NewNatsPublisher(sink Sink, logger logger.ILogger) *NatsPublisher {
	return &NatsPublisher{
		sink:   sink,
		logger: logger,
	}
}

func (p *NatsPublisher) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if p.sink == nil {
		return
	}

	evt := pkgEvents.New(eventType, data)
	evt.Data["entity_type"] = "board"
	evt.Data["occurred_at"] = evt.OccurredAt

	if err := p.sink.Publish(ctx, evt); err != nil {
		p.logger.Error("ACTIVITY", "Failed to publish "+eventType+" event", map[string]interface{}{"error": err.Error()})
	}
}

func (p *NatsPublisher) PublishParticipantJoined(ctx context.Context, boardID, userID uuid.UUID, connectionID string, userArrived bool) {
	p.publish(ctx, ParticipantJoined, map[string]interface{}{
		"board_id":      boardID.String(),
		"entity_id":     boardID.String(),
		"user_id":       userID.String(),
		"connection_id": connectionID,
		"user_arrived":  userArrived,
	})
}

func (p *NatsPublisher) PublishParticipantLeft(ctx context.Context, boardID, userID uuid.UUID, connectionID string, userDeparted bool) {
	p.publish(ctx, ParticipantLeft, map[string]interface{}{
		"board_id":      boardID.String(),
		"entity_id":     boardID.String(),
		"user_id":       userID.String(),
		"connection_id": connectionID,
		"user_departed": userDeparted,
	})
}

func (p *NatsPublisher) PublishSnapshotSaved(ctx context.Context, boardID, userID uuid.UUID, elementCount int, titleChanged bool) {
	p.publish(ctx, SnapshotSaved, map[string]interface{}{
		"board_id":      boardID.String(),
		"entity_id":     boardID.String(),
		"user_id":       userID.String(),
		"element_count": elementCount,
		"title_changed": titleChanged,
	})
}

func (p *NatsPublisher) PublishBoardDeleted(ctx context.Context, boardID, userID uuid.UUID) {
	p.publish(ctx, BoardDeleted, map[string]interface{}{
		"board_id":  boardID.String(),
		"entity_id": boardID.String(),
		"user_id":   userID.String(),
	})
}
