package service

import (
	"context"
	"encoding/json"

	"letscollab-be/internal/dto"
	"letscollab-be/internal/pkg/logger"
	"letscollab-be/pkg/activity"

	"github.com/ThreeDotsLabs/watermill/message"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains board change messages off the in-process bus and
// forwards them to the activity stream, keeping NATS latency off the request
// path.
type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	activity   activity.Publisher
	logger     logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	activity activity.Publisher,
	logger logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		activity:   activity,
		logger:     logger,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.BoardChangedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("CONSUMER", "Failed to unmarshal message", map[string]interface{}{"error": err.Error()})
		// Ack invalid messages to prevent infinite redelivery
		msg.Ack()
		return
	}

	switch payload.Event {
	case dto.BoardEventSaved:
		cs.activity.PublishSnapshotSaved(ctx, payload.BoardId, payload.UserId, payload.ElementCount, payload.TitleChanged)
	case dto.BoardEventDeleted:
		cs.activity.PublishBoardDeleted(ctx, payload.BoardId, payload.UserId)
	default:
		cs.logger.Warn("CONSUMER", "Unknown board event", map[string]interface{}{"event": payload.Event, "board_id": payload.BoardId})
	}
	cs.logger.Debug("CONSUMER", "Board event forwarded", map[string]interface{}{"event": payload.Event, "board_id": payload.BoardId})
	msg.Ack()
}
