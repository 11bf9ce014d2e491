package service

import (
	"context"

	"letscollab-be/internal/pkg/logger"
	"letscollab-be/pkg/activity"
	"letscollab-be/pkg/events"
	pktNats "letscollab-be/pkg/nats"

	"github.com/google/uuid"
)

// EventSubscriber is satisfied by *nats.Subscriber.
type EventSubscriber interface {
	Subscribe(subject string, durableName string, handler pktNats.EventHandler) error
}

// CacheSyncService drops this instance's cached copy of a board whenever any
// instance saves or deletes it.
type CacheSyncService struct {
	subscriber EventSubscriber
	cache      BoardSnapshotCache
	instanceID string
	logger     logger.ILogger
}

func NewCacheSyncService(subscriber EventSubscriber, cache BoardSnapshotCache, instanceID string, logger logger.ILogger) *CacheSyncService {
	return &CacheSyncService{
		subscriber: subscriber,
		cache:      cache,
		instanceID: instanceID,
		logger:     logger,
	}
}

// Start registers per-instance durable consumers so every instance sees every
// save and delete.
func (s *CacheSyncService) Start() error {
	if err := s.subscriber.Subscribe(pktNats.Subject(activity.SnapshotSaved), "board-cache-"+s.instanceID, s.Handle); err != nil {
		return err
	}
	return s.subscriber.Subscribe(pktNats.Subject(activity.BoardDeleted), "board-cache-deleted-"+s.instanceID, s.Handle)
}

func (s *CacheSyncService) Handle(ctx context.Context, event events.Event) error {
	raw, _ := event.Payload()["board_id"].(string)
	boardId, err := uuid.Parse(raw)
	if err != nil {
		// Redelivery will not fix a bad payload.
		s.logger.Warn("CACHE_SYNC", "Event without a valid board_id", map[string]interface{}{"board_id": raw})
		return nil
	}

	s.cache.Invalidate(ctx, boardId)
	s.logger.Debug("CACHE_SYNC", "Board cache invalidated", map[string]interface{}{"board_id": boardId})
	return nil
}
