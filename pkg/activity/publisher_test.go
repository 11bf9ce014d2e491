package activity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"letscollab-be/internal/pkg/logger"
	pkgEvents "letscollab-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []pkgEvents.Event
	err    error
}

func (s *recordingSink) Publish(_ context.Context, event pkgEvents.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func TestPublishParticipantJoined(t *testing.T) {
	sink := &recordingSink{}
	p := NewNatsPublisher(sink, logger.NewNopLogger())

	boardID, userID := uuid.New(), uuid.New()
	p.PublishParticipantJoined(context.Background(), boardID, userID, "conn-1", true)

	require.Len(t, sink.events, 1)
	evt := sink.events[0]
	assert.Equal(t, ParticipantJoined, evt.EventType())
	assert.Equal(t, boardID.String(), evt.Payload()["board_id"])
	assert.Equal(t, "conn-1", evt.Payload()["connection_id"])
	assert.Equal(t, true, evt.Payload()["user_arrived"])
	assert.Equal(t, "board", evt.Payload()["entity_type"])
}

func TestPublishSnapshotSaved(t *testing.T) {
	sink := &recordingSink{}
	p := NewNatsPublisher(sink, logger.NewNopLogger())

	p.PublishSnapshotSaved(context.Background(), uuid.New(), uuid.New(), 3, false)

	require.Len(t, sink.events, 1)
	assert.Equal(t, SnapshotSaved, sink.events[0].EventType())
	assert.Equal(t, 3, sink.events[0].Payload()["element_count"])
}

func TestPublishBoardDeleted(t *testing.T) {
	sink := &recordingSink{}
	p := NewNatsPublisher(sink, logger.NewNopLogger())

	boardID, userID := uuid.New(), uuid.New()
	p.PublishBoardDeleted(context.Background(), boardID, userID)

	require.Len(t, sink.events, 1)
	assert.Equal(t, BoardDeleted, sink.events[0].EventType())
	assert.Equal(t, boardID.String(), sink.events[0].Payload()["board_id"])
	assert.Equal(t, userID.String(), sink.events[0].Payload()["user_id"])
}

func TestPublishIsBestEffort(t *testing.T) {
	sink := &recordingSink{err: errors.New("nats down")}
	p := NewNatsPublisher(sink, logger.NewNopLogger())

	assert.NotPanics(t, func() {
		p.PublishParticipantLeft(context.Background(), uuid.New(), uuid.New(), "c", true)
	})
	assert.Len(t, sink.events, 1)
}

func TestNilSinkIsNoop(t *testing.T) {
	p := NewNatsPublisher(nil, logger.NewNopLogger())
	assert.NotPanics(t, func() {
		p.PublishParticipantJoined(context.Background(), uuid.New(), uuid.New(), "c", false)
	})
}
