package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"letscollab-be/internal/entity"
	"letscollab-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoardCacheLocalOnly(t *testing.T) {
	ctx := context.Background()
	c := NewBoardCache(nil, time.Minute, logger.NewNopLogger())

	id := uuid.New()
	_, found := c.Get(ctx, id)
	assert.False(t, found)

	c.Set(ctx, &entity.Board{Id: id, Title: "Sprint", Elements: json.RawMessage(`[{"id":"r1"}]`)})

	board, found := c.Get(ctx, id)
	require.True(t, found)
	assert.Equal(t, "Sprint", board.Title)
	assert.JSONEq(t, `[{"id":"r1"}]`, string(board.Elements))

	c.Invalidate(ctx, id)
	_, found = c.Get(ctx, id)
	assert.False(t, found)
}

func TestBoardCacheExpires(t *testing.T) {
	ctx := context.Background()
	c := NewBoardCache(nil, 20*time.Millisecond, logger.NewNopLogger())

	id := uuid.New()
	c.Set(ctx, &entity.Board{Id: id, Title: "Short lived"})
	time.Sleep(40 * time.Millisecond)

	_, found := c.Get(ctx, id)
	assert.False(t, found)
}

func TestBoardCacheIgnoresNil(t *testing.T) {
	c := NewBoardCache(nil, 0, logger.NewNopLogger())
	assert.NotPanics(t, func() { c.Set(context.Background(), nil) })
	assert.Equal(t, 5*time.Minute, c.ttl)
}
