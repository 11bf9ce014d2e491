package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"letscollab-be/internal/entity"
	"letscollab-be/internal/pkg/logger"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "board:snapshot:"

// BoardCache is a two level read cache for board snapshots. The in-process
// go-cache answers first, redis is shared between instances. A nil redis
// client degrades to the local level only.
type BoardCache struct {
	local  *gocache.Cache
	rdb    *redis.Client
	ttl    time.Duration
	logger logger.ILogger
}

func NewBoardCache(rdb *redis.Client, ttl time.Duration, log logger.ILogger) *BoardCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &BoardCache{
		local:  gocache.New(ttl, 2*ttl),
		rdb:    rdb,
		ttl:    ttl,
		logger: log,
	}
}

func key(id uuid.UUID) string {
	return keyPrefix + id.String()
}

func (c *BoardCache) Get(ctx context.Context, id uuid.UUID) (*entity.Board, bool) {
	if x, found := c.local.Get(key(id)); found {
		return x.(*entity.Board), true
	}
	if c.rdb == nil {
		return nil, false
	}

	raw, err := c.rdb.Get(ctx, key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("BoardCache", "Redis read failed", map[string]interface{}{"board_id": id, "error": err.Error()})
		}
		return nil, false
	}

	var board entity.Board
	if err := json.Unmarshal(raw, &board); err != nil {
		c.logger.Warn("BoardCache", "Dropping undecodable cache entry", map[string]interface{}{"board_id": id, "error": err.Error()})
		c.rdb.Del(ctx, key(id))
		return nil, false
	}

	c.local.Set(key(id), &board, gocache.DefaultExpiration)
	return &board, true
}

func (c *BoardCache) Set(ctx context.Context, board *entity.Board) {
	if board == nil {
		return
	}
	c.local.Set(key(board.Id), board, gocache.DefaultExpiration)
	if c.rdb == nil {
		return
	}

	data, err := json.Marshal(board)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key(board.Id), data, c.ttl).Err(); err != nil {
		c.logger.Warn("BoardCache", "Redis write failed", map[string]interface{}{"board_id": board.Id, "error": err.Error()})
	}
}

func (c *BoardCache) Invalidate(ctx context.Context, id uuid.UUID) {
	c.local.Delete(key(id))
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, key(id)).Err(); err != nil {
		c.logger.Warn("BoardCache", "Redis invalidate failed", map[string]interface{}{"board_id": id, "error": err.Error()})
	}
}
