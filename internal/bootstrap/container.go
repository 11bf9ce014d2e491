package bootstrap

import (
	"context"

	"letscollab-be/internal/config"
	"letscollab-be/internal/controller"
	"letscollab-be/internal/handler"
	"letscollab-be/internal/pkg/logger"
	"letscollab-be/internal/presence"
	"letscollab-be/internal/repository/cache"
	"letscollab-be/internal/repository/unitofwork"
	"letscollab-be/internal/service"
	"letscollab-be/internal/websocket"
	"letscollab-be/pkg/activity"
	pktNats "letscollab-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const boardChangedTopic = "board.changed"

type Container struct {
	// Controllers
	BoardController controller.IBoardController

	// Realtime
	CollabHandler *handler.CollabHandler
	WebSocketHub  *websocket.Hub
	Presence      *presence.Registry

	// Background Services (started by Start)
	ConsumerService service.IConsumerService
	CacheSync       *service.CacheSyncService // nil without NATS

	InstanceID string
	Logger     logger.ILogger

	closers []func()
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	instanceID := cfg.Collab.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction()).With("instance_id", instanceID)
	collabLogger := logger.NewIsolatedLogger(cfg.Collab.LogFilePath).With("instance_id", instanceID)

	c := &Container{InstanceID: instanceID, Logger: sysLogger}

	// 2. Event Bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		logger.NewWatermillAdapter(sysLogger),
	)
	c.closers = append(c.closers, func() { pubSub.Close() })

	// 3. Infrastructure
	// NATS
	var activitySink activity.Sink
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		sysLogger.Warn("BOOTSTRAP", "NATS publisher unavailable, activity events disabled", map[string]interface{}{"error": err.Error()})
	} else {
		activitySink = natsPub
		c.closers = append(c.closers, natsPub.Close)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		sysLogger.Warn("BOOTSTRAP", "NATS subscriber unavailable, cache sync disabled", map[string]interface{}{"error": err.Error()})
	} else {
		c.closers = append(c.closers, natsSub.Close)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		sysLogger.Warn("BOOTSTRAP", "Redis URL not parseable, using it as an address", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		sysLogger.Warn("BOOTSTRAP", "Redis unavailable, running single instance without shared cache", map[string]interface{}{"error": err.Error()})
		rdb.Close()
		rdb = nil
	} else {
		c.closers = append(c.closers, func() { rdb.Close() })
	}

	// 4. Services
	boardCache := cache.NewBoardCache(rdb, cfg.App.BoardCacheTTL, sysLogger)
	activityPublisher := activity.NewNatsPublisher(activitySink, sysLogger)
	publisherService := service.NewPublisherService(boardChangedTopic, pubSub)
	boardService := service.NewBoardService(uowFactory, boardCache, publisherService, sysLogger)

	c.ConsumerService = service.NewConsumerService(pubSub, boardChangedTopic, activityPublisher, sysLogger)
	if natsSub != nil {
		c.CacheSync = service.NewCacheSyncService(natsSub, boardCache, instanceID, sysLogger)
	}

	// 5. Realtime
	wsHub := websocket.NewHub(rdb, websocket.Options{
		InstanceID:      instanceID,
		ClusterChannel:  cfg.Collab.ClusterChannel,
		SendBuffer:      cfg.Collab.SendBuffer,
		MaxMessageBytes: cfg.Collab.MaxMessageBytes,
	}, collabLogger)

	var cluster service.ClusterPublisher
	if rdb != nil {
		cluster = wsHub
	}
	registry := presence.NewRegistry()
	rooms := service.NewRoomService(registry, boardService, wsHub, activityPublisher, collabLogger)
	relay := service.NewRelayService(rooms, wsHub, cluster, collabLogger)

	c.WebSocketHub = wsHub
	c.Presence = registry
	c.CollabHandler = handler.NewCollabHandler(rooms, relay, wsHub, cfg.Auth.JwtSecret, collabLogger)
	c.BoardController = controller.NewBoardController(boardService)

	c.closers = append(c.closers, func() {
		collabLogger.Sync()
		sysLogger.Sync()
	})

	return c
}

// Start runs the hub and background consumers until ctx ends.
func (c *Container) Start(ctx context.Context) error {
	go c.WebSocketHub.Run(ctx, c.CollabHandler)
	<-c.WebSocketHub.Ready()

	if err := c.ConsumerService.Consume(ctx); err != nil {
		return err
	}
	if c.CacheSync != nil {
		if err := c.CacheSync.Start(); err != nil {
			c.Logger.Warn("BOOTSTRAP", "Cache sync disabled", map[string]interface{}{"error": err.Error()})
		}
	}

	c.Logger.Info("BOOTSTRAP", "Background services started", map[string]interface{}{"instance_id": c.InstanceID})
	return nil
}

// Close releases connections in reverse order of acquisition.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}
