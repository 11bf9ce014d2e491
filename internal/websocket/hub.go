package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"letscollab-be/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
)

// Dispatcher receives everything the hub does not handle itself.
type Dispatcher interface {
	HandleFrame(c *Client, frame []byte)
	HandleDisconnect(c *Client)
	HandleClusterFrame(documentID, originConnectionID string, frame []byte)
}

// Options tune a Hub. Zero values fall back to defaults.
type Options struct {
	InstanceID      string
	ClusterChannel  string
	SendBuffer      int
	MaxMessageBytes int64
}

type clusterEnvelope struct {
	InstanceID         string          `json:"instance_id"`
	DocumentID         string          `json:"document_id"`
	OriginConnectionID string          `json:"origin_connection_id"`
	Message            json.RawMessage `json:"message"`
}

type Hub struct {
	// Registered clients by connection id.
	clients map[string]*Client
	stopped bool

	mu sync.RWMutex

	// Redis connection for cross-instance relay. Nil runs single instance.
	rdb *redis.Client

	instanceID      string
	clusterChannel  string
	sendBuffer      int
	maxMessageBytes int64

	dispatcher Dispatcher
	ready      chan struct{}

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, opts Options, log logger.ILogger) *Hub {
	if opts.ClusterChannel == "" {
		opts.ClusterChannel = "collab_cluster_events"
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = 10 * 1024 * 1024
	}
	return &Hub{
		clients:         make(map[string]*Client),
		rdb:             rdb,
		instanceID:      opts.InstanceID,
		clusterChannel:  opts.ClusterChannel,
		sendBuffer:      opts.SendBuffer,
		maxMessageBytes: opts.MaxMessageBytes,
		ready:           make(chan struct{}),
		logger:          log,
	}
}

// Run installs the dispatcher and relays cluster traffic until ctx ends. Then
// it refuses new clients and closes every open socket, which sends each one
// through the normal disconnect path. Clients wait for Ready before
// registering, so the dispatcher is always set by the time a pump uses it.
func (h *Hub) Run(ctx context.Context, dispatcher Dispatcher) {
	h.dispatcher = dispatcher
	close(h.ready)

	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	<-ctx.Done()

	h.mu.Lock()
	h.stopped = true
	for _, client := range h.clients {
		client.kick(websocket.CloseGoingAway, "server shutting down")
	}
	open := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("Hub", "Stopped", map[string]interface{}{"closing_connections": open})
}

// add registers a client so it can receive frames as soon as this returns.
// It fails once the hub has stopped.
func (h *Hub) add(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	h.clients[client.ID] = client
	h.logger.Info("Hub", "Client registered", map[string]interface{}{"connection_id": client.ID, "user_id": client.UserID})
	return true
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
	h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"connection_id": client.ID, "user_id": client.UserID})
}

// Ready is closed once Run has started.
func (h *Hub) Ready() <-chan struct{} {
	return h.ready
}

// Deliver queues a frame for each listed connection. A connection whose
// buffer is full is kicked rather than waited on.
func (h *Hub) Deliver(connectionIDs []string, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, id := range connectionIDs {
		client, ok := h.clients[id]
		if !ok {
			continue
		}
		select {
		case client.Send <- frame:
		default:
			h.logger.Warn("Hub", "Client Send buffer full, dropping connection", map[string]interface{}{"connection_id": id, "user_id": client.UserID})
			client.kick(websocket.ClosePolicyViolation, "send buffer overflow")
		}
	}
}

// PublishCluster forwards a relayed frame to the other instances.
func (h *Hub) PublishCluster(ctx context.Context, documentID, originConnectionID string, frame []byte) {
	if h.rdb == nil {
		return
	}
	payload, err := json.Marshal(clusterEnvelope{
		InstanceID:         h.instanceID,
		DocumentID:         documentID,
		OriginConnectionID: originConnectionID,
		Message:            frame,
	})
	if err != nil {
		return
	}
	if err := h.rdb.Publish(ctx, h.clusterChannel, payload).Err(); err != nil {
		h.logger.Warn("Hub", "Cluster publish failed", map[string]interface{}{"document_id": documentID, "error": err.Error()})
	}
}

// ClientCount is the number of live connections on this instance.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, h.clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		h.handleClusterPayload([]byte(msg.Payload))
	}
}

func (h *Hub) handleClusterPayload(payload []byte) {
	var env clusterEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		h.logger.Warn("Hub", "Cluster message parse error", map[string]interface{}{"error": err.Error()})
		return
	}
	// Our own frames were already delivered locally.
	if env.InstanceID == h.instanceID {
		return
	}
	h.dispatcher.HandleClusterFrame(env.DocumentID, env.OriginConnectionID, env.Message)
}
