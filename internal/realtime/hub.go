// Package realtime maintains the websocket push channel. Clients emit
// subscribe_<topic> events; after every successful write the server pushes
// <topic>_update frames carrying the full updated collection, not a diff.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Topics the hub recognizes. Each maps to subscribe_<topic> and
// <topic>_update events.
const (
	TopicPolicies     = "policies"
	TopicComplaints   = "complaints"
	TopicProposals    = "proposals"
	TopicTransactions = "transactions"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Demo deployment serves arbitrary dashboard origins.
		return true
	},
}

// envelope is the wire frame in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client is one connected dashboard.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	mu     sync.RWMutex
	topics map[string]bool
}

func (c *Client) subscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topics[topic]
}

// Hub maintains the set of active connections and broadcasts updates.
type Hub struct {
	logger *zap.Logger
	redis  *redis.Client

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a hub. rdb may be nil; when set, updates also fan out
// through redis so multiple server instances push consistently.
func NewHub(rdb *redis.Client, logger *zap.Logger) *Hub {
	return &Hub{
		logger:     logger.Named("realtime"),
		redis:      rdb,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run processes connection churn until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client connected", zap.String("client_id", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client disconnected", zap.String("client_id", client.id))
		}
	}
}

// HandleWebSocket upgrades a request into a hub connection.
func (h *Hub) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to upgrade connection"})
		return
	}

	client := &Client{
		id:     uuid.NewString(),
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		topics: make(map[string]bool),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// Publish pushes a <topic>_update event with the full collection to every
// subscriber, and through redis when fanout is configured.
func (h *Hub) Publish(topic string, collection any) {
	data, err := json.Marshal(collection)
	if err != nil {
		h.logger.Warn("failed to marshal update", zap.String("topic", topic), zap.Error(err))
		return
	}
	frame, err := json.Marshal(envelope{Event: topic + "_update", Data: data})
	if err != nil {
		h.logger.Warn("failed to marshal frame", zap.String("topic", topic), zap.Error(err))
		return
	}

	h.deliver(topic, frame)

	if h.redis != nil {
		channel := "realtime:" + topic
		if err := h.redis.Publish(context.Background(), channel, frame).Err(); err != nil {
			h.logger.Warn("redis publish failed", zap.String("channel", channel), zap.Error(err))
		}
	}
}

// deliver writes a frame to the clients subscribed to topic.
func (h *Hub) deliver(topic string, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if !client.subscribed(topic) {
			continue
		}
		select {
		case client.send <- frame:
		default:
			// Slow consumer; drop the frame rather than block the hub.
			h.logger.Debug("dropping frame for slow client", zap.String("client_id", client.id))
		}
	}
}

// SubscribeToRedis relays frames published by other instances to local
// clients. Runs until ctx is done; no-op when redis is not configured.
func (h *Hub) SubscribeToRedis(ctx context.Context) {
	if h.redis == nil {
		return
	}
	pubsub := h.redis.PSubscribe(ctx, "realtime:*")
	defer pubsub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			topic := strings.TrimPrefix(msg.Channel, "realtime:")
			h.deliver(topic, []byte(msg.Payload))
		}
	}
}

// ConnectedClients returns the number of active connections.
func (h *Hub) ConnectedClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump consumes subscribe/unsubscribe events from the connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(message, &env); err != nil {
			continue
		}
		c.handleEvent(env.Event)
	}
}

// handleEvent interprets subscribe_<topic> / unsubscribe_<topic> emits.
func (c *Client) handleEvent(event string) {
	var topic string
	var subscribe bool
	switch {
	case strings.HasPrefix(event, "subscribe_"):
		topic = strings.TrimPrefix(event, "subscribe_")
		subscribe = true
	case strings.HasPrefix(event, "unsubscribe_"):
		topic = strings.TrimPrefix(event, "unsubscribe_")
	default:
		return
	}

	switch topic {
	case TopicPolicies, TopicComplaints, TopicProposals, TopicTransactions:
	default:
		c.hub.logger.Debug("ignoring unknown topic", zap.String("event", event))
		return
	}

	c.mu.Lock()
	if subscribe {
		c.topics[topic] = true
	} else {
		delete(c.topics, topic)
	}
	c.mu.Unlock()

	ack, _ := json.Marshal(envelope{Event: "subscription_ack", Data: json.RawMessage(fmt.Sprintf("%q", event))})
	select {
	case c.send <- ack:
	default:
	}
}

// writePump writes queued frames and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
