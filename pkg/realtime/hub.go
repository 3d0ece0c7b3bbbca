// Package realtime keeps the registry of connected schedule viewers and relays
// bus messages to them over websockets.
package realtime

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/oncall-board-api/pkg/pubsub"
)

// HubConfig tunes connection handling.
type HubConfig struct {
	AllowedOrigins []string
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	SendBuffer     int
	Logger         *zap.Logger
	// OnConnectionChange is invoked with the current connection count of a topic.
	OnConnectionChange func(topic string, connections int)
}

// Hub owns every live viewer connection. Nothing else holds a reference to them.
type Hub struct {
	bus          pubsub.Bus
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	writeTimeout time.Duration
	sendBuffer   int
	logger       *zap.Logger
	onChange     func(topic string, connections int)

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

type client struct {
	topic string
	conn  *websocket.Conn
	send  chan []byte
}

// NewHub builds a hub relaying messages from bus.
func NewHub(bus pubsub.Bus, cfg HubConfig) *Hub {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 8
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	h := &Hub{
		bus:          bus,
		pingInterval: cfg.PingInterval,
		writeTimeout: cfg.WriteTimeout,
		sendBuffer:   cfg.SendBuffer,
		logger:       cfg.Logger,
		onChange:     cfg.OnConnectionChange,
		clients:      make(map[string]map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

// Run relays bus messages for topics to connected viewers until ctx is done.
func (h *Hub) Run(ctx context.Context, topics ...string) error {
	messages, err := h.bus.Subscribe(ctx, topics...)
	if err != nil {
		return err
	}
	h.logger.Info("realtime hub started", zap.Strings("topics", topics))
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.logger.Info("realtime hub stopped")
			return nil
		case msg, ok := <-messages:
			if !ok {
				h.closeAll()
				return pubsub.ErrClosed
			}
			h.Broadcast(msg.Channel, msg.Payload)
		}
	}
}

// Broadcast writes payload to every viewer of topic. Viewers whose send buffer is
// full are disconnected; they recover by re-fetching on reconnect.
func (h *Hub) Broadcast(topic string, payload []byte) int {
	var slow []*client
	delivered := 0

	h.mu.RLock()
	for c := range h.clients[topic] {
		select {
		case c.send <- payload:
			delivered++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("disconnecting slow viewer", zap.String("topic", topic))
		h.unregister(c)
	}
	return delivered
}

// Connections reports the number of viewers attached to topic.
func (h *Hub) Connections(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// Serve upgrades the request and blocks until the viewer disconnects.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, topic string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{topic: topic, conn: conn, send: make(chan []byte, h.sendBuffer)}
	h.register(c)

	go h.writePump(c)
	h.readPump(c)
	return nil
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	if h.clients[c.topic] == nil {
		h.clients[c.topic] = make(map[*client]struct{})
	}
	h.clients[c.topic][c] = struct{}{}
	count := len(h.clients[c.topic])
	h.mu.Unlock()

	h.logger.Debug("viewer connected", zap.String("topic", c.topic), zap.Int("connections", count))
	h.notifyChange(c.topic, count)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	viewers, ok := h.clients[c.topic]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := viewers[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(viewers, c)
	close(c.send)
	count := len(viewers)
	if count == 0 {
		delete(h.clients, c.topic)
	}
	h.mu.Unlock()

	h.logger.Debug("viewer disconnected", zap.String("topic", c.topic), zap.Int("connections", count))
	h.notifyChange(c.topic, count)
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	var all []*client
	for _, viewers := range h.clients {
		for c := range viewers {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range all {
		h.unregister(c)
	}
}

func (h *Hub) notifyChange(topic string, count int) {
	if h.onChange != nil {
		h.onChange(topic, count)
	}
}

// readPump drains client frames so control messages (pong, close) are processed.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	pongWait := h.pingInterval * 2
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("viewer read failed", zap.String("topic", c.topic), zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					h.logger.Debug("viewer write failed", zap.String("topic", c.topic), zap.Error(err))
				}
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[strings.TrimRight(origin, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}
