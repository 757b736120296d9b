package live

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultWriteWait = 10 * time.Second
	defaultPongWait  = 60 * time.Second
	maxMessageSize   = 4096
	sendBufferSize   = 256
)

// HubConfig carries the transport timing knobs. The ping interval must stay
// well under any reverse-proxy idle timeout, and the pong wait must tolerate
// the slow hardware the erg-side readers run on, so neither is hardcoded.
type HubConfig struct {
	WriteWait    time.Duration
	PongWait     time.Duration
	PingInterval time.Duration
}

func (c HubConfig) withDefaults() HubConfig {
	if c.WriteWait <= 0 {
		c.WriteWait = defaultWriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = defaultPongWait
	}
	if c.PingInterval <= 0 {
		c.PingInterval = (c.PongWait * 9) / 10
	}
	return c
}

// Client is one live websocket connection, viewer or telemetry source.
type Client struct {
	ID       string
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte
	IsClosed bool
	Mu       sync.Mutex
}

// Hub is the connection registry: it tracks every live socket, the rooms
// viewers have joined, and the pool of authenticated telemetry sources.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client
	sources map[string]*Client

	cfg     HubConfig
	logger  *slog.Logger
	metrics *Metrics

	// OnDisconnect is invoked after a connection is unregistered, with
	// wasSource reporting whether it was in the telemetry pool.
	OnDisconnect func(connectionID string, wasSource bool)
}

func NewHub(cfg HubConfig, logger *slog.Logger, metrics *Metrics) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		sources: make(map[string]*Client),
		cfg:     cfg.withDefaults(),
		logger:  logger,
		metrics: metrics,
	}
}

// Register books a new connection and returns its client record.
func (h *Hub) Register(conn *websocket.Conn) *Client {
	client := &Client{
		ID:   uuid.NewString(),
		Hub:  h,
		Conn: conn,
		Send: make(chan []byte, sendBufferSize),
	}
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	h.metrics.ConnectionsActive.Inc()
	h.logger.Debug("connection registered", slog.String("connection_id", client.ID))
	return client
}

// Unregister drops a connection from the registry, all rooms and the source
// pool, then fires OnDisconnect so the binding protocol can react.
func (h *Hub) Unregister(connectionID string) {
	h.mu.Lock()
	client, ok := h.clients[connectionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, connectionID)
	_, wasSource := h.sources[connectionID]
	delete(h.sources, connectionID)
	for roomID, members := range h.rooms {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.mu.Unlock()

	client.Mu.Lock()
	if !client.IsClosed {
		close(client.Send)
		client.IsClosed = true
	}
	client.Mu.Unlock()

	h.metrics.ConnectionsActive.Dec()
	if wasSource {
		h.metrics.TelemetrySources.Dec()
	}
	h.logger.Debug("connection unregistered",
		slog.String("connection_id", connectionID),
		slog.Bool("was_source", wasSource))

	if h.OnDisconnect != nil {
		h.OnDisconnect(connectionID, wasSource)
	}
}

// ClassifyAsSource moves an already-registered connection into the telemetry
// pool. Secret validation happens in the binding protocol before this call.
func (h *Hub) ClassifyAsSource(connectionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	client, ok := h.clients[connectionID]
	if !ok {
		return false
	}
	if _, already := h.sources[connectionID]; already {
		return true
	}
	h.sources[connectionID] = client
	h.metrics.TelemetrySources.Inc()
	return true
}

// IsLive reports whether the connection id still maps to a registered socket.
func (h *Hub) IsLive(connectionID string) bool {
	if connectionID == "" {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[connectionID]
	return ok
}

// JoinRoom is idempotent; joining a room that does not exist yet creates it.
func (h *Hub) JoinRoom(connectionID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client, ok := h.clients[connectionID]
	if !ok {
		return
	}
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][connectionID] = client
}

func (h *Hub) LeaveRoom(connectionID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connectionID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// SendToConnection queues a message for a single connection. Returns false
// if the connection is gone.
func (h *Hub) SendToConnection(connectionID string, env Envelope) bool {
	h.mu.RLock()
	client, ok := h.clients[connectionID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	h.deliver(client, h.encode(env))
	return true
}

// BroadcastToRoom fans a message out to every member of a room.
func (h *Hub) BroadcastToRoom(roomID string, env Envelope) {
	data := h.encode(env)

	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[roomID]))
	for _, client := range h.rooms[roomID] {
		members = append(members, client)
	}
	h.mu.RUnlock()

	for _, client := range members {
		h.deliver(client, data)
	}
	h.metrics.BroadcastsTotal.Inc()
}

// BroadcastToSources sends to the whole telemetry pool; used for control
// commands when no single connection is bound to the target session.
func (h *Hub) BroadcastToSources(env Envelope) {
	data := h.encode(env)

	h.mu.RLock()
	pool := make([]*Client, 0, len(h.sources))
	for _, client := range h.sources {
		pool = append(pool, client)
	}
	h.mu.RUnlock()

	for _, client := range pool {
		h.deliver(client, data)
	}
}

// CloseConnection forcibly tears a socket down, e.g. on a failed secret.
func (h *Hub) CloseConnection(connectionID string) {
	h.mu.RLock()
	client, ok := h.clients[connectionID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if client.Conn != nil {
		_ = client.Conn.Close()
	}
	h.Unregister(connectionID)
}

func (h *Hub) deliver(client *Client, data []byte) {
	client.Mu.Lock()
	defer client.Mu.Unlock()
	if client.IsClosed {
		return
	}
	select {
	case client.Send <- data:
	default:
		// Slow consumer: drop rather than stall the whole room.
		h.logger.Warn("send buffer full, dropping message",
			slog.String("connection_id", client.ID))
	}
}

func (h *Hub) encode(env Envelope) []byte {
	data, err := json.Marshal(env)
	if err != nil {
		// Payloads are already-encoded RawMessage, so this only trips on a
		// frame built from invalid bytes.
		h.logger.Error("failed to encode outbound frame",
			slog.String("type", env.Type), slog.Any("error", err))
		return []byte(`{"type":"error"}`)
	}
	return data
}

// ReadPump reads frames off the socket and hands them to onMessage until the
// connection drops. Runs as one goroutine per connection, which is what
// guarantees per-connection receipt ordering.
func (c *Client) ReadPump(onMessage func(*Client, []byte)) {
	defer func() {
		c.Hub.Unregister(c.ID)
		_ = c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(c.Hub.cfg.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(c.Hub.cfg.PongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("unexpected close",
					slog.String("connection_id", c.ID), slog.Any("error", err))
			}
			break
		}
		onMessage(c, message)
	}
}

// WritePump drains the send channel onto the socket and keeps the connection
// alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.Hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.cfg.WriteWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.cfg.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
