package broker

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/parlor/internal/config"
)

// Hub owns every live websocket connection and the room membership sets, and
// implements session.Messenger on top of them. Delivery is best effort:
// sends to unknown or slow connections are dropped silently, per the
// multiplexer contract.
type Hub struct {
	cfg    config.ServerConfig
	logger *zap.Logger

	mu    sync.RWMutex
	conns map[string]*client         // connID → client
	rooms map[string]map[string]bool // room code → set of connIDs

	// OnDisconnect is invoked exactly once per connection after it leaves the
	// hub. Wired to the registry's disconnect cleanup at startup.
	OnDisconnect func(connID string)
}

// NewHub creates an empty Hub.
//
// Precondition: logger must be non-nil.
func NewHub(cfg config.ServerConfig, logger *zap.Logger) *Hub {
	return &Hub{
		cfg:    cfg,
		logger: logger,
		conns:  make(map[string]*client),
		rooms:  make(map[string]map[string]bool),
	}
}

// register admits an upgraded websocket connection under a fresh connection
// identity and returns its client. The caller starts the pumps.
func (h *Hub) register(conn *websocket.Conn) *client {
	c := &client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.cfg.SendBuffer),
	}

	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()

	h.logger.Info("connection registered",
		zap.String("conn", c.id),
		zap.String("remote_addr", conn.RemoteAddr().String()),
	)
	return c
}

// unregister removes the client from the hub and every room it occupies,
// then reports the disconnect upstream.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	current, ok := h.conns[c.id]
	if !ok || current != c {
		h.mu.Unlock()
		return
	}
	delete(h.conns, c.id)
	for roomCode, members := range h.rooms {
		if members[c.id] {
			delete(members, c.id)
			if len(members) == 0 {
				delete(h.rooms, roomCode)
			}
		}
	}
	h.mu.Unlock()

	c.closeSend()

	h.logger.Info("connection unregistered", zap.String("conn", c.id))

	if h.OnDisconnect != nil {
		h.OnDisconnect(c.id)
	}
}

// SendTo delivers an event to a single connection, dropping it silently if
// the connection no longer exists.
func (h *Hub) SendTo(connID, event string, payload any) {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		h.logger.Error("encoding event", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	if !c.enqueue(frame) {
		h.logger.Warn("send buffer full, dropping event",
			zap.String("conn", connID),
			zap.String("event", event),
		)
	}
}

// BroadcastTo delivers an event to every connection in the room, including
// the originator if it is a member.
func (h *Hub) BroadcastTo(roomCode, event string, payload any) {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		h.logger.Error("encoding event", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for connID := range h.rooms[roomCode] {
		if c, ok := h.conns[connID]; ok {
			if !c.enqueue(frame) {
				h.logger.Warn("send buffer full, dropping event",
					zap.String("conn", connID),
					zap.String("event", event),
				)
			}
		}
	}
}

// JoinRoom adds the connection to the room's membership set.
func (h *Hub) JoinRoom(connID, roomCode string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[roomCode] == nil {
		h.rooms[roomCode] = make(map[string]bool)
	}
	h.rooms[roomCode][connID] = true
}

// LeaveRoom removes the connection from the room's membership set.
func (h *Hub) LeaveRoom(connID, roomCode string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[roomCode]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, roomCode)
		}
	}
}

// RoomMembers returns the connection identities currently in the room.
//
// Postcondition: Returns a slice of connIDs (may be empty).
func (h *Hub) RoomMembers(roomCode string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := make([]string, 0, len(h.rooms[roomCode]))
	for connID := range h.rooms[roomCode] {
		members = append(members, connID)
	}
	return members
}

// ConnCount returns the number of live connections.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// closeAll force-closes every connection, used during server shutdown.
func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.conns))
	for _, c := range h.conns {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}
}
