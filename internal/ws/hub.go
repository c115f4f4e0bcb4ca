package ws

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"realtime-chat/internal/models"
	"realtime-chat/internal/observability"
)

// Hub tracks connected clients and the room each one listens to. Sends
// never block: a client whose buffer is full loses the frame.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]struct{}
	roomOf  map[string]string
	logger  *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]struct{}),
		roomOf:  make(map[string]string),
		logger:  logger,
	}
}

// Register adds a connected client. It receives direct sends and global
// broadcasts until it subscribes to a room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

// Unregister drops the client and closes its send buffer.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	delete(h.clients, connID)
	h.leaveLocked(connID)
	h.mu.Unlock()
	if ok {
		c.closeSend()
	}
}

// Subscribe moves connID to roomID, leaving any previous room.
func (h *Hub) Subscribe(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[connID]; !ok {
		return
	}
	h.leaveLocked(connID)
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[string]struct{})
	}
	h.rooms[roomID][connID] = struct{}{}
	h.roomOf[connID] = roomID
}

func (h *Hub) Unsubscribe(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(connID)
}

func (h *Hub) leaveLocked(connID string) {
	room, ok := h.roomOf[connID]
	if !ok {
		return
	}
	delete(h.roomOf, connID)
	if members, ok := h.rooms[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// SendTo delivers event to one connection. Unknown ids are ignored.
func (h *Hub) SendTo(connID string, event models.Event) {
	payload, ok := h.encode(event)
	if !ok {
		return
	}
	h.mu.RLock()
	c := h.clients[connID]
	h.mu.RUnlock()
	if c == nil {
		return
	}
	h.deliver(c, event.Type, payload)
	observability.AddFanout("direct", 1)
}

// BroadcastRoom delivers event to every connection subscribed to roomID.
func (h *Hub) BroadcastRoom(roomID string, event models.Event) {
	payload, ok := h.encode(event)
	if !ok {
		return
	}
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[roomID]))
	for id := range h.rooms[roomID] {
		if c := h.clients[id]; c != nil {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range targets {
		h.deliver(c, event.Type, payload)
	}
	observability.AddFanout("room", len(targets))
}

// BroadcastAll delivers event to every connected client.
func (h *Hub) BroadcastAll(event models.Event) {
	payload, ok := h.encode(event)
	if !ok {
		return
	}
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	for _, c := range targets {
		h.deliver(c, event.Type, payload)
	}
	observability.AddFanout("global", len(targets))
}

// RoomOf reports the room connID is subscribed to.
func (h *Hub) RoomOf(connID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.roomOf[connID]
	return room, ok
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll closes every client's send buffer so write pumps finish with a
// close frame. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]struct{})
	h.roomOf = make(map[string]string)
	h.mu.Unlock()
	for _, c := range clients {
		c.closeSend()
	}
}

func (h *Hub) encode(event models.Event) ([]byte, bool) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("encode event", zap.String("event", event.Type), zap.Error(err))
		return nil, false
	}
	return payload, true
}

func (h *Hub) deliver(c *Client, eventType string, payload []byte) {
	if c.trySend(payload) {
		return
	}
	observability.IncDroppedFrame()
	h.logger.Warn("dropped frame", zap.String("connection_id", c.id), zap.String("event", eventType))
	h.publishWSError(c, "send buffer full")
}

func (h *Hub) publishWSError(c *Client, reason string) {
	observability.IncWSEvent("ws_error")
	headers := observability.BuildHeaders(c.info.RequestID, c.info.TraceID)
	_ = observability.PublishEvent(context.Background(), observability.WSRoutingKey,
		observability.WSEvent("ws_error", c.info.identity(""), reason), headers)
}
