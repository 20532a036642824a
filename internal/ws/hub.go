package ws

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"messenger-service/internal/models"
	"messenger-service/internal/observability"
)

// ConnectionIndex resolves a user to the connections that joined as that user.
type ConnectionIndex interface {
	Connections(userID string) []string
}

// Hub keeps live sockets and chat rooms and fans events out to them.
// Pushes are at-most-once: a full send buffer drops the event for that socket.
type Hub struct {
	clients map[string]*Client
	rooms   map[string]map[string]struct{}
	index   ConnectionIndex
	log     logrus.FieldLogger
	mu      sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub(index ConnectionIndex, logger logrus.FieldLogger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]struct{}),
		index:   index,
		log:     logger.WithField("component", "hub"),
	}
}

// Register adds a live socket.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.info.ConnID] = c
}

// Unregister removes the socket from the hub and from every room it joined,
// and closes its send buffer. It reports false for unknown connections.
func (h *Hub) Unregister(connID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connID]
	if !ok {
		return false
	}
	for chatID := range c.rooms {
		h.leaveLocked(connID, chatID)
	}
	delete(h.clients, connID)
	close(c.send)
	return true
}

// JoinRoom subscribes the socket to chat-addressed events.
func (h *Hub) JoinRoom(connID, chatID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connID]
	if !ok {
		return false
	}
	if _, ok := h.rooms[chatID]; !ok {
		h.rooms[chatID] = make(map[string]struct{})
	}
	h.rooms[chatID][connID] = struct{}{}
	c.rooms[chatID] = struct{}{}
	return true
}

// LeaveRoom unsubscribes the socket; leaving a room it never joined is a no-op.
func (h *Hub) LeaveRoom(connID, chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(connID, chatID)
}

func (h *Hub) leaveLocked(connID, chatID string) {
	if c, ok := h.clients[connID]; ok {
		delete(c.rooms, chatID)
	}
	if conns, ok := h.rooms[chatID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(h.rooms, chatID)
		}
	}
}

// RoomSize returns the number of sockets joined to the chat room.
func (h *Hub) RoomSize(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[chatID])
}

// ClientCount returns the number of registered sockets.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ToUser pushes event to every connection of userID.
func (h *Hub) ToUser(userID string, event models.Event) {
	h.deliver(h.index.Connections(userID), event)
}

// ToUsers pushes event to every connection of each listed user.
func (h *Hub) ToUsers(userIDs []string, event models.Event) {
	var conns []string
	for _, id := range userIDs {
		conns = append(conns, h.index.Connections(id)...)
	}
	h.deliver(conns, event)
}

// ToChat pushes event to every connection joined to the chat room.
func (h *Hub) ToChat(chatID string, event models.Event) {
	h.mu.RLock()
	conns := make([]string, 0, len(h.rooms[chatID]))
	for connID := range h.rooms[chatID] {
		conns = append(conns, connID)
	}
	h.mu.RUnlock()
	h.deliver(conns, event)
}

func (h *Hub) deliver(connIDs []string, event models.Event) {
	if len(connIDs) == 0 {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).WithField("event", event.Name).Error("encode event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]struct{}, len(connIDs))
	for _, connID := range connIDs {
		if _, dup := seen[connID]; dup {
			continue
		}
		seen[connID] = struct{}{}
		c, ok := h.clients[connID]
		if !ok {
			continue
		}
		select {
		case c.send <- payload:
		default:
			observability.IncWSDropped(event.Name)
			h.log.WithFields(logrus.Fields{"conn_id": connID, "event": event.Name}).Debug("send buffer full, event dropped")
		}
	}
}
