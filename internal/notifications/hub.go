// Package notifications delivers real-time chat events to websocket clients.
package notifications

import (
	"context"
	"errors"
	"sync"

	"bsuchat/internal/observability"
	"bsuchat/internal/protocol"
	"bsuchat/internal/rooms"
)

const (
	// Maximum concurrent websocket connections per user.
	maxConnsPerUser = 12
	// Maximum total websocket connections on this process.
	maxTotalConns = 10000
)

var (
	ErrTotalConnLimit = errors.New("server connection limit reached")
	ErrUserConnLimit  = errors.New("user connection limit reached")
)

var shutdownNotice = []byte(`{"type":"server_shutdown","payload":{"message":"Server is shutting down"}}`)

// Hub tracks connections and their room subscriptions. Every connection
// listens to at most one room at a time.
type Hub struct {
	mu sync.RWMutex

	clients   map[*Client]struct{}
	userConns map[string]map[*Client]struct{}
	rooms     map[rooms.RoomKey]map[*Client]struct{}
	current   map[*Client]rooms.RoomKey

	log *observability.WSLogger
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*Client]struct{}),
		userConns: make(map[string]map[*Client]struct{}),
		rooms:     make(map[rooms.RoomKey]map[*Client]struct{}),
		current:   make(map[*Client]rooms.RoomKey),
		log:       observability.NewWSLogger("chat hub"),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "chat hub" }

// Add registers an unauthenticated connection.
func (h *Hub) Add(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.clients) >= maxTotalConns {
		return ErrTotalConnLimit
	}
	c.Hub = h
	h.clients[c] = struct{}{}
	observability.WebSocketConnectionsTotal.Inc()
	return nil
}

// BindUser attaches an authenticated user to a connection.
func (h *Hub) BindUser(c *Client, userID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return errors.New("client not registered")
	}
	if c.UserID == userID {
		return nil
	}
	set := h.userConns[userID]
	if len(set) >= maxConnsPerUser {
		return ErrUserConnLimit
	}
	if c.UserID != "" {
		h.dropUserConnLocked(c)
	}
	if set == nil {
		set = make(map[*Client]struct{})
		h.userConns[userID] = set
	}
	set[c] = struct{}{}
	c.UserID = userID
	return nil
}

// Subscribe moves c into the room: it leaves its previous room, if any.
func (h *Hub) Subscribe(c *Client, key rooms.RoomKey) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	h.leaveLocked(c)
	members := h.rooms[key]
	if members == nil {
		members = make(map[*Client]struct{})
		h.rooms[key] = members
	}
	members[c] = struct{}{}
	h.current[c] = key
}

// Unsubscribe removes c from its current room.
func (h *Hub) Unsubscribe(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c)
}

func (h *Hub) leaveLocked(c *Client) {
	key, ok := h.current[c]
	if !ok {
		return
	}
	delete(h.current, c)
	if members, ok := h.rooms[key]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, key)
		}
	}
}

func (h *Hub) dropUserConnLocked(c *Client) {
	if set, ok := h.userConns[c.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.userConns, c.UserID)
		}
	}
}

// CurrentRoom returns the room c listens to.
func (h *Hub) CurrentRoom(c *Client) (rooms.RoomKey, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	key, ok := h.current[c]
	return key, ok
}

// Publish sends ev to every connection in the room whose user is not
// skipped, and returns how many connections received it.
func (h *Hub) Publish(key rooms.RoomKey, ev protocol.Event, skip func(userID string) bool) int {
	raw, err := ev.Marshal()
	if err != nil {
		h.log.LogError(context.Background(), "", key.String(), err, ev.Type)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for c := range h.rooms[key] {
		if skip != nil && skip(c.UserID) {
			continue
		}
		c.TrySend(raw)
		sent++
	}
	return sent
}

// Broadcast sends ev to every connection, subscribed or not.
func (h *Hub) Broadcast(ev protocol.Event) {
	raw, err := ev.Marshal()
	if err != nil {
		h.log.LogError(context.Background(), "", "", err, ev.Type)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.TrySend(raw)
	}
}

// UnregisterClient removes a connection and all its subscriptions and
// stops its write pump.
func (h *Hub) UnregisterClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	room := ""
	if key, ok := h.current[c]; ok {
		room = key.String()
	}
	h.leaveLocked(c)
	h.dropUserConnLocked(c)
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()

	observability.WebSocketConnectionsTotal.Dec()
	h.log.LogDisconnect(c.Context(), c.UserID, room, "unregistered")
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomMembers returns the user ids listening to a room, one per connection.
func (h *Hub) RoomMembers(key rooms.RoomKey) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.rooms[key]))
	for c := range h.rooms[key] {
		out = append(out, c.UserID)
	}
	return out
}

// Shutdown notifies every connection and closes its write pump.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		c.TrySend(shutdownNotice)
		c.close()
		observability.WebSocketConnectionsTotal.Dec()
	}
	h.log.LogLifecycle(ctx, "shutdown", map[string]any{"connections": len(h.clients)})

	h.clients = make(map[*Client]struct{})
	h.userConns = make(map[string]map[*Client]struct{})
	h.rooms = make(map[rooms.RoomKey]map[*Client]struct{})
	h.current = make(map[*Client]rooms.RoomKey)
	return nil
}
