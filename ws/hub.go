package ws

import (
	"sync"

	"github.com/esc4n0rx/streamhive/globals"
	"github.com/esc4n0rx/streamhive/types"
)

// Hub tracks the live connections of one room. Broadcasting takes a snapshot
// of the client set under a read lock and sends outside of it, so a slow
// client never blocks the room.
type Hub struct {
	roomId  string
	channel string

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func newHub(roomId string) *Hub {
	return &Hub{
		roomId:  roomId,
		channel: types.ChannelName(roomId),
		clients: make(map[*Client]struct{}),
	}
}

// Channel returns the internal addressing channel of the room.
func (h *Hub) Channel() string {
	return h.channel
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

func (h *Hub) size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

// BroadcastEvent delivers an event to every connection in the room, except
// exclude (may be nil). Delivery is best effort per client.
func (h *Hub) BroadcastEvent(event string, payload interface{}, exclude *Client) {
	for _, c := range h.snapshot() {
		if c == exclude {
			continue
		}
		c.SendEvent(event, payload)
	}
}

// OnlineUsers returns the public view of every user currently connected to
// the room.
func (h *Hub) OnlineUsers() []map[string]interface{} {
	clients := h.snapshot()
	users := make([]map[string]interface{}, 0, len(clients))
	seen := make(map[string]struct{}, len(clients))
	for _, c := range clients {
		if _, ok := seen[c.user.Id]; ok {
			continue
		}
		seen[c.user.Id] = struct{}{}
		users = append(users, c.user.Public())
	}
	return users
}

// Registry maps room ids to their hubs. Hubs are created on first join and
// dropped once the last connection leaves.
type Registry struct {
	mu   sync.Mutex
	hubs map[string]*Hub
}

func NewRegistry() *Registry {
	return &Registry{hubs: make(map[string]*Hub)}
}

func (r *Registry) GetOrCreate(roomId string) *Hub {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hubs[roomId]
	if !ok {
		h = newHub(roomId)
		r.hubs[roomId] = h
		globals.AppLogger.Debug("hub created", "channel", h.Channel())
	}
	return h
}

// Get returns the room's hub, or nil when nobody is connected.
func (r *Registry) Get(roomId string) *Hub {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hubs[roomId]
}

// Size returns the number of rooms with at least one live connection.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hubs)
}

// Connections returns the total number of live connections across all rooms.
func (r *Registry) Connections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, h := range r.hubs {
		total += h.size()
	}
	return total
}

// Release removes a client from a room's hub and drops the hub when it was
// the last connection.
func (r *Registry) Release(roomId string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hubs[roomId]
	if !ok {
		return
	}
	h.remove(c)
	if h.size() == 0 {
		delete(r.hubs, roomId)
	}
}
