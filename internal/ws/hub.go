package ws

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub tracks which subscribers have joined which rooms. Membership changes
// take the write lock; broadcasts snapshot the room under the read lock and
// deliver outside of it, so a join that returned is visible to every
// broadcast started afterwards.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[Subscriber]struct{}
	members map[Subscriber]map[string]struct{}

	metricsOnce sync.Once
	connected   prometheus.Gauge
	delivered   prometheus.Counter
}

// NewHub creates an initialized Hub.
func NewHub() *Hub {
	h := &Hub{
		rooms:   make(map[string]map[Subscriber]struct{}),
		members: make(map[Subscriber]map[string]struct{}),
	}
	h.initMetrics()
	return h
}

// Connect registers a subscriber without any room membership.
func (h *Hub) Connect(client Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connectLocked(client)
}

func (h *Hub) connectLocked(client Subscriber) map[string]struct{} {
	rooms, ok := h.members[client]
	if !ok {
		rooms = make(map[string]struct{})
		h.members[client] = rooms
		h.connected.Inc()
	}
	return rooms
}

// Join adds client to room. It reports whether the membership is new.
func (h *Hub) Join(client Subscriber, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	rooms := h.connectLocked(client)
	if _, ok := rooms[room]; ok {
		return false
	}
	rooms[room] = struct{}{}
	clients, ok := h.rooms[room]
	if !ok {
		clients = make(map[Subscriber]struct{})
		h.rooms[room] = clients
	}
	clients[client] = struct{}{}
	return true
}

// Leave removes client from a single room.
func (h *Hub) Leave(client Subscriber, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if rooms, ok := h.members[client]; ok {
		delete(rooms, room)
	}
	h.removeFromRoomLocked(client, room)
}

// Disconnect removes client from every room it joined. Other members are
// not notified.
func (h *Hub) Disconnect(client Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rooms, ok := h.members[client]
	if !ok {
		return
	}
	for room := range rooms {
		h.removeFromRoomLocked(client, room)
	}
	delete(h.members, client)
	h.connected.Dec()
}

func (h *Hub) removeFromRoomLocked(client Subscriber, room string) {
	clients, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.rooms, room)
	}
}

// Broadcast hands payload to every member of room and returns how many
// accepted it. Subscribers queue frames instead of writing inline, so a slow
// member of one room cannot delay another room. Members whose send fails,
// including a full queue, are disconnected.
func (h *Hub) Broadcast(room string, payload []byte) int {
	h.mu.RLock()
	clients := make([]Subscriber, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range clients {
		if err := c.Send(payload); err != nil {
			h.Disconnect(c)
			c.Close()
			continue
		}
		delivered++
	}
	h.delivered.Add(float64(delivered))
	return delivered
}

// RoomSize reports the number of members in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Clients reports the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members)
}

func (h *Hub) initMetrics() {
	h.metricsOnce.Do(func() {
		h.connected = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vercel",
			Subsystem: "realtime",
			Name:      "connected_clients",
			Help:      "Number of connected realtime clients",
		})
		h.delivered = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vercel",
			Subsystem: "realtime",
			Name:      "deliveries_total",
			Help:      "Number of frames delivered to realtime clients",
		})
		if err := prometheus.Register(h.connected); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				if existing, ok := already.ExistingCollector.(prometheus.Gauge); ok {
					h.connected = existing
				}
			}
		}
		if err := prometheus.Register(h.delivered); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				if existing, ok := already.ExistingCollector.(prometheus.Counter); ok {
					h.delivered = existing
				}
			}
		}
	})
}
