package chat

import (
	"sync"

	"github.com/jwalitptl/neuroscan-api/pkg/metrics"
)

// Hub tracks which sessions have joined which rooms on this instance.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Session]struct{}
	sessions map[*Session]map[string]struct{}
	metrics  *metrics.Metrics
}

func NewHub(m *metrics.Metrics) *Hub {
	if m == nil {
		m = metrics.NewNop()
	}
	return &Hub{
		rooms:    make(map[string]map[*Session]struct{}),
		sessions: make(map[*Session]map[string]struct{}),
		metrics:  m,
	}
}

// Register adds a connected session. It must precede Join.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s]; ok {
		return
	}
	h.sessions[s] = make(map[string]struct{})
	h.metrics.ChatConnections.Inc()
}

// Unregister drops the session from every room and closes its send buffer.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	joined, ok := h.sessions[s]
	if !ok {
		return
	}
	for room := range joined {
		h.remove(room, s)
	}
	delete(h.sessions, s)
	close(s.send)
	h.metrics.ChatConnections.Dec()
}

func (h *Hub) Join(s *Session, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	joined, ok := h.sessions[s]
	if !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Session]struct{})
	}
	h.rooms[room][s] = struct{}{}
	joined[room] = struct{}{}
}

// Leave is a no-op when the session is not in the room.
func (h *Hub) Leave(s *Session, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if joined, ok := h.sessions[s]; ok {
		delete(joined, room)
	}
	h.remove(room, s)
}

func (h *Hub) remove(room string, s *Session) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, s)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Deliver queues frame on every session in room without blocking. Sessions
// with a full buffer miss the frame.
func (h *Hub) Deliver(room string, frame []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for s := range h.rooms[room] {
		select {
		case s.send <- frame:
			delivered++
		default:
			h.metrics.ChatDroppedFrames.Inc()
		}
	}
	return delivered
}

func (h *Hub) Joined(s *Session, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.sessions[s][room]
	return ok
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
