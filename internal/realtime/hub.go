package realtime

import (
	"sync"

	"go.uber.org/zap"
)

// Per-subscriber channel buffer. A subscriber that falls this far behind is
// dropped; delivery is best-effort and history is always recoverable from
// the durable message list.
const subscriberBuffer = 16

// Subscription is one connected viewer of a ticket room. Payloads arrive on
// C until Unsubscribe closes it.
type Subscription struct {
	room string
	C    chan []byte
}

// Hub tracks live subscriptions per room. A room is scoped to one ticket
// number; the hub holds no backlog and performs no replay, so a connection
// joined after a publish simply misses it.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Subscription]struct{}
	logger *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Subscription]struct{}),
		logger: logger,
	}
}

// Subscribe joins a new subscription to the room.
func (h *Hub) Subscribe(room string) *Subscription {
	sub := &Subscription{
		room: room,
		C:    make(chan []byte, subscriberBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.rooms[room]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.rooms[room] = subs
	}
	subs[sub] = struct{}{}
	return sub
}

// Unsubscribe removes the subscription and closes its channel. Safe to call
// once per subscription.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.rooms[sub.room]
	if !ok {
		return
	}
	if _, joined := subs[sub]; !joined {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.rooms, sub.room)
	}
	close(sub.C)
}

// Broadcast delivers the payload to every current subscriber of the room.
// Sends never block: a subscriber with a full buffer misses the payload.
func (h *Hub) Broadcast(room string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.rooms[room] {
		select {
		case sub.C <- payload:
		default:
			h.logger.Warn("dropping payload for slow subscriber", zap.String("room", room))
		}
	}
}

// SubscriberCount reports how many connections are joined to the room.
func (h *Hub) SubscriberCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
