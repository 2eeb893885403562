// Package ws carries the live status channel: a hub of per-tenant rooms fed
// by the status broadcast bridge, and the WebSocket endpoint that pumps a
// room's messages to a connected session.
package ws

import (
	"log/slog"
	"sync"
)

// Subscription is one session's membership in its tenant's room. Messages
// arrive on C until Leave; the channel is buffered and a subscriber that
// falls too far behind is dropped rather than allowed to stall the bridge.
type Subscription struct {
	C        chan any
	tenantID string
}

// Hub maintains the set of active subscriptions grouped by tenant. Every
// tenant session gets an independent subscription, so the event stream is
// fanned out, never consumed exclusively by one session.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Subscription]bool
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Subscription]bool),
		logger: logger,
	}
}

// Join adds a subscription to the tenant's room.
func (h *Hub) Join(tenantID string) *Subscription {
	sub := &Subscription{
		C:        make(chan any, 16),
		tenantID: tenantID,
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[tenantID] == nil {
		h.rooms[tenantID] = make(map[*Subscription]bool)
	}
	h.rooms[tenantID][sub] = true
	return sub
}

// Leave tears the subscription down. It is safe to call once the owning
// connection has closed; the channel is closed here so the write pump ends.
func (h *Hub) Leave(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(sub)
}

// drop removes and closes sub. Callers hold h.mu.
func (h *Hub) drop(sub *Subscription) {
	room, ok := h.rooms[sub.tenantID]
	if !ok || !room[sub] {
		return
	}
	delete(room, sub)
	close(sub.C)
	if len(room) == 0 {
		delete(h.rooms, sub.tenantID)
	}
}

// Broadcast delivers msg to every subscription in the tenant's room. A full
// subscription channel means the client stopped draining; it is dropped so
// the bridge never blocks on a dead session.
func (h *Hub) Broadcast(tenantID string, msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.rooms[tenantID] {
		select {
		case sub.C <- msg:
		default:
			h.logger.Warn("dropping stalled status subscriber", "tenant", tenantID)
			h.drop(sub)
		}
	}
}

// Subscribers reports the current subscription count for a tenant.
func (h *Hub) Subscribers(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[tenantID])
}
