package ws

import (
	"context"
	"encoding/json"
	"sync"

	"divan_bot/internal/domain"
	"divan_bot/internal/logger"
)

// Hub fans notifications out to connected WebApp clients. A user may hold
// several connections. Slow clients lose messages instead of blocking.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[int64]map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.UserID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes c and closes its send channel. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.UserID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.UserID)
	}
	close(c.Send)
}

// Connected returns the number of open connections.
func (h *Hub) Connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Notify implements service.Notifier. UserID 0 goes to every client.
func (h *Hub) Notify(_ context.Context, n domain.Notification) {
	msg, err := json.Marshal(n)
	if err != nil {
		logger.Error("ws: marshal notification", "error", err, "type", n.Type)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if n.UserID != 0 {
		h.sendAll(h.clients[n.UserID], msg)
		return
	}
	for _, set := range h.clients {
		h.sendAll(set, msg)
	}
}

func (h *Hub) sendAll(set map[*Client]struct{}, msg []byte) {
	for c := range set {
		select {
		case c.Send <- msg:
		default:
			logger.Warn("ws: dropping notification for slow client", "user_id", c.UserID)
		}
	}
}
