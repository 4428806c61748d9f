// Package events fans session and wallet updates out to connected browsers.
package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Fantasim/tokenidx/internal/config"
)

// Event types.
const (
	TypeSessionState    = "session_state"
	TypeAccountsChanged = "accounts_changed"
)

// Event is one message for connected clients.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// AccountsChangedData is the payload of accounts_changed.
type AccountsChangedData struct {
	Accounts []string `json:"accounts"`
	Active   string   `json:"active,omitempty"`
}

// Hub broadcasts events to subscriber channels. A slow subscriber loses events
// rather than stalling the publisher.
type Hub struct {
	clients map[chan Event]struct{}
	mu      sync.RWMutex
	closed  bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	slog.Info("event hub created")
	return &Hub{
		clients: make(map[chan Event]struct{}),
	}
}

// Run blocks until ctx is cancelled, then closes every subscriber channel.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.clients {
		close(ch)
		delete(h.clients, ch)
	}
	h.closed = true

	slog.Info("event hub stopped", "reason", ctx.Err())
}

// Subscribe registers a client. The channel is closed by Unsubscribe or on shutdown.
func (h *Hub) Subscribe() chan Event {
	ch := make(chan Event, config.SSEHubChannelBuffer)

	h.mu.Lock()
	if h.closed {
		close(ch)
	} else {
		h.clients[ch] = struct{}{}
	}
	count := len(h.clients)
	h.mu.Unlock()

	slog.Debug("event client subscribed", "totalClients", count)

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
	count := len(h.clients)
	h.mu.Unlock()

	slog.Debug("event client unsubscribed", "totalClients", count)
}

// Broadcast delivers event to every client without blocking.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- event:
		default:
			slog.Warn("event dropped for slow client", "eventType", event.Type)
		}
	}
}

// ClientCount returns the number of subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
