package events

import (
	"sync"
	"time"
)

// StatusEvent is a user-facing notification about wallet state. The
// hub is the only path from the orchestration layer to whatever UI is
// attached; nothing below the server package renders text directly.
type StatusEvent struct {
	Kind    string    `json:"kind"`
	Address string    `json:"address,omitempty"`
	Message string    `json:"message"`
	Hint    string    `json:"hint,omitempty"`
	At      time.Time `json:"at"`
}

// Event kinds published by the wallet and token layers.
const (
	KindConnecting   = "connecting"
	KindConnected    = "connected"
	KindDisconnected = "disconnected"
	KindConnectError = "connect_error"
	KindKeyCreated   = "key_created"
	KindBalance      = "balance"
	KindInfo         = "info"
)

const subscriberBuffer = 16

// Hub fans status events out to subscribers. Publish never blocks: a
// subscriber that has fallen subscriberBuffer events behind loses the
// event rather than stalling the publisher.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan StatusEvent]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[chan StatusEvent]struct{}),
	}
}

// Subscribe registers a new subscriber and returns its channel plus a
// cancel function. Cancel must be called when the subscriber goes away.
func (h *Hub) Subscribe() (<-chan StatusEvent, func()) {
	ch := make(chan StatusEvent, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every current subscriber. The event
// timestamp is set here when the caller left it zero.
func (h *Hub) Publish(ev StatusEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SubscriberCount reports the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
