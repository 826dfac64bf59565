package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/oshokin/sos-beacon/internal/domain/alert"
)

// DefaultBuffer is the subscriber buffer size used when none is given.
const DefaultBuffer = 16

// ErrHubClosed is returned by Publish after Close.
var ErrHubClosed = errors.New("notification hub is closed")

// Hub broadcasts notifications to subscribers.
type Hub struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	closed  bool
	dropped atomic.Uint64
}

// Subscription receives notifications on C until it is closed.
type Subscription struct {
	// C delivers notifications. It is closed when the subscription ends.
	C <-chan alert.Notification

	ch   chan alert.Notification
	hub  *Hub
	once sync.Once
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a new observer. A closed hub returns an already closed subscription.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	ch := make(chan alert.Notification, buffer)
	sub := &Subscription{C: ch, ch: ch, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub.once.Do(func() { close(ch) })

		return sub
	}

	h.subs[sub] = struct{}{}

	return sub
}

// Publish delivers n to every subscriber without blocking.
func (h *Hub) Publish(_ context.Context, n alert.Notification) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrHubClosed
	}

	for sub := range h.subs {
		select {
		case sub.ch <- n:
		default:
			h.dropped.Add(1)
		}
	}

	return nil
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subs)
}

// Dropped returns how many deliveries were skipped because a buffer was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close ends every subscription and rejects further publishing.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.closed = true

	for sub := range h.subs {
		sub.once.Do(func() { close(sub.ch) })
		delete(h.subs, sub)
	}
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()

	delete(s.hub.subs, s)
	s.once.Do(func() { close(s.ch) })
}
