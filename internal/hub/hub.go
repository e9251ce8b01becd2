// Package hub implements single-producer, multi-consumer broadcast with
// per-subscriber lag skipping.
package hub

import (
	"sync"
	"sync/atomic"

	"pumpfun-relay/internal/observability"
)

// DefaultCapacity is the per-subscriber buffer size.
const DefaultCapacity = 1000

// Hub fans every published message out to every live subscription. Publish
// never blocks and never fails: a subscriber whose buffer is full loses its
// oldest buffered message instead of stalling the producer. Messages
// published with no subscribers are discarded.
type Hub struct {
	capacity int

	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

// Subscription is one consumer's view of the hub. Messages arrive on C in
// publish order, starting with the first message published after Subscribe.
type Subscription struct {
	hub     *Hub
	ch      chan string
	dropped atomic.Uint64
}

// New creates a hub with the given per-subscriber buffer capacity. A
// capacity of zero or less falls back to DefaultCapacity.
func New(capacity int) *Hub {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Hub{
		capacity: capacity,
		subs:     make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a new consumer. Subscribing to a closed hub returns a
// subscription whose channel is already closed.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		hub: h,
		ch:  make(chan string, h.capacity),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(sub.ch)
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

// Publish delivers msg to every current subscriber. It never blocks: if a
// subscriber's buffer is full, the oldest buffered message for that
// subscriber is dropped to make room.
func (h *Hub) Publish(msg string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}

	for sub := range h.subs {
		select {
		case sub.ch <- msg:
			continue
		default:
		}

		// Buffer full: shed the subscriber's oldest message. The consumer
		// may drain concurrently, so both receive and resend are
		// non-blocking.
		select {
		case <-sub.ch:
			sub.dropped.Add(1)
			observability.RecordLagDrop()
		default:
		}
		select {
		case sub.ch <- msg:
		default:
			sub.dropped.Add(1)
			observability.RecordLagDrop()
		}
	}
}

// Subscribers returns the current number of subscriptions. Diagnostic only.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscriber channel, signalling that the producer is
// gone. Further publishes and subscribes are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		close(sub.ch)
		delete(h.subs, sub)
	}
}

// C returns the channel messages are delivered on. It is closed when the
// subscription or the hub is closed.
func (s *Subscription) C() <-chan string {
	return s.ch
}

// Dropped returns how many messages this subscriber lost to lag skipping.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close removes the subscription from the hub and closes its channel.
// Closing twice, or after the hub itself closed, is safe.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()

	if _, ok := s.hub.subs[s]; !ok {
		return
	}
	delete(s.hub.subs, s)
	close(s.ch)
}
