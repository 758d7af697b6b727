// Package queue provides the bounded, drop-oldest FIFO delivery queue that
// sits between a Topic's fan-out and one subscriber's writer (§4.2).
package queue

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/riverbend/pubsub-broker/internals/models"
)

// SubscriberQueue is a bounded FIFO of pending Messages for one
// (session, topic) pair. Offer never blocks; when full it evicts the
// oldest entry before enqueueing the new one. Take blocks until an item
// is available or the queue is closed.
type SubscriberQueue struct {
	ClientID string
	Topic    string

	mu       sync.Mutex
	data     chan models.Message
	capacity int
	closed   bool

	consecutiveDrops int64
}

// New creates a SubscriberQueue for clientID subscribed to topic, bounded
// at capacity (QUEUE_MAX, §3).
func New(clientID, topic string, capacity int) *SubscriberQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &SubscriberQueue{
		ClientID: clientID,
		Topic:    topic,
		data:     make(chan models.Message, capacity),
		capacity: capacity,
	}
}

// Offer enqueues m. accepted is false only when the queue is closed.
// evicted reports whether an older message was dropped to make room.
func (q *SubscriberQueue) Offer(m models.Message) (accepted bool, evicted bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false, false
	}

	select {
	case q.data <- m:
		atomic.StoreInt64(&q.consecutiveDrops, 0)
		return true, false
	default:
	}

	// Full: drop the oldest, then enqueue the new message.
	select {
	case <-q.data:
	default:
	}
	atomic.AddInt64(&q.consecutiveDrops, 1)

	select {
	case q.data <- m:
		return true, true
	default:
		// Raced with a concurrent drain of the slot we just freed; the
		// message is dropped rather than retried, preserving the
		// non-blocking contract of Offer.
		return false, true
	}
}

// Take blocks until a message is available, the queue is closed, or ctx is
// done. ok is false in the latter two cases.
func (q *SubscriberQueue) Take(ctx context.Context) (models.Message, bool) {
	select {
	case m, ok := <-q.data:
		return m, ok
	case <-ctx.Done():
		return models.Message{}, false
	}
}

// Close unblocks all waiters with a sentinel and rejects future offers.
// Safe to call more than once.
func (q *SubscriberQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.data)
}

// ConsecutiveDrops returns the current run of evictions since the last
// successful non-evicting enqueue. Used by the session writer to detect a
// slow consumer (§4.5).
func (q *SubscriberQueue) ConsecutiveDrops() int64 {
	return atomic.LoadInt64(&q.consecutiveDrops)
}

// Len reports the approximate number of buffered, undelivered messages.
func (q *SubscriberQueue) Len() int {
	return len(q.data)
}
