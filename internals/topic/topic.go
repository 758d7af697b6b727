// Package topic implements a single named channel: a ring buffer of recent
// messages plus the set of subscriber queues currently attached (§4.3).
package topic

import (
	"errors"
	"sync"
	"time"

	"github.com/riverbend/pubsub-broker/internals/models"
	"github.com/riverbend/pubsub-broker/internals/queue"
	"github.com/riverbend/pubsub-broker/internals/ringbuffer"
)

// ErrAlreadySubscribed is returned by Attach when the given key already has
// a subscription on this topic (§4.4 subscribe, open question resolved as
// BAD_REQUEST per spec.md §9).
var ErrAlreadySubscribed = errors.New("topic: already subscribed")

// Notifier lets a Topic push a terminal, out-of-band message to a session
// that did not itself request the detachment (e.g. topic deletion). It is
// satisfied structurally by the broker's session handle — topic never
// imports the broker or session packages.
type Notifier interface {
	NotifyInfo(topic, msg string)
}

type attachment struct {
	queue    *queue.SubscriberQueue
	notifier Notifier
}

// Topic holds a RingBuffer and the set of SubscriberQueues attached to it.
type Topic struct {
	Name     string
	RingSize int

	mu        sync.Mutex
	ring      *ringbuffer.RingBuffer
	subs      map[string]attachment // keyed by session id
	published uint64
}

// New creates a Topic named name with the given ring capacity.
func New(name string, ringSize int) *Topic {
	return &Topic{
		Name:     name,
		RingSize: ringSize,
		ring:     ringbuffer.New(ringSize),
		subs:     make(map[string]attachment),
	}
}

// Publish stamps msg with the server timestamp, appends it to the ring
// buffer and snapshots the attached queues under the topic lock, then fans
// it out to that snapshot outside the lock — so one slow subscriber can never stall
// publish or any other subscriber of this topic (§4.3, P5).
func (t *Topic) Publish(in models.MessageIn) (msg models.Message, delivered int, dropped int) {
	msg = models.Message{ID: in.ID, Payload: in.Payload, Ts: time.Now()}

	t.mu.Lock()
	t.ring.Append(msg)
	t.published++
	snapshot := make([]*queue.SubscriberQueue, 0, len(t.subs))
	for _, a := range t.subs {
		snapshot = append(snapshot, a.queue)
	}
	t.mu.Unlock()

	for _, q := range snapshot {
		if accepted, evicted := q.Offer(msg); accepted {
			delivered++
			if evicted {
				dropped++
			}
		} else {
			dropped++
		}
	}
	return msg, delivered, dropped
}

// Attach adds q to the subscriber set and returns the replay batch of the
// last lastN ring messages. Attach and Publish share the topic lock, so no
// live event from a publish racing this call can be missed or duplicated
// relative to the returned replay (§4.3, P4).
func (t *Topic) Attach(key string, q *queue.SubscriberQueue, notifier Notifier, lastN int) ([]models.Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.subs[key]; exists {
		return nil, ErrAlreadySubscribed
	}

	replay := t.ring.Tail(lastN)
	t.subs[key] = attachment{queue: q, notifier: notifier}
	return replay, nil
}

// Detach removes key from the subscriber set and closes its queue so the
// owning session's writer unblocks. Idempotent.
func (t *Topic) Detach(key string) {
	t.mu.Lock()
	a, exists := t.subs[key]
	delete(t.subs, key)
	t.mu.Unlock()

	if exists {
		a.queue.Close()
	}
}

// Close notifies every attached subscriber with an info frame, closes each
// queue so its writer unblocks, and empties the subscriber set. Used on
// topic deletion and on broker shutdown.
func (t *Topic) Close(reason string) {
	t.mu.Lock()
	attachments := make([]attachment, 0, len(t.subs))
	for _, a := range t.subs {
		attachments = append(attachments, a)
	}
	t.subs = make(map[string]attachment)
	t.mu.Unlock()

	for _, a := range attachments {
		if a.notifier != nil {
			a.notifier.NotifyInfo(t.Name, reason)
		}
		a.queue.Close()
	}
}

// SubscriberCount returns the number of currently attached subscribers.
func (t *Topic) SubscriberCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// HistorySize returns the number of messages currently held in the ring buffer.
func (t *Topic) HistorySize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ring.Size()
}

// TotalPublished returns the monotone count of messages ever published to
// this topic.
func (t *Topic) TotalPublished() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.published
}

// PendingLen sums the approximate undelivered message count across every
// attached subscriber queue, used by the lifecycle drain poll (§4.6).
func (t *Topic) PendingLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0
	for _, a := range t.subs {
		total += a.queue.Len()
	}
	return total
}
