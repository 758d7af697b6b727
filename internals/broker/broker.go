// Package broker implements the process-wide state engine: the topic
// registry, global shutdown flag, and aggregate stats (§4.4). It is the one
// place that understands both "does this topic exist" and "is the system
// draining" — every other package is handed just enough of the broker's
// surface to do its job.
package broker

import (
	"sync"
	"sync/atomic"

	"github.com/riverbend/pubsub-broker/internals/config"
	"github.com/riverbend/pubsub-broker/internals/metrics"
	"github.com/riverbend/pubsub-broker/internals/models"
	"github.com/riverbend/pubsub-broker/internals/queue"
	"github.com/riverbend/pubsub-broker/internals/topic"
)

// SessionHandle is the broker's view of a connected session: just enough to
// broadcast an info frame or force a close with a transport close code. The
// session package implements this; broker never imports session.
type SessionHandle interface {
	SessionID() string
	NotifyInfo(topic, msg string)
	ForceClose(code int, reason string)
}

// TopicSnapshot is a point-in-time view of one topic for listing (§4.4 list_topics).
type TopicSnapshot struct {
	Name           string
	Subscribers    int
	RingSize       int
	HistorySize    int
	TotalPublished uint64
}

// StatsSnapshot is the aggregate counters exposed by Stats() and GET /stats/.
type StatsSnapshot struct {
	PublishedTotal    uint64
	DeliveredTotal    uint64
	DroppedTotal      uint64
	ActiveSubscribers int64
	ActiveSessions    int64
	ShuttingDown      bool
}

// Broker is the process-wide singleton in lifecycle terms, though it is
// always constructed and passed explicitly rather than reached via an
// ambient global (spec.md §9), so tests can run isolated brokers in parallel.
type Broker struct {
	cfg     *config.Config
	metrics *metrics.Metrics

	mu     sync.RWMutex
	topics map[string]*topic.Topic

	sessionsMu sync.RWMutex
	sessions   map[string]SessionHandle

	shuttingDown atomic.Bool

	publishedTotal    atomic.Uint64
	deliveredTotal    atomic.Uint64
	droppedTotal      atomic.Uint64
	activeSubscribers atomic.Int64
}

// New constructs a Broker bound to cfg and m.
func New(cfg *config.Config, m *metrics.Metrics) *Broker {
	return &Broker{
		cfg:      cfg,
		metrics:  m,
		topics:   make(map[string]*topic.Topic),
		sessions: make(map[string]SessionHandle),
	}
}

// CreateTopic validates name and ringSize and registers a new Topic.
func (b *Broker) CreateTopic(name string, ringSize int) error {
	if b.shuttingDown.Load() {
		return ErrServiceUnavailable
	}
	if !models.ValidTopicName(name) {
		return ErrBadRequest
	}
	ringSize = b.cfg.ClampRingSize(ringSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.topics[name]; exists {
		return ErrTopicExists
	}
	b.topics[name] = topic.New(name, ringSize)
	b.metrics.IncTopics()
	b.metrics.SetSubscribers(name, 0)
	return nil
}

// DeleteTopic removes name, notifying and detaching every attached
// subscriber first (§4.4 delete_topic).
func (b *Broker) DeleteTopic(name string) error {
	if b.shuttingDown.Load() {
		return ErrServiceUnavailable
	}

	b.mu.Lock()
	t, exists := b.topics[name]
	if !exists {
		b.mu.Unlock()
		return ErrTopicNotFound
	}
	delete(b.topics, name)
	b.mu.Unlock()

	t.Close("topic deleted")
	b.metrics.DecTopics()
	b.metrics.RemoveTopic(name)
	return nil
}

// Publish validates the message shape and delegates to the named topic.
func (b *Broker) Publish(topicName string, in models.MessageIn) (models.Message, error) {
	if b.shuttingDown.Load() {
		return models.Message{}, ErrServiceUnavailable
	}
	if !models.ValidTopicName(topicName) || !models.ValidMessageID(in.ID) {
		return models.Message{}, ErrBadRequest
	}

	t, ok := b.lookupTopic(topicName)
	if !ok {
		return models.Message{}, ErrTopicNotFound
	}

	msg, delivered, dropped := t.Publish(in)

	b.publishedTotal.Add(1)
	b.deliveredTotal.Add(uint64(delivered))
	b.droppedTotal.Add(uint64(dropped))
	b.metrics.IncPublished(topicName)
	b.metrics.AddDelivered(topicName, delivered)
	b.metrics.AddDropped(topicName, dropped)

	return msg, nil
}

// Subscribe attaches a fresh SubscriberQueue for sessionID to topicName and
// returns it along with the replay batch (§4.4 subscribe). lastN is
// clamped to [0, topic.ring_size].
func (b *Broker) Subscribe(sessionID, topicName, clientID string, lastN int, notifier topic.Notifier) (*queue.SubscriberQueue, []models.Message, error) {
	if b.shuttingDown.Load() {
		return nil, nil, ErrServiceUnavailable
	}
	if !models.ValidTopicName(topicName) || clientID == "" {
		return nil, nil, ErrBadRequest
	}

	t, ok := b.lookupTopic(topicName)
	if !ok {
		return nil, nil, ErrTopicNotFound
	}

	if lastN < 0 {
		lastN = 0
	}
	if lastN > t.RingSize {
		lastN = t.RingSize
	}

	q := queue.New(clientID, topicName, b.cfg.SubscriberQueueSize)
	replay, err := t.Attach(sessionID, q, notifier, lastN)
	if err != nil {
		return nil, nil, ErrBadRequest
	}

	b.activeSubscribers.Add(1)
	b.metrics.SetSubscribers(topicName, t.SubscriberCount())
	return q, replay, nil
}

// Unsubscribe detaches sessionID's queue from topicName and closes it.
func (b *Broker) Unsubscribe(sessionID, topicName string) error {
	t, ok := b.lookupTopic(topicName)
	if !ok {
		return ErrTopicNotFound
	}
	t.Detach(sessionID)
	b.activeSubscribers.Add(-1)
	b.metrics.SetSubscribers(topicName, t.SubscriberCount())
	return nil
}

// ListTopics returns a snapshot of every registered topic (§4.4 list_topics).
func (b *Broker) ListTopics() []TopicSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]TopicSnapshot, 0, len(b.topics))
	for name, t := range b.topics {
		out = append(out, TopicSnapshot{
			Name:           name,
			Subscribers:    t.SubscriberCount(),
			RingSize:       t.RingSize,
			HistorySize:    t.HistorySize(),
			TotalPublished: t.TotalPublished(),
		})
	}
	return out
}

// Stats returns the aggregate counters (§4.4 stats).
func (b *Broker) Stats() StatsSnapshot {
	b.sessionsMu.RLock()
	sessions := int64(len(b.sessions))
	b.sessionsMu.RUnlock()

	return StatsSnapshot{
		PublishedTotal:    b.publishedTotal.Load(),
		DeliveredTotal:    b.deliveredTotal.Load(),
		DroppedTotal:      b.droppedTotal.Load(),
		ActiveSubscribers: b.activeSubscribers.Load(),
		ActiveSessions:    sessions,
		ShuttingDown:      b.shuttingDown.Load(),
	}
}

// RegisterSession records a newly admitted session so it can receive
// shutdown broadcasts and forced closes.
func (b *Broker) RegisterSession(h SessionHandle) {
	b.sessionsMu.Lock()
	b.sessions[h.SessionID()] = h
	b.sessionsMu.Unlock()
	b.metrics.IncSessions()
}

// UnregisterSession removes a session once it has fully closed.
func (b *Broker) UnregisterSession(sessionID string) {
	b.sessionsMu.Lock()
	_, existed := b.sessions[sessionID]
	delete(b.sessions, sessionID)
	b.sessionsMu.Unlock()
	if existed {
		b.metrics.DecSessions()
	}
}

// IsShuttingDown reports whether the broker has begun graceful shutdown.
func (b *Broker) IsShuttingDown() bool {
	return b.shuttingDown.Load()
}

// BeginShutdown sets the shutting_down flag, after which create/publish/
// subscribe admissions are rejected with SERVICE_UNAVAILABLE.
func (b *Broker) BeginShutdown() {
	b.shuttingDown.Store(true)
}

// BroadcastInfo sends an info frame to every currently registered session.
func (b *Broker) BroadcastInfo(msg string) {
	b.sessionsMu.RLock()
	handles := make([]SessionHandle, 0, len(b.sessions))
	for _, h := range b.sessions {
		handles = append(handles, h)
	}
	b.sessionsMu.RUnlock()

	for _, h := range handles {
		h.NotifyInfo("", msg)
	}
}

// ForceCloseAllSessions closes every registered session's transport with
// code, tolerating per-session failures independently (§4.6 step 5).
func (b *Broker) ForceCloseAllSessions(code int, reason string) {
	b.sessionsMu.RLock()
	handles := make([]SessionHandle, 0, len(b.sessions))
	for _, h := range b.sessions {
		handles = append(handles, h)
	}
	b.sessionsMu.RUnlock()

	for _, h := range handles {
		h.ForceClose(code, reason)
	}
}

// CloseAllTopics tears down every topic's storage and subscriber queues
// without the per-topic REST error semantics of DeleteTopic (§4.6 step 6).
func (b *Broker) CloseAllTopics() {
	b.mu.Lock()
	topics := b.topics
	b.topics = make(map[string]*topic.Topic)
	b.mu.Unlock()

	for name, t := range topics {
		t.Close("server shutting down")
		b.metrics.DecTopics()
		b.metrics.RemoveTopic(name)
	}
}

// TotalPending sums undelivered messages across every subscriber queue of
// every topic, used by the lifecycle drain poll (§4.6 step 4).
func (b *Broker) TotalPending() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, t := range b.topics {
		total += t.PendingLen()
	}
	return total
}

func (b *Broker) lookupTopic(name string) (*topic.Topic, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.topics[name]
	return t, ok
}
