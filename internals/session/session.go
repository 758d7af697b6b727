// Package session implements the per-connection protocol state machine
// (§4.5): frame parsing and dispatch, ack/event/error/info/pong framing,
// one writer goroutine per subscription, and slow-consumer eviction.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/riverbend/pubsub-broker/internals/broker"
	"github.com/riverbend/pubsub-broker/internals/models"
	"github.com/riverbend/pubsub-broker/internals/queue"
)

// State is one of the four SessionProtocol states (§4.5). ADMITTING is
// resolved by the transport adapter before a Session is ever constructed —
// a missing or invalid credential closes the transport with no frames sent
// and no Session comes into being. A constructed Session therefore always
// starts in StateActive.
type State int32

const (
	StateActive State = iota
	StateDraining
	StateClosed
)

// CloseCodeSlowConsumer is the transport close code used for eviction (§6.1).
const CloseCodeSlowConsumer = 1008

// Transport is the minimal contract a transport adapter must satisfy for a
// Session to drive it. It is the out-of-scope collaborator of §1: this
// package never imports gorilla/websocket or net/http directly.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	CloseWithCode(code int, reason string) error
}

type subscription struct {
	queue *queue.SubscriberQueue
	stop  chan struct{}
}

// Session is one live connection (§3).
type Session struct {
	id         string
	credential string

	broker    *broker.Broker
	transport Transport
	logger    zerolog.Logger

	sendMu sync.Mutex
	state  atomic.Int32

	subsMu sync.Mutex
	subs   map[string]*subscription

	slowThreshold int64

	closeOnce sync.Once
}

// New constructs a Session already admitted with credential, ready to Run.
func New(b *broker.Broker, transport Transport, credential string, slowThreshold int, logger zerolog.Logger) *Session {
	s := &Session{
		id:            uuid.NewString(),
		credential:    credential,
		broker:        b,
		transport:     transport,
		logger:        logger,
		subs:          make(map[string]*subscription),
		slowThreshold: int64(slowThreshold),
	}
	s.state.Store(int32(StateActive))
	return s
}

// SessionID identifies this session. Satisfies broker.SessionHandle.
func (s *Session) SessionID() string { return s.id }

// State reports the session's current protocol state.
func (s *Session) State() State { return State(s.state.Load()) }

// Run reads frames until the transport errs or the session closes, then
// tears down every subscription. It is the session reader task of §5.
func (s *Session) Run() {
	s.broker.RegisterSession(s)
	defer s.teardown()

	for s.State() != StateClosed {
		raw, err := s.transport.ReadMessage()
		if err != nil {
			return
		}

		var frame models.ClientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			s.sendFrame(models.NewError("", models.CodeBadRequest, "malformed frame"))
			continue
		}
		s.dispatch(frame)
	}
}

func (s *Session) dispatch(frame models.ClientFrame) {
	if s.State() == StateDraining && frame.Type != models.FramePing {
		s.sendFrame(models.NewError(frame.RequestID, models.CodeServiceUnavailable, "server shutting down"))
		return
	}

	switch frame.Type {
	case models.FrameSubscribe:
		s.handleSubscribe(frame)
	case models.FrameUnsubscribe:
		s.handleUnsubscribe(frame)
	case models.FramePublish:
		s.handlePublish(frame)
	case models.FramePing:
		s.sendFrame(models.NewPong(frame.RequestID))
	default:
		s.sendFrame(models.NewError(frame.RequestID, models.CodeBadRequest, "unknown frame type"))
	}
}

func (s *Session) handleSubscribe(frame models.ClientFrame) {
	if !models.ValidTopicName(frame.Topic) || frame.ClientID == "" {
		s.sendFrame(models.NewError(frame.RequestID, models.CodeBadRequest, "invalid subscribe frame"))
		return
	}

	// An absent last_n replays the whole ring; Broker.Subscribe clamps it to
	// the topic's ring size.
	lastN := math.MaxInt
	if frame.LastN != nil {
		lastN = *frame.LastN
	}
	if lastN < 0 {
		s.sendFrame(models.NewError(frame.RequestID, models.CodeBadRequest, "last_n must be >= 0"))
		return
	}

	q, replay, err := s.broker.Subscribe(s.id, frame.Topic, frame.ClientID, lastN, s)
	if err != nil {
		s.sendFrame(models.NewError(frame.RequestID, mapErrCode(err), err.Error()))
		return
	}

	sub := &subscription{queue: q, stop: make(chan struct{})}
	s.subsMu.Lock()
	s.subs[frame.Topic] = sub
	s.subsMu.Unlock()

	s.sendFrame(models.NewAck(frame.RequestID, frame.Topic))
	for _, m := range replay {
		s.sendFrame(models.NewEvent(frame.Topic, m))
	}

	go s.runWriter(frame.Topic, sub)
}

func (s *Session) handleUnsubscribe(frame models.ClientFrame) {
	if !models.ValidTopicName(frame.Topic) {
		s.sendFrame(models.NewError(frame.RequestID, models.CodeBadRequest, "invalid topic"))
		return
	}

	s.subsMu.Lock()
	sub, exists := s.subs[frame.Topic]
	delete(s.subs, frame.Topic)
	s.subsMu.Unlock()

	if exists {
		close(sub.stop)
	}

	if err := s.broker.Unsubscribe(s.id, frame.Topic); err != nil {
		s.sendFrame(models.NewError(frame.RequestID, mapErrCode(err), err.Error()))
		return
	}
	s.sendFrame(models.NewAck(frame.RequestID, frame.Topic))
}

func (s *Session) handlePublish(frame models.ClientFrame) {
	if !models.ValidTopicName(frame.Topic) || frame.Message == nil || !models.ValidMessageID(frame.Message.ID) {
		s.sendFrame(models.NewError(frame.RequestID, models.CodeBadRequest, "invalid publish frame"))
		return
	}

	_, err := s.broker.Publish(frame.Topic, *frame.Message)
	if err != nil {
		s.sendFrame(models.NewError(frame.RequestID, mapErrCode(err), err.Error()))
		return
	}
	s.sendFrame(models.NewAck(frame.RequestID, frame.Topic))
}

// runWriter is the sole consumer of sub.queue; it is the per-subscription
// writer task of §4.5 and §5. Because it is the only producer of event
// frames for this subscription and the queue is FIFO, events for one
// subscription are strictly ordered (P2, P3).
func (s *Session) runWriter(topicName string, sub *subscription) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-sub.stop
		cancel()
	}()

	for {
		msg, ok := sub.queue.Take(ctx)
		if !ok {
			return
		}
		s.sendFrame(models.NewEvent(topicName, msg))

		if sub.queue.ConsecutiveDrops() >= s.slowThreshold {
			s.evictSlowConsumer(topicName)
			return
		}
	}
}

func (s *Session) evictSlowConsumer(topicName string) {
	s.sendFrame(models.NewError("", models.CodeSlowConsumer, "subscriber queue overflowed repeatedly; disconnecting"))
	s.ForceClose(CloseCodeSlowConsumer, "slow consumer")
}

// NotifyInfo sends an info frame directly to the client, bypassing the
// message queue — used when a topic is deleted or shutdown is broadcast.
// Satisfies topic.Notifier and broker.SessionHandle.
func (s *Session) NotifyInfo(topicName, msg string) {
	s.sendFrame(models.NewInfo(msg, topicName))
}

// ForceClose transitions the session to draining-then-closed and closes the
// transport with code. Satisfies broker.SessionHandle.
func (s *Session) ForceClose(code int, reason string) {
	s.state.Store(int32(StateDraining))
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		_ = s.transport.CloseWithCode(code, reason)
	})
}

func (s *Session) sendFrame(frame models.ServerFrame) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := s.transport.WriteJSON(frame); err != nil {
		s.logger.Debug().Err(err).Str("session", s.id).Msg("transport write failed")
		go s.ForceClose(1001, "transport write failed")
	}
}

func (s *Session) teardown() {
	s.subsMu.Lock()
	subs := s.subs
	s.subs = make(map[string]*subscription)
	s.subsMu.Unlock()

	for topicName, sub := range subs {
		close(sub.stop)
		_ = s.broker.Unsubscribe(s.id, topicName)
	}

	s.broker.UnregisterSession(s.id)
	s.ForceClose(1000, "session ended")
}

func mapErrCode(err error) string {
	switch {
	case errors.Is(err, broker.ErrTopicNotFound):
		return models.CodeTopicNotFound
	case errors.Is(err, broker.ErrServiceUnavailable):
		return models.CodeServiceUnavailable
	default:
		return models.CodeBadRequest
	}
}
