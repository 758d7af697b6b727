package models

import "time"

// Frame type discriminators exchanged over the WebSocket protocol (§6.1).
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FramePublish     = "publish"
	FramePing        = "ping"

	FrameAck   = "ack"
	FrameEvent = "event"
	FrameError = "error"
	FrameInfo  = "info"
	FramePong  = "pong"
)

// Error codes carried in error frames and mirrored as REST status codes (§7).
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeTopicNotFound      = "TOPIC_NOT_FOUND"
	CodeSlowConsumer       = "SLOW_CONSUMER"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// ClientFrame is the tagged variant of every inbound client message.
// LastN is a pointer so an absent field can be distinguished from an
// explicit zero when clamping (§4.4 subscribe).
type ClientFrame struct {
	Type      string     `json:"type"`
	Topic     string     `json:"topic,omitempty"`
	ClientID  string     `json:"client_id,omitempty"`
	LastN     *int       `json:"last_n,omitempty"`
	Message   *MessageIn `json:"message,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
}

// ErrorObj carries a code/message pair inside an error frame.
type ErrorObj struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServerFrame is the tagged variant of every outbound server message.
type ServerFrame struct {
	Type      string    `json:"type"`
	RequestID string    `json:"request_id,omitempty"`
	Topic     string    `json:"topic,omitempty"`
	Status    string    `json:"status,omitempty"`
	Message   *Message  `json:"message,omitempty"`
	Error     *ErrorObj `json:"error,omitempty"`
	Msg       string    `json:"msg,omitempty"`
	Ts        time.Time `json:"ts"`
}

// NewAck builds an ack frame acknowledging requestID (and optionally topic).
func NewAck(requestID, topic string) ServerFrame {
	return ServerFrame{Type: FrameAck, RequestID: requestID, Topic: topic, Status: "ok", Ts: time.Now()}
}

// NewEvent builds an event frame delivering msg on topic.
func NewEvent(topic string, msg Message) ServerFrame {
	m := msg
	return ServerFrame{Type: FrameEvent, Topic: topic, Message: &m, Ts: time.Now()}
}

// NewError builds an error frame, echoing requestID when present.
func NewError(requestID, code, message string) ServerFrame {
	return ServerFrame{
		Type:      FrameError,
		RequestID: requestID,
		Error:     &ErrorObj{Code: code, Message: message},
		Ts:        time.Now(),
	}
}

// NewInfo builds an info frame carrying a free-form operator message.
func NewInfo(msg, topic string) ServerFrame {
	return ServerFrame{Type: FrameInfo, Msg: msg, Topic: topic, Ts: time.Now()}
}

// NewPong builds a pong frame echoing requestID verbatim.
func NewPong(requestID string) ServerFrame {
	return ServerFrame{Type: FramePong, RequestID: requestID, Ts: time.Now()}
}
