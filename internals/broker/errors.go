package broker

import "errors"

var (
	// ErrTopicExists is returned by CreateTopic when the name is already registered.
	ErrTopicExists = errors.New("broker: topic already exists")

	// ErrTopicNotFound is returned when an operation names an unknown topic.
	ErrTopicNotFound = errors.New("broker: topic not found")

	// ErrBadRequest covers malformed input: invalid topic name, invalid
	// message id, empty client id, or a duplicate subscribe for the same
	// (session, topic). An out-of-range ring_size is clamped, not rejected.
	ErrBadRequest = errors.New("broker: bad request")

	// ErrServiceUnavailable is returned for any admission while the broker
	// is shutting down (§4.4).
	ErrServiceUnavailable = errors.New("broker: service unavailable")
)
