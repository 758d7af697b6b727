// Package models provides the wire data structures for the in-memory Pub/Sub system.
package models

import (
	"encoding/json"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Message is the broker's immutable unit of data. Identity is ID; the broker
// does not deduplicate on it but implementers may note equal IDs.
type Message struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
	Ts      time.Time       `json:"ts"`
}

// MessageIn is the shape of a message as supplied by a publisher, before the
// broker stamps a server-assigned timestamp.
type MessageIn struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

var topicNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]*$`)

// ValidTopicName reports whether name satisfies the topic naming rule:
// non-empty, [A-Za-z0-9][A-Za-z0-9-]*, length 1..128.
func ValidTopicName(name string) bool {
	if len(name) < 1 || len(name) > 128 {
		return false
	}
	return topicNamePattern.MatchString(name)
}

// ValidMessageID reports whether id is a canonical, lowercase, hyphenated UUID.
// uuid.Parse accepts mixed case and braced/URN forms; re-rendering the parsed
// value and comparing against the original input rejects everything but the
// canonical form the spec requires.
func ValidMessageID(id string) bool {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return false
	}
	return parsed.String() == id
}
