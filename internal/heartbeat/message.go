package heartbeat

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TypeHeartbeat is the only message type a probe sends.
const TypeHeartbeat = "HEARTBEAT"

// Message is the liveness datagram announcing a client to the server.
type Message struct {
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	Seq       *int64 `json:"seq,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// NewMessage builds a heartbeat stamped with now in epoch milliseconds. A
// zero seq leaves the seq field out of the payload.
func NewMessage(userID string, seq int64, now time.Time) Message {
	m := Message{
		Type:      TypeHeartbeat,
		UserID:    userID,
		Timestamp: now.UnixMilli(),
	}
	if seq != 0 {
		m.Seq = &seq
	}
	return m
}

// Encode serializes the message as UTF-8 JSON, prefixed with the CRC32
// frame when checksum is set.
func (m Message) Encode(checksum bool) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode heartbeat: %w", err)
	}
	if checksum {
		return Frame(payload), nil
	}
	return payload, nil
}

// ParseMessage decodes a JSON heartbeat payload.
func ParseMessage(payload []byte) (Message, error) {
	m := Message{}
	if err := json.Unmarshal(payload, &m); err != nil {
		return m, &DecodeError{Payload: payload, Err: err}
	}
	return m, nil
}

// ExpandUserID replaces the {port} and {uuid} placeholders of a user id
// template.
func ExpandUserID(template string, port int, id string) string {
	return strings.NewReplacer(
		"{port}", strconv.Itoa(port),
		"{uuid}", id,
	).Replace(template)
}
