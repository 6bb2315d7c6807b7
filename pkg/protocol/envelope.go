package protocol

import (
	"encoding/json"
	"time"
)

// TimestampLayout is the ISO-8601 layout used for the ts field.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Envelope is the unit of wire communication.
type Envelope struct {
	V       int             `json:"v"`
	Type    MessageType     `json:"type"`
	EventID string          `json:"eventId,omitempty"`
	RoomID  string          `json:"roomId,omitempty"`
	UserID  string          `json:"userId,omitempty"`
	Seq     *int64          `json:"seq,omitempty"`
	TS      string          `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Route carries the optional routing fields merged into an outbound envelope.
type Route struct {
	RoomID string
	UserID string
}

// HasPayload reports whether the envelope carries a non-null payload.
func (e *Envelope) HasPayload() bool {
	if e == nil || len(e.Payload) == 0 {
		return false
	}
	return string(e.Payload) != "null"
}

// Time parses the ts field. The second result is false when the field is
// absent or malformed.
func (e *Envelope) Time() (time.Time, bool) {
	if e == nil || e.TS == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, e.TS)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatTimestamp renders t the way the ts field expects it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
