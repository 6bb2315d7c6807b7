package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Codec stamps and serializes envelopes. The zero value uses the wall clock
// and random UUIDs.
type Codec struct {
	// Now returns the timestamp stamped on outbound envelopes.
	Now func() time.Time

	// NewID returns a fresh event id.
	NewID func() string
}

// DefaultCodec is used by the package-level helpers.
var DefaultCodec = &Codec{}

func (c *Codec) now() time.Time {
	if c == nil || c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c *Codec) newID() string {
	if c == nil || c.NewID == nil {
		return uuid.NewString()
	}
	return c.NewID()
}

// Encode builds an outbound envelope of type t. A nil payload is omitted from
// the wire.
func (c *Codec) Encode(t MessageType, payload any, route Route) (*Envelope, error) {
	env := &Envelope{
		V:       Version,
		Type:    t,
		EventID: c.newID(),
		RoomID:  route.RoomID,
		UserID:  route.UserID,
		TS:      FormatTimestamp(c.now()),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("protocol: encode %s payload: %w", t, err)
		}
		env.Payload = raw
	}
	return env, nil
}

// Encode builds an outbound envelope with DefaultCodec.
func Encode(t MessageType, payload any, route Route) (*Envelope, error) {
	return DefaultCodec.Encode(t, payload, route)
}

// Marshal serializes an envelope to its wire form.
func Marshal(env *Envelope) ([]byte, error) {
	if env == nil {
		return nil, fmt.Errorf("protocol: marshal nil envelope")
	}
	return json.Marshal(env)
}

// Decode parses one inbound frame. Unknown types decode successfully; the
// returned error is always a *DecodeError.
func Decode(raw []byte) (*Envelope, error) {
	if len(raw) > MaxEnvelopeBytes {
		return nil, newDecodeError(DecodeTooLarge, "", "%d bytes exceeds limit %d", len(raw), MaxEnvelopeBytes)
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, newDecodeError(DecodeSyntax, "", "envelope is not a JSON object")
	}

	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, &DecodeError{Kind: DecodeSyntax, Err: err}
	}
	if env.Type == "" {
		return nil, newDecodeError(DecodeMissingType, "", "envelope has no type")
	}
	// A missing version is tolerated; a different one is not.
	if env.V != 0 && env.V != Version {
		return nil, newDecodeError(DecodeVersion, env.Type, "version %d, want %d", env.V, Version)
	}
	return &env, nil
}
