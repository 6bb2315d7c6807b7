package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Event is the closed set of inbound server events. The unexported marker
// method keeps the set sealed to this package; consumers switch on the
// concrete type.
type Event interface {
	EventType() MessageType
	isEvent()
}

// JoinAck acknowledges a join and advertises the room rules.
type JoinAck struct {
	UserID      string    `json:"userId"`
	TickRate    float64   `json:"tickRate"`
	MoveLimitHz float64   `json:"moveLimitHz"`
	ChatRadius  *float64  `json:"chatRadius,omitempty"`
	World       WorldSize `json:"world"`
}

// Snapshot is the authoritative roster of the room, including the receiver.
type Snapshot struct {
	You   UserData   `json:"you"`
	Users []UserData `json:"users"`
}

// UserJoined announces one participant.
type UserJoined struct {
	User UserData `json:"user"`
}

// UserLeft announces a departure.
type UserLeft struct {
	UserID string `json:"userId"`
}

// UserMoved carries a new authoritative position.
type UserMoved struct {
	UserID     string  `json:"userId"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	ServerTick *int64  `json:"serverTick,omitempty"`
}

// ChatMessage is a chat line broadcast by the server.
type ChatMessage struct {
	MessageID   string `json:"messageId"`
	FromUserID  string `json:"fromUserId"`
	Text        string `json:"text"`
	At          string `json:"at"`
	BubbleTTLMs *int64 `json:"bubbleTtlMs,omitempty"`
}

// Pong answers a ping.
type Pong struct{}

// ServerError is a semantic protocol error reported by the server.
type ServerError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	return "server error " + e.Code + ": " + e.Message
}

// Unknown wraps an envelope whose type this client does not understand.
type Unknown struct {
	Type MessageType
}

func (*JoinAck) EventType() MessageType     { return TypeJoinAck }
func (*Snapshot) EventType() MessageType    { return TypeSnapshot }
func (*UserJoined) EventType() MessageType  { return TypeUserJoined }
func (*UserLeft) EventType() MessageType    { return TypeUserLeft }
func (*UserMoved) EventType() MessageType   { return TypeUserMoved }
func (*ChatMessage) EventType() MessageType { return TypeChatMessage }
func (*Pong) EventType() MessageType        { return TypePong }
func (*ServerError) EventType() MessageType { return TypeError }
func (u *Unknown) EventType() MessageType   { return u.Type }

func (*JoinAck) isEvent()     {}
func (*Snapshot) isEvent()    {}
func (*UserJoined) isEvent()  {}
func (*UserLeft) isEvent()    {}
func (*UserMoved) isEvent()   {}
func (*ChatMessage) isEvent() {}
func (*Pong) isEvent()        {}
func (*ServerError) isEvent() {}
func (*Unknown) isEvent()     {}

// ParseEvent decodes the payload of an inbound envelope into its typed
// event. Types outside the inbound vocabulary yield *Unknown with a nil
// error.
func ParseEvent(env *Envelope) (Event, error) {
	if env == nil {
		return nil, newDecodeError(DecodeSyntax, "", "nil envelope")
	}

	switch env.Type {
	case TypeJoinAck:
		ev := &JoinAck{}
		return parsed(env, ev, func() error {
			if ev.UserID == "" {
				return errMissingUserID
			}
			return nil
		})

	case TypeSnapshot:
		ev := &Snapshot{}
		return parsed(env, ev, func() error {
			if ev.You.UserID == "" {
				return errors.New("missing you")
			}
			return nil
		})

	case TypeUserJoined:
		ev := &UserJoined{}
		return parsed(env, ev, func() error {
			if ev.User.UserID == "" {
				return errors.New("missing user")
			}
			return nil
		})

	case TypeUserLeft:
		ev := &UserLeft{}
		return parsed(env, ev, func() error {
			if ev.UserID == "" {
				return errMissingUserID
			}
			return nil
		})

	case TypeUserMoved:
		var wire struct {
			UserID     string   `json:"userId"`
			X          *float64 `json:"x"`
			Y          *float64 `json:"y"`
			ServerTick *int64   `json:"serverTick"`
		}
		err := decodePayload(env, &wire, func() error {
			if wire.UserID == "" {
				return errMissingUserID
			}
			if wire.X == nil || wire.Y == nil {
				return errMissingPosition
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return &UserMoved{UserID: wire.UserID, X: *wire.X, Y: *wire.Y, ServerTick: wire.ServerTick}, nil

	case TypeChatMessage:
		ev := &ChatMessage{}
		return parsed(env, ev, func() error {
			if ev.FromUserID == "" {
				return errors.New("missing fromUserId")
			}
			return nil
		})

	case TypePong:
		return &Pong{}, nil

	case TypeError:
		ev := &ServerError{}
		// An error envelope without a payload is still an error.
		if !env.HasPayload() {
			return ev, nil
		}
		return parsed(env, ev, nil)

	default:
		return &Unknown{Type: env.Type}, nil
	}
}

// parsed decodes into ev and returns it, or nil on failure.
func parsed(env *Envelope, ev Event, validate func() error) (Event, error) {
	if err := decodePayload(env, ev, validate); err != nil {
		return nil, err
	}
	return ev, nil
}

// decodePayload unmarshals the envelope payload into dst and runs the
// optional validation. Errors are wrapped as DecodePayload.
func decodePayload(env *Envelope, dst any, validate func() error) error {
	if !env.HasPayload() {
		return newDecodeError(DecodePayload, env.Type, "missing payload")
	}
	if p := bytes.TrimSpace(env.Payload); len(p) == 0 || p[0] != '{' {
		return newDecodeError(DecodePayload, env.Type, "payload is not an object")
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return &DecodeError{Kind: DecodePayload, Type: env.Type, Err: err}
	}
	if validate != nil {
		if err := validate(); err != nil {
			return &DecodeError{Kind: DecodePayload, Type: env.Type, Err: err}
		}
	}
	return nil
}
