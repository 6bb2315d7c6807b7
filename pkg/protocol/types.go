package protocol

// Version is the protocol version stamped on every outbound envelope.
const Version = 1

// MessageType identifies the kind of envelope.
type MessageType string

const (
	// Client → server.
	TypeJoin       MessageType = "join"
	TypeMoveIntent MessageType = "move.intent"
	TypeChatSay    MessageType = "chat.say"
	TypePing       MessageType = "ping"

	// Server → client.
	TypeJoinAck     MessageType = "join.ack"
	TypeSnapshot    MessageType = "snapshot"
	TypeUserJoined  MessageType = "user.joined"
	TypeUserLeft    MessageType = "user.left"
	TypeUserMoved   MessageType = "user.moved"
	TypeChatMessage MessageType = "chat.message"
	TypePong        MessageType = "pong"
	TypeError       MessageType = "error"
)

// Direction tells which peer originates a message type.
type Direction uint8

const (
	UnknownDirection Direction = iota
	Outbound                   // client → server
	Inbound                    // server → client
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	switch d {
	case Outbound:
		return "Outbound"
	case Inbound:
		return "Inbound"
	default:
		return "Unknown"
	}
}

// Direction returns the direction of the message type, or UnknownDirection
// for types outside the vocabulary.
func (t MessageType) Direction() Direction {
	switch t {
	case TypeJoin, TypeMoveIntent, TypeChatSay, TypePing:
		return Outbound
	case TypeJoinAck, TypeSnapshot, TypeUserJoined, TypeUserLeft,
		TypeUserMoved, TypeChatMessage, TypePong, TypeError:
		return Inbound
	default:
		return UnknownDirection
	}
}

// Known reports whether the type belongs to the protocol vocabulary.
func (t MessageType) Known() bool {
	return t.Direction() != UnknownDirection
}

// String returns the wire tag.
func (t MessageType) String() string {
	return string(t)
}
