package session

// State is a session lifecycle state.
type State uint8

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}
