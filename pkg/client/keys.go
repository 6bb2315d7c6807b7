package client

import (
	"strings"
	"sync"

	"github.com/global-bar/bar-web/pkg/protocol"
)

// KeySource supplies the movement keys currently held.
type KeySource interface {
	Keys() protocol.Keys
}

// KeyState is a KeySource fed by key press and release events. It is safe
// for concurrent use.
type KeyState struct {
	mu   sync.Mutex
	keys protocol.Keys
}

// Press marks the named key as held. It reports whether the name is a
// movement key.
func (s *KeyState) Press(name string) bool { return s.set(name, true) }

// Release marks the named key as released.
func (s *KeyState) Release(name string) bool { return s.set(name, false) }

// Reset releases every key, as on focus loss.
func (s *KeyState) Reset() {
	s.mu.Lock()
	s.keys = protocol.Keys{}
	s.mu.Unlock()
}

// Keys implements KeySource.
func (s *KeyState) Keys() protocol.Keys {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys
}

func (s *KeyState) set(name string, down bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch strings.ToLower(name) {
	case "w", "arrowup", "up":
		s.keys.Up = down
	case "s", "arrowdown", "down":
		s.keys.Down = down
	case "a", "arrowleft", "left":
		s.keys.Left = down
	case "d", "arrowright", "right":
		s.keys.Right = down
	default:
		return false
	}
	return true
}
