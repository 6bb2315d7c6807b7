package client

import (
	"testing"

	"github.com/global-bar/bar-web/pkg/protocol"
)

func TestKeyState(t *testing.T) {
	tests := []struct {
		name string
		want protocol.Keys
	}{
		{"w", protocol.Keys{Up: true}},
		{"ArrowUp", protocol.Keys{Up: true}},
		{"S", protocol.Keys{Down: true}},
		{"arrowdown", protocol.Keys{Down: true}},
		{"a", protocol.Keys{Left: true}},
		{"ArrowLeft", protocol.Keys{Left: true}},
		{"d", protocol.Keys{Right: true}},
		{"ARROWRIGHT", protocol.Keys{Right: true}},
	}
	for _, tt := range tests {
		var s KeyState
		if !s.Press(tt.name) {
			t.Errorf("Press(%q) not a movement key", tt.name)
		}
		if got := s.Keys(); got != tt.want {
			t.Errorf("Press(%q): keys = %+v, want %+v", tt.name, got, tt.want)
		}
		s.Release(tt.name)
		if s.Keys().Moving() {
			t.Errorf("Release(%q) left keys held", tt.name)
		}
	}
}

func TestKeyStateIgnoresOtherKeys(t *testing.T) {
	var s KeyState
	if s.Press("q") || s.Press("enter") {
		t.Error("non-movement key accepted")
	}
	s.Press("w")
	s.Press("d")
	if got := s.Keys(); got != (protocol.Keys{Up: true, Right: true}) {
		t.Errorf("keys = %+v", got)
	}
	s.Reset()
	if s.Keys().Moving() {
		t.Error("Reset left keys held")
	}
}

func TestIntentInterval(t *testing.T) {
	if got := intentInterval(15); got.Nanoseconds() != 66666667 {
		t.Errorf("intentInterval(15) = %v", got)
	}
	if got := intentInterval(20); got.Milliseconds() != 50 {
		t.Errorf("intentInterval(20) = %v", got)
	}
}
