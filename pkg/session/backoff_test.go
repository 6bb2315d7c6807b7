package session

import (
	"testing"
	"time"
)

func TestBackoffDelay(t *testing.T) {
	b := DefaultBackoff()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, 500 * time.Millisecond},
		{0, 500 * time.Millisecond},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{9, 5 * time.Second},
		{200, 5 * time.Second},
	}

	for _, tc := range tests {
		if got := b.Delay(tc.attempt); got != tc.want {
			t.Errorf("Delay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestBackoffDelayUncapped(t *testing.T) {
	b := Backoff{Base: time.Millisecond}
	if got := b.Delay(10); got != 1024*time.Millisecond {
		t.Errorf("Delay(10) = %v", got)
	}
	// Very large attempts saturate instead of overflowing.
	if got := b.Delay(1000); got <= 0 {
		t.Errorf("Delay(1000) = %v, overflowed", got)
	}
}

func TestBackoffWithDefaults(t *testing.T) {
	b := Backoff{Base: 100 * time.Millisecond}.withDefaults()
	if b.Base != 100*time.Millisecond {
		t.Errorf("Base = %v", b.Base)
	}
	if b.Cap != 5*time.Second || b.MaxAttempts != 10 {
		t.Errorf("defaults not applied: %+v", b)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Disconnected, "disconnected"},
		{Connecting, "connecting"},
		{Connected, "connected"},
		{Reconnecting, "reconnecting"},
		{State(42), "unknown"},
	}
	for _, tc := range tests {
		if got := tc.s.String(); got != tc.want {
			t.Errorf("State(%d).String() = %q, want %q", tc.s, got, tc.want)
		}
	}
}
