package session_test

import (
	"errors"
	"testing"
	"time"

	"github.com/global-bar/bar-web/pkg/bartest"
	"github.com/global-bar/bar-web/pkg/protocol"
	"github.com/global-bar/bar-web/pkg/session"
)

type harness struct {
	s      *session.Session
	dialer *bartest.FakeDialer
	clock  *bartest.FakeClock
	states []session.State
	envs   []*protocol.Envelope
	opens  int
}

func newHarness(t *testing.T, b session.Backoff) *harness {
	t.Helper()
	h := &harness{
		dialer: &bartest.FakeDialer{},
		clock:  bartest.NewFakeClock(time.Unix(1700000000, 0)),
	}
	h.s = session.New("ws://bar.test/ws/rooms/lobby", &session.Config{
		Backoff:       b,
		Dialer:        h.dialer,
		Clock:         h.clock,
		OnStateChange: func(s session.State) { h.states = append(h.states, s) },
		OnOpen:        func() { h.opens++ },
		OnEnvelope:    func(env *protocol.Envelope) { h.envs = append(h.envs, env) },
	})
	return h
}

func ping(t *testing.T) *protocol.Envelope {
	t.Helper()
	env, err := protocol.Encode(protocol.TypePing, nil, protocol.Route{})
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func TestConnectOpen(t *testing.T) {
	h := newHarness(t, session.DefaultBackoff())

	if h.s.State() != session.Disconnected {
		t.Fatalf("initial State() = %v", h.s.State())
	}
	h.s.Connect()
	if h.s.State() != session.Connecting {
		t.Fatalf("State() = %v, want connecting", h.s.State())
	}
	if h.dialer.Dials() != 1 {
		t.Fatalf("Dials() = %d, want 1", h.dialer.Dials())
	}
	if h.dialer.Last().URL != "ws://bar.test/ws/rooms/lobby" {
		t.Errorf("URL = %q", h.dialer.Last().URL)
	}

	h.dialer.Last().Open()
	if h.s.State() != session.Connected {
		t.Fatalf("State() = %v, want connected", h.s.State())
	}
	if h.opens != 1 {
		t.Errorf("opens = %d, want 1", h.opens)
	}

	want := []session.State{session.Connecting, session.Connected}
	if len(h.states) != len(want) {
		t.Fatalf("states = %v, want %v", h.states, want)
	}
	for i := range want {
		if h.states[i] != want[i] {
			t.Errorf("states[%d] = %v, want %v", i, h.states[i], want[i])
		}
	}
}

func TestConnectIsIdempotentWhileActive(t *testing.T) {
	h := newHarness(t, session.DefaultBackoff())
	h.s.Connect()
	h.s.Connect()
	if h.dialer.Dials() != 1 {
		t.Errorf("Dials() = %d after double connect", h.dialer.Dials())
	}
	h.dialer.Last().Open()
	h.s.Connect()
	if h.dialer.Dials() != 1 {
		t.Errorf("Dials() = %d after connect while connected", h.dialer.Dials())
	}
}

func TestSendRequiresConnected(t *testing.T) {
	h := newHarness(t, session.DefaultBackoff())

	if h.s.Send(ping(t)) {
		t.Error("Send() = true while disconnected")
	}
	h.s.Connect()
	if h.s.Send(ping(t)) {
		t.Error("Send() = true while connecting")
	}
	conn := h.dialer.Last()
	if len(conn.Sent()) != 0 {
		t.Errorf("frames written before open: %d", len(conn.Sent()))
	}

	conn.Open()
	if !h.s.Send(ping(t)) {
		t.Fatal("Send() = false while connected")
	}
	types := conn.SentTypes()
	if len(types) != 1 || types[0] != protocol.TypePing {
		t.Errorf("sent = %v", types)
	}
	if h.s.Send(nil) {
		t.Error("Send(nil) = true")
	}
}

func TestSendWriteFailure(t *testing.T) {
	h := newHarness(t, session.DefaultBackoff())
	h.s.Connect()
	conn := h.dialer.Last()
	conn.Open()
	conn.SendErr = errors.New("broken pipe")

	if h.s.Send(ping(t)) {
		t.Error("Send() = true on write failure")
	}
	if h.s.State() != session.Connected {
		t.Errorf("State() = %v, write failure must not change state", h.s.State())
	}
}

func TestInboundEnvelopes(t *testing.T) {
	h := newHarness(t, session.DefaultBackoff())
	h.s.Connect()
	conn := h.dialer.Last()
	conn.Open()

	conn.Deliver([]byte(`{"v":1,"type":"pong"}`))
	conn.Deliver([]byte(`not json`))
	conn.Deliver([]byte(`{"v":7,"type":"pong"}`))
	conn.Deliver([]byte(`{"v":1,"type":"room.weather"}`))
	conn.DeliverEvent(protocol.TypeUserLeft, protocol.UserLeft{UserID: "u2"})

	if len(h.envs) != 3 {
		t.Fatalf("delivered %d envelopes, want 3", len(h.envs))
	}
	wantTypes := []protocol.MessageType{protocol.TypePong, "room.weather", protocol.TypeUserLeft}
	for i, want := range wantTypes {
		if h.envs[i].Type != want {
			t.Errorf("envs[%d].Type = %q, want %q", i, h.envs[i].Type, want)
		}
	}
	if h.s.State() != session.Connected {
		t.Errorf("State() = %v, malformed input must not affect the connection", h.s.State())
	}
}

func TestReconnectAfterDrop(t *testing.T) {
	h := newHarness(t, session.DefaultBackoff())
	h.s.Connect()
	h.dialer.Last().Open()

	h.dialer.Last().Drop(errors.New("reset by peer"))
	if h.s.State() != session.Reconnecting {
		t.Fatalf("State() = %v, want reconnecting", h.s.State())
	}
	if d, ok := h.clock.NextDelay(); !ok || d != 500*time.Millisecond {
		t.Fatalf("NextDelay() = %v, %v; want 500ms", d, ok)
	}

	h.clock.Advance(499 * time.Millisecond)
	if h.dialer.Dials() != 1 {
		t.Fatalf("redialed early")
	}
	h.clock.Advance(time.Millisecond)
	if h.dialer.Dials() != 2 {
		t.Fatalf("Dials() = %d, want 2", h.dialer.Dials())
	}
	if h.s.State() != session.Connecting {
		t.Fatalf("State() = %v, want connecting", h.s.State())
	}

	h.dialer.Last().Open()
	if h.s.Attempt() != 0 {
		t.Errorf("Attempt() = %d after open, want 0", h.s.Attempt())
	}
	if h.opens != 2 {
		t.Errorf("opens = %d, want 2", h.opens)
	}
}

func TestBackoffSequenceAndExhaustion(t *testing.T) {
	b := session.Backoff{Base: 100 * time.Millisecond, Cap: 800 * time.Millisecond, MaxAttempts: 5}
	h := newHarness(t, b)
	h.s.Connect()

	want := []time.Duration{100, 200, 400, 800, 800}
	for k, ms := range want {
		h.dialer.Last().Drop(errors.New("refused"))
		if h.s.State() != session.Reconnecting {
			t.Fatalf("attempt %d: State() = %v", k, h.s.State())
		}
		d, ok := h.clock.NextDelay()
		if !ok || d != ms*time.Millisecond {
			t.Fatalf("attempt %d: delay = %v, want %v", k, d, ms*time.Millisecond)
		}
		h.clock.Advance(d)
	}

	dials := h.dialer.Dials()
	h.dialer.Last().Drop(errors.New("refused"))

	if h.s.State() != session.Disconnected {
		t.Fatalf("State() = %v, want disconnected", h.s.State())
	}
	if !h.s.Exhausted() {
		t.Error("Exhausted() = false")
	}
	if h.clock.Pending() != 0 {
		t.Errorf("Pending() = %d, want no timers", h.clock.Pending())
	}
	h.clock.Advance(time.Hour)
	if h.dialer.Dials() != dials {
		t.Errorf("dialed after exhaustion: %d > %d", h.dialer.Dials(), dials)
	}

	// A fresh Connect starts a new lifecycle.
	h.s.Connect()
	if h.s.Exhausted() || h.s.Attempt() != 0 {
		t.Errorf("Connect did not reset: exhausted=%v attempt=%d", h.s.Exhausted(), h.s.Attempt())
	}
	if h.dialer.Dials() != dials+1 {
		t.Errorf("Dials() = %d, want %d", h.dialer.Dials(), dials+1)
	}
}

func TestCloseCancelsReconnect(t *testing.T) {
	h := newHarness(t, session.DefaultBackoff())
	h.s.Connect()
	conn := h.dialer.Last()
	conn.Open()
	conn.Drop(errors.New("reset"))

	if h.clock.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", h.clock.Pending())
	}
	h.s.Close()
	if h.clock.Pending() != 0 {
		t.Errorf("Pending() = %d after Close", h.clock.Pending())
	}
	if h.s.State() != session.Disconnected {
		t.Errorf("State() = %v", h.s.State())
	}

	notified := len(h.states)
	h.clock.Advance(time.Minute)
	if h.dialer.Dials() != 1 {
		t.Errorf("Dials() = %d after Close", h.dialer.Dials())
	}
	if len(h.states) != notified {
		t.Errorf("notifications after Close: %v", h.states[notified:])
	}
}

func TestCloseSilencesTransport(t *testing.T) {
	h := newHarness(t, session.DefaultBackoff())
	h.s.Connect()
	conn := h.dialer.Last()
	conn.Open()

	h.s.Close()
	if !conn.Closed() {
		t.Error("transport not closed")
	}
	notified := len(h.states)

	// Late callbacks from the old transport are ignored.
	conn.Deliver([]byte(`{"v":1,"type":"pong"}`))
	conn.Drop(errors.New("closed"))

	if len(h.envs) != 0 {
		t.Errorf("envelopes after Close: %d", len(h.envs))
	}
	if len(h.states) != notified {
		t.Errorf("notifications after Close: %v", h.states[notified:])
	}
	if h.clock.Pending() != 0 {
		t.Errorf("reconnect armed after Close")
	}
}

func TestStaleOpenIgnoredAfterRedial(t *testing.T) {
	h := newHarness(t, session.DefaultBackoff())
	h.s.Connect()
	first := h.dialer.Last()
	first.Drop(errors.New("refused"))
	h.clock.Advance(500 * time.Millisecond)
	second := h.dialer.Last()
	if first == second {
		t.Fatal("no redial")
	}

	first.Open()
	if h.s.State() != session.Connecting {
		t.Errorf("State() = %v, stale open was applied", h.s.State())
	}
	second.Open()
	if h.s.State() != session.Connected {
		t.Errorf("State() = %v, want connected", h.s.State())
	}
}

func TestCloseWhileDisconnectedIsQuiet(t *testing.T) {
	h := newHarness(t, session.DefaultBackoff())
	h.s.Close()
	if len(h.states) != 0 {
		t.Errorf("states = %v, want none", h.states)
	}
}
