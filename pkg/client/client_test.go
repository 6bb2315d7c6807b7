package client_test

import (
	"errors"
	"testing"
	"time"

	"github.com/global-bar/bar-web/pkg/bartest"
	"github.com/global-bar/bar-web/pkg/client"
	"github.com/global-bar/bar-web/pkg/collision"
	"github.com/global-bar/bar-web/pkg/pacing"
	"github.com/global-bar/bar-web/pkg/protocol"
	"github.com/global-bar/bar-web/pkg/session"
	"github.com/global-bar/bar-web/pkg/world"
)

type harness struct {
	c        *client.Client
	dialer   *bartest.FakeDialer
	clock    *bartest.FakeClock
	statuses []session.State
	worlds   int
	errs     []*protocol.ServerError
}

func newHarness(t *testing.T, opts client.Options) *harness {
	t.Helper()
	h := &harness{
		dialer: &bartest.FakeDialer{},
		clock:  bartest.NewFakeClock(time.Unix(1700000000, 0)),
	}
	opts.Dialer = h.dialer
	opts.Clock = h.clock
	h.c = client.New(&opts)
	h.c.OnStatus(func(s session.State) { h.statuses = append(h.statuses, s) })
	h.c.OnWorld(func(*world.World) { h.worlds++ })
	h.c.OnServerError(func(e *protocol.ServerError) { h.errs = append(h.errs, e) })
	return h
}

// join connects to room "bar" as nova and plays the server side of the
// join handshake, leaving u1 at (x, y) and u2 at (200, 120).
func (h *harness) join(t *testing.T, x, y float64) *bartest.FakeConn {
	t.Helper()
	if err := h.c.Connect("http://bar.test", "bar", "nova"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	conn := h.dialer.Last()
	conn.Open()
	conn.DeliverEvent(protocol.TypeJoinAck, protocol.JoinAck{
		UserID:      "u1",
		TickRate:    20,
		MoveLimitHz: 15,
		World:       protocol.WorldSize{W: 960, H: 540},
	})
	conn.DeliverEvent(protocol.TypeSnapshot, protocol.Snapshot{
		You:   protocol.UserData{UserID: "u1", X: x, Y: y, Nickname: "nova"},
		Users: []protocol.UserData{{UserID: "u2", X: 200, Y: 120, Nickname: "rex"}},
	})
	return conn
}

func sentOf(conn *bartest.FakeConn, t protocol.MessageType) []*protocol.Envelope {
	var out []*protocol.Envelope
	for _, env := range conn.Sent() {
		if env.Type == t {
			out = append(out, env)
		}
	}
	return out
}

func TestRoomURL(t *testing.T) {
	tests := []struct {
		base, room string
		want       string
		wantErr    bool
	}{
		{"http://localhost:8080", "bar", "ws://localhost:8080/ws/rooms/bar", false},
		{"https://bar.example.com/", "main", "wss://bar.example.com/ws/rooms/main", false},
		{"ws://host", "a b", "ws://host/ws/rooms/a%20b", false},
		{"wss://host/api", "x/y", "wss://host/api/ws/rooms/x%2Fy", false},
		{"ftp://host", "bar", "", true},
		{"localhost:8080", "bar", "", true},
		{"http://", "bar", "", true},
	}
	for _, tt := range tests {
		got, err := client.RoomURL(tt.base, tt.room)
		if tt.wantErr {
			if err == nil {
				t.Errorf("RoomURL(%q, %q) = %q, want error", tt.base, tt.room, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("RoomURL(%q, %q) = %q, %v; want %q", tt.base, tt.room, got, err, tt.want)
		}
	}
}

func TestConnectSendsJoinOnOpen(t *testing.T) {
	h := newHarness(t, client.Options{})

	if err := h.c.Connect("http://bar.test", "", "nova"); !errors.Is(err, client.ErrNoRoom) {
		t.Fatalf("Connect without room: err = %v", err)
	}
	if err := h.c.Connect("http://bar.test", "bar", "nova"); err != nil {
		t.Fatal(err)
	}
	conn := h.dialer.Last()
	if conn.URL != "ws://bar.test/ws/rooms/bar" {
		t.Errorf("URL = %q", conn.URL)
	}
	if h.c.Status() != session.Connecting {
		t.Errorf("Status() = %v", h.c.Status())
	}
	if h.c.Snapshot().RoomID != "bar" {
		t.Errorf("world room = %q", h.c.Snapshot().RoomID)
	}

	conn.Open()
	joins := sentOf(conn, protocol.TypeJoin)
	if len(joins) != 1 {
		t.Fatalf("sent %v, want one join", conn.SentTypes())
	}
	if joins[0].RoomID != "bar" {
		t.Errorf("join roomId = %q", joins[0].RoomID)
	}
	if got := string(joins[0].Payload); got != `{"nickname":"nova","avatar":{"skin":"default","color":"cyan"}}` {
		t.Errorf("join payload = %s", got)
	}

	want := []session.State{session.Connecting, session.Connected}
	if len(h.statuses) != len(want) {
		t.Fatalf("statuses = %v, want %v", h.statuses, want)
	}
	for i := range want {
		if h.statuses[i] != want[i] {
			t.Errorf("statuses[%d] = %v, want %v", i, h.statuses[i], want[i])
		}
	}
}

func TestJoinPopulatesWorld(t *testing.T) {
	h := newHarness(t, client.Options{})
	h.join(t, 100, 100)

	w := h.c.Snapshot()
	if w.Me != "u1" {
		t.Fatalf("Me = %q", w.Me)
	}
	if w.Size != (protocol.WorldSize{W: 960, H: 540}) {
		t.Errorf("Size = %+v", w.Size)
	}
	if w.Rules == nil || w.Rules.MoveLimitHz != 15 {
		t.Errorf("Rules = %+v", w.Rules)
	}
	self := w.Self()
	if self == nil || self.Pos != (world.Vec2{X: 100, Y: 100}) || self.Nickname != "nova" {
		t.Fatalf("Self() = %+v", self)
	}
	if len(w.Users) != 2 {
		t.Errorf("users = %v", w.IDs())
	}
	if h.worlds < 3 {
		t.Errorf("OnWorld called %d times", h.worlds)
	}

	conn := h.dialer.Last()
	conn.DeliverEvent(protocol.TypeUserLeft, protocol.UserLeft{UserID: "u2"})
	conn.DeliverEvent(protocol.TypeUserLeft, protocol.UserLeft{UserID: "u2"})
	if got := h.c.Snapshot().IDs(); len(got) != 1 || got[0] != "u1" {
		t.Errorf("after user.left: %v", got)
	}
}

func TestInvalidEventDropped(t *testing.T) {
	h := newHarness(t, client.Options{})
	conn := h.join(t, 100, 100)
	before := h.c.Snapshot()

	conn.DeliverEvent(protocol.TypeUserLeft, map[string]any{})
	conn.DeliverEvent(protocol.TypeUserMoved, map[string]any{"userId": "u2"})
	conn.Deliver([]byte(`not json`))
	conn.DeliverEvent(protocol.MessageType("room.weather"), map[string]any{"rain": true})

	if h.c.Snapshot() != before {
		t.Error("world changed on invalid input")
	}
	if h.c.Status() != session.Connected {
		t.Errorf("Status() = %v", h.c.Status())
	}
}

func TestServerErrorNotifies(t *testing.T) {
	h := newHarness(t, client.Options{})
	conn := h.join(t, 100, 100)

	conn.DeliverEvent(protocol.TypeError, protocol.ServerError{Code: "RATE_LIMIT", Message: "slow down"})
	if len(h.errs) != 1 || h.errs[0].Code != "RATE_LIMIT" {
		t.Fatalf("errs = %+v", h.errs)
	}
	if h.c.Status() != session.Connected {
		t.Errorf("server error changed status to %v", h.c.Status())
	}
}

func TestSendChat(t *testing.T) {
	h := newHarness(t, client.Options{})

	if err := h.c.SendChat("hi"); !errors.Is(err, session.ErrNotConnected) {
		t.Errorf("before connect: err = %v", err)
	}
	if err := h.c.Connect("http://bar.test", "bar", "nova"); err != nil {
		t.Fatal(err)
	}
	conn := h.dialer.Last()
	conn.Open()
	if err := h.c.SendChat("hi"); !errors.Is(err, client.ErrNotJoined) {
		t.Errorf("before join.ack: err = %v", err)
	}

	conn = h.join(t, 100, 100)
	if err := h.c.SendChat("   "); !errors.Is(err, client.ErrEmptyChat) {
		t.Errorf("blank: err = %v", err)
	}
	if err := h.c.SendChat("  hello bar  "); err != nil {
		t.Fatalf("SendChat: %v", err)
	}
	says := sentOf(conn, protocol.TypeChatSay)
	if len(says) != 1 {
		t.Fatalf("sent %v", conn.SentTypes())
	}
	if says[0].UserID != "u1" || says[0].RoomID != "bar" {
		t.Errorf("route = %q/%q", says[0].RoomID, says[0].UserID)
	}
	if got := string(says[0].Payload); got != `{"text":"hello bar","bubbleTtlMs":3000}` {
		t.Errorf("payload = %s", got)
	}

	conn.DeliverEvent(protocol.TypeChatMessage, protocol.ChatMessage{
		MessageID: "m1", FromUserID: "u1", Text: "hello bar", At: "2024-01-01T00:00:00.000Z",
	})
	w := h.c.Snapshot()
	if len(w.Chat) != 1 || w.Chat[0].Nickname != "nova" {
		t.Errorf("chat = %+v", w.Chat)
	}
	if b := w.Self().ActiveBubble(h.clock.Now()); b == nil || b.Text != "hello bar" {
		t.Errorf("bubble = %+v", b)
	}
	if b := w.Self().ActiveBubble(h.clock.Now().Add(3 * time.Second)); b != nil {
		t.Errorf("bubble alive at expiry: %+v", b)
	}
}

func TestSendMoveIntentRateLimited(t *testing.T) {
	h := newHarness(t, client.Options{})
	conn := h.join(t, 100, 100)

	keys := protocol.Keys{Right: true}
	if err := h.c.SendMoveIntent(keys); err != nil {
		t.Fatalf("first intent: %v", err)
	}
	if err := h.c.SendMoveIntent(keys); !errors.Is(err, client.ErrRateLimited) {
		t.Errorf("second intent: err = %v", err)
	}
	h.clock.Advance(70 * time.Millisecond)
	if err := h.c.SendMoveIntent(keys); err != nil {
		t.Errorf("after interval: %v", err)
	}

	intents := sentOf(conn, protocol.TypeMoveIntent)
	if len(intents) != 2 {
		t.Fatalf("sent %d intents, want 2", len(intents))
	}
	if got := string(intents[0].Payload); got != `{"keys":{"up":false,"down":false,"left":false,"right":true},"clientTick":1700000000000}` {
		t.Errorf("payload = %s", got)
	}
}

func TestSendMoveIntentGated(t *testing.T) {
	// 5×5 room of 16px tiles walled on every side.
	cells := make([]bool, 25)
	for i := 0; i < 5; i++ {
		cells[i], cells[20+i], cells[i*5], cells[i*5+4] = true, true, true, true
	}
	grid, err := collision.NewGrid(5, 5, 16, 16, cells)
	if err != nil {
		t.Fatal(err)
	}
	h := newHarness(t, client.Options{Grid: grid})
	conn := h.join(t, 24, 24)

	if err := h.c.SendMoveIntent(protocol.Keys{Left: true}); !errors.Is(err, client.ErrBlocked) {
		t.Errorf("into wall: err = %v", err)
	}
	if err := h.c.SendMoveIntent(protocol.Keys{Left: true, Down: true}); err != nil {
		t.Fatalf("slide: %v", err)
	}
	intents := sentOf(conn, protocol.TypeMoveIntent)
	if len(intents) != 1 {
		t.Fatalf("sent %d intents", len(intents))
	}
	if got := string(intents[0].Payload); got != `{"keys":{"up":false,"down":true,"left":false,"right":false},"clientTick":1700000000000}` {
		t.Errorf("payload = %s", got)
	}
}

func TestIntentPump(t *testing.T) {
	h := newHarness(t, client.Options{})
	conn := h.join(t, 100, 100)

	var keys client.KeyState
	h.c.StartInput(&keys)

	h.clock.Advance(70 * time.Millisecond)
	if n := len(sentOf(conn, protocol.TypeMoveIntent)); n != 0 {
		t.Fatalf("idle pump sent %d intents", n)
	}

	keys.Press("w")
	h.clock.Advance(67 * time.Millisecond)
	h.clock.Advance(67 * time.Millisecond)
	if n := len(sentOf(conn, protocol.TypeMoveIntent)); n != 2 {
		t.Fatalf("held key: %d intents, want 2", n)
	}

	keys.Release("w")
	h.clock.Advance(200 * time.Millisecond)
	if n := len(sentOf(conn, protocol.TypeMoveIntent)); n != 2 {
		t.Errorf("released key: %d intents, want 2", n)
	}

	keys.Press("ArrowLeft")
	h.c.StopInput()
	h.clock.Advance(200 * time.Millisecond)
	if n := len(sentOf(conn, protocol.TypeMoveIntent)); n != 2 {
		t.Errorf("stopped pump: %d intents, want 2", n)
	}
}

func TestIntentPumpFollowsMoveLimit(t *testing.T) {
	h := newHarness(t, client.Options{HeartbeatInterval: -1})
	if err := h.c.Connect("http://bar.test", "bar", "nova"); err != nil {
		t.Fatal(err)
	}
	conn := h.dialer.Last()
	conn.Open()

	var keys client.KeyState
	keys.Press("d")
	h.c.StartInput(&keys)
	conn.DeliverEvent(protocol.TypeJoinAck, protocol.JoinAck{UserID: "u1", MoveLimitHz: 5})

	if d, ok := h.clock.NextDelay(); !ok || d != 200*time.Millisecond {
		t.Fatalf("pump interval = %v, %v; want 200ms", d, ok)
	}
	h.clock.Advance(150 * time.Millisecond)
	if n := len(sentOf(conn, protocol.TypeMoveIntent)); n != 0 {
		t.Fatalf("early intent: %d", n)
	}
	h.clock.Advance(50 * time.Millisecond)
	if n := len(sentOf(conn, protocol.TypeMoveIntent)); n != 1 {
		t.Errorf("intents = %d, want 1", n)
	}
}

func TestHeartbeatMeasuresRTT(t *testing.T) {
	h := newHarness(t, client.Options{HeartbeatInterval: time.Second})
	conn := h.join(t, 100, 100)

	h.clock.Advance(time.Second)
	if n := len(sentOf(conn, protocol.TypePing)); n != 1 {
		t.Fatalf("pings = %d, want 1", n)
	}
	h.clock.Advance(40 * time.Millisecond)
	conn.DeliverEvent(protocol.TypePong, nil)
	if got := h.c.RTT(); got != 40*time.Millisecond {
		t.Errorf("RTT() = %v, want 40ms", got)
	}

	// A stray pong does not change the measurement.
	h.clock.Advance(10 * time.Millisecond)
	conn.DeliverEvent(protocol.TypePong, nil)
	if got := h.c.RTT(); got != 40*time.Millisecond {
		t.Errorf("RTT() after stray pong = %v", got)
	}
}

func TestHeartbeatStopsWhenDisconnected(t *testing.T) {
	h := newHarness(t, client.Options{HeartbeatInterval: time.Second})
	conn := h.join(t, 100, 100)
	h.c.Disconnect()

	if h.clock.Pending() != 0 {
		t.Errorf("pending timers after Disconnect: %d", h.clock.Pending())
	}
	h.clock.Advance(5 * time.Second)
	if n := len(sentOf(conn, protocol.TypePing)); n != 0 {
		t.Errorf("pings after Disconnect: %d", n)
	}
}

func TestDisconnectResetsWorld(t *testing.T) {
	h := newHarness(t, client.Options{})
	conn := h.join(t, 100, 100)
	h.c.Disconnect()

	if !conn.Closed() {
		t.Error("transport not closed")
	}
	w := h.c.Snapshot()
	if w.RoomID != "" || len(w.Users) != 0 || w.Me != "" {
		t.Errorf("world after Disconnect = %+v", w)
	}
	if h.c.Status() != session.Disconnected {
		t.Errorf("Status() = %v", h.c.Status())
	}
	if last := h.statuses[len(h.statuses)-1]; last != session.Disconnected {
		t.Errorf("last status = %v", last)
	}
	h.clock.Advance(time.Minute)
	if h.dialer.Dials() != 1 {
		t.Errorf("dials after Disconnect = %d", h.dialer.Dials())
	}
}

func TestConnectReplacesSession(t *testing.T) {
	h := newHarness(t, client.Options{})
	first := h.join(t, 100, 100)

	if err := h.c.Connect("ws://bar.test", "patio", "nova"); err != nil {
		t.Fatal(err)
	}
	if !first.Closed() {
		t.Error("previous transport not closed")
	}
	if h.c.Snapshot().RoomID != "patio" || len(h.c.Snapshot().Users) != 0 {
		t.Errorf("world not reset: %+v", h.c.Snapshot())
	}
	first.DeliverEvent(protocol.TypeUserJoined, protocol.UserJoined{User: protocol.UserData{UserID: "ghost"}})
	if h.c.Snapshot().User("ghost") != nil {
		t.Error("event from replaced session applied")
	}
	if h.dialer.Last().URL != "ws://bar.test/ws/rooms/patio" {
		t.Errorf("URL = %q", h.dialer.Last().URL)
	}
}

func TestReconnectResendsJoin(t *testing.T) {
	h := newHarness(t, client.Options{})
	first := h.join(t, 100, 100)

	first.Drop(errors.New("network down"))
	if h.c.Status() != session.Reconnecting {
		t.Fatalf("Status() = %v", h.c.Status())
	}
	h.clock.Advance(500 * time.Millisecond)
	if h.dialer.Dials() != 2 {
		t.Fatalf("Dials() = %d, want 2", h.dialer.Dials())
	}
	second := h.dialer.Last()
	second.Open()
	if n := len(sentOf(second, protocol.TypeJoin)); n != 1 {
		t.Errorf("joins on reconnect = %d", n)
	}
	if h.c.Status() != session.Connected {
		t.Errorf("Status() = %v", h.c.Status())
	}
}

func TestUnsubscribe(t *testing.T) {
	c := client.New(&client.Options{Dialer: &bartest.FakeDialer{}})
	calls := 0
	unsub := c.OnStatus(func(session.State) { calls++ })
	if err := c.Connect("ws://bar.test", "bar", "nova"); err != nil {
		t.Fatal(err)
	}
	unsub()
	unsub()
	c.Disconnect()
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestStartRendering(t *testing.T) {
	h := newHarness(t, client.Options{})
	conn := h.join(t, 100, 100)
	frames := &bartest.FakeFrames{}

	var rendered int
	h.c.StartRendering(frames, pacing.RendererFunc(func(*world.World, time.Time) { rendered++ }))
	conn.DeliverEvent(protocol.TypeUserMoved, protocol.UserMoved{UserID: "u2", X: 260, Y: 120})
	notified := h.worlds

	start := h.clock.Now()
	frames.Tick(start)
	frames.Tick(start.Add(16 * time.Millisecond))

	u2 := h.c.Snapshot().User("u2")
	if u2.Pos.X != 260 {
		t.Fatalf("Pos = %v", u2.Pos)
	}
	if u2.RenderPos.X <= 200 || u2.RenderPos.X >= 260 {
		t.Errorf("RenderPos = %v, want strictly between 200 and 260", u2.RenderPos)
	}
	if u2.Facing != world.FacingRight {
		t.Errorf("Facing = %v", u2.Facing)
	}
	if rendered != 2 {
		t.Errorf("rendered = %d", rendered)
	}
	if h.worlds != notified {
		t.Error("frames notified OnWorld observers")
	}

	h.c.StopRendering()
	if frames.Subscribers() != 0 {
		t.Error("pacer still subscribed")
	}
}
