package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/global-bar/bar-web/pkg/bartest"
	"github.com/global-bar/bar-web/pkg/loop"
	"github.com/global-bar/bar-web/pkg/protocol"
	"github.com/global-bar/bar-web/pkg/session"
)

type liveSession struct {
	s      *session.Session
	l      *loop.Loop
	states chan session.State
	envs   chan *protocol.Envelope
}

func newLiveSession(t *testing.T, url string, b session.Backoff) *liveSession {
	t.Helper()
	ls := &liveSession{
		l:      loop.New(nil),
		states: make(chan session.State, 64),
		envs:   make(chan *protocol.Envelope, 64),
	}
	ctx, cancel := context.WithCancel(context.Background())
	go ls.l.Run(ctx)
	t.Cleanup(func() {
		closed := make(chan struct{})
		ls.l.Post(func() {
			ls.s.Close()
			close(closed)
		})
		select {
		case <-closed:
		case <-time.After(5 * time.Second):
			t.Error("session did not close")
		}
		cancel()
		<-ls.l.Done()
	})

	ls.s = session.New(url, &session.Config{
		Backoff:       b,
		Dialer:        &session.WebSocketDialer{HandshakeTimeout: 2 * time.Second},
		Executor:      ls.l,
		OnStateChange: func(s session.State) { ls.states <- s },
		OnEnvelope:    func(env *protocol.Envelope) { ls.envs <- env },
	})
	return ls
}

func (ls *liveSession) waitState(t *testing.T, want session.State) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-ls.states:
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %v (now %v)", want, ls.s.State())
		}
	}
}

func (ls *liveSession) waitType(t *testing.T, want protocol.MessageType) *protocol.Envelope {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case env := <-ls.envs:
			if env.Type == want {
				return env
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
			return nil
		}
	}
}

func (ls *liveSession) send(t *testing.T, typ protocol.MessageType, payload any) bool {
	t.Helper()
	env, err := protocol.Encode(typ, payload, protocol.Route{})
	if err != nil {
		t.Fatal(err)
	}
	result := make(chan bool, 1)
	ls.l.Post(func() { result <- ls.s.Send(env) })
	return <-result
}

func TestWebSocketJoinRoundTrip(t *testing.T) {
	srv := bartest.NewServer(t)
	ls := newLiveSession(t, srv.URL+"/ws/rooms/lobby", session.DefaultBackoff())

	ls.l.Post(ls.s.Connect)
	ls.waitState(t, session.Connected)

	if !ls.send(t, protocol.TypeJoin, protocol.Join{Nickname: "nova"}) {
		t.Fatal("Send(join) = false")
	}
	ack := ls.waitType(t, protocol.TypeJoinAck)
	ev, err := protocol.ParseEvent(ack)
	if err != nil {
		t.Fatal(err)
	}
	if ev.(*protocol.JoinAck).UserID == "" {
		t.Error("join.ack without user id")
	}
	ls.waitType(t, protocol.TypeSnapshot)

	if !ls.send(t, protocol.TypePing, nil) {
		t.Fatal("Send(ping) = false")
	}
	ls.waitType(t, protocol.TypePong)

	rooms := srv.Rooms()
	if len(rooms) != 1 || rooms[0] != "lobby" {
		t.Errorf("Rooms() = %v", rooms)
	}
}

func TestWebSocketReconnectsAfterDrop(t *testing.T) {
	srv := bartest.NewServer(t)
	b := session.Backoff{Base: 10 * time.Millisecond, Cap: 50 * time.Millisecond, MaxAttempts: 5}
	ls := newLiveSession(t, srv.URL+"/ws/rooms/lobby", b)

	ls.l.Post(ls.s.Connect)
	ls.waitState(t, session.Connected)

	srv.DropAll()
	ls.waitState(t, session.Reconnecting)
	ls.waitState(t, session.Connected)

	if !ls.send(t, protocol.TypePing, nil) {
		t.Fatal("Send() = false after reconnect")
	}
	ls.waitType(t, protocol.TypePong)
}

func TestWebSocketDialFailureExhausts(t *testing.T) {
	b := session.Backoff{Base: time.Millisecond, Cap: 2 * time.Millisecond, MaxAttempts: 2}
	// Port 1 on loopback refuses connections.
	ls := newLiveSession(t, "ws://127.0.0.1:1/ws/rooms/lobby", b)

	ls.l.Post(ls.s.Connect)
	ls.waitState(t, session.Reconnecting)

	deadline := time.After(5 * time.Second)
	for {
		done := make(chan bool, 1)
		ls.l.Post(func() { done <- ls.s.Exhausted() })
		if <-done {
			break
		}
		select {
		case <-deadline:
			t.Fatal("session never exhausted")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if ls.s.State() != session.Disconnected {
		t.Errorf("State() = %v, want disconnected", ls.s.State())
	}
}

func TestWebSocketConnSendBeforeOpen(t *testing.T) {
	d := &session.WebSocketDialer{HandshakeTimeout: 100 * time.Millisecond}
	h := &recordingHandler{closed: make(chan error, 1)}
	conn := d.Dial("ws://127.0.0.1:1/ws/rooms/x", h)

	err := conn.Send([]byte("{}"))
	if !errors.Is(err, session.ErrNotConnected) && !errors.Is(err, session.ErrClosed) {
		t.Errorf("Send() error = %v", err)
	}

	select {
	case err := <-h.closed:
		var ce *session.ConnError
		if !errors.As(err, &ce) || ce.Op != "dial" {
			t.Errorf("OnClose error = %v, want dial ConnError", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("OnClose not called")
	}

	if err := conn.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := conn.Send([]byte("{}")); !errors.Is(err, session.ErrClosed) {
		t.Errorf("Send() after Close error = %v, want ErrClosed", err)
	}
}

type recordingHandler struct {
	closed chan error
}

func (h *recordingHandler) OnOpen()           {}
func (h *recordingHandler) OnMessage([]byte)  {}
func (h *recordingHandler) OnClose(err error) { h.closed <- err }
