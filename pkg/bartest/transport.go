package bartest

import (
	"sync"

	"github.com/global-bar/bar-web/pkg/protocol"
	"github.com/global-bar/bar-web/pkg/session"
)

// FakeDialer records dials and hands out FakeConns.
type FakeDialer struct {
	// OnDial, if set, is called with each new connection before Dial
	// returns. Tests use it to open or fail connections automatically.
	OnDial func(*FakeConn)

	mu    sync.Mutex
	conns []*FakeConn
}

// Dial implements session.Dialer.
func (d *FakeDialer) Dial(url string, h session.ConnHandler) session.Conn {
	c := &FakeConn{URL: url, handler: h}
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	if d.OnDial != nil {
		d.OnDial(c)
	}
	return c
}

// Dials returns the number of Dial calls.
func (d *FakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// Last returns the most recent connection, or nil.
func (d *FakeDialer) Last() *FakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// FakeConn is a scripted transport.
type FakeConn struct {
	URL string

	// SendErr, if set, is returned by Send.
	SendErr error

	handler session.ConnHandler

	mu     sync.Mutex
	sent   [][]byte
	open   bool
	closed bool
}

// Open reports the transport as open.
func (c *FakeConn) Open() {
	c.mu.Lock()
	c.open = true
	c.mu.Unlock()
	c.handler.OnOpen()
}

// Deliver hands a raw inbound frame to the session.
func (c *FakeConn) Deliver(raw []byte) {
	c.handler.OnMessage(raw)
}

// DeliverEvent encodes an inbound envelope of type t and delivers it.
func (c *FakeConn) DeliverEvent(t protocol.MessageType, payload any) {
	env, err := protocol.Encode(t, payload, protocol.Route{})
	if err != nil {
		panic(err)
	}
	raw, err := protocol.Marshal(env)
	if err != nil {
		panic(err)
	}
	c.Deliver(raw)
}

// Drop reports the transport as closed by the peer or the network.
func (c *FakeConn) Drop(err error) {
	c.mu.Lock()
	c.open = false
	c.mu.Unlock()
	c.handler.OnClose(err)
}

// Send implements session.Conn.
func (c *FakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SendErr != nil {
		return c.SendErr
	}
	if c.closed {
		return session.ErrClosed
	}
	if !c.open {
		return session.ErrNotConnected
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

// Close implements session.Conn.
func (c *FakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.open = false
	return nil
}

// Closed reports whether the session closed the transport.
func (c *FakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Sent decodes every frame written so far.
func (c *FakeConn) Sent() []*protocol.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*protocol.Envelope, 0, len(c.sent))
	for _, raw := range c.sent {
		env, err := protocol.Decode(raw)
		if err != nil {
			panic(err)
		}
		out = append(out, env)
	}
	return out
}

// SentTypes returns the types of every frame written so far.
func (c *FakeConn) SentTypes() []protocol.MessageType {
	envs := c.Sent()
	out := make([]protocol.MessageType, len(envs))
	for i, env := range envs {
		out[i] = env.Type
	}
	return out
}
