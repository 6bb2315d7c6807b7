package session

// Dialer opens transports. Dial must not block: the connection completes in
// the background and reports through the handler, the way a browser
// WebSocket does.
type Dialer interface {
	Dial(url string, h ConnHandler) Conn
}

// ConnHandler receives transport events. Implementations may be called from
// any goroutine. After OnClose no further calls are made.
type ConnHandler interface {
	OnOpen()
	OnMessage(data []byte)
	OnClose(err error)
}

// Conn is an open or opening transport.
type Conn interface {
	// Send writes one frame. It fails with ErrNotConnected before open and
	// ErrClosed after Close.
	Send(data []byte) error

	// Close shuts the transport down. The handler may still receive OnClose.
	Close() error
}
