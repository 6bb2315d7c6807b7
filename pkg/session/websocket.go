package session

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/global-bar/bar-web/pkg/protocol"
	"github.com/gorilla/websocket"
)

// WebSocketDialer opens gorilla/websocket connections.
type WebSocketDialer struct {
	// Dialer is the underlying dialer. Default: websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// Header is sent with the upgrade request.
	Header http.Header

	// HandshakeTimeout bounds the dial. Default: 10s.
	HandshakeTimeout time.Duration

	// ReadTimeout closes the connection when the server goes silent.
	// Default: 60s.
	ReadTimeout time.Duration

	// WriteTimeout bounds each write. Default: 10s.
	WriteTimeout time.Duration

	// ReadLimit bounds a single inbound frame. Default: protocol.MaxEnvelopeBytes.
	ReadLimit int64

	// Logger receives read-loop diagnostics.
	Logger *slog.Logger
}

// Dial starts connecting in the background and returns immediately.
func (d *WebSocketDialer) Dial(url string, h ConnHandler) Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &wsConn{
		url:          url,
		cancel:       cancel,
		readTimeout:  orDuration(d.ReadTimeout, 60*time.Second),
		writeTimeout: orDuration(d.WriteTimeout, 10*time.Second),
		logger:       d.Logger,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "websocket")

	go c.run(ctx, d, h)
	return c
}

type wsConn struct {
	url          string
	cancel       context.CancelFunc
	readTimeout  time.Duration
	writeTimeout time.Duration
	logger       *slog.Logger

	mu     sync.Mutex // guards ws and closed; serializes writes
	ws     *websocket.Conn
	closed bool
}

func (c *wsConn) run(ctx context.Context, d *WebSocketDialer, h ConnHandler) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	dialCtx, cancel := context.WithTimeout(ctx, orDuration(d.HandshakeTimeout, 10*time.Second))
	ws, resp, err := dialer.DialContext(dialCtx, c.url, d.Header)
	cancel()
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		h.OnClose(&ConnError{Op: "dial", URL: c.url, Err: err})
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ws.Close()
		h.OnClose(ErrClosed)
		return
	}
	c.ws = ws
	c.mu.Unlock()

	limit := d.ReadLimit
	if limit <= 0 {
		limit = protocol.MaxEnvelopeBytes
	}
	ws.SetReadLimit(limit)
	ws.SetPingHandler(func(appData string) error {
		ws.SetReadDeadline(time.Now().Add(c.readTimeout))
		err := ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	h.OnOpen()
	h.OnClose(c.readLoop(ws, h))
}

// readLoop delivers data frames until the connection fails.
func (c *wsConn) readLoop(ws *websocket.Conn, h ConnHandler) error {
	for {
		ws.SetReadDeadline(time.Now().Add(c.readTimeout))

		msgType, msg, err := ws.ReadMessage()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return &ConnError{Op: "read", URL: c.url, Err: ErrReadTimeout}
			}
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.logger.Warn("read error", "error", err)
			}
			return &ConnError{Op: "read", URL: c.url, Err: err}
		}

		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		h.OnMessage(msg)
	}
}

func (c *wsConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.ws == nil {
		return ErrNotConnected
	}
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return &ConnError{Op: "write", URL: c.url, Err: err}
	}
	return nil
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.cancel()

	if c.ws == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
	return c.ws.Close()
}

func orDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
