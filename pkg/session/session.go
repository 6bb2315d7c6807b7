package session

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/global-bar/bar-web/pkg/loop"
	"github.com/global-bar/bar-web/pkg/metrics"
	"github.com/global-bar/bar-web/pkg/protocol"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/global-bar/bar-web/pkg/session"

// Config configures a Session. Zero fields take defaults.
type Config struct {
	// Backoff is the reconnect policy. Default: DefaultBackoff().
	Backoff Backoff

	// Dialer opens transports. Default: &WebSocketDialer{}.
	Dialer Dialer

	// Executor serializes all session work. Default: loop.Inline, which is
	// only correct when the Dialer calls back on the caller's goroutine.
	// Production callers pass a *loop.Loop.
	Executor loop.Executor

	// Clock drives the reconnect timer. Default: loop.System.
	Clock loop.Clock

	// Logger receives transport and decode diagnostics.
	Logger *slog.Logger

	// Metrics is optional.
	Metrics *metrics.Collector

	// Tracer records one span per dial attempt. Default: the global
	// OpenTelemetry tracer.
	Tracer trace.Tracer

	// OnStateChange is called on every state change.
	OnStateChange func(State)

	// OnOpen is called after the transport opens, once the state is
	// Connected.
	OnOpen func()

	// OnEnvelope receives every successfully decoded inbound envelope, in
	// delivery order.
	OnEnvelope func(*protocol.Envelope)
}

// Session is one logical connection lifecycle. See the package
// documentation for the state machine.
type Session struct {
	url     string
	backoff Backoff
	dialer  Dialer
	exec    loop.Executor
	clock   loop.Clock
	logger  *slog.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer

	onStateChange func(State)
	onOpen        func()
	onEnvelope    func(*protocol.Envelope)

	// Owned by the executor.
	state     State
	attempt   int
	exhausted bool
	gen       uint64 // bumped on every dial and on Close; stale callbacks compare against it
	conn      Conn
	timer     loop.Timer
	span      trace.Span

	published atomic.Uint32
}

// New creates a session for url in the Disconnected state.
func New(url string, cfg *Config) *Session {
	if cfg == nil {
		cfg = &Config{}
	}
	s := &Session{
		url:           url,
		backoff:       cfg.Backoff.withDefaults(),
		dialer:        cfg.Dialer,
		exec:          cfg.Executor,
		clock:         cfg.Clock,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		tracer:        cfg.Tracer,
		onStateChange: cfg.OnStateChange,
		onOpen:        cfg.OnOpen,
		onEnvelope:    cfg.OnEnvelope,
	}
	if s.dialer == nil {
		s.dialer = &WebSocketDialer{}
	}
	if s.exec == nil {
		s.exec = loop.Inline{}
	}
	if s.clock == nil {
		s.clock = loop.System
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "session", "url", url)
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s
}

// URL returns the endpoint.
func (s *Session) URL() string { return s.url }

// State returns the current state. It is safe to call from any goroutine.
func (s *Session) State() State {
	return State(s.published.Load())
}

// Attempt returns the number of reconnects since the last successful open.
func (s *Session) Attempt() int { return s.attempt }

// Exhausted reports whether the session gave up reconnecting. A new Connect
// clears it.
func (s *Session) Exhausted() bool { return s.exhausted }

// Connect starts a connection. It is a no-op while Connecting or Connected;
// from Reconnecting it dials immediately. Connect after exhaustion or Close
// starts a fresh lifecycle with the attempt counter at zero.
func (s *Session) Connect() {
	switch s.state {
	case Connecting, Connected:
		return
	case Disconnected:
		s.attempt = 0
		s.exhausted = false
	}
	s.dial()
}

// Send writes env if the session is Connected. It reports false, with no
// side effect on the session, otherwise or when the write fails.
func (s *Session) Send(env *protocol.Envelope) bool {
	if env == nil {
		return false
	}
	if s.state != Connected || s.conn == nil {
		s.metrics.RecordDropped(env.Type.String())
		return false
	}
	raw, err := protocol.Marshal(env)
	if err != nil {
		s.logger.Error("marshal envelope", "type", env.Type, "error", err)
		return false
	}
	if err := s.conn.Send(raw); err != nil {
		s.logger.Warn("send failed", "type", env.Type, "error", err)
		s.metrics.RecordDropped(env.Type.String())
		return false
	}
	s.metrics.RecordSent(env.Type.String())
	return true
}

// Close shuts the session down without retrying. The pending reconnect timer
// is cancelled before Close returns, and no notification follows the final
// Disconnected.
func (s *Session) Close() {
	s.gen++
	s.cancelTimer()
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Debug("close transport", "error", err)
		}
		s.conn = nil
	}
	s.endSpan(nil)
	s.setState(Disconnected)
}

func (s *Session) dial() {
	s.cancelTimer()
	s.gen++
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.setState(Connecting)
	s.metrics.RecordDial()

	s.endSpan(nil)
	_, s.span = s.tracer.Start(context.Background(), "bar.session.dial",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("bar.url", s.url),
			attribute.Int("bar.attempt", s.attempt),
		),
	)

	s.logger.Debug("dialing", "attempt", s.attempt)
	s.conn = s.dialer.Dial(s.url, &handler{s: s, gen: s.gen})
}

func (s *Session) handleOpen() {
	s.attempt = 0
	s.exhausted = false
	if s.span != nil {
		s.span.SetStatus(codes.Ok, "")
	}
	s.endSpan(nil)
	s.setState(Connected)
	s.logger.Info("connected")
	if s.onOpen != nil {
		s.onOpen()
	}
}

func (s *Session) handleMessage(data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		kind := "Unknown"
		if de, ok := protocol.IsDecodeError(err); ok {
			kind = de.Kind.String()
		}
		s.logger.Warn("dropping malformed message", "kind", kind, "error", err, "bytes", len(data))
		s.metrics.RecordDecodeError(kind)
		return
	}
	s.metrics.RecordReceived(env.Type.String())
	if s.onEnvelope != nil {
		s.onEnvelope(env)
	}
}

func (s *Session) handleClose(err error) {
	s.conn = nil
	if err != nil {
		s.logger.Info("transport closed", "state", s.state, "error", err)
	} else {
		s.logger.Info("transport closed", "state", s.state)
	}
	if err == nil {
		err = ErrClosed
	}
	s.endSpan(err)
	s.scheduleReconnect()
}

func (s *Session) scheduleReconnect() {
	if s.attempt >= s.backoff.MaxAttempts {
		s.exhausted = true
		s.metrics.RecordExhausted()
		s.logger.Warn("reconnect attempts exhausted", "attempts", s.attempt)
		s.setState(Disconnected)
		return
	}

	s.setState(Reconnecting)
	delay := s.backoff.Delay(s.attempt)
	s.attempt++
	s.metrics.RecordReconnectScheduled()
	s.logger.Debug("reconnect scheduled", "attempt", s.attempt, "delay", delay)

	gen := s.gen
	s.timer = s.clock.AfterFunc(delay, func() {
		s.exec.Post(func() {
			if gen != s.gen || s.state != Reconnecting {
				return
			}
			s.timer = nil
			s.dial()
		})
	})
}

func (s *Session) cancelTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) endSpan(err error) {
	if s.span == nil {
		return
	}
	if err != nil && !errors.Is(err, ErrClosed) {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End()
	s.span = nil
}

func (s *Session) setState(next State) {
	prev := s.state
	if prev == next {
		return
	}
	s.state = next
	s.published.Store(uint32(next))
	s.metrics.RecordTransition(prev.String(), next.String())
	if s.onStateChange != nil {
		s.onStateChange(next)
	}
}

// handler adapts transport callbacks onto the executor, dropping any that
// belong to a superseded connection.
type handler struct {
	s   *Session
	gen uint64
}

func (h *handler) OnOpen() {
	h.s.exec.Post(func() {
		if h.gen == h.s.gen && h.s.state == Connecting {
			h.s.handleOpen()
		}
	})
}

func (h *handler) OnMessage(data []byte) {
	h.s.exec.Post(func() {
		if h.gen == h.s.gen && h.s.state == Connected {
			h.s.handleMessage(data)
		}
	})
}

func (h *handler) OnClose(err error) {
	h.s.exec.Post(func() {
		if h.gen == h.s.gen && (h.s.state == Connecting || h.s.state == Connected) {
			h.s.handleClose(err)
		}
	})
}
