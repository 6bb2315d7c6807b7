package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/global-bar/bar-web/pkg/loop"
	"github.com/global-bar/bar-web/pkg/metrics"
	"github.com/global-bar/bar-web/pkg/pacing"
	"github.com/global-bar/bar-web/pkg/predict"
	"github.com/global-bar/bar-web/pkg/protocol"
	"github.com/global-bar/bar-web/pkg/session"
	"github.com/global-bar/bar-web/pkg/world"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const tracerName = "github.com/global-bar/bar-web/pkg/client"

// Client connects to one room at a time and maintains its world.
type Client struct {
	exec      loop.Executor
	dialer    session.Dialer
	clock     loop.Clock
	backoff   session.Backoff
	predictor *predict.Predictor
	avatar    protocol.Avatar
	heartbeat time.Duration
	smoothing pacing.Smoothing
	codec     *protocol.Codec
	logger    *slog.Logger
	metrics   *metrics.Collector
	tracer    trace.Tracer

	// Owned by the executor.
	sess     *session.Session
	w        *world.World
	nickname string
	limiter  *rate.Limiter
	moveHz   float64
	keys     KeySource
	pump     loop.Timer
	pumpGen  uint64
	beat     loop.Timer
	beatGen  uint64
	pingSent time.Time
	pacer    *pacing.Pacer

	snapshot atomic.Pointer[world.World]
	status   atomic.Uint32
	rtt      atomic.Int64

	worldObs  observers[*world.World]
	statusObs observers[session.State]
	errorObs  observers[*protocol.ServerError]
}

// New creates a disconnected client.
func New(opts *Options) *Client {
	if opts == nil {
		opts = &Options{}
	}
	c := &Client{
		exec:      opts.Executor,
		dialer:    opts.Dialer,
		clock:     opts.Clock,
		backoff:   opts.Backoff,
		heartbeat: opts.HeartbeatInterval,
		smoothing: opts.Smoothing,
		codec:     opts.Codec,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		tracer:    opts.Tracer,
		avatar:    DefaultAvatar,
	}
	if c.exec == nil {
		c.exec = loop.Inline{}
	}
	if c.clock == nil {
		c.clock = loop.System
	}
	if c.codec == nil {
		c.codec = protocol.DefaultCodec
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "client")
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	if c.heartbeat == 0 {
		c.heartbeat = DefaultHeartbeatInterval
	}
	if opts.Avatar != nil {
		c.avatar = *opts.Avatar
	}
	if opts.Grid != nil {
		c.predictor = predict.New(opts.Grid)
	}

	c.moveHz = DefaultMoveLimitHz
	c.limiter = rate.NewLimiter(rate.Limit(c.moveHz), 1)
	c.w = world.New("")
	c.snapshot.Store(c.w)
	return c
}

// Post runs fn on the client's executor.
func (c *Client) Post(fn func(*Client)) bool {
	return c.exec.Post(func() { fn(c) })
}

// =============================================================================
// Read side
// =============================================================================

// Snapshot returns the latest world. The value is immutable; callers that
// need to modify it use Clone.
func (c *Client) Snapshot() *world.World {
	return c.snapshot.Load()
}

// Status returns the connection status.
func (c *Client) Status() session.State {
	return session.State(c.status.Load())
}

// RTT returns the last measured ping round trip, or zero.
func (c *Client) RTT() time.Duration {
	return time.Duration(c.rtt.Load())
}

// OnWorld subscribes to world changes. The returned func unsubscribes.
func (c *Client) OnWorld(fn func(*world.World)) func() { return c.worldObs.add(fn) }

// OnStatus subscribes to connection status changes.
func (c *Client) OnStatus(fn func(session.State)) func() { return c.statusObs.add(fn) }

// OnServerError subscribes to error envelopes from the server.
func (c *Client) OnServerError(fn func(*protocol.ServerError)) func() { return c.errorObs.add(fn) }

// =============================================================================
// Connection lifecycle
// =============================================================================

// RoomURL builds the endpoint for roomID under baseURL. http and https
// bases are mapped to ws and wss.
func RoomURL(baseURL, roomID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("client: invalid base url %q: %w", baseURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("client: unsupported base url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("client: base url %q has no host", baseURL)
	}
	return u.String() + "/ws/rooms/" + url.PathEscape(roomID), nil
}

// Connect joins roomID on the server at baseURL as nickname. Any previous
// session is closed and the world is reset. The join is sent every time the
// transport opens, so a reconnect resynchronizes through a fresh snapshot.
func (c *Client) Connect(baseURL, roomID, nickname string) error {
	if roomID == "" {
		return ErrNoRoom
	}
	u, err := RoomURL(baseURL, roomID)
	if err != nil {
		return err
	}

	c.closeSession()
	c.nickname = nickname
	c.pingSent = time.Time{}
	c.setWorld(world.New(roomID), true)
	c.applyRules(nil)

	var s *session.Session
	s = session.New(u, &session.Config{
		Backoff:  c.backoff,
		Dialer:   c.dialer,
		Executor: c.exec,
		Clock:    c.clock,
		Logger:   c.logger,
		Metrics:  c.metrics,
		OnStateChange: func(st session.State) {
			if c.sess == s {
				c.handleState(st)
			}
		},
		OnOpen: func() {
			if c.sess == s {
				c.handleOpen()
			}
		},
		OnEnvelope: func(env *protocol.Envelope) {
			if c.sess == s {
				c.handleEnvelope(env)
			}
		},
	})
	c.sess = s
	c.logger.Info("connecting", "url", u, "room", roomID, "nickname", nickname)
	s.Connect()
	return nil
}

// Disconnect closes the session without retrying and resets the world.
func (c *Client) Disconnect() {
	if c.sess != nil {
		c.sess.Close()
		c.sess = nil
	}
	c.stopHeartbeat()
	c.setWorld(world.New(""), true)
	c.setStatus(session.Disconnected)
}

// Close disconnects and stops input and rendering.
func (c *Client) Close() {
	c.StopInput()
	c.StopRendering()
	c.Disconnect()
}

// Exhausted reports whether the current session gave up reconnecting.
func (c *Client) Exhausted() bool {
	return c.sess != nil && c.sess.Exhausted()
}

// closeSession retires the current session without status notifications.
func (c *Client) closeSession() {
	c.stopHeartbeat()
	if c.sess == nil {
		return
	}
	s := c.sess
	c.sess = nil
	s.Close()
}

func (c *Client) handleState(st session.State) {
	if st != session.Connected {
		c.stopHeartbeat()
	}
	c.setStatus(st)
}

func (c *Client) handleOpen() {
	join := protocol.Join{Nickname: c.nickname, Avatar: &c.avatar}
	env, err := c.codec.Encode(protocol.TypeJoin, join, protocol.Route{RoomID: c.w.RoomID})
	if err != nil {
		c.logger.Error("encode join", "error", err)
		return
	}
	c.sess.Send(env)
	c.startHeartbeat()
}

func (c *Client) setStatus(st session.State) {
	if session.State(c.status.Swap(uint32(st))) == st {
		return
	}
	c.statusObs.notify(st)
}

// =============================================================================
// Inbound
// =============================================================================

func (c *Client) handleEnvelope(env *protocol.Envelope) {
	_, span := c.tracer.Start(context.Background(), "bar.envelope."+env.Type.String(),
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("bar.room", c.w.RoomID),
			attribute.String("bar.event_id", env.EventID),
		),
	)
	defer span.End()

	ev, err := protocol.ParseEvent(env)
	if err != nil {
		kind := "Unknown"
		if de, ok := protocol.IsDecodeError(err); ok {
			kind = de.Kind.String()
		}
		c.logger.Warn("dropping invalid event", "type", env.Type, "kind", kind, "error", err)
		c.metrics.RecordDecodeError(kind)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}

	switch ev := ev.(type) {
	case *protocol.Pong:
		c.handlePong()
	case *protocol.ServerError:
		c.logger.Warn("server error", "code", ev.Code, "message", ev.Message)
		c.metrics.RecordServerError(ev.Code)
		span.SetStatus(codes.Error, ev.Code)
		c.errorObs.notify(ev)
	case *protocol.Unknown:
		c.logger.Debug("ignoring unknown message", "type", ev.Type)
	}

	prev := c.w
	next := world.Reduce(prev, ev, c.clock.Now())
	if next == prev {
		return
	}
	c.setWorld(next, true)
	if next.Rules != prev.Rules {
		c.applyRules(next.Rules)
	}
}

func (c *Client) setWorld(w *world.World, notify bool) {
	c.w = w
	c.snapshot.Store(w)
	c.metrics.SetUsers(len(w.Users))
	if notify {
		c.worldObs.notify(w)
	}
}

// applyRules retunes the move rate to the room's advertised limit.
func (c *Client) applyRules(r *world.ServerRules) {
	hz := float64(DefaultMoveLimitHz)
	if r != nil && r.MoveLimitHz > 0 {
		hz = r.MoveLimitHz
	}
	if hz == c.moveHz {
		return
	}
	c.moveHz = hz
	c.limiter.SetLimitAt(c.clock.Now(), rate.Limit(hz))
	if c.keys != nil {
		c.restartPump()
	}
}

// =============================================================================
// Outbound
// =============================================================================

func (c *Client) ready() error {
	if c.sess == nil || c.sess.State() != session.Connected {
		return session.ErrNotConnected
	}
	if c.w.Me == "" {
		return ErrNotJoined
	}
	return nil
}

func (c *Client) send(t protocol.MessageType, payload any) error {
	if c.sess == nil {
		c.metrics.RecordDropped(t.String())
		return session.ErrNotConnected
	}
	env, err := c.codec.Encode(t, payload, protocol.Route{RoomID: c.w.RoomID, UserID: c.w.Me})
	if err != nil {
		return err
	}
	if !c.sess.Send(env) {
		return session.ErrNotConnected
	}
	return nil
}

// SendChat sends a chat line. The text is trimmed; blank text is rejected.
func (c *Client) SendChat(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyChat
	}
	if err := c.ready(); err != nil {
		return err
	}
	ttl := int64(protocol.DefaultBubbleTTLMs)
	return c.send(protocol.TypeChatSay, protocol.ChatSay{Text: text, BubbleTTLMs: &ttl})
}

// SendMoveIntent sends the held keys. With a collision grid configured,
// keys that would walk into a wall are cleared first, and the intent is
// dropped with ErrBlocked when nothing is left. Intents beyond the room's
// move rate are dropped with ErrRateLimited.
func (c *Client) SendMoveIntent(keys protocol.Keys) error {
	if err := c.ready(); err != nil {
		return err
	}
	if c.predictor != nil {
		if self := c.w.Self(); self != nil {
			gated := c.predictor.GateKeys(self.Pos, keys)
			if keys.Moving() && !gated.Moving() {
				return ErrBlocked
			}
			keys = gated
		}
	}
	now := c.clock.Now()
	if !c.limiter.AllowN(now, 1) {
		c.metrics.RecordDropped(protocol.TypeMoveIntent.String())
		return ErrRateLimited
	}
	return c.send(protocol.TypeMoveIntent, protocol.MoveIntent{Keys: keys, ClientTick: now.UnixMilli()})
}

// Ping sends a ping. The matching pong updates RTT.
func (c *Client) Ping() error {
	if c.sess == nil || c.sess.State() != session.Connected {
		return session.ErrNotConnected
	}
	if err := c.send(protocol.TypePing, nil); err != nil {
		return err
	}
	c.pingSent = c.clock.Now()
	return nil
}

func (c *Client) handlePong() {
	if c.pingSent.IsZero() {
		return
	}
	rtt := c.clock.Now().Sub(c.pingSent)
	c.pingSent = time.Time{}
	c.rtt.Store(int64(rtt))
	c.metrics.ObserveRTT(rtt)
}

// =============================================================================
// Timers
// =============================================================================

// intentInterval is the pump period for hz, rounded up so that each tick
// finds a full limiter token.
func intentInterval(hz float64) time.Duration {
	return time.Duration(math.Ceil(float64(time.Second) / hz))
}

// StartInput starts the intent pump: every 1/moveLimitHz it reads keys and
// sends a move intent while any key is held.
func (c *Client) StartInput(keys KeySource) {
	c.keys = keys
	c.restartPump()
}

// StopInput stops the intent pump.
func (c *Client) StopInput() {
	c.keys = nil
	c.stopPump()
}

func (c *Client) restartPump() {
	c.stopPump()
	if c.keys == nil {
		return
	}
	gen := c.pumpGen
	interval := intentInterval(c.moveHz)
	var tick func()
	tick = func() {
		c.exec.Post(func() {
			if gen != c.pumpGen {
				return
			}
			c.pump = c.clock.AfterFunc(interval, tick)
			keys := c.keys.Keys()
			if !keys.Moving() {
				return
			}
			if err := c.SendMoveIntent(keys); err != nil && !errors.Is(err, ErrBlocked) {
				c.logger.Debug("move intent not sent", "error", err)
			}
		})
	}
	c.pump = c.clock.AfterFunc(interval, tick)
}

func (c *Client) stopPump() {
	c.pumpGen++
	if c.pump != nil {
		c.pump.Stop()
		c.pump = nil
	}
}

func (c *Client) startHeartbeat() {
	c.stopHeartbeat()
	if c.heartbeat <= 0 {
		return
	}
	gen := c.beatGen
	var tick func()
	tick = func() {
		c.exec.Post(func() {
			if gen != c.beatGen {
				return
			}
			c.beat = c.clock.AfterFunc(c.heartbeat, tick)
			if err := c.Ping(); err != nil {
				c.logger.Debug("heartbeat ping not sent", "error", err)
			}
		})
	}
	c.beat = c.clock.AfterFunc(c.heartbeat, tick)
}

func (c *Client) stopHeartbeat() {
	c.beatGen++
	if c.beat != nil {
		c.beat.Stop()
		c.beat = nil
	}
}

// =============================================================================
// Rendering
// =============================================================================

// StartRendering drives interpolation from frames and hands each advanced
// world to r. Interpolated worlds are published through Snapshot but do not
// notify OnWorld observers. A running pacer is replaced.
func (c *Client) StartRendering(frames pacing.FrameSource, r pacing.Renderer) {
	c.StopRendering()
	c.pacer = &pacing.Pacer{
		Frames:    frames,
		Executor:  c.exec,
		Smoothing: c.smoothing,
		Load:      func() *world.World { return c.w },
		Store:     func(w *world.World) { c.setWorld(w, false) },
		Renderer:  r,
		Metrics:   c.metrics,
	}
	c.pacer.Start()
}

// StopRendering stops the pacer, if any.
func (c *Client) StopRendering() {
	if c.pacer != nil {
		c.pacer.Stop()
		c.pacer = nil
	}
}
