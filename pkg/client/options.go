package client

import (
	"log/slog"
	"time"

	"github.com/global-bar/bar-web/pkg/collision"
	"github.com/global-bar/bar-web/pkg/loop"
	"github.com/global-bar/bar-web/pkg/metrics"
	"github.com/global-bar/bar-web/pkg/pacing"
	"github.com/global-bar/bar-web/pkg/protocol"
	"github.com/global-bar/bar-web/pkg/session"
	"go.opentelemetry.io/otel/trace"
)

// Defaults applied by New.
const (
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultMoveLimitHz       = 15
)

// DefaultAvatar is sent with every join.
var DefaultAvatar = protocol.Avatar{Skin: "default", Color: "cyan"}

// Options configures a Client. The zero value is usable.
type Options struct {
	// Executor serializes all client and session work. Default: loop.Inline.
	Executor loop.Executor

	// Dialer opens transports. Default: &session.WebSocketDialer{}.
	Dialer session.Dialer

	// Clock drives timers and timestamps. Default: loop.System.
	Clock loop.Clock

	// Backoff is the reconnect policy. Default: session.DefaultBackoff().
	Backoff session.Backoff

	// Grid enables movement prediction. Nil disables gating.
	Grid *collision.Grid

	// Avatar is sent with join. Default: DefaultAvatar.
	Avatar *protocol.Avatar

	// HeartbeatInterval is the ping period while connected. Zero means
	// DefaultHeartbeatInterval; negative disables the heartbeat.
	HeartbeatInterval time.Duration

	// Smoothing tunes interpolation for StartRendering.
	Smoothing pacing.Smoothing

	// Codec stamps outbound envelopes. Default: protocol.DefaultCodec.
	Codec *protocol.Codec

	Logger  *slog.Logger
	Metrics *metrics.Collector

	// Tracer records a span per inbound envelope. Default: the global
	// OpenTelemetry tracer.
	Tracer trace.Tracer
}
