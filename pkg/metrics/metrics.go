package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the collector.
type Config struct {
	// Namespace is the metrics namespace (default: "bar").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// RTTBuckets are the histogram buckets for round-trip time.
	RTTBuckets []float64

	// FrameBuckets are the histogram buckets for frame intervals.
	FrameBuckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithRTTBuckets sets the round-trip histogram buckets.
func WithRTTBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.RTTBuckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace:    "bar",
		RTTBuckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		FrameBuckets: []float64{.004, .008, .016, .033, .05, .1, .25, 1},
		Registry:     prometheus.DefaultRegisterer,
	}
}

// Collector holds the client's Prometheus series.
type Collector struct {
	transitions  *prometheus.CounterVec
	connected    prometheus.Gauge
	dials        prometheus.Counter
	reconnects   prometheus.Counter
	exhausted    prometheus.Counter
	received     *prometheus.CounterVec
	sent         *prometheus.CounterVec
	dropped      *prometheus.CounterVec
	decodeErrors *prometheus.CounterVec
	serverErrors *prometheus.CounterVec
	rtt          prometheus.Histogram
	frames       prometheus.Histogram
	users        prometheus.Gauge
}

// New registers the client metrics and returns a collector. Registering twice
// against the same registry panics, as with promauto.
func New(opts ...Option) *Collector {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		})
	}
	counterVec := func(name, help, label string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}, []string{label})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		})
	}
	histogram := func(name, help string, buckets []float64) prometheus.Histogram {
		return factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
			Buckets:     buckets,
		})
	}

	return &Collector{
		transitions:  counterVec("session_transitions_total", "Session state transitions by target state", "state"),
		connected:    gauge("sessions_connected", "Sessions currently connected"),
		dials:        counter("dials_total", "Transport dial attempts"),
		reconnects:   counter("reconnects_scheduled_total", "Reconnect attempts scheduled"),
		exhausted:    counter("reconnects_exhausted_total", "Sessions that exhausted their reconnect attempts"),
		received:     counterVec("envelopes_received_total", "Inbound envelopes by type", "type"),
		sent:         counterVec("envelopes_sent_total", "Outbound envelopes by type", "type"),
		dropped:      counterVec("sends_dropped_total", "Outbound envelopes not sent, by type", "type"),
		decodeErrors: counterVec("decode_errors_total", "Malformed inbound frames by kind", "kind"),
		serverErrors: counterVec("server_errors_total", "Server error envelopes by code", "code"),
		rtt:          histogram("rtt_seconds", "Ping to pong round-trip time in seconds", config.RTTBuckets),
		frames:       histogram("frame_interval_seconds", "Interval between render frames in seconds", config.FrameBuckets),
		users:        gauge("world_users", "Entities in the most recently reduced world"),
	}
}

// =============================================================================
// Recording functions
// =============================================================================

// RecordTransition records a session state change.
func (c *Collector) RecordTransition(from, to string) {
	if c == nil || from == to {
		return
	}
	c.transitions.WithLabelValues(to).Inc()
	if to == "connected" {
		c.connected.Inc()
	}
	if from == "connected" {
		c.connected.Dec()
	}
}

// RecordDial records a dial attempt.
func (c *Collector) RecordDial() {
	if c != nil {
		c.dials.Inc()
	}
}

// RecordReconnectScheduled records an armed reconnect timer.
func (c *Collector) RecordReconnectScheduled() {
	if c != nil {
		c.reconnects.Inc()
	}
}

// RecordExhausted records a session giving up.
func (c *Collector) RecordExhausted() {
	if c != nil {
		c.exhausted.Inc()
	}
}

// RecordReceived records an inbound envelope.
func (c *Collector) RecordReceived(msgType string) {
	if c != nil {
		c.received.WithLabelValues(label(msgType)).Inc()
	}
}

// RecordSent records an outbound envelope.
func (c *Collector) RecordSent(msgType string) {
	if c != nil {
		c.sent.WithLabelValues(msgType).Inc()
	}
}

// RecordDropped records an outbound envelope that could not be sent.
func (c *Collector) RecordDropped(msgType string) {
	if c != nil {
		c.dropped.WithLabelValues(msgType).Inc()
	}
}

// RecordDecodeError records a malformed inbound frame.
func (c *Collector) RecordDecodeError(kind string) {
	if c != nil {
		c.decodeErrors.WithLabelValues(kind).Inc()
	}
}

// RecordServerError records a server error envelope.
func (c *Collector) RecordServerError(code string) {
	if c != nil {
		c.serverErrors.WithLabelValues(label(code)).Inc()
	}
}

// ObserveRTT records a round-trip time.
func (c *Collector) ObserveRTT(d time.Duration) {
	if c != nil {
		c.rtt.Observe(d.Seconds())
	}
}

// ObserveFrame records the interval since the previous render frame.
func (c *Collector) ObserveFrame(d time.Duration) {
	if c != nil && d > 0 {
		c.frames.Observe(d.Seconds())
	}
}

// SetUsers records the number of entities in the world.
func (c *Collector) SetUsers(n int) {
	if c != nil {
		c.users.Set(float64(n))
	}
}

// label bounds cardinality of server-controlled label values.
func label(v string) string {
	switch {
	case v == "":
		return "none"
	case len(v) > 32:
		return "other"
	default:
		return v
	}
}
