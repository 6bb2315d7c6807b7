// Package metrics provides Prometheus instrumentation for the bar client.
//
// A Collector is created once per process and shared by every client it
// runs, so that a swarm of bots reports into the same series. All recording
// methods are safe to call on a nil *Collector, which lets components take an
// optional collector without guarding every call site.
//
// Metrics collected (namespace "bar" by default):
//   - bar_session_transitions_total: state transitions by target state
//   - bar_sessions_connected: sessions currently in the connected state
//   - bar_dials_total: transport dial attempts
//   - bar_reconnects_scheduled_total: reconnect timers armed
//   - bar_reconnects_exhausted_total: sessions that gave up reconnecting
//   - bar_envelopes_received_total / bar_envelopes_sent_total: by type
//   - bar_sends_dropped_total: outbound envelopes refused, by type
//   - bar_decode_errors_total: malformed inbound frames, by kind
//   - bar_server_errors_total: server error envelopes, by code
//   - bar_rtt_seconds: ping/pong round-trip time
//   - bar_frame_interval_seconds: time between render frames
//   - bar_world_users: entities in the most recently reduced world
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(metrics.WithRegistry(reg))
//	c := client.New(&client.Options{Metrics: m})
package metrics
