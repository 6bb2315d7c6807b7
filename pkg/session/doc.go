// Package session owns the one persistent connection between a client and
// its room.
//
// A Session is an explicit state machine:
//
//	Disconnected ──Connect──▶ Connecting ──open──▶ Connected
//	      ▲                      │   ▲                 │
//	      │                close │   │ backoff timer   │ close
//	      │                      ▼   │                 │
//	      └──── exhausted ──── Reconnecting ◀──────────┘
//
// Close moves any state to Disconnected, cancels a pending reconnect timer
// and silences the transport for good.
//
// Reconnects are spaced by Backoff: attempt k waits min(Cap, Base·2^k). The
// attempt counter is reset only by a successful open. Once MaxAttempts
// reconnects have failed the session settles in Disconnected, reports
// Exhausted, and arms no further timers.
//
// # Threading
//
// A Session is not safe for concurrent use. Connect, Send and Close must be
// called from the Executor given in Config; transport callbacks and the
// reconnect timer are posted onto the same Executor. State may be read from
// any goroutine.
//
// # Transport
//
// The transport is abstracted by Dialer and Conn so the state machine can be
// driven by fakes in tests. WebSocketDialer is the production transport,
// built on gorilla/websocket.
package session
