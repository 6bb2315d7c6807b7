// Package loop provides the single execution context that owns all client
// state.
//
// Every mutation of the world model, the session state, and the pacing
// scheduler happens inside one Executor. Transport goroutines, timers, and
// the frame source never touch state directly; they Post a closure and
// return. This gives the engine the run-to-completion semantics of a single
// event loop while still letting network I/O block on its own goroutines.
//
// Two executors are provided:
//
//   - Loop runs posted functions on a dedicated goroutine, in FIFO order,
//     recovering from panics so one bad callback cannot stop the client.
//   - Inline runs posted functions synchronously on the caller. It is meant
//     for tests that drive the engine step by step with a fake clock.
//
// Clock abstracts wall time and one-shot timers so reconnect backoff and
// heartbeats can be tested deterministically.
package loop
