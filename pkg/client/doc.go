// Package client is the presence client controller.
//
// A Client owns one session and the world it feeds. Inbound envelopes are
// parsed, traced, and reduced into a new world value, which is published
// for lock-free reads through Snapshot and pushed to OnWorld observers.
// Outbound traffic (join, move intents, chat, pings) is built here and
// handed to the session.
//
// # Threading
//
// Every mutating method (Connect, Disconnect, SendChat, SendMoveIntent,
// Ping, StartInput, StopInput, StartRendering) must run on the client's
// executor. Use Post from other goroutines:
//
//	lp := loop.New(logger)
//	go lp.Run(ctx)
//	c := client.New(&client.Options{Executor: lp})
//	c.Post(func(c *client.Client) { c.Connect("http://localhost:8080", "bar", "nova") })
//
// Snapshot, Status, RTT and the On* subscription methods are safe from any
// goroutine. Observers are called on the executor.
package client
