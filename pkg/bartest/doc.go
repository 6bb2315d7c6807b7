// Package bartest provides test doubles for driving a bar client
// deterministically.
//
// # Fake Clock
//
// FakeClock implements loop.Clock. Timers fire only when the test advances
// the clock:
//
//	clk := bartest.NewFakeClock(time.Unix(0, 0))
//	s := session.New(url, &session.Config{Clock: clk, Dialer: d})
//	clk.Advance(500 * time.Millisecond) // fires the first reconnect
//
// # Fake Transport
//
// FakeDialer implements session.Dialer. Each Dial records a FakeConn which
// the test opens, feeds, and drops by hand:
//
//	d := &bartest.FakeDialer{}
//	s.Connect()
//	conn := d.Last()
//	conn.Open()
//	conn.DeliverEvent(protocol.TypeJoinAck, protocol.JoinAck{UserID: "u1"})
//	conn.Drop(errors.New("reset"))
//
// # Fake Room Server
//
// Server is a minimal room server over a real WebSocket, for end-to-end tests
// of the production transport:
//
//	srv := bartest.NewServer(t)
//	c := client.New(&client.Options{})
//	c.Connect(srv.URL, "lobby", "nova")
package bartest
