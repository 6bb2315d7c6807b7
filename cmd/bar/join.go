package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/hako/durafmt"
	"github.com/spf13/cobra"

	"github.com/global-bar/bar-web/internal/errors"
	"github.com/global-bar/bar-web/pkg/client"
	"github.com/global-bar/bar-web/pkg/debughttp"
	"github.com/global-bar/bar-web/pkg/pacing"
	"github.com/global-bar/bar-web/pkg/protocol"
	"github.com/global-bar/bar-web/pkg/session"
	"github.com/global-bar/bar-web/pkg/world"
)

type joinOptions struct {
	url       string
	room      string
	nick      string
	debugAddr string
	noMap     bool
}

func joinCmd(g *globals) *cobra.Command {
	var opts joinOptions

	cmd := &cobra.Command{
		Use:   "join [room]",
		Short: "Join a room and chat from the terminal",
		Long: `Join a room and stay connected until interrupted.

Lines typed on stdin are sent as chat. Movement keys are held with
+w/+a/+s/+d and released with -w/-a/-s/-d. Type /help for the full
list.

Examples:
  bar join
  bar join lobby --nick nova
  bar join --url https://bar.example.com --debug-addr 127.0.0.1:6061`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.room = args[0]
			}
			return runJoin(g, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.url, "url", "u", "", "Server base URL (default from bar.json)")
	cmd.Flags().StringVarP(&opts.room, "room", "r", "", "Room id (default from bar.json)")
	cmd.Flags().StringVarP(&opts.nick, "nick", "n", "", "Nickname (default: random user-xxxx)")
	cmd.Flags().StringVar(&opts.debugAddr, "debug-addr", "", "Serve /status, /world and /metrics on this address")
	cmd.Flags().BoolVar(&opts.noMap, "no-map", false, "Disable movement prediction")

	return cmd
}

func runJoin(g *globals, opts joinOptions) error {
	cfg, logger := g.cfg, g.logger
	if opts.url != "" {
		cfg.BaseURL = opts.url
	}
	if opts.room != "" {
		cfg.Room = opts.room
	}
	if opts.nick != "" {
		cfg.Nickname = opts.nick
	}
	if opts.debugAddr != "" {
		cfg.Debug.Addr = opts.debugAddr
	}
	if opts.noMap {
		cfg.Map.Source = ""
	}
	if cfg.Nickname == "" {
		cfg.Nickname = randomNickname()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := client.RoomURL(cfg.BaseURL, cfg.Room); err != nil {
		return errors.New("E120").Wrap(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	grid, err := loadGrid(ctx, cfg, logger)
	if err != nil {
		return err
	}

	rt := startEngine(logger)
	defer rt.stop()

	clientOpts, err := rt.clientOptions(cfg, grid, logger)
	if err != nil {
		return err
	}
	c := client.New(clientOpts)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	term := &terminal{out: os.Stdout}
	c.OnStatus(func(st session.State) {
		term.status(st)
		if st == session.Disconnected && c.Exhausted() {
			cancel(errors.New("E121"))
		}
	})
	c.OnWorld(term.world)
	c.OnServerError(func(e *protocol.ServerError) {
		warn("server: %s (%s)", e.Message, e.Code)
	})

	if cfg.Debug.Addr != "" {
		shutdown, err := serveDebug(cfg.Debug.Addr, c, rt, logger)
		if err != nil {
			return err
		}
		defer shutdown()
		info("debug server on http://%s", cfg.Debug.Addr)
	}

	printBanner()
	info("joining %s on %s as %s", cfg.Room, cfg.BaseURL, cfg.Nickname)
	info("type /help for commands")
	fmt.Println()

	var connectErr error
	rt.run(func() {
		connectErr = c.Connect(cfg.BaseURL, cfg.Room, cfg.Nickname)
		if connectErr != nil {
			return
		}
		c.StartRendering(pacing.TickerFrames{Interval: cfg.FrameInterval()}, pacing.RendererFunc(term.render))
	})
	if connectErr != nil {
		return errors.New("E120").Wrap(connectErr)
	}
	started := time.Now()

	keys := &client.KeyState{}
	rt.run(func() { c.StartInput(keys) })

	lines := make(chan string)
	go readLines(ctx, os.Stdin, lines)

	err = joinLoop(ctx, c, rt, keys, term, lines)

	rt.run(c.Close)
	fmt.Println()
	info("left %s after %s", cfg.Room, durafmt.Parse(time.Since(started)).LimitFirstN(2))

	if err == nil {
		if cause := context.Cause(ctx); cause != nil && !stderrors.Is(cause, context.Canceled) {
			err = cause
		}
	}
	return err
}

// joinLoop dispatches input lines until the user quits, stdin closes or ctx
// ends.
func joinLoop(ctx context.Context, c *client.Client, rt *engine, keys *client.KeyState, term *terminal, lines <-chan string) error {
	for {
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case line, ok = <-lines:
			if !ok {
				return nil
			}
		}

		cmd := parseCommand(line)
		switch cmd.kind {
		case cmdNone:
		case cmdChat:
			var err error
			rt.run(func() { err = c.SendChat(cmd.arg) })
			if err != nil {
				warn("chat not sent: %v", err)
			}
		case cmdPress:
			if !keys.Press(cmd.arg) {
				errors.Print(os.Stderr, errors.New("E141").WithDetail("Unknown key "+cmd.arg))
			}
		case cmdRelease:
			if !keys.Release(cmd.arg) {
				errors.Print(os.Stderr, errors.New("E141").WithDetail("Unknown key "+cmd.arg))
			}
		case cmdStop:
			keys.Reset()
		case cmdWho:
			term.who(c.Snapshot())
		case cmdWhere:
			term.where(c.Snapshot(), c.RTT())
		case cmdPing:
			var err error
			rt.run(func() { err = c.Ping() })
			if err != nil {
				warn("ping failed: %v", err)
			}
		case cmdHelp:
			fmt.Fprintln(term.out, joinHelp)
		case cmdQuit:
			return nil
		case cmdUnknown:
			warn("unknown command /%s, try /help", cmd.arg)
		}
	}
}

// readLines forwards lines from r until it is exhausted or ctx is done.
func readLines(ctx context.Context, r io.Reader, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case out <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}

// serveDebug starts the debug listener. The returned func shuts it down.
func serveDebug(addr string, c *client.Client, rt *engine, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.New("E122").Wrap(err)
	}
	srv := &http.Server{
		Handler:           debughttp.Handler(c, &debughttp.Options{Gatherer: rt.registry, Registerer: rt.registry, Logger: logger}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			logger.Error("debug server stopped", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// =============================================================================
// Terminal output
// =============================================================================

// terminal prints client events. Its methods run on the loop except who and
// where, which read snapshots.
type terminal struct {
	out io.Writer

	lastChat   string
	lastRender time.Time
	lastPos    world.Vec2
	lastStatus session.State
	seenStatus bool
}

func (t *terminal) status(st session.State) {
	if t.seenStatus && st == t.lastStatus {
		return
	}
	t.seenStatus, t.lastStatus = true, st
	fmt.Fprintf(t.out, "\033[36m•\033[0m %s\n", st)
}

// world prints chat lines that arrived since the last call.
func (t *terminal) world(w *world.World) {
	start := 0
	if t.lastChat != "" {
		for i := len(w.Chat) - 1; i >= 0; i-- {
			if w.Chat[i].ID == t.lastChat {
				start = i + 1
				break
			}
		}
	}
	for _, line := range w.Chat[start:] {
		name := line.Nickname
		if name == "" {
			name = line.FromUserID
		}
		fmt.Fprintf(t.out, "\033[1m%s\033[0m: %s\n", name, line.Text)
	}
	if n := len(w.Chat); n > 0 {
		t.lastChat = w.Chat[n-1].ID
	}
}

// render reports the local player's displayed position at most twice a
// second, and only when it moved.
func (t *terminal) render(w *world.World, now time.Time) {
	self := w.Self()
	if self == nil || now.Sub(t.lastRender) < 500*time.Millisecond {
		return
	}
	if self.RenderPos.Sub(t.lastPos) == (world.Vec2{}) {
		return
	}
	t.lastRender, t.lastPos = now, self.RenderPos
	fmt.Fprintf(t.out, "  at (%.0f, %.0f) facing %s\n", self.RenderPos.X, self.RenderPos.Y, self.Facing)
}

func (t *terminal) who(w *world.World) {
	ids := w.IDs()
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		u := w.User(id)
		name := u.Nickname
		if name == "" {
			name = id
		}
		if id == w.Me {
			name += " (you)"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(t.out, "%d in %s:\n", len(names), w.RoomID)
	for _, n := range names {
		fmt.Fprintf(t.out, "  %s\n", n)
	}
}

func (t *terminal) where(w *world.World, rtt time.Duration) {
	self := w.Self()
	if self == nil {
		fmt.Fprintln(t.out, "not joined yet")
		return
	}
	fmt.Fprintf(t.out, "at (%.0f, %.0f) facing %s in a %dx%d room\n",
		self.Pos.X, self.Pos.Y, self.Facing, int(w.Size.W), int(w.Size.H))
	if rtt > 0 {
		fmt.Fprintf(t.out, "round trip %s\n", rtt.Round(time.Millisecond))
	}
}
