package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	"github.com/remeh/sizedwaitgroup"
	"github.com/spf13/cobra"

	"github.com/global-bar/bar-web/internal/errors"
	"github.com/global-bar/bar-web/pkg/client"
	"github.com/global-bar/bar-web/pkg/protocol"
	"github.com/global-bar/bar-web/pkg/session"
	"github.com/global-bar/bar-web/pkg/world"
)

type swarmOptions struct {
	url         string
	room        string
	count       int
	concurrency int
	duration    time.Duration
	joinTimeout time.Duration
	chatEvery   time.Duration
}

func swarmCmd(g *globals) *cobra.Command {
	opts := swarmOptions{
		count:       10,
		concurrency: 4,
		duration:    30 * time.Second,
		joinTimeout: 10 * time.Second,
		chatEvery:   10 * time.Second,
	}

	cmd := &cobra.Command{
		Use:   "swarm",
		Short: "Fill a room with wandering bots",
		Long: `Connect a number of bots to one room. Each bot walks in a random
direction that changes every second and occasionally says something.
Useful for exercising a room server under load.

Examples:
  bar swarm --count 50
  bar swarm --count 200 --concurrency 20 --duration 2m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSwarm(g, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.url, "url", "u", "", "Server base URL (default from bar.json)")
	cmd.Flags().StringVarP(&opts.room, "room", "r", "", "Room id (default from bar.json)")
	cmd.Flags().IntVarP(&opts.count, "count", "n", opts.count, "Number of bots")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", opts.concurrency, "Bots joining at the same time")
	cmd.Flags().DurationVarP(&opts.duration, "duration", "d", opts.duration, "How long to stay once joined")
	cmd.Flags().DurationVar(&opts.joinTimeout, "join-timeout", opts.joinTimeout, "How long each bot waits to join")
	cmd.Flags().DurationVar(&opts.chatEvery, "chat-every", opts.chatEvery, "Mean interval between chat lines per bot, 0 to stay quiet")

	return cmd
}

func runSwarm(g *globals, opts swarmOptions) error {
	cfg, logger := g.cfg, g.logger
	if opts.url != "" {
		cfg.BaseURL = opts.url
	}
	if opts.room != "" {
		cfg.Room = opts.room
	}
	if opts.count < 1 || opts.concurrency < 1 {
		return errors.New("E140").WithDetail("--count and --concurrency must be at least 1")
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

	printBanner()
	info("starting %s bots in %s on %s", humanize.Comma(int64(opts.count)), cfg.Room, cfg.BaseURL)

	var (
		joined  atomic.Int64
		updates atomic.Int64
		bots    = make([]*bot, opts.count)
	)
	started := time.Now()

	swg := sizedwaitgroup.New(opts.concurrency)
	for i := range bots {
		if ctx.Err() != nil {
			break
		}
		swg.Add()
		go func(i int) {
			defer swg.Done()
			b := newBot(i, client.New(clientOpts), opts.chatEvery)
			bots[i] = b
			b.client.OnWorld(func(*world.World) { updates.Add(1) })
			if b.join(ctx, rt, cfg.BaseURL, cfg.Room, opts.joinTimeout) {
				joined.Add(1)
			} else {
				logger.Warn("bot did not join", "bot", b.nickname, "timeout", opts.joinTimeout)
			}
		}(i)
	}
	swg.Wait()

	rampUp := time.Since(started)
	success("%s of %s bots joined in %s", humanize.Comma(joined.Load()), humanize.Comma(int64(opts.count)),
		durafmt.Parse(rampUp.Round(time.Millisecond)).LimitFirstN(2))

	select {
	case <-ctx.Done():
	case <-time.After(opts.duration):
	}

	rt.run(func() {
		for _, b := range bots {
			if b != nil {
				b.client.Close()
			}
		}
	})

	elapsed := time.Since(started)
	info("%s world updates over %s", humanize.Comma(updates.Load()), durafmt.Parse(elapsed.Round(time.Second)).LimitFirstN(2))
	return nil
}

// bot is one swarm member. Its fields other than done are touched only on
// the loop.
type bot struct {
	nickname  string
	client    *client.Client
	rng       *rand.Rand
	chatEvery time.Duration

	keys     protocol.Keys
	turnAt   time.Time
	nextChat time.Time
	done     chan struct{}
	joined   bool
}

func newBot(i int, c *client.Client, chatEvery time.Duration) *bot {
	return &bot{
		nickname:  fmt.Sprintf("bot-%03d", i),
		client:    c,
		rng:       rand.New(rand.NewPCG(uint64(i), uint64(time.Now().UnixNano()))),
		chatEvery: chatEvery,
		done:      make(chan struct{}),
	}
}

// join connects and waits until the bot is connected, the timeout expires
// or ctx ends.
func (b *bot) join(ctx context.Context, rt *engine, baseURL, room string, timeout time.Duration) bool {
	var connectErr error
	rt.run(func() {
		b.client.OnStatus(func(st session.State) {
			if st == session.Connected && !b.joined {
				b.joined = true
				close(b.done)
				b.client.StartInput(b)
			}
		})
		connectErr = b.client.Connect(baseURL, room, b.nickname)
	})
	if connectErr != nil {
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-b.done:
		return true
	case <-timer.C:
	case <-ctx.Done():
	}
	return false
}

var botLines = []string{
	"hi all",
	"anyone here?",
	"nice place",
	"brb",
	"what's everyone drinking?",
}

// Keys implements client.KeySource. The pump calls it on the loop, so it
// doubles as the bot's clock tick.
func (b *bot) Keys() protocol.Keys {
	now := time.Now()
	if now.After(b.turnAt) {
		b.keys = randomKeys(b.rng)
		b.turnAt = now.Add(time.Second)
	}
	if b.chatEvery > 0 {
		if b.nextChat.IsZero() {
			b.nextChat = now.Add(b.jitter())
		} else if now.After(b.nextChat) {
			_ = b.client.SendChat(botLines[b.rng.IntN(len(botLines))])
			b.nextChat = now.Add(b.jitter())
		}
	}
	return b.keys
}

func (b *bot) jitter() time.Duration {
	return b.chatEvery/2 + time.Duration(b.rng.Int64N(int64(b.chatEvery)))
}

// randomKeys picks one of the eight directions or standing still.
func randomKeys(rng *rand.Rand) protocol.Keys {
	var k protocol.Keys
	switch rng.IntN(3) {
	case 0:
		k.Left = true
	case 1:
		k.Right = true
	}
	switch rng.IntN(3) {
	case 0:
		k.Up = true
	case 1:
		k.Down = true
	}
	return k
}
