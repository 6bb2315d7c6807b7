package pacing

import (
	"sync"
	"time"

	"github.com/global-bar/bar-web/pkg/loop"
	"github.com/global-bar/bar-web/pkg/metrics"
	"github.com/global-bar/bar-web/pkg/world"
)

// FrameSource delivers frame ticks. Subscribe may call fn from any
// goroutine; after cancel returns, fn is not called again.
type FrameSource interface {
	Subscribe(fn func(now time.Time)) (cancel func())
}

// Renderer draws a world. It is called on the executor and must not retain
// or modify w beyond the call unless it clones it.
type Renderer interface {
	Render(w *world.World, now time.Time)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(w *world.World, now time.Time)

// Render calls f(w, now).
func (f RendererFunc) Render(w *world.World, now time.Time) { f(w, now) }

// Pacer runs the interpolation once per frame. Start and Stop must be called
// on Executor.
type Pacer struct {
	Frames    FrameSource
	Executor  loop.Executor
	Smoothing Smoothing

	// Load returns the current world; Store replaces it with the advanced
	// one. Store is only called when the frame changed something.
	Load  func() *world.World
	Store func(*world.World)

	// Renderer is optional.
	Renderer Renderer

	Metrics *metrics.Collector

	running bool
	gen     uint64
	cancel  func()
	last    time.Time
	frames  uint64
}

// Start subscribes to frames. It is a no-op when already running.
func (p *Pacer) Start() {
	if p.running {
		return
	}
	if p.Executor == nil {
		p.Executor = loop.Inline{}
	}
	p.running = true
	p.gen++
	p.last = time.Time{}
	gen := p.gen
	p.cancel = p.Frames.Subscribe(func(now time.Time) {
		p.Executor.Post(func() {
			if !p.running || p.gen != gen {
				return
			}
			p.frame(now)
		})
	})
}

// Stop cancels the frame subscription. Frames already queued on the
// executor are discarded.
func (p *Pacer) Stop() {
	if !p.running {
		return
	}
	p.running = false
	p.gen++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// Running reports whether the pacer is started.
func (p *Pacer) Running() bool { return p.running }

// FrameCount returns the number of frames processed.
func (p *Pacer) FrameCount() uint64 { return p.frames }

func (p *Pacer) frame(now time.Time) {
	var dt time.Duration
	if !p.last.IsZero() {
		dt = now.Sub(p.last)
	}
	p.last = now
	p.frames++
	p.Metrics.ObserveFrame(dt)

	w := p.Load()
	if w == nil {
		return
	}
	next := Advance(w, dt, now, p.Smoothing)
	if next != w && p.Store != nil {
		p.Store(next)
	}
	if p.Renderer != nil {
		p.Renderer.Render(next, now)
	}
}

// TickerFrames is a FrameSource backed by time.Ticker.
type TickerFrames struct {
	// Interval between frames. Default: 1/60s.
	Interval time.Duration
}

// Subscribe starts a ticker goroutine. The returned cancel stops it and
// waits for it to exit.
func (f TickerFrames) Subscribe(fn func(now time.Time)) func() {
	interval := f.Interval
	if interval <= 0 {
		interval = time.Second / 60
	}
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				select {
				case <-stop:
					return
				default:
				}
				fn(now)
			case <-stop:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
		})
	}
}
