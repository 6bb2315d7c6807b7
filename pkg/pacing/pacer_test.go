package pacing_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/global-bar/bar-web/pkg/bartest"
	"github.com/global-bar/bar-web/pkg/loop"
	"github.com/global-bar/bar-web/pkg/pacing"
	"github.com/global-bar/bar-web/pkg/world"
)

func TestPacerAdvancesAndRenders(t *testing.T) {
	frames := &bartest.FakeFrames{}
	w := world.New("r")
	e := world.NewUserEntity("a", 0, 0, "", nil)
	e.Pos = world.Vec2{X: 16}
	w.Users["a"] = e

	var rendered []*world.World
	p := &pacing.Pacer{
		Frames: frames,
		Load:   func() *world.World { return w },
		Store:  func(next *world.World) { w = next },
		Renderer: pacing.RendererFunc(func(rw *world.World, now time.Time) {
			rendered = append(rendered, rw)
		}),
	}
	p.Start()
	if frames.Subscribers() != 1 {
		t.Fatalf("Subscribers() = %d", frames.Subscribers())
	}

	t0 := time.Unix(0, 0)
	frames.Tick(t0)                           // first frame: dt = 0
	frames.Tick(t0.Add(8 * time.Millisecond)) // alpha 0.5

	if len(rendered) != 2 {
		t.Fatalf("rendered %d frames", len(rendered))
	}
	if got := w.Users["a"].RenderPos.X; got != 8 {
		t.Errorf("RenderPos.X = %v, want 8", got)
	}
	if rendered[1] != w {
		t.Error("renderer did not receive the advanced world")
	}
	if w.Users["a"].Facing != world.FacingRight {
		t.Errorf("Facing = %v", w.Users["a"].Facing)
	}
}

func TestPacerStopCancelsSubscription(t *testing.T) {
	frames := &bartest.FakeFrames{}
	calls := 0
	p := &pacing.Pacer{
		Frames:   frames,
		Load:     func() *world.World { return world.New("r") },
		Renderer: pacing.RendererFunc(func(*world.World, time.Time) { calls++ }),
	}
	p.Start()
	p.Start()
	if frames.Subscribers() != 1 {
		t.Fatalf("double Start subscribed %d times", frames.Subscribers())
	}

	p.Stop()
	if frames.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d after Stop", frames.Subscribers())
	}
	frames.Tick(time.Unix(1, 0))
	if calls != 0 {
		t.Errorf("rendered %d frames after Stop", calls)
	}
	p.Stop()
}

// queued collects posted functions so a test can run them later.
type queued struct{ fns []func() }

func (q *queued) Post(fn func()) bool {
	q.fns = append(q.fns, fn)
	return true
}

func TestPacerDropsFramesQueuedBeforeStop(t *testing.T) {
	frames := &bartest.FakeFrames{}
	q := &queued{}
	calls := 0
	p := &pacing.Pacer{
		Frames:   frames,
		Executor: q,
		Load:     func() *world.World { return world.New("r") },
		Renderer: pacing.RendererFunc(func(*world.World, time.Time) { calls++ }),
	}
	p.Start()
	frames.Tick(time.Unix(1, 0))
	p.Stop()
	for _, fn := range q.fns {
		fn()
	}
	if calls != 0 {
		t.Errorf("stale frame rendered")
	}
}

func TestTickerFrames(t *testing.T) {
	var n atomic.Int32
	cancel := pacing.TickerFrames{Interval: time.Millisecond}.Subscribe(func(time.Time) {
		n.Add(1)
	})

	deadline := time.Now().Add(2 * time.Second)
	for n.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if n.Load() < 3 {
		t.Fatalf("ticks = %d", n.Load())
	}

	after := n.Load()
	time.Sleep(10 * time.Millisecond)
	if n.Load() != after {
		t.Errorf("ticks after cancel: %d -> %d", after, n.Load())
	}
	cancel()
}

func TestPacerOnLoop(t *testing.T) {
	l := loop.New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	rendered := make(chan struct{}, 1)
	p := &pacing.Pacer{
		Frames:   pacing.TickerFrames{Interval: time.Millisecond},
		Executor: l,
		Load:     func() *world.World { return world.New("r") },
		Renderer: pacing.RendererFunc(func(*world.World, time.Time) {
			select {
			case rendered <- struct{}{}:
			default:
			}
		}),
	}
	l.Post(p.Start)

	select {
	case <-rendered:
	case <-time.After(2 * time.Second):
		t.Fatal("no frame rendered")
	}

	stopped := make(chan struct{})
	l.Post(func() {
		p.Stop()
		close(stopped)
	})
	<-stopped
}
