package bartest

import (
	"sync"
	"time"
)

// FakeFrames is a frame source driven by the test.
type FakeFrames struct {
	mu   sync.Mutex
	next int
	subs map[int]func(time.Time)
}

// Subscribe implements pacing.FrameSource.
func (f *FakeFrames) Subscribe(fn func(now time.Time)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = make(map[int]func(time.Time))
	}
	id := f.next
	f.next++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

// Tick delivers one frame at now to every subscriber.
func (f *FakeFrames) Tick(now time.Time) {
	f.mu.Lock()
	fns := make([]func(time.Time), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(now)
	}
}

// Subscribers returns the number of active subscriptions.
func (f *FakeFrames) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
