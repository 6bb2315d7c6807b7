package loop

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Executor runs functions in the client's single execution context.
type Executor interface {
	// Post schedules fn. It reports false when the executor has stopped and
	// fn will never run.
	Post(fn func()) bool
}

// Loop is an Executor backed by one goroutine. Posted functions run in the
// order they were posted. The queue is unbounded so Post never blocks and
// may be called from inside a running function.
type Loop struct {
	logger *slog.Logger

	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	done    chan struct{}
	stopped atomic.Bool
	running atomic.Bool

	panics atomic.Uint64
}

// New creates a loop. Call Run to start processing.
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		logger: logger.With("component", "loop"),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Post queues fn for execution on the loop goroutine.
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	l.mu.Lock()
	if l.stopped.Load() {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Run processes posted functions until ctx is cancelled. Functions still
// queued at that point are discarded. Run may be called once.
func (l *Loop) Run(ctx context.Context) {
	if !l.running.CompareAndSwap(false, true) {
		l.logger.Warn("loop already running")
		return
	}
	defer l.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
			for {
				fn := l.next()
				if fn == nil {
					break
				}
				l.execute(fn)
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Panics returns the number of recovered panics.
func (l *Loop) Panics() uint64 {
	return l.panics.Load()
}

func (l *Loop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn
}

func (l *Loop) stop() {
	l.mu.Lock()
	l.stopped.Store(true)
	l.queue = nil
	l.mu.Unlock()
	close(l.done)
}

// execute runs fn with panic recovery.
func (l *Loop) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.panics.Add(1)
			l.logger.Error("loop panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// Inline runs posted functions immediately on the calling goroutine. It is
// not safe for concurrent use.
type Inline struct{}

// Post runs fn and reports true.
func (Inline) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	fn()
	return true
}
