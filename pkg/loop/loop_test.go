package loop

import (
	"context"
	"sync"
	"testing"
	"time"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	l := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return l, cancel
}

func TestLoopRunsInOrder(t *testing.T) {
	l, _ := startLoop(t)

	var got []int
	done := make(chan struct{})
	for i := 0; i < 100; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	l.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not drain")
	}

	if len(got) != 100 {
		t.Fatalf("ran %d functions, want 100", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, out of order", i, v)
		}
	}
}

func TestLoopPostFromInside(t *testing.T) {
	l, _ := startLoop(t)

	done := make(chan string, 1)
	l.Post(func() {
		l.Post(func() { done <- "nested" })
	})

	select {
	case v := <-done:
		if v != "nested" {
			t.Errorf("got %q", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("nested post never ran")
	}
}

func TestLoopRecoversPanics(t *testing.T) {
	l, _ := startLoop(t)

	done := make(chan struct{})
	l.Post(func() { panic("boom") })
	l.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop stopped after panic")
	}
	if l.Panics() != 1 {
		t.Errorf("Panics() = %d, want 1", l.Panics())
	}
}

func TestLoopConcurrentPosters(t *testing.T) {
	l, _ := startLoop(t)

	const posters, each = 8, 200
	count := 0
	var wg sync.WaitGroup
	for p := 0; p < posters; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				l.Post(func() { count++ })
			}
		}()
	}
	wg.Wait()

	result := make(chan int, 1)
	l.Post(func() { result <- count })
	select {
	case n := <-result:
		if n != posters*each {
			t.Errorf("count = %d, want %d", n, posters*each)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not drain")
	}
}

func TestLoopPostAfterStop(t *testing.T) {
	l := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	cancel()
	<-l.Done()

	if l.Post(func() {}) {
		t.Error("Post() = true after stop")
	}
	if l.Post(nil) {
		t.Error("Post(nil) = true")
	}
}

func TestInline(t *testing.T) {
	ran := false
	if !(Inline{}).Post(func() { ran = true }) {
		t.Error("Post() = false")
	}
	if !ran {
		t.Error("function did not run synchronously")
	}
	if (Inline{}).Post(nil) {
		t.Error("Post(nil) = true")
	}
}

func TestSystemClock(t *testing.T) {
	fired := make(chan struct{})
	timer := System.AfterFunc(time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
	if timer.Stop() {
		t.Error("Stop() = true after fire")
	}

	stopped := System.AfterFunc(time.Hour, func() { t.Error("stopped timer fired") })
	if !stopped.Stop() {
		t.Error("Stop() = false for pending timer")
	}
}
