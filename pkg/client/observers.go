package client

import "sync"

type observer[T any] struct {
	id uint64
	fn func(T)
}

// observers is a subscription list. Subscribing and unsubscribing are safe
// from any goroutine; notify calls observers in subscription order.
type observers[T any] struct {
	mu   sync.Mutex
	next uint64
	list []observer[T]
}

func (o *observers[T]) add(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}
	o.mu.Lock()
	o.next++
	id := o.next
	o.list = append(o.list, observer[T]{id: id, fn: fn})
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			for i, ob := range o.list {
				if ob.id == id {
					o.list = append(o.list[:i:i], o.list[i+1:]...)
					return
				}
			}
		})
	}
}

func (o *observers[T]) notify(v T) {
	o.mu.Lock()
	list := o.list
	o.mu.Unlock()
	for _, ob := range list {
		ob.fn(v)
	}
}
