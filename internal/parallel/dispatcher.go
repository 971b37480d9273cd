package parallel

import (
	"errors"
	"sync"
)

// ErrDispatcherClosed is returned when work is submitted after Close.
var ErrDispatcherClosed = errors.New("dispatcher is closed")

// Dispatcher runs submitted functions one at a time, in submission order,
// on a dedicated goroutine.
type Dispatcher struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

// NewDispatcher starts the dispatcher goroutine.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{done: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		fn := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()

		fn()
	}
}

// Submit enqueues fn without waiting for it to run.
func (d *Dispatcher) Submit(fn func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	d.queue = append(d.queue, fn)
	d.cond.Signal()
	return nil
}

// Pending returns the number of queued functions that have not started.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Close stops accepting work, lets everything already queued run, and waits
// for the goroutine to exit. Close is idempotent. It must not be called from
// a function running on the dispatcher.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		d.cond.Broadcast()
	}
	d.mu.Unlock()
	<-d.done
}

// Call runs fn on d and waits for its result.
func Call[T any](d *Dispatcher, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)
	if err := d.Submit(func() {
		v, err := fn()
		ch <- result{v, err}
	}); err != nil {
		var zero T
		return zero, err
	}
	r := <-ch
	return r.val, r.err
}
