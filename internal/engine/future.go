package engine

import (
	"context"
	"sync"
)

// Future is the result of a deferred engine call. It resolves exactly once.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

// NewFuture returns an unresolved future and the function that resolves
// it. Calls to resolve after the first are ignored.
func NewFuture[T any]() (*Future[T], func(T, error)) {
	f := &Future[T]{done: make(chan struct{})}
	return f, f.resolve
}

// Resolved returns a future that has already completed with v and err.
func Resolved[T any](v T, err error) *Future[T] {
	f, resolve := NewFuture[T]()
	resolve(v, err)
	return f
}

// Failed returns a future that has already completed with err.
func Failed[T any](err error) *Future[T] {
	var zero T
	return Resolved(zero, err)
}

func (f *Future[T]) resolve(v T, err error) {
	f.once.Do(func() {
		f.val, f.err = v, err
		close(f.done)
	})
}

// Done is closed once the future has resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future resolves or ctx is done. ctx only bounds the
// wait: the underlying work keeps running and can be awaited again later.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then returns a future resolved with fn applied to f's value. fn is not
// called when f fails.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	next, resolve := NewFuture[U]()
	go func() {
		<-f.done
		if f.err != nil {
			var zero U
			resolve(zero, f.err)
			return
		}
		resolve(fn(f.val))
	}()
	return next
}
