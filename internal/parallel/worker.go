// Package parallel provides the concurrency primitives used by the local
// execution engine.
//
// Two shapes are offered:
//   - Dispatcher, a single goroutine draining a FIFO queue. Each engine
//     session owns one, so all work against a session is serialized.
//   - WorkerPool, an order-preserving fan-out/fan-in helper for per-column
//     work inside a single operation.
package parallel

import (
	"context"
	"runtime"
	"sync"
)

// WorkerPool manages a pool of goroutines for parallel processing
type WorkerPool struct {
	numWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewWorkerPool creates a new worker pool. numWorkers <= 0 means one worker
// per CPU.
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		numWorkers: numWorkers,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Size returns the number of workers.
func (wp *WorkerPool) Size() int {
	return wp.numWorkers
}

// ProcessIndexed executes work items in parallel while preserving order.
// After Close, items not yet started are skipped and their result slots keep
// the zero value.
func ProcessIndexed[T, R any](
	wp *WorkerPool,
	items []T,
	worker func(int, T) R,
) []R {
	if len(items) == 0 {
		return nil
	}

	workers := wp.numWorkers
	if workers > len(items) {
		workers = len(items)
	}

	itemCh := make(chan indexedItem[T], len(items))
	for i, item := range items {
		itemCh <- indexedItem[T]{index: i, value: item}
	}
	close(itemCh)

	results := make([]R, len(items))
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemCh {
				select {
				case <-wp.ctx.Done():
					return
				default:
					results[item.index] = worker(item.index, item.value)
				}
			}
		}()
	}
	wg.Wait()

	return results
}

// Close shuts down the worker pool
func (wp *WorkerPool) Close() {
	wp.cancel()
}

// Closed reports whether Close has been called.
func (wp *WorkerPool) Closed() bool {
	return wp.ctx.Err() != nil
}

type indexedItem[T any] struct {
	index int
	value T
}
