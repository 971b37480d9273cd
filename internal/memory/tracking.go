// Package memory accounts for the Arrow buffers held by the engine.
package memory

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/dustin/go-humanize"
	"go.uber.org/atomic"
)

// Stats is a snapshot of a TrackingAllocator.
type Stats struct {
	InUse       int64 `json:"in_use"`      // bytes currently allocated
	Peak        int64 `json:"peak"`        // largest InUse observed
	Allocations int64 `json:"allocations"` // Allocate calls so far
}

func (s Stats) String() string {
	return fmt.Sprintf("%s in use, peak %s, %s allocations",
		humanize.Bytes(uint64(max(s.InUse, 0))),
		humanize.Bytes(uint64(max(s.Peak, 0))),
		humanize.Comma(s.Allocations))
}

// TrackingAllocator wraps an Arrow allocator and counts the bytes it hands
// out. It is safe for concurrent use.
type TrackingAllocator struct {
	mem         memory.Allocator
	inUse       atomic.Int64
	peak        atomic.Int64
	allocations atomic.Int64
}

var _ memory.Allocator = (*TrackingAllocator)(nil)

// NewTrackingAllocator wraps mem, or the Arrow default allocator when mem is
// nil.
func NewTrackingAllocator(mem memory.Allocator) *TrackingAllocator {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &TrackingAllocator{mem: mem}
}

func (a *TrackingAllocator) Allocate(size int) []byte {
	b := a.mem.Allocate(size)
	a.allocations.Inc()
	a.grow(int64(size))
	return b
}

func (a *TrackingAllocator) Reallocate(size int, b []byte) []byte {
	old := len(b)
	out := a.mem.Reallocate(size, b)
	a.grow(int64(size - old))
	return out
}

func (a *TrackingAllocator) Free(b []byte) {
	size := len(b)
	a.mem.Free(b)
	a.inUse.Sub(int64(size))
}

func (a *TrackingAllocator) grow(delta int64) {
	cur := a.inUse.Add(delta)
	for {
		p := a.peak.Load()
		if cur <= p || a.peak.CompareAndSwap(p, cur) {
			return
		}
	}
}

// InUse returns the bytes currently allocated.
func (a *TrackingAllocator) InUse() int64 {
	return a.inUse.Load()
}

// Stats returns a consistent-enough snapshot for reporting; the fields are
// read independently.
func (a *TrackingAllocator) Stats() Stats {
	return Stats{
		InUse:       a.inUse.Load(),
		Peak:        a.peak.Load(),
		Allocations: a.allocations.Load(),
	}
}
