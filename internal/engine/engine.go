// Package engine defines the boundary between the query front-end and an
// execution engine.
//
// The front-end never touches engine memory directly. It creates a handle,
// asks the engine to read sources into data handles, submits operation lists
// against data handles and reads results through ColumnHandle views.
package engine

import (
	"github.com/paveg/teide/internal/plan"
	"github.com/paveg/teide/internal/series"
)

// Handle is an engine's process-level execution state.
type Handle interface {
	ID() string
}

// DataHandle is an engine-owned table.
type DataHandle interface {
	ColumnNames() []string
	RowCount() int
	ColumnCount() int
	// Column fails with a ColumnNotFound error when name is absent.
	Column(name string) (ColumnHandle, error)
}

// ColumnHandle is one engine-owned column. Its buffers stay valid until the
// handle that produced it is released.
type ColumnHandle interface {
	series.Source
}

// Engine is implemented by execution back-ends.
//
// Engines must be safe for concurrent use. Deferred variants return
// immediately; the Future resolves when the work completes. There is no
// cancellation: submitted work always runs to completion or failure.
type Engine interface {
	CreateHandle() (Handle, error)
	// Release frees everything owned by h. Releasing twice is not an error.
	Release(h Handle) error

	ReadSource(h Handle, path string) (DataHandle, error)
	ReadSourceAsync(h Handle, path string) *Future[DataHandle]

	// Materialize applies ops in order and returns a new, independent table.
	Materialize(d DataHandle, ops []plan.Operation) (DataHandle, error)
	MaterializeAsync(d DataHandle, ops []plan.Operation) *Future[DataHandle]
}
