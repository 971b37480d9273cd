package local

import (
	"slices"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/paveg/teide/internal/dtype"
	"github.com/paveg/teide/internal/engine"
	"github.com/paveg/teide/internal/errors"
	"go.uber.org/atomic"
)

// table is the local engine's DataHandle. It owns one frame and exposes a
// precomputed view per column.
type table struct {
	session  *session
	frame    *frame
	views    map[string]*columnView
	released atomic.Bool
}

var _ engine.DataHandle = (*table)(nil)

// newTable takes ownership of f. It must run on the session goroutine: view
// construction resolves each dictionary, which Arrow caches without locking.
func newTable(s *session, f *frame) *table {
	t := &table{session: s, frame: f, views: make(map[string]*columnView, len(f.cols))}
	for i, name := range f.names {
		t.views[name] = newColumnView(t, name, f.cols[i])
	}
	return t
}

func (t *table) ColumnNames() []string { return slices.Clone(t.frame.names) }
func (t *table) RowCount() int { return t.frame.rows }
func (t *table) ColumnCount() int { return len(t.frame.names) }

func (t *table) Column(name string) (engine.ColumnHandle, error) {
	if t.released.Load() {
		return nil, errors.NewResourceReleasedError("Column")
	}
	v, ok := t.views[name]
	if !ok {
		return nil, errors.NewColumnNotFoundError("Column", name)
	}
	return v, nil
}

func (t *table) release() {
	if !t.released.Swap(true) {
		t.frame.release()
	}
}

// columnView is a ColumnHandle over one Arrow array. Buffers alias Arrow
// memory except bool data, which Arrow packs into bits and the view widens
// to one byte per row. After the table is released every buffer is nil.
type columnView struct {
	t      *table
	name   string
	code   dtype.Code
	n      int
	data   []byte
	nulls  []byte
	width  int
	idx    []byte
	values []string
}

func newColumnView(t *table, name string, arr arrow.Array) *columnView {
	v := &columnView{t: t, name: name, n: arr.Len()}
	v.code, _ = dtype.FromArrow(arr.DataType())

	if arr.NullN() > 0 {
		v.nulls = make([]byte, bitutil.BytesForBits(int64(v.n)))
		for i := range v.n {
			if arr.IsNull(i) {
				bitutil.SetBit(v.nulls, i)
			}
		}
	}

	switch a := arr.(type) {
	case *array.Boolean:
		v.data = make([]byte, v.n)
		for i := range v.n {
			if a.Value(i) {
				v.data[i] = 1
			}
		}
	case *array.Dictionary:
		indices := a.Indices()
		v.width = indices.DataType().(arrow.FixedWidthDataType).BitWidth() / 8
		v.idx = fixedBytes(indices, v.width)
		v.values = dictionaryStrings(a)
	default:
		v.data = fixedBytes(arr, v.code.Width())
	}
	return v
}

// fixedBytes returns the value buffer of a fixed-width array, trimmed to the
// array's offset and length.
func fixedBytes(arr arrow.Array, width int) []byte {
	bufs := arr.Data().Buffers()
	if len(bufs) < 2 || bufs[1] == nil || width == 0 {
		return []byte{}
	}
	off := arr.Data().Offset()
	return bufs[1].Bytes()[off*width : (off+arr.Len())*width]
}

func (v *columnView) live() bool { return !v.t.released.Load() }

func (v *columnView) Name() string { return v.name }
func (v *columnView) Type() dtype.Code { return v.code }
func (v *columnView) Len() int { return v.n }
func (v *columnView) IndexWidth() int { return v.width }

func (v *columnView) Data() []byte {
	if !v.live() {
		return nil
	}
	return v.data
}

func (v *columnView) NullBitmap() []byte {
	if !v.live() {
		return nil
	}
	return v.nulls
}

func (v *columnView) Indices() []byte {
	if !v.live() {
		return nil
	}
	return v.idx
}

func (v *columnView) Dictionary() []string {
	if !v.live() {
		return nil
	}
	return v.values
}
