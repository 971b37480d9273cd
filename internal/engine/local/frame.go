package local

import (
	"context"
	"fmt"
	"slices"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/compute"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/teide/internal/errors"
	"github.com/paveg/teide/internal/expr"
	"github.com/paveg/teide/internal/parallel"
	"github.com/paveg/teide/internal/plan"
)

// frame is an ordered set of equal-length columns. A frame holds one
// reference to each of its arrays.
type frame struct {
	names []string
	cols  []arrow.Array
	rows  int
}

func frameFromRecord(rec arrow.Record) *frame {
	f := &frame{rows: int(rec.NumRows())}
	for i, col := range rec.Columns() {
		col.Retain()
		f.names = append(f.names, rec.ColumnName(i))
		f.cols = append(f.cols, col)
	}
	return f
}

func (f *frame) index(name string) int {
	return slices.Index(f.names, name)
}

func (f *frame) column(name string) (arrow.Array, error) {
	i := f.index(name)
	if i < 0 {
		return nil, errors.NewColumnNotFoundError("Materialize", name)
	}
	return f.cols[i], nil
}

// add appends a column, taking ownership of arr.
func (f *frame) add(name string, arr arrow.Array) {
	f.names = append(f.names, name)
	f.cols = append(f.cols, arr)
}

// uniqueName returns name, or name_<op> (then name_<op>_<n>) when name is
// already taken.
func (f *frame) uniqueName(name string, op expr.AggOp) string {
	if f.index(name) < 0 {
		return name
	}
	candidate := name + "_" + op.String()
	for n := 2; f.index(candidate) >= 0; n++ {
		candidate = fmt.Sprintf("%s_%s_%d", name, op, n)
	}
	return candidate
}

// share returns a frame referencing the same arrays.
func (f *frame) share() *frame {
	out := &frame{names: slices.Clone(f.names), cols: slices.Clone(f.cols), rows: f.rows}
	for _, c := range out.cols {
		c.Retain()
	}
	return out
}

func (f *frame) release() {
	for _, c := range f.cols {
		c.Release()
	}
	f.cols = nil
}

// executor runs plan operations for one session.
type executor struct {
	mem       memory.Allocator
	pool      *parallel.WorkerPool
	threshold int
}

func (x *executor) apply(f *frame, op plan.Operation) (*frame, error) {
	switch o := op.(type) {
	case *plan.Filter:
		return x.filter(f, o.Predicate)
	case *plan.Group:
		return x.group(f, o)
	case *plan.Sort:
		return x.sort(f, o)
	case *plan.Head:
		return x.head(f, o.N), nil
	}
	return nil, fmt.Errorf("unsupported operation %T", op)
}

// filter keeps rows where pred is true; null counts as false.
func (x *executor) filter(f *frame, pred expr.Expr) (*frame, error) {
	v, err := newEvaluator(f).eval(pred)
	if err != nil {
		return nil, err
	}
	if v.kind != kindBool {
		return nil, fmt.Errorf("filter predicate must be boolean, got %s", v.kind)
	}

	rows := make([]int, 0, f.rows)
	for i := range f.rows {
		if !v.isNull(i) && v.boolAt(i) {
			rows = append(rows, i)
		}
	}
	if len(rows) == f.rows {
		return f.share(), nil
	}
	return x.gather(f, rows)
}

type sortKey struct {
	v    *vector
	desc bool
}

// compare orders nulls first; descending reverses the whole order, so nulls
// come last.
func (k sortKey) compare(a, b int) int {
	an, bn := k.v.isNull(a), k.v.isNull(b)
	var c int
	switch {
	case an && bn:
		c = 0
	case an:
		c = -1
	case bn:
		c = 1
	default:
		c = k.v.compareAt(a, b)
	}
	if k.desc {
		return -c
	}
	return c
}

func (x *executor) sort(f *frame, op *plan.Sort) (*frame, error) {
	ev := newEvaluator(f)
	keys := make([]sortKey, len(op.Columns))
	for i, c := range op.Columns {
		v, err := ev.column(c)
		if err != nil {
			return nil, err
		}
		keys[i] = sortKey{v: v, desc: op.Descending[i]}
	}

	perm := make([]int, f.rows)
	for i := range perm {
		perm[i] = i
	}
	slices.SortStableFunc(perm, func(a, b int) int {
		for _, k := range keys {
			if c := k.compare(a, b); c != 0 {
				return c
			}
		}
		return 0
	})
	return x.gather(f, perm)
}

// head slices without copying.
func (x *executor) head(f *frame, n int) *frame {
	if n >= f.rows {
		return f.share()
	}
	out := &frame{names: slices.Clone(f.names), rows: n}
	for _, c := range f.cols {
		out.cols = append(out.cols, array.NewSlice(c, 0, int64(n)))
	}
	return out
}

// gather builds a frame from the given rows of every column. Columns are
// processed on the worker pool once the frame reaches the parallel
// threshold.
func (x *executor) gather(f *frame, rows []int) (*frame, error) {
	indices := x.indexArray(rows)
	defer indices.Release()

	type result struct {
		arr arrow.Array
		err error
	}
	work := func(_ int, col arrow.Array) result {
		arr, err := x.take(col, indices)
		return result{arr, err}
	}

	var results []result
	if f.rows >= x.threshold && len(f.cols) > 1 {
		results = parallel.ProcessIndexed(x.pool, f.cols, work)
	} else {
		results = make([]result, len(f.cols))
		for i, col := range f.cols {
			results[i] = work(i, col)
		}
	}

	out := &frame{rows: len(rows)}
	var firstErr error
	for i, r := range results {
		switch {
		case r.err != nil:
			if firstErr == nil {
				firstErr = fmt.Errorf("column %s: %w", f.names[i], r.err)
			}
		case r.arr == nil:
			if firstErr == nil {
				firstErr = fmt.Errorf("column %s: worker pool closed", f.names[i])
			}
		default:
			out.add(f.names[i], r.arr)
		}
	}
	if firstErr != nil {
		out.release()
		return nil, firstErr
	}
	return out, nil
}

// takeRows gathers rows of a single array; -1 yields null.
func (x *executor) takeRows(arr arrow.Array, rows []int) (arrow.Array, error) {
	indices := x.indexArray(rows)
	defer indices.Release()
	return x.take(arr, indices)
}

func (x *executor) indexArray(rows []int) arrow.Array {
	b := array.NewInt64Builder(x.mem)
	defer b.Release()
	b.Reserve(len(rows))
	for _, r := range rows {
		if r < 0 {
			b.AppendNull()
		} else {
			b.UnsafeAppend(int64(r))
		}
	}
	return b.NewArray()
}

// take gathers arr at indices. Dictionary arrays gather their indices and
// keep the source dictionary and index width.
func (x *executor) take(arr, indices arrow.Array) (arrow.Array, error) {
	ctx := compute.WithAllocator(context.Background(), x.mem)
	d, ok := arr.(*array.Dictionary)
	if !ok {
		return compute.TakeArray(ctx, arr, indices)
	}
	idx, err := compute.TakeArray(ctx, d.Indices(), indices)
	if err != nil {
		return nil, err
	}
	defer idx.Release()
	return array.NewDictionaryArray(d.DataType(), idx, d.Dictionary()), nil
}
