package local

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/cespare/xxhash/v2"
	"github.com/paveg/teide/internal/expr"
	"github.com/paveg/teide/internal/plan"
	"golang.org/x/exp/constraints"
)

// buildGroups partitions rows by key tuple. Groups are ordered by the first
// row in which their key appears, and rows keep their order inside a group.
// With no keys every row forms a single group, which exists even when there
// are no rows.
func buildGroups(keys []*vector, rows int) [][]int {
	if len(keys) == 0 {
		all := make([]int, rows)
		for i := range all {
			all[i] = i
		}
		return [][]int{all}
	}
	if rows == 0 {
		return nil
	}

	var groups [][]int
	index := make(map[uint64][]int)
	buf := make([]byte, 0, 64)

	for row := range rows {
		buf = appendKey(buf[:0], keys, row)
		h := xxhash.Sum64(buf)

		gid := -1
		for _, g := range index[h] {
			if keysEqual(keys, groups[g][0], row) {
				gid = g
				break
			}
		}
		if gid < 0 {
			gid = len(groups)
			groups = append(groups, nil)
			index[h] = append(index[h], gid)
		}
		groups[gid] = append(groups[gid], row)
	}
	return groups
}

func appendKey(buf []byte, keys []*vector, row int) []byte {
	for _, k := range keys {
		if k.isNull(row) {
			buf = append(buf, 0)
			continue
		}
		buf = append(buf, 1)
		switch k.kind {
		case kindBool:
			if k.boolAt(row) {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		case kindInt:
			buf = binary.LittleEndian.AppendUint64(buf, uint64(k.intAt(row)))
		case kindFloat:
			buf = binary.LittleEndian.AppendUint64(buf, floatKey(k.floatAt(row)))
		case kindStr:
			s := k.strAt(row)
			buf = binary.AppendUvarint(buf, uint64(len(s)))
			buf = append(buf, s...)
		}
	}
	return buf
}

// floatKey folds -0 into 0 so both land in the same group.
func floatKey(f float64) uint64 {
	if f == 0 {
		return 0
	}
	return math.Float64bits(f)
}

func keysEqual(keys []*vector, a, b int) bool {
	for _, k := range keys {
		an, bn := k.isNull(a), k.isNull(b)
		if an || bn {
			if an != bn {
				return false
			}
			continue
		}
		switch k.kind {
		case kindFloat:
			if floatKey(k.floatAt(a)) != floatKey(k.floatAt(b)) {
				return false
			}
		default:
			if k.compareAt(a, b) != 0 {
				return false
			}
		}
	}
	return true
}

// reduction is the per-group outcome of one aggregate. Selecting aggregates
// (min, max, first, last) report the chosen row of each group, -1 when there
// is none; the others report computed values.
type reduction struct {
	rows   []int
	values *vector
}

func reduce(op expr.AggOp, v *vector, groups [][]int) (reduction, error) {
	switch op {
	case expr.AggFirst, expr.AggLast:
		rows := make([]int, len(groups))
		for g, idx := range groups {
			rows[g] = -1
			if len(idx) == 0 {
				continue
			}
			if op == expr.AggFirst {
				rows[g] = idx[0]
			} else {
				rows[g] = idx[len(idx)-1]
			}
		}
		return reduction{rows: rows}, nil

	case expr.AggMin, expr.AggMax:
		rows := make([]int, len(groups))
		for g, idx := range groups {
			rows[g] = extreme(v, idx, op == expr.AggMax)
		}
		return reduction{rows: rows}, nil

	case expr.AggCount:
		out := newVector(kindInt, len(groups), false)
		for g, idx := range groups {
			for _, i := range idx {
				if !v.isNull(i) {
					out.i[g]++
				}
			}
		}
		return reduction{values: out}, nil

	case expr.AggSum, expr.AggProd, expr.AggAvg:
		if v.kind == kindStr {
			return reduction{}, fmt.Errorf("cannot %s %s values", op, v.kind)
		}
		return reduction{values: arithmeticReduce(op, v, groups)}, nil
	}
	return reduction{}, fmt.Errorf("unsupported aggregate %s", op)
}

// extreme returns the row holding the smallest (or largest) non-null value;
// ties keep the earliest row.
func extreme(v *vector, idx []int, largest bool) int {
	best := -1
	for _, i := range idx {
		if v.isNull(i) {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		c := v.compareAt(i, best)
		if (largest && c > 0) || (!largest && c < 0) {
			best = i
		}
	}
	return best
}

// arithmeticReduce computes sum, prod or avg. Sums and products of integer
// or bool input stay integral; an empty or all-null group sums to 0 and
// multiplies to 1, and its average is null.
func arithmeticReduce(op expr.AggOp, v *vector, groups [][]int) *vector {
	if op == expr.AggAvg {
		out := newVector(kindFloat, len(groups), false)
		for g, idx := range groups {
			var sum float64
			var count int
			if v.kind == kindFloat {
				sum, count = fold(v.f, v.null, idx, 0, add[float64])
			} else {
				var isum int64
				isum, count = fold(integers(v), v.null, idx, 0, add[int64])
				sum = float64(isum)
			}
			if count == 0 {
				out.setNull(g)
				continue
			}
			out.f[g] = sum / float64(count)
		}
		return out
	}

	if v.kind == kindFloat {
		out := newVector(kindFloat, len(groups), false)
		for g, idx := range groups {
			if op == expr.AggProd {
				out.f[g], _ = fold(v.f, v.null, idx, 1, mul[float64])
			} else {
				out.f[g], _ = fold(v.f, v.null, idx, 0, add[float64])
			}
		}
		return out
	}

	ints := integers(v)
	out := newVector(kindInt, len(groups), false)
	for g, idx := range groups {
		if op == expr.AggProd {
			out.i[g], _ = fold(ints, v.null, idx, 1, mul[int64])
		} else {
			out.i[g], _ = fold(ints, v.null, idx, 0, add[int64])
		}
	}
	return out
}

func integers(v *vector) []int64 {
	if v.kind == kindInt {
		return v.i
	}
	out := make([]int64, v.len())
	for i := range out {
		out[i] = v.intAt(i)
	}
	return out
}

type number interface {
	constraints.Integer | constraints.Float
}

func add[T number](a, b T) T { return a + b }
func mul[T number](a, b T) T { return a * b }

// fold combines the non-null values at idx and reports how many it used.
func fold[T number](values []T, null []bool, idx []int, init T, fn func(T, T) T) (T, int) {
	acc, count := init, 0
	for _, i := range idx {
		if null != nil && null[i] {
			continue
		}
		acc = fn(acc, values[i])
		count++
	}
	return acc, count
}

// group executes a group operation: key columns in key order, then one
// column per aggregate.
func (x *executor) group(f *frame, op *plan.Group) (*frame, error) {
	ev := newEvaluator(f)

	keys := make([]*vector, len(op.Keys))
	seen := make(map[string]bool, len(op.Keys))
	for i, k := range op.Keys {
		if seen[k] {
			return nil, fmt.Errorf("duplicate group key %s", k)
		}
		seen[k] = true
		v, err := ev.column(k)
		if err != nil {
			return nil, err
		}
		keys[i] = v
	}

	groups := buildGroups(keys, f.rows)
	firsts := make([]int, 0, len(groups))
	if len(op.Keys) > 0 {
		for _, idx := range groups {
			firsts = append(firsts, idx[0])
		}
	}

	out := &frame{rows: len(groups)}
	for _, k := range op.Keys {
		arr, err := f.column(k)
		if err != nil {
			out.release()
			return nil, err
		}
		taken, err := x.takeRows(arr, firsts)
		if err != nil {
			out.release()
			return nil, fmt.Errorf("key %s: %w", k, err)
		}
		out.add(k, taken)
	}

	for _, a := range op.Aggs {
		name, aggOp, arg, err := splitAggregate(a)
		if err != nil {
			out.release()
			return nil, err
		}
		arr, err := x.aggregate(ev, aggOp, arg, groups)
		if err != nil {
			out.release()
			return nil, fmt.Errorf("%s: %w", a, err)
		}
		out.add(out.uniqueName(name, aggOp), arr)
	}
	return out, nil
}

// splitAggregate resolves an aggregate list entry into its output name,
// operator and argument. Entries without an aggregate are taken as first.
func splitAggregate(e expr.Expr) (string, expr.AggOp, expr.Expr, error) {
	alias := ""
	if a, ok := e.(*expr.AliasExpr); ok {
		alias = a.Name()
		e = a.Arg()
	}

	op, arg := expr.AggFirst, e
	if agg, ok := e.(*expr.AggregationExpr); ok {
		op, arg = agg.Op(), agg.Arg()
		if expr.HasAggregate(arg) {
			return "", 0, nil, fmt.Errorf("nested aggregate in %s", e)
		}
	} else if expr.HasAggregate(e) {
		return "", 0, nil, fmt.Errorf("aggregate must be the outermost call in %s", e)
	}

	name := alias
	if name == "" {
		name = expr.OutputName(e)
	}
	return name, op, arg, nil
}

func (x *executor) aggregate(ev *evaluator, op expr.AggOp, arg expr.Expr, groups [][]int) (arrow.Array, error) {
	v, err := ev.eval(arg)
	if err != nil {
		return nil, err
	}
	v = v.broadcast(ev.f.rows)

	red, err := reduce(op, v, groups)
	if err != nil {
		return nil, err
	}
	if red.rows == nil {
		return red.values.toArray(x.mem), nil
	}

	// Selected rows of a plain column keep its storage type and dictionary.
	if c, ok := arg.(*expr.ColumnExpr); ok {
		src, err := ev.f.column(c.Name())
		if err != nil {
			return nil, err
		}
		return x.takeRows(src, red.rows)
	}
	return v.pick(red.rows).toArray(x.mem), nil
}
