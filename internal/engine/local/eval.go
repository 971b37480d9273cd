package local

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/paveg/teide/internal/expr"
)

// evaluator computes expressions over one frame. Decoded columns are cached
// for the lifetime of the evaluator and must not be mutated.
type evaluator struct {
	f     *frame
	cache map[string]*vector
}

func newEvaluator(f *frame) *evaluator {
	return &evaluator{f: f, cache: make(map[string]*vector)}
}

func (ev *evaluator) column(name string) (*vector, error) {
	if v, ok := ev.cache[name]; ok {
		return v, nil
	}
	arr, err := ev.f.column(name)
	if err != nil {
		return nil, err
	}
	v, err := decode(arr)
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", name, err)
	}
	ev.cache[name] = v
	return v, nil
}

// eval evaluates e. Aggregates reduce over every row of the frame and yield
// a scalar.
func (ev *evaluator) eval(e expr.Expr) (*vector, error) {
	switch n := e.(type) {
	case *expr.ColumnExpr:
		return ev.column(n.Name())
	case *expr.LiteralExpr:
		return literal(n), nil
	case *expr.AliasExpr:
		return ev.eval(n.Arg())
	case *expr.UnaryExpr:
		v, err := ev.eval(n.Operand())
		if err != nil {
			return nil, err
		}
		return unary(n.Op(), v)
	case *expr.BinaryExpr:
		l, err := ev.eval(n.Left())
		if err != nil {
			return nil, err
		}
		r, err := ev.eval(n.Right())
		if err != nil {
			return nil, err
		}
		return evalBinary(n.Op(), l, r, ev.f.rows)
	case *expr.AggregationExpr:
		return ev.scalarAggregate(n)
	case nil:
		return nil, fmt.Errorf("nil expression")
	}
	return nil, fmt.Errorf("unsupported expression %s", e)
}

func (ev *evaluator) scalarAggregate(a *expr.AggregationExpr) (*vector, error) {
	v, err := ev.eval(a.Arg())
	if err != nil {
		return nil, err
	}
	v = v.broadcast(ev.f.rows)

	all := make([]int, ev.f.rows)
	for i := range all {
		all[i] = i
	}
	red, err := reduce(a.Op(), v, [][]int{all})
	if err != nil {
		return nil, err
	}

	out := red.values
	if red.rows != nil {
		out = v.pick(red.rows)
	}
	out.scalar = true
	return out, nil
}

func literal(l *expr.LiteralExpr) *vector {
	switch l.Type() {
	case expr.LitInt:
		v := newVector(kindInt, 1, true)
		v.i[0] = l.Int()
		return v
	case expr.LitFloat:
		v := newVector(kindFloat, 1, true)
		v.f[0] = l.Float()
		return v
	case expr.LitBool:
		v := newVector(kindBool, 1, true)
		v.b[0] = l.Bool()
		return v
	default:
		v := newVector(kindStr, 1, true)
		v.s[0] = l.Str()
		return v
	}
}

func unary(op expr.UnaryOp, v *vector) (*vector, error) {
	n := v.len()
	switch op {
	case expr.UnaryIsNull:
		out := newVector(kindBool, n, v.scalar)
		for i := range n {
			out.b[i] = v.isNull(i)
		}
		return out, nil
	case expr.UnaryNot:
		if v.kind != kindBool {
			return nil, fmt.Errorf("cannot apply not to %s", v.kind)
		}
		out := newVector(kindBool, n, v.scalar)
		for i := range n {
			out.b[i] = !v.b[i]
		}
		out.null = slices.Clone(v.null)
		return out, nil
	case expr.UnaryNeg:
		return mapNumeric(op, v, func(x int64) int64 { return -x }, func(x float64) float64 { return -x })
	case expr.UnaryAbs:
		return mapNumeric(op, v, func(x int64) int64 {
			if x < 0 {
				return -x
			}
			return x
		}, math.Abs)
	case expr.UnaryCeil:
		return mapNumeric(op, v, func(x int64) int64 { return x }, math.Ceil)
	case expr.UnaryFloor:
		return mapNumeric(op, v, func(x int64) int64 { return x }, math.Floor)
	case expr.UnarySqrt:
		return mapNumeric(op, v, nil, math.Sqrt)
	case expr.UnaryLog:
		return mapNumeric(op, v, nil, math.Log)
	case expr.UnaryExp:
		return mapNumeric(op, v, nil, math.Exp)
	}
	return nil, fmt.Errorf("unsupported unary operator %s", op)
}

// mapNumeric applies intFn to integer input when it is non-nil and floatFn
// otherwise, producing float output.
func mapNumeric(op expr.UnaryOp, v *vector, intFn func(int64) int64, floatFn func(float64) float64) (*vector, error) {
	if !v.numeric() {
		return nil, fmt.Errorf("cannot apply %s to %s", op, v.kind)
	}
	n := v.len()
	var out *vector
	if v.kind == kindInt && intFn != nil {
		out = newVector(kindInt, n, v.scalar)
		for i := range n {
			out.i[i] = intFn(v.i[i])
		}
	} else {
		out = newVector(kindFloat, n, v.scalar)
		for i := range n {
			out.f[i] = floatFn(v.floatAt(i))
		}
	}
	out.null = slices.Clone(v.null)
	return out, nil
}

func evalBinary(op expr.BinaryOp, l, r *vector, rows int) (*vector, error) {
	scalar := l.scalar && r.scalar
	n := rows
	if scalar {
		n = 1
	}
	switch {
	case op.IsLogical():
		return logical(op, l, r, n, scalar)
	case op.IsComparison():
		return compare(op, l, r, n, scalar)
	default:
		return arithmetic(op, l, r, n, scalar)
	}
}

func arithmetic(op expr.BinaryOp, l, r *vector, n int, scalar bool) (*vector, error) {
	if !l.numeric() || !r.numeric() {
		return nil, fmt.Errorf("cannot apply %s to %s and %s", op, l.kind, r.kind)
	}

	if op == expr.OpDiv || l.kind == kindFloat || r.kind == kindFloat {
		out := newVector(kindFloat, n, scalar)
		for i := range n {
			if l.isNull(i) || r.isNull(i) {
				out.setNull(i)
				continue
			}
			a, b := l.floatAt(i), r.floatAt(i)
			switch op {
			case expr.OpAdd:
				out.f[i] = a + b
			case expr.OpSub:
				out.f[i] = a - b
			case expr.OpMul:
				out.f[i] = a * b
			case expr.OpDiv:
				out.f[i] = a / b
			case expr.OpMod:
				if b == 0 {
					out.setNull(i)
					continue
				}
				out.f[i] = math.Mod(a, b)
			}
		}
		return out, nil
	}

	out := newVector(kindInt, n, scalar)
	for i := range n {
		if l.isNull(i) || r.isNull(i) {
			out.setNull(i)
			continue
		}
		a, b := l.intAt(i), r.intAt(i)
		switch op {
		case expr.OpAdd:
			out.i[i] = a + b
		case expr.OpSub:
			out.i[i] = a - b
		case expr.OpMul:
			out.i[i] = a * b
		case expr.OpMod:
			if b == 0 {
				out.setNull(i)
				continue
			}
			out.i[i] = a % b
		}
	}
	return out, nil
}

func compare(op expr.BinaryOp, l, r *vector, n int, scalar bool) (*vector, error) {
	var order func(i int) int
	switch {
	case l.kind == kindInt && r.kind == kindInt:
		order = func(i int) int { return cmp.Compare(l.intAt(i), r.intAt(i)) }
	case l.numeric() && r.numeric():
		order = func(i int) int { return cmp.Compare(l.floatAt(i), r.floatAt(i)) }
	case l.kind == kindStr && r.kind == kindStr:
		order = func(i int) int { return strings.Compare(l.strAt(i), r.strAt(i)) }
	case l.kind == kindBool && r.kind == kindBool:
		order = func(i int) int { return compareBool(l.boolAt(i), r.boolAt(i)) }
	default:
		return nil, fmt.Errorf("cannot compare %s with %s", l.kind, r.kind)
	}

	out := newVector(kindBool, n, scalar)
	for i := range n {
		if l.isNull(i) || r.isNull(i) {
			out.setNull(i)
			continue
		}
		c := order(i)
		switch op {
		case expr.OpEq:
			out.b[i] = c == 0
		case expr.OpNe:
			out.b[i] = c != 0
		case expr.OpLt:
			out.b[i] = c < 0
		case expr.OpLe:
			out.b[i] = c <= 0
		case expr.OpGt:
			out.b[i] = c > 0
		case expr.OpGe:
			out.b[i] = c >= 0
		}
	}
	return out, nil
}

// logical implements three-valued and/or: a known false (and) or a known
// true (or) decides the result even when the other side is null.
func logical(op expr.BinaryOp, l, r *vector, n int, scalar bool) (*vector, error) {
	if l.kind != kindBool || r.kind != kindBool {
		return nil, fmt.Errorf("cannot apply %s to %s and %s", op, l.kind, r.kind)
	}

	out := newVector(kindBool, n, scalar)
	for i := range n {
		ln, rn := l.isNull(i), r.isNull(i)
		lv, rv := !ln && l.boolAt(i), !rn && r.boolAt(i)
		if op == expr.OpAnd {
			switch {
			case (!ln && !lv) || (!rn && !rv):
				out.b[i] = false
			case ln || rn:
				out.setNull(i)
			default:
				out.b[i] = true
			}
			continue
		}
		switch {
		case lv || rv:
			out.b[i] = true
		case ln || rn:
			out.setNull(i)
		default:
			out.b[i] = false
		}
	}
	return out, nil
}
