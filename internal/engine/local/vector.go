package local

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"
	teideio "github.com/paveg/teide/internal/io"
	"golang.org/x/exp/constraints"
)

// kind is the evaluation type of a vector. Every storage type decodes to one
// of four kinds: integers, dates and times become kindInt, char, guid and
// sym become kindStr.
type kind int

const (
	kindBool kind = iota
	kindInt
	kindFloat
	kindStr
)

func (k kind) String() string {
	switch k {
	case kindBool:
		return "bool"
	case kindInt:
		return "int"
	case kindFloat:
		return "float"
	case kindStr:
		return "string"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// vector is a decoded column or an intermediate result. A scalar vector
// holds one value that broadcasts to any row.
type vector struct {
	kind   kind
	scalar bool
	b      []bool
	i      []int64
	f      []float64
	s      []string
	null   []bool // nil when no value is null
}

func newVector(k kind, n int, scalar bool) *vector {
	if scalar {
		n = 1
	}
	v := &vector{kind: k, scalar: scalar}
	switch k {
	case kindBool:
		v.b = make([]bool, n)
	case kindInt:
		v.i = make([]int64, n)
	case kindFloat:
		v.f = make([]float64, n)
	case kindStr:
		v.s = make([]string, n)
	}
	return v
}

func (v *vector) len() int {
	switch v.kind {
	case kindBool:
		return len(v.b)
	case kindInt:
		return len(v.i)
	case kindFloat:
		return len(v.f)
	default:
		return len(v.s)
	}
}

func (v *vector) at(i int) int {
	if v.scalar {
		return 0
	}
	return i
}

func (v *vector) numeric() bool {
	return v.kind == kindInt || v.kind == kindFloat
}

func (v *vector) isNull(i int) bool {
	return v.null != nil && v.null[v.at(i)]
}

func (v *vector) setNull(i int) {
	if v.null == nil {
		v.null = make([]bool, v.len())
	}
	v.null[i] = true
}

func (v *vector) boolAt(i int) bool { return v.b[v.at(i)] }
func (v *vector) strAt(i int) string { return v.s[v.at(i)] }

func (v *vector) intAt(i int) int64 {
	i = v.at(i)
	switch v.kind {
	case kindInt:
		return v.i[i]
	case kindFloat:
		return int64(v.f[i])
	case kindBool:
		if v.b[i] {
			return 1
		}
	}
	return 0
}

func (v *vector) floatAt(i int) float64 {
	i = v.at(i)
	switch v.kind {
	case kindFloat:
		return v.f[i]
	case kindInt:
		return float64(v.i[i])
	case kindBool:
		if v.b[i] {
			return 1
		}
	}
	return 0
}

// compareAt orders rows i and j of the same vector, ignoring nulls.
func (v *vector) compareAt(i, j int) int {
	i, j = v.at(i), v.at(j)
	switch v.kind {
	case kindBool:
		return compareBool(v.b[i], v.b[j])
	case kindInt:
		return cmp.Compare(v.i[i], v.i[j])
	case kindFloat:
		return cmp.Compare(v.f[i], v.f[j])
	default:
		return strings.Compare(v.s[i], v.s[j])
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

// broadcast expands a scalar to n rows. Non-scalar vectors are returned as is.
func (v *vector) broadcast(n int) *vector {
	if !v.scalar {
		return v
	}
	out := newVector(v.kind, n, false)
	for i := range n {
		switch v.kind {
		case kindBool:
			out.b[i] = v.b[0]
		case kindInt:
			out.i[i] = v.i[0]
		case kindFloat:
			out.f[i] = v.f[0]
		case kindStr:
			out.s[i] = v.s[0]
		}
	}
	if v.isNull(0) {
		out.null = make([]bool, n)
		for i := range out.null {
			out.null[i] = true
		}
	}
	return out
}

// pick gathers the given rows; -1 yields null.
func (v *vector) pick(rows []int) *vector {
	out := newVector(v.kind, len(rows), false)
	for o, r := range rows {
		if r < 0 || v.isNull(r) {
			out.setNull(o)
			continue
		}
		r = v.at(r)
		switch v.kind {
		case kindBool:
			out.b[o] = v.b[r]
		case kindInt:
			out.i[o] = v.i[r]
		case kindFloat:
			out.f[o] = v.f[r]
		case kindStr:
			out.s[o] = v.s[r]
		}
	}
	return out
}

// valid returns the builder validity slice for v, or nil when nothing is null.
func (v *vector) valid() []bool {
	if v.null == nil {
		return nil
	}
	out := make([]bool, len(v.null))
	for i, n := range v.null {
		out[i] = !n
	}
	return out
}

// toArray builds engine storage for a computed vector: bool, i64, f64 or sym.
func (v *vector) toArray(mem memory.Allocator) arrow.Array {
	switch v.kind {
	case kindBool:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		b.AppendValues(v.b, v.valid())
		return b.NewArray()
	case kindInt:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		b.AppendValues(v.i, v.valid())
		return b.NewArray()
	case kindFloat:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		b.AppendValues(v.f, v.valid())
		return b.NewArray()
	default:
		return teideio.EncodeSym(mem, v.s, v.valid())
	}
}

// decode reads an engine-storage array into a vector.
func decode(arr arrow.Array) (*vector, error) {
	n := arr.Len()
	var v *vector

	switch a := arr.(type) {
	case *array.Boolean:
		v = newVector(kindBool, n, false)
		for i := range n {
			v.b[i] = a.Value(i)
		}
	case *array.Uint8:
		v = &vector{kind: kindInt, i: widen(a.Uint8Values())}
	case *array.Int16:
		v = &vector{kind: kindInt, i: widen(a.Int16Values())}
	case *array.Int32:
		v = &vector{kind: kindInt, i: widen(a.Int32Values())}
	case *array.Int64:
		v = &vector{kind: kindInt, i: slices.Clone(a.Int64Values())}
	case *array.Date32:
		v = &vector{kind: kindInt, i: widen(a.Date32Values())}
	case *array.Time32:
		v = &vector{kind: kindInt, i: widen(a.Time32Values())}
	case *array.Timestamp:
		v = &vector{kind: kindInt, i: widen(a.TimestampValues())}
	case *array.Float64:
		v = &vector{kind: kindFloat, f: slices.Clone(a.Float64Values())}
	case *array.FixedSizeBinary:
		v = newVector(kindStr, n, false)
		guid := a.DataType().(*arrow.FixedSizeBinaryType).ByteWidth == 16
		for i := range n {
			if a.IsNull(i) {
				continue
			}
			if guid {
				v.s[i] = uuid.UUID(a.Value(i)).String()
			} else {
				v.s[i] = string(a.Value(i))
			}
		}
	case *array.Dictionary:
		dict := dictionaryStrings(a)
		v = newVector(kindStr, n, false)
		for i := range n {
			if a.IsNull(i) {
				continue
			}
			v.s[i] = dict[a.GetValueIndex(i)]
		}
	default:
		return nil, fmt.Errorf("unsupported column type %s", arr.DataType())
	}

	if arr.NullN() > 0 {
		v.null = make([]bool, n)
		for i := range n {
			v.null[i] = arr.IsNull(i)
		}
	}
	return v, nil
}

func widen[T constraints.Integer](values []T) []int64 {
	out := make([]int64, len(values))
	for i, x := range values {
		out[i] = int64(x)
	}
	return out
}

// dictionaryStrings decodes the value array of a sym column.
func dictionaryStrings(d *array.Dictionary) []string {
	values, ok := d.Dictionary().(*array.String)
	if !ok {
		return nil
	}
	out := make([]string, values.Len())
	for i := range out {
		out[i] = values.Value(i)
	}
	return out
}
