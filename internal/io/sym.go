package io

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/teide/internal/dtype"
)

// EncodeSym builds a sym column from values. The dictionary holds the
// distinct values in first-appearance order. valid may be nil; otherwise
// rows with valid[i] == false are null.
func EncodeSym(mem memory.Allocator, values []string, valid []bool) arrow.Array {
	arr, _ := encodeSym(mem, "", values, valid, 0)
	return arr
}

func encodeSym(mem memory.Allocator, name string, values []string, valid []bool, limit int) (arrow.Array, error) {
	positions := make(map[string]int)
	dict := make([]string, 0)
	idx := make([]int, len(values))

	for i, v := range values {
		if valid != nil && !valid[i] {
			continue
		}
		j, ok := positions[v]
		if !ok {
			j = len(dict)
			positions[v] = j
			dict = append(dict, v)
			if limit > 0 && len(dict) > limit {
				return nil, fmt.Errorf("column %s has more than %d distinct values", name, limit)
			}
		}
		idx[i] = j
	}

	typ := dtype.SymType(len(dict))

	sb := array.NewStringBuilder(mem)
	defer sb.Release()
	sb.AppendValues(dict, nil)
	dictArr := sb.NewArray()
	defer dictArr.Release()

	var indices arrow.Array
	switch typ.IndexType.ID() {
	case arrow.UINT8:
		indices = buildIndices[uint8](array.NewUint8Builder(mem), idx, valid)
	case arrow.UINT16:
		indices = buildIndices[uint16](array.NewUint16Builder(mem), idx, valid)
	default:
		indices = buildIndices[uint32](array.NewUint32Builder(mem), idx, valid)
	}
	defer indices.Release()

	return array.NewDictionaryArray(typ, indices, dictArr), nil
}

type indexBuilder[T uint8 | uint16 | uint32] interface {
	array.Builder
	Append(T)
}

func buildIndices[T uint8 | uint16 | uint32](b indexBuilder[T], idx []int, valid []bool) arrow.Array {
	defer b.Release()
	b.Reserve(len(idx))
	for i, j := range idx {
		if valid != nil && !valid[i] {
			b.AppendNull()
			continue
		}
		b.Append(T(j))
	}
	return b.NewArray()
}

// decodeStrings reads any string-like array, including dictionaries of
// strings, into a value slice and validity mask.
func decodeStrings(arr arrow.Array) ([]string, []bool, error) {
	n := arr.Len()
	values := make([]string, n)
	valid := make([]bool, n)

	var at func(int) (string, bool)
	plain := func(get func(int) string) func(int) (string, bool) {
		return func(i int) (string, bool) { return get(i), true }
	}
	switch a := arr.(type) {
	case *array.String:
		at = plain(a.Value)
	case *array.LargeString:
		at = plain(a.Value)
	case *array.Binary:
		at = plain(a.ValueString)
	case *array.LargeBinary:
		at = plain(func(i int) string { return string(a.Value(i)) })
	case *array.Dictionary:
		dvalues, dvalid, err := decodeStrings(a.Dictionary())
		if err != nil {
			return nil, nil, err
		}
		at = func(i int) (string, bool) {
			j := a.GetValueIndex(i)
			return dvalues[j], dvalid[j]
		}
	default:
		return nil, nil, fmt.Errorf("cannot decode %s as strings", arr.DataType())
	}

	for i := range n {
		if arr.IsNull(i) {
			continue
		}
		values[i], valid[i] = at(i)
	}
	return values, valid, nil
}
