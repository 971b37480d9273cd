package io

import (
	"context"
	"fmt"
	"runtime"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/compute"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/teide/internal/dtype"
	"golang.org/x/sync/errgroup"
)

// Normalize returns a record whose columns all use engine storage types.
// Columns already in engine storage are shared, others are converted
// concurrently. The input record is not released.
func Normalize(ctx context.Context, rec arrow.Record, mem memory.Allocator, maxSymEntries int) (arrow.Record, error) {
	ncols := int(rec.NumCols())
	out := make([]arrow.Array, ncols)

	ctx = compute.WithAllocator(ctx, mem)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i := range ncols {
		g.Go(func() error {
			arr, err := normalizeColumn(gctx, mem, rec.ColumnName(i), rec.Column(i), maxSymEntries)
			if err != nil {
				return fmt.Errorf("column %s: %w", rec.ColumnName(i), err)
			}
			out[i] = arr
			return nil
		})
	}

	err := g.Wait()
	defer func() {
		for _, a := range out {
			if a != nil {
				a.Release()
			}
		}
	}()
	if err != nil {
		return nil, err
	}

	fields := make([]arrow.Field, ncols)
	for i, a := range out {
		fields[i] = arrow.Field{Name: rec.ColumnName(i), Type: a.DataType(), Nullable: true}
	}
	return array.NewRecord(arrow.NewSchema(fields, nil), out, rec.NumRows()), nil
}

// normalizeColumn returns a new reference to arr or a converted copy.
func normalizeColumn(ctx context.Context, mem memory.Allocator, name string, arr arrow.Array, maxSymEntries int) (arrow.Array, error) {
	dt := arr.DataType()

	switch dt.ID() {
	case arrow.BOOL, arrow.UINT8, arrow.INT16, arrow.INT32, arrow.INT64, arrow.FLOAT64, arrow.DATE32:
		arr.Retain()
		return arr, nil

	case arrow.FIXED_SIZE_BINARY:
		if w := dt.(*arrow.FixedSizeBinaryType).ByteWidth; w == 1 || w == 16 {
			arr.Retain()
			return arr, nil
		}
		return nil, fmt.Errorf("unsupported fixed-size binary width %d", dt.(*arrow.FixedSizeBinaryType).ByteWidth)

	case arrow.DICTIONARY:
		d := dt.(*arrow.DictionaryType)
		if d.ValueType.ID() == arrow.STRING && arrow.TypeEqual(d.IndexType, dtype.IndexTypeFor(arr.(*array.Dictionary).Dictionary().Len())) {
			arr.Retain()
			return arr, nil
		}
		return symFrom(mem, name, arr, maxSymEntries)

	case arrow.STRING, arrow.LARGE_STRING, arrow.BINARY, arrow.LARGE_BINARY:
		return symFrom(mem, name, arr, maxSymEntries)

	case arrow.INT8:
		return compute.CastArray(ctx, arr, compute.SafeCastOptions(arrow.PrimitiveTypes.Int16))
	case arrow.UINT16:
		return compute.CastArray(ctx, arr, compute.SafeCastOptions(arrow.PrimitiveTypes.Int32))
	case arrow.UINT32, arrow.UINT64:
		return compute.CastArray(ctx, arr, compute.SafeCastOptions(arrow.PrimitiveTypes.Int64))
	case arrow.FLOAT32:
		return compute.CastArray(ctx, arr, compute.SafeCastOptions(arrow.PrimitiveTypes.Float64))
	case arrow.DATE64:
		return compute.CastArray(ctx, arr, compute.UnsafeCastOptions(arrow.FixedWidthTypes.Date32))

	case arrow.TIME32, arrow.TIME64:
		if arrow.TypeEqual(dt, dtype.TimeType) {
			arr.Retain()
			return arr, nil
		}
		return compute.CastArray(ctx, arr, compute.UnsafeCastOptions(dtype.TimeType))

	case arrow.TIMESTAMP:
		if arrow.TypeEqual(dt, dtype.TimestampType) {
			arr.Retain()
			return arr, nil
		}
		return castTimestamp(ctx, arr)

	default:
		return nil, fmt.Errorf("unsupported type %s", dt)
	}
}

func symFrom(mem memory.Allocator, name string, arr arrow.Array, maxSymEntries int) (arrow.Array, error) {
	values, valid, err := decodeStrings(arr)
	if err != nil {
		return nil, err
	}
	return encodeSym(mem, name, values, valid, maxSymEntries)
}

// castTimestamp converts any timestamp unit to nanoseconds and relabels the
// zone as UTC; Arrow timestamps are stored as UTC instants regardless of zone.
func castTimestamp(ctx context.Context, arr arrow.Array) (arrow.Array, error) {
	src := arr.DataType().(*arrow.TimestampType)
	if src.Unit != arrow.Nanosecond {
		target := &arrow.TimestampType{Unit: arrow.Nanosecond, TimeZone: src.TimeZone}
		converted, err := compute.CastArray(ctx, arr, compute.SafeCastOptions(target))
		if err != nil {
			return nil, err
		}
		defer converted.Release()
		arr = converted
	}
	data := array.NewData(dtype.TimestampType, arr.Len(), arr.Data().Buffers(), nil, arr.NullN(), arr.Data().Offset())
	defer data.Release()
	return array.MakeFromData(data), nil
}
