// Package series provides typed, read-only views over engine-owned columns.
//
// A Column never owns memory. Each buffer access first consults the guard
// supplied at construction, which reports whether the owning context is
// still live; once it fails, every accessor returns that error instead of
// touching released buffers.
package series

import (
	"fmt"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/google/uuid"
	"github.com/paveg/teide/internal/dtype"
	"github.com/paveg/teide/internal/errors"
)

// Source is the raw column surface exposed by an engine.
type Source interface {
	Name() string
	Type() dtype.Code
	Len() int
	// Data is the primary buffer, Len()*Type().Width() bytes. Empty for sym.
	Data() []byte
	// NullBitmap is LSB-first with bit i set when row i is null; nil when
	// the column has no nulls.
	NullBitmap() []byte
	// IndexWidth is 1, 2 or 4 for sym columns and 0 otherwise.
	IndexWidth() int
	Indices() []byte
	Dictionary() []string
}

// Column is a typed view of one engine column.
type Column struct {
	src   Source
	guard func() error
	name  string
	code  dtype.Code
	n     int
}

// New wraps src. guard may be nil for sources whose lifetime is not managed.
func New(src Source, guard func() error) *Column {
	return &Column{
		src:   src,
		guard: guard,
		name:  src.Name(),
		code:  src.Type(),
		n:     src.Len(),
	}
}

func (c *Column) Name() string { return c.name }
func (c *Column) Len() int { return c.n }

// DType returns the element-type tag.
func (c *Column) DType() dtype.Code { return c.code }

func (c *Column) String() string {
	return fmt.Sprintf("Column(%s: %s, len=%d)", c.name, c.code, c.n)
}

func (c *Column) check(op string, accepted ...dtype.Code) error {
	if c.guard != nil {
		if err := c.guard(); err != nil {
			return err
		}
	}
	if len(accepted) == 0 {
		return nil
	}
	for _, a := range accepted {
		if c.code == a {
			return nil
		}
	}
	want := accepted[0].String()
	for _, a := range accepted[1:] {
		want += "|" + a.String()
	}
	return errors.NewTypeMismatchError(op, c.name, want, c.code.String())
}

// Float64s returns the f64 buffer without copying.
func (c *Column) Float64s() ([]float64, error) {
	if err := c.check("Float64s", dtype.F64); err != nil {
		return nil, err
	}
	return arrow.Float64Traits.CastFromBytes(c.src.Data()), nil
}

// Int64s returns the i64 or timestamp (ns since epoch) buffer without copying.
func (c *Column) Int64s() ([]int64, error) {
	if err := c.check("Int64s", dtype.I64, dtype.Timestamp); err != nil {
		return nil, err
	}
	return arrow.Int64Traits.CastFromBytes(c.src.Data()), nil
}

// Int32s returns the i32, date (days since epoch) or time (ms since
// midnight) buffer without copying.
func (c *Column) Int32s() ([]int32, error) {
	if err := c.check("Int32s", dtype.I32, dtype.Date, dtype.Time); err != nil {
		return nil, err
	}
	return arrow.Int32Traits.CastFromBytes(c.src.Data()), nil
}

func (c *Column) Int16s() ([]int16, error) {
	if err := c.check("Int16s", dtype.I16); err != nil {
		return nil, err
	}
	return arrow.Int16Traits.CastFromBytes(c.src.Data()), nil
}

// Uint8s returns the one-byte-per-element buffer of u8, bool and char columns.
func (c *Column) Uint8s() ([]uint8, error) {
	if err := c.check("Uint8s", dtype.U8, dtype.Bool, dtype.Char); err != nil {
		return nil, err
	}
	return c.src.Data(), nil
}

// Bools decodes a bool column into a fresh slice.
func (c *Column) Bools() ([]bool, error) {
	if err := c.check("Bools", dtype.Bool); err != nil {
		return nil, err
	}
	data := c.src.Data()
	out := make([]bool, len(data))
	for i, b := range data {
		out[i] = b != 0
	}
	return out, nil
}

// GUIDs decodes a guid column into a fresh slice.
func (c *Column) GUIDs() ([]uuid.UUID, error) {
	if err := c.check("GUIDs", dtype.GUID); err != nil {
		return nil, err
	}
	data := c.src.Data()
	out := make([]uuid.UUID, len(data)/16)
	for i := range out {
		copy(out[i][:], data[i*16:(i+1)*16])
	}
	return out, nil
}

// Data returns the primary buffer typed according to the dtype tag:
// []bool, []uint8, []int16, []int32, []int64, []float64 or []uuid.UUID.
// Sym columns have no primary buffer; use Indices and Dictionary.
func (c *Column) Data() (any, error) {
	if err := c.check("Data"); err != nil {
		return nil, err
	}
	switch c.code {
	case dtype.Bool:
		return c.Bools()
	case dtype.U8, dtype.Char:
		return c.Uint8s()
	case dtype.I16:
		return c.Int16s()
	case dtype.I32, dtype.Date, dtype.Time:
		return c.Int32s()
	case dtype.I64, dtype.Timestamp:
		return c.Int64s()
	case dtype.F64:
		return c.Float64s()
	case dtype.GUID:
		return c.GUIDs()
	case dtype.Sym:
		return nil, errors.NewInvalidArgumentError("Data",
			fmt.Sprintf("sym column '%s' has no primary buffer: use Indices and Dictionary", c.name))
	default:
		return nil, errors.NewInvalidArgumentError("Data",
			fmt.Sprintf("column '%s' has unsupported dtype %s", c.name, c.code))
	}
}

// NullBitmap returns the null bitmap, or nil when the column has no nulls.
func (c *Column) NullBitmap() ([]byte, error) {
	if err := c.check("NullBitmap"); err != nil {
		return nil, err
	}
	return c.src.NullBitmap(), nil
}

// IsNull reports whether row i is null.
func (c *Column) IsNull(i int) (bool, error) {
	if err := c.check("IsNull"); err != nil {
		return false, err
	}
	if i < 0 || i >= c.n {
		return false, errors.NewInvalidArgumentError("IsNull", fmt.Sprintf("row %d out of range [0, %d)", i, c.n))
	}
	return isNull(c.src.NullBitmap(), i), nil
}

// NullCount returns the number of null rows.
func (c *Column) NullCount() (int, error) {
	if err := c.check("NullCount"); err != nil {
		return 0, err
	}
	bm := c.src.NullBitmap()
	if bm == nil {
		return 0, nil
	}
	return bitutil.CountSetBits(bm, 0, c.n), nil
}

func isNull(bm []byte, i int) bool {
	return bm != nil && bitutil.BitIsSet(bm, i)
}

// Indices returns the dictionary indices of a sym column as []uint8,
// []uint16 or []uint32, whichever is the narrowest width that addresses the
// dictionary.
func (c *Column) Indices() (any, error) {
	if err := c.check("Indices", dtype.Sym); err != nil {
		return nil, err
	}
	raw := c.src.Indices()
	switch c.src.IndexWidth() {
	case 1:
		return raw, nil
	case 2:
		return arrow.Uint16Traits.CastFromBytes(raw), nil
	case 4:
		return arrow.Uint32Traits.CastFromBytes(raw), nil
	default:
		return nil, errors.NewInvalidArgumentError("Indices",
			fmt.Sprintf("sym column '%s' reports index width %d", c.name, c.src.IndexWidth()))
	}
}

// Dictionary returns the ordered distinct values of a sym column.
func (c *Column) Dictionary() ([]string, error) {
	if err := c.check("Dictionary", dtype.Sym); err != nil {
		return nil, err
	}
	return c.src.Dictionary(), nil
}

// Strings decodes a sym column through its dictionary. Null rows decode to "".
func (c *Column) Strings() ([]string, error) {
	idx, err := c.Indices()
	if err != nil {
		return nil, err
	}
	dict := c.src.Dictionary()
	bm := c.src.NullBitmap()
	out := make([]string, c.n)
	for i := range out {
		if isNull(bm, i) {
			continue
		}
		out[i] = dict[indexAt(idx, i)]
	}
	return out, nil
}

func indexAt(idx any, i int) int {
	switch v := idx.(type) {
	case []uint8:
		return int(v[i])
	case []uint16:
		return int(v[i])
	case []uint32:
		return int(v[i])
	}
	return 0
}

// Format renders row i as text. Null rows render as the empty string.
func (c *Column) Format(i int) (string, error) {
	if err := c.check("Format"); err != nil {
		return "", err
	}
	if i < 0 || i >= c.n {
		return "", errors.NewInvalidArgumentError("Format", fmt.Sprintf("row %d out of range [0, %d)", i, c.n))
	}
	if isNull(c.src.NullBitmap(), i) {
		return "", nil
	}

	data := c.src.Data()
	switch c.code {
	case dtype.Bool:
		return strconv.FormatBool(data[i] != 0), nil
	case dtype.U8:
		return strconv.FormatUint(uint64(data[i]), 10), nil
	case dtype.Char:
		return string(rune(data[i])), nil
	case dtype.I16:
		return strconv.FormatInt(int64(arrow.Int16Traits.CastFromBytes(data)[i]), 10), nil
	case dtype.I32:
		return strconv.FormatInt(int64(arrow.Int32Traits.CastFromBytes(data)[i]), 10), nil
	case dtype.I64:
		return strconv.FormatInt(arrow.Int64Traits.CastFromBytes(data)[i], 10), nil
	case dtype.F64:
		return strconv.FormatFloat(arrow.Float64Traits.CastFromBytes(data)[i], 'g', -1, 64), nil
	case dtype.Date:
		days := arrow.Int32Traits.CastFromBytes(data)[i]
		return arrow.Date32(days).FormattedString(), nil
	case dtype.Time:
		ms := arrow.Int32Traits.CastFromBytes(data)[i]
		return time.UnixMilli(int64(ms)).UTC().Format("15:04:05.000"), nil
	case dtype.Timestamp:
		ns := arrow.Int64Traits.CastFromBytes(data)[i]
		return time.Unix(0, ns).UTC().Format(time.RFC3339Nano), nil
	case dtype.GUID:
		var id uuid.UUID
		copy(id[:], data[i*16:(i+1)*16])
		return id.String(), nil
	case dtype.Sym:
		idx, err := c.Indices()
		if err != nil {
			return "", err
		}
		return c.src.Dictionary()[indexAt(idx, i)], nil
	default:
		return "", errors.NewInvalidArgumentError("Format",
			fmt.Sprintf("column '%s' has unsupported dtype %s", c.name, c.code))
	}
}
