// Package dtype defines the element-type codes exchanged with execution
// engines and their mapping onto Arrow storage types.
package dtype

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// Code is an engine element-type tag. The numeric values are part of the
// engine contract and must not change.
type Code int

const (
	Bool      Code = 1
	U8        Code = 2
	Char      Code = 3
	I16       Code = 4
	I32       Code = 5
	I64       Code = 6
	F64       Code = 7
	Date      Code = 9
	Time      Code = 10
	Timestamp Code = 11
	GUID      Code = 12
	Sym       Code = 20
)

var names = map[Code]string{
	Bool:      "bool",
	U8:        "u8",
	Char:      "char",
	I16:       "i16",
	I32:       "i32",
	I64:       "i64",
	F64:       "f64",
	Date:      "date",
	Time:      "time",
	Timestamp: "timestamp",
	GUID:      "guid",
	Sym:       "sym",
}

// String renders the semantic name, or unknown(<code>) for tags outside the table.
func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("unknown(%d)", int(c))
}

// Known reports whether c is in the tag table.
func (c Code) Known() bool {
	_, ok := names[c]
	return ok
}

// Width is the element size in bytes of the primary buffer. Sym columns have
// no primary buffer and report 0.
func (c Code) Width() int {
	switch c {
	case Bool, U8, Char:
		return 1
	case I16:
		return 2
	case I32, Date, Time:
		return 4
	case I64, F64, Timestamp:
		return 8
	case GUID:
		return 16
	default:
		return 0
	}
}

// Storage types used for each code.
var (
	CharType      = &arrow.FixedSizeBinaryType{ByteWidth: 1}
	GUIDType      = &arrow.FixedSizeBinaryType{ByteWidth: 16}
	TimeType      = arrow.FixedWidthTypes.Time32ms
	TimestampType = &arrow.TimestampType{Unit: arrow.Nanosecond, TimeZone: "UTC"}
)

// SymType returns the dictionary type for a sym column whose dictionary holds
// n values, using the narrowest index width that addresses it.
func SymType(n int) *arrow.DictionaryType {
	return &arrow.DictionaryType{IndexType: IndexTypeFor(n), ValueType: arrow.BinaryTypes.String}
}

// IndexTypeFor picks uint8, uint16 or uint32 indices for a dictionary of n values.
func IndexTypeFor(n int) arrow.DataType {
	switch {
	case n <= 1<<8:
		return arrow.PrimitiveTypes.Uint8
	case n <= 1<<16:
		return arrow.PrimitiveTypes.Uint16
	default:
		return arrow.PrimitiveTypes.Uint32
	}
}

// FromArrow maps an Arrow storage type to its engine code.
func FromArrow(dt arrow.DataType) (Code, error) {
	switch t := dt.(type) {
	case *arrow.BooleanType:
		return Bool, nil
	case *arrow.Uint8Type:
		return U8, nil
	case *arrow.Int16Type:
		return I16, nil
	case *arrow.Int32Type:
		return I32, nil
	case *arrow.Int64Type:
		return I64, nil
	case *arrow.Float64Type:
		return F64, nil
	case *arrow.Date32Type:
		return Date, nil
	case *arrow.Time32Type:
		return Time, nil
	case *arrow.TimestampType:
		return Timestamp, nil
	case *arrow.FixedSizeBinaryType:
		switch t.ByteWidth {
		case 1:
			return Char, nil
		case 16:
			return GUID, nil
		}
	case *arrow.DictionaryType:
		if t.ValueType.ID() == arrow.STRING {
			return Sym, nil
		}
	}
	return 0, fmt.Errorf("unsupported storage type: %s", dt)
}
