package plan

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/paveg/teide/internal/expr"
)

// Record is the wire form of one operation. Exactly one field is set.
type Record struct {
	Filter *expr.Record `json:"filter,omitempty"`
	Group  *GroupRecord `json:"group,omitempty"`
	Sort   *SortRecord  `json:"sort,omitempty"`
	Head   *HeadRecord  `json:"head,omitempty"`
}

type GroupRecord struct {
	Keys []string       `json:"keys"`
	Aggs []*expr.Record `json:"aggs"`
}

type SortRecord struct {
	Cols  []string `json:"cols"`
	Descs []bool   `json:"descs"`
}

type HeadRecord struct {
	N int `json:"n"`
}

// ToRecords converts operations to their wire form, preserving order.
func ToRecords(ops []Operation) ([]Record, error) {
	records := make([]Record, 0, len(ops))
	for i, op := range ops {
		rec, err := toRecord(op)
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func toRecord(op Operation) (Record, error) {
	switch o := op.(type) {
	case *Filter:
		pred, err := expr.ToRecord(o.Predicate)
		if err != nil {
			return Record{}, fmt.Errorf("filter predicate: %w", err)
		}
		return Record{Filter: pred}, nil
	case *Group:
		aggs := make([]*expr.Record, len(o.Aggs))
		for i, a := range o.Aggs {
			rec, err := expr.ToRecord(a)
			if err != nil {
				return Record{}, fmt.Errorf("group aggregate %d: %w", i, err)
			}
			aggs[i] = rec
		}
		keys := o.Keys
		if keys == nil {
			keys = []string{}
		}
		return Record{Group: &GroupRecord{Keys: keys, Aggs: aggs}}, nil
	case *Sort:
		return Record{Sort: &SortRecord{Cols: o.Columns, Descs: o.Descending}}, nil
	case *Head:
		return Record{Head: &HeadRecord{N: o.N}}, nil
	default:
		return Record{}, fmt.Errorf("unknown operation %T", op)
	}
}

// FromRecords rebuilds and validates operations from their wire form.
func FromRecords(records []Record) ([]Operation, error) {
	ops := make([]Operation, 0, len(records))
	for i, rec := range records {
		op, err := fromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		if err := Validate(op); err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func fromRecord(rec Record) (Operation, error) {
	set := 0
	for _, present := range []bool{rec.Filter != nil, rec.Group != nil, rec.Sort != nil, rec.Head != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("operation record must carry exactly one of filter, group, sort or head; got %d", set)
	}

	switch {
	case rec.Filter != nil:
		pred, err := expr.FromRecord(rec.Filter)
		if err != nil {
			return nil, fmt.Errorf("filter predicate: %w", err)
		}
		return &Filter{Predicate: pred}, nil
	case rec.Group != nil:
		aggs := make([]expr.Expr, len(rec.Group.Aggs))
		for i, a := range rec.Group.Aggs {
			e, err := expr.FromRecord(a)
			if err != nil {
				return nil, fmt.Errorf("group aggregate %d: %w", i, err)
			}
			aggs[i] = e
		}
		return &Group{Keys: rec.Group.Keys, Aggs: aggs}, nil
	case rec.Sort != nil:
		return &Sort{Columns: rec.Sort.Cols, Descending: rec.Sort.Descs}, nil
	default:
		return &Head{N: rec.Head.N}, nil
	}
}

// Marshal encodes an operation list as JSON.
func Marshal(ops []Operation) ([]byte, error) {
	records, err := ToRecords(ops)
	if err != nil {
		return nil, err
	}
	return json.Marshal(records)
}

// MarshalIndent is Marshal with indentation, for display.
func MarshalIndent(ops []Operation) ([]byte, error) {
	records, err := ToRecords(ops)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(records, "", "  ")
}

// Unmarshal decodes a JSON operation list produced by Marshal.
func Unmarshal(data []byte) ([]Operation, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}
	return FromRecords(records)
}
