// Package plan models the relational operations accumulated by a query and
// their wire encoding.
//
// A plan is an ordered, append-only list of operations. Nothing in this
// package executes anything; engines consume the list in order.
package plan

import (
	"fmt"
	"strings"

	"github.com/paveg/teide/internal/errors"
	"github.com/paveg/teide/internal/expr"
)

// Kind identifies the variant of an operation.
type Kind int

const (
	KindFilter Kind = iota
	KindGroup
	KindSort
	KindHead
)

func (k Kind) String() string {
	switch k {
	case KindFilter:
		return "filter"
	case KindGroup:
		return "group"
	case KindSort:
		return "sort"
	case KindHead:
		return "head"
	default:
		return fmt.Sprintf("op(%d)", int(k))
	}
}

// Operation is one relational step. The set of implementations is closed:
// *Filter, *Group, *Sort and *Head.
type Operation interface {
	Kind() Kind
	String() string
	operation()
}

// Filter keeps the rows for which Predicate is true.
type Filter struct {
	Predicate expr.Expr
}

func (*Filter) Kind() Kind { return KindFilter }
func (*Filter) operation() {}
func (f *Filter) String() string {
	return fmt.Sprintf("filter(%s)", exprString(f.Predicate))
}

// Group emits one row per distinct key tuple followed by one column per
// aggregate.
type Group struct {
	Keys []string
	Aggs []expr.Expr
}

func (*Group) Kind() Kind { return KindGroup }
func (*Group) operation() {}
func (g *Group) String() string {
	aggs := make([]string, len(g.Aggs))
	for i, a := range g.Aggs {
		aggs[i] = exprString(a)
	}
	return fmt.Sprintf("group([%s], [%s])", strings.Join(g.Keys, ", "), strings.Join(aggs, ", "))
}

// Sort orders rows by Columns, each with its own direction.
type Sort struct {
	Columns    []string
	Descending []bool
}

func (*Sort) Kind() Kind { return KindSort }
func (*Sort) operation() {}
func (s *Sort) String() string {
	keys := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		dir := "asc"
		if i < len(s.Descending) && s.Descending[i] {
			dir = "desc"
		}
		keys[i] = c + " " + dir
	}
	return fmt.Sprintf("sort(%s)", strings.Join(keys, ", "))
}

// Head keeps the first N rows.
type Head struct {
	N int
}

func (*Head) Kind() Kind { return KindHead }
func (*Head) operation() {}
func (h *Head) String() string { return fmt.Sprintf("head(%d)", h.N) }

func exprString(e expr.Expr) string {
	if e == nil {
		return "<nil>"
	}
	return e.String()
}

// Validate checks the structural invariants of a single operation.
func Validate(op Operation) error {
	switch o := op.(type) {
	case *Filter:
		if o.Predicate == nil {
			return errors.NewInvalidArgumentError("Filter", "predicate is required")
		}
	case *Group:
		if len(o.Aggs) == 0 {
			return errors.NewInvalidArgumentError("Agg", "group requires at least one aggregate expression")
		}
		for i, a := range o.Aggs {
			if a == nil {
				return errors.NewInvalidArgumentError("Agg", fmt.Sprintf("aggregate %d is nil", i))
			}
		}
		for _, k := range o.Keys {
			if k == "" {
				return errors.NewInvalidArgumentError("GroupBy", "group key name is empty")
			}
		}
	case *Sort:
		if len(o.Columns) == 0 {
			return errors.NewInvalidArgumentError("Sort", "at least one sort column is required")
		}
		if len(o.Columns) != len(o.Descending) {
			return errors.NewInvalidArgumentError("Sort",
				fmt.Sprintf("%d sort columns but %d direction flags", len(o.Columns), len(o.Descending)))
		}
		for _, c := range o.Columns {
			if c == "" {
				return errors.NewInvalidArgumentError("Sort", "sort column name is empty")
			}
		}
	case *Head:
		if o.N < 0 {
			return errors.NewInvalidArgumentError("Head", fmt.Sprintf("row limit must be a non-negative integer, got %d", o.N))
		}
	case nil:
		return errors.NewInvalidArgumentError("Plan", "nil operation")
	}
	return nil
}

// Plan is an ordered list of operations. The zero value is an empty plan.
//
// Builder methods append and return the plan for chaining. The first
// validation failure is recorded, the offending operation is dropped, and
// every later append is ignored; Err reports it.
type Plan struct {
	ops []Operation
	err error
}

// New returns an empty plan.
func New() *Plan {
	return &Plan{}
}

// Append validates op and adds it to the end of the plan.
func (p *Plan) Append(op Operation) *Plan {
	if p.err != nil {
		return p
	}
	if err := Validate(op); err != nil {
		p.err = err
		return p
	}
	p.ops = append(p.ops, op)
	return p
}

// Fail records err unless an earlier error is already recorded.
func (p *Plan) Fail(err error) *Plan {
	if p.err == nil {
		p.err = err
	}
	return p
}

func (p *Plan) Filter(predicate expr.Expr) *Plan {
	return p.Append(&Filter{Predicate: predicate})
}

func (p *Plan) Group(keys []string, aggs []expr.Expr) *Plan {
	return p.Append(&Group{Keys: append([]string(nil), keys...), Aggs: append([]expr.Expr(nil), aggs...)})
}

func (p *Plan) Sort(columns []string, descending []bool) *Plan {
	return p.Append(&Sort{Columns: append([]string(nil), columns...), Descending: append([]bool(nil), descending...)})
}

func (p *Plan) Head(n int) *Plan {
	return p.Append(&Head{N: n})
}

// Operations returns a copy of the operation list in append order.
func (p *Plan) Operations() []Operation {
	return append([]Operation(nil), p.ops...)
}

// Len returns the number of operations.
func (p *Plan) Len() int {
	return len(p.ops)
}

// Err returns the first recorded builder error.
func (p *Plan) Err() error {
	return p.err
}

func (p *Plan) String() string {
	parts := make([]string, len(p.ops))
	for i, op := range p.ops {
		parts[i] = op.String()
	}
	return strings.Join(parts, " -> ")
}
