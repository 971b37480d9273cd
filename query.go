package teide

import (
	"github.com/paveg/teide/internal/engine"
	"github.com/paveg/teide/internal/errors"
	"github.com/paveg/teide/internal/plan"
)

// Query is a lazy sequence of operations over a RowSet. Builder methods
// append to the query and return it; nothing runs until Materialize.
//
// The first invalid call is recorded and later calls are ignored. The error
// is reported by Err and returned by Materialize without contacting the
// engine.
type Query struct {
	src  *RowSet
	plan *plan.Plan
}

func newQuery(src *RowSet) *Query {
	return &Query{src: src, plan: plan.New()}
}

// Filter keeps the rows for which predicate is true. Rows where it is null
// are dropped.
func (q *Query) Filter(predicate Expr) *Query {
	q.plan.Filter(predicate)
	return q
}

// GroupBy starts a group operation. Nothing is appended until the returned
// Grouping is closed with Agg.
func (q *Query) GroupBy(keys ...string) *Grouping {
	return &Grouping{q: q, keys: append([]string(nil), keys...)}
}

type sortOptions struct {
	descending bool
}

// SortOption adjusts a Sort call.
type SortOption func(*sortOptions)

// Descending sorts largest first. Nulls then sort last.
func Descending() SortOption {
	return func(o *sortOptions) { o.descending = true }
}

// Sort appends a stable single-column sort. Successive Sort calls run in
// order, so the last one determines the primary ordering.
func (q *Query) Sort(column string, opts ...SortOption) *Query {
	var o sortOptions
	for _, opt := range opts {
		opt(&o)
	}
	q.plan.Sort([]string{column}, []bool{o.descending})
	return q
}

// SortBy appends one multi-key sort. columns and descending must have the
// same, non-zero length.
func (q *Query) SortBy(columns []string, descending []bool) *Query {
	q.plan.Sort(columns, descending)
	return q
}

// Head keeps the first n rows.
func (q *Query) Head(n int) *Query {
	q.plan.Head(n)
	return q
}

// Append adds already-built operations, such as those decoded from a plan
// file, validating each in order.
func (q *Query) Append(ops ...Operation) *Query {
	for _, op := range ops {
		q.plan.Append(op)
	}
	return q
}

// Operations returns the recorded operations in order.
func (q *Query) Operations() []Operation {
	return q.plan.Operations()
}

func (q *Query) Err() error {
	return q.plan.Err()
}

// Explain renders the operations in their JSON wire form.
func (q *Query) Explain() (string, error) {
	if err := q.plan.Err(); err != nil {
		return "", err
	}
	data, err := plan.MarshalIndent(q.plan.Operations())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (q *Query) String() string {
	return q.plan.String()
}

// Materialize runs the query and returns the result as a new RowSet on the
// same Context. A query can be materialized any number of times.
func (q *Query) Materialize() (*RowSet, error) {
	if err := q.plan.Err(); err != nil {
		return nil, err
	}
	ctx := q.src.ctx
	if err := ctx.check("Materialize"); err != nil {
		return nil, err
	}
	d, err := ctx.eng.Materialize(q.src.data, q.plan.Operations())
	if err != nil {
		return nil, err
	}
	return ctx.wrap(d), nil
}

// MaterializeAsync is Materialize without waiting. Builder errors and a
// released Context produce an already-failed Future.
func (q *Query) MaterializeAsync() *Future[*RowSet] {
	if err := q.plan.Err(); err != nil {
		return engine.Failed[*RowSet](err)
	}
	ctx := q.src.ctx
	if err := ctx.check("Materialize"); err != nil {
		return engine.Failed[*RowSet](err)
	}
	return engine.Then(ctx.eng.MaterializeAsync(q.src.data, q.plan.Operations()), ctx.adopt)
}

// Grouping collects the aggregates for a GroupBy. An unclosed Grouping
// leaves its Query unchanged.
type Grouping struct {
	q      *Query
	keys   []string
	closed bool
}

// Agg appends the group operation and returns the parent Query. Entries that
// are not aggregates take the first value of each group. A Grouping can be
// closed once.
func (g *Grouping) Agg(aggs ...Expr) *Query {
	if g.closed {
		g.q.plan.Fail(errors.NewInvalidArgumentError("Agg", "grouping is already aggregated"))
		return g.q
	}
	g.closed = true
	g.q.plan.Group(g.keys, aggs)
	return g.q
}
