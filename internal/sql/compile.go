package sql

import (
	"fmt"

	"github.com/paveg/teide/internal/errors"
	"github.com/paveg/teide/internal/expr"
	"github.com/paveg/teide/internal/plan"
)

const compileOp = "SQL"

// Compile translates a parsed statement into plan operations, in the order
// WHERE, GROUP BY with the SELECT aggregates, HAVING, ORDER BY, LIMIT.
//
// A statement without GROUP BY or aggregates must select *. With grouping,
// the key columns always lead the result; selected keys are not repeated.
// HAVING and ORDER BY may name aggregates that also appear in the SELECT
// list; they are read from the corresponding result column.
func Compile(stmt *SelectStatement) ([]plan.Operation, error) {
	if stmt == nil {
		return nil, errors.NewInvalidArgumentError(compileOp, "statement is required")
	}
	if stmt.Offset != nil {
		return nil, errors.NewInvalidArgumentError(compileOp, "OFFSET is not supported")
	}

	p := plan.New()
	if stmt.Where != nil {
		p.Filter(stmt.Where)
	}

	var outputs []output
	if stmt.GroupBy != nil || selectsAggregate(stmt.SelectList) {
		keys, err := groupKeys(stmt.GroupBy)
		if err != nil {
			return nil, err
		}
		var entries []expr.Expr
		entries, outputs, err = groupEntries(keys, stmt.SelectList)
		if err != nil {
			return nil, err
		}
		p.Group(keys, entries)

		if stmt.Having != nil {
			having, err := resolveAggregates(stmt.Having, outputs, "HAVING")
			if err != nil {
				return nil, err
			}
			p.Filter(having)
		}
	} else {
		if stmt.Having != nil {
			return nil, errors.NewInvalidArgumentError(compileOp, "HAVING requires GROUP BY or an aggregate")
		}
		for _, item := range stmt.SelectList {
			if !item.IsWildcard {
				return nil, errors.NewInvalidArgumentError(compileOp,
					fmt.Sprintf("cannot select %s without GROUP BY or an aggregate, use SELECT *", item))
			}
		}
	}

	if len(stmt.OrderBy) > 0 {
		cols := make([]string, len(stmt.OrderBy))
		desc := make([]bool, len(stmt.OrderBy))
		for i, o := range stmt.OrderBy {
			key, err := resolveAggregates(o.Expression, outputs, "ORDER BY")
			if err != nil {
				return nil, err
			}
			c, ok := key.(*expr.ColumnExpr)
			if !ok {
				return nil, errors.NewInvalidArgumentError(compileOp,
					fmt.Sprintf("ORDER BY supports columns and selected aggregates, got %s", o.Expression))
			}
			cols[i], desc[i] = c.Name(), o.Descending
		}
		p.Sort(cols, desc)
	}

	if stmt.Limit != nil {
		p.Head(int(*stmt.Limit))
	}

	if err := p.Err(); err != nil {
		return nil, err
	}
	return p.Operations(), nil
}

// output pairs a SELECT entry with the column it produces.
type output struct {
	expr expr.Expr // entry without its alias
	name string
}

func selectsAggregate(items []SelectItem) bool {
	for _, item := range items {
		if !item.IsWildcard && expr.HasAggregate(item.Expression) {
			return true
		}
	}
	return false
}

func groupKeys(exprs []expr.Expr) ([]string, error) {
	keys := make([]string, 0, len(exprs))
	for _, e := range exprs {
		c, ok := e.(*expr.ColumnExpr)
		if !ok {
			return nil, errors.NewInvalidArgumentError(compileOp,
				fmt.Sprintf("GROUP BY supports only column references, got %s", e))
		}
		keys = append(keys, c.Name())
	}
	return keys, nil
}

// groupEntries builds the aggregate list of a group operation and the result
// column each entry is written to. Output names follow the engine: the alias
// or the column read, suffixed with _<op> (then _<op>_<n>) on collision.
// Aggregates over anything but a column are named after the operator.
func groupEntries(keys []string, items []SelectItem) ([]expr.Expr, []output, error) {
	taken := make(map[string]bool, len(keys)+len(items))
	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		taken[k] = true
		isKey[k] = true
	}

	var entries []expr.Expr
	var outputs []output
	for _, item := range items {
		if item.IsWildcard {
			return nil, nil, errors.NewInvalidArgumentError(compileOp, "SELECT * cannot be combined with GROUP BY or aggregates")
		}
		e := item.Expression
		if c, ok := e.(*expr.ColumnExpr); ok && isKey[c.Name()] && item.Alias == "" {
			continue
		}

		op := expr.AggFirst
		if agg, ok := e.(*expr.AggregationExpr); ok {
			op = agg.Op()
		}
		name := item.Alias
		if name == "" {
			name = defaultName(e, op)
		}
		if name != expr.OutputName(e) || item.Alias != "" {
			entries = append(entries, expr.As(e, name))
		} else {
			entries = append(entries, e)
		}

		name = uniqueName(taken, name, op)
		taken[name] = true
		outputs = append(outputs, output{expr: e, name: name})
	}
	return entries, outputs, nil
}

func defaultName(e expr.Expr, op expr.AggOp) string {
	if agg, ok := e.(*expr.AggregationExpr); ok {
		if _, isCol := agg.Arg().(*expr.ColumnExpr); !isCol {
			return op.String()
		}
	}
	return expr.OutputName(e)
}

func uniqueName(taken map[string]bool, name string, op expr.AggOp) string {
	if !taken[name] {
		return name
	}
	candidate := name + "_" + op.String()
	for n := 2; taken[candidate]; n++ {
		candidate = fmt.Sprintf("%s_%s_%d", name, op, n)
	}
	return candidate
}

// resolveAggregates replaces every aggregate in e with the result column of
// the matching SELECT entry.
func resolveAggregates(e expr.Expr, outputs []output, clause string) (expr.Expr, error) {
	var missing expr.Expr
	resolved := rewrite(e, func(n expr.Expr) expr.Expr {
		if n.Kind() != expr.KindAggregate {
			return nil
		}
		for _, o := range outputs {
			if o.expr.String() == n.String() {
				return expr.Col(o.name)
			}
		}
		if missing == nil {
			missing = n
		}
		return n
	})
	if missing != nil {
		return nil, errors.NewInvalidArgumentError(compileOp,
			fmt.Sprintf("%s aggregate %s must also appear in the SELECT list", clause, missing))
	}
	return resolved, nil
}

// rewrite rebuilds e bottom-up. fn sees each node before its children; a
// non-nil result replaces the node and its subtree.
func rewrite(e expr.Expr, fn func(expr.Expr) expr.Expr) expr.Expr {
	if r := fn(e); r != nil {
		return r
	}
	switch n := e.(type) {
	case *expr.BinaryExpr:
		return expr.Binary(n.Op(), rewrite(n.Left(), fn), rewrite(n.Right(), fn))
	case *expr.UnaryExpr:
		return expr.Unary(n.Op(), rewrite(n.Operand(), fn))
	case *expr.AliasExpr:
		return expr.As(rewrite(n.Arg(), fn), n.Name())
	}
	return e
}
