// Package sql parses a SELECT statement and compiles it into the operations
// of a query plan.
//
// The dialect covers one source and the clauses the plan can express:
//
//	SELECT <items> FROM <source>
//	  [WHERE <predicate>]
//	  [GROUP BY <columns>] [HAVING <predicate>]
//	  [ORDER BY <column> [ASC|DESC], ...]
//	  [LIMIT <n>]
//
// The source is a quoted path ('sales.csv') or the name of a table supplied
// by the caller.
package sql

import (
	"strconv"
	"strings"

	"github.com/paveg/teide/internal/expr"
)

// SelectStatement represents a SQL SELECT statement.
type SelectStatement struct {
	SelectList []SelectItem
	From       Source
	Where      expr.Expr
	GroupBy    []expr.Expr
	Having     expr.Expr
	OrderBy    []OrderItem
	Limit      *int64
	Offset     *int64
}

// SelectItem is one entry of the SELECT list.
type SelectItem struct {
	Expression expr.Expr
	Alias      string
	IsWildcard bool
}

// Source is the FROM target: a path to read or a named table.
type Source struct {
	Path  string
	Table string
}

// OrderItem is one ORDER BY key.
type OrderItem struct {
	Expression expr.Expr
	Descending bool
}

func (s *SelectStatement) String() string {
	items := make([]string, len(s.SelectList))
	for i, item := range s.SelectList {
		items[i] = item.String()
	}
	parts := []string{"SELECT " + strings.Join(items, ", "), "FROM " + s.From.String()}

	if s.Where != nil {
		parts = append(parts, "WHERE "+s.Where.String())
	}
	if len(s.GroupBy) > 0 {
		keys := make([]string, len(s.GroupBy))
		for i, k := range s.GroupBy {
			keys[i] = k.String()
		}
		parts = append(parts, "GROUP BY "+strings.Join(keys, ", "))
	}
	if s.Having != nil {
		parts = append(parts, "HAVING "+s.Having.String())
	}
	if len(s.OrderBy) > 0 {
		keys := make([]string, len(s.OrderBy))
		for i, o := range s.OrderBy {
			keys[i] = o.String()
		}
		parts = append(parts, "ORDER BY "+strings.Join(keys, ", "))
	}
	if s.Limit != nil {
		parts = append(parts, "LIMIT "+strconv.FormatInt(*s.Limit, 10))
	}
	if s.Offset != nil {
		parts = append(parts, "OFFSET "+strconv.FormatInt(*s.Offset, 10))
	}
	return strings.Join(parts, " ")
}

func (i SelectItem) String() string {
	if i.IsWildcard {
		return "*"
	}
	if i.Alias != "" {
		return i.Expression.String() + " AS " + i.Alias
	}
	return i.Expression.String()
}

func (s Source) String() string {
	if s.Path != "" {
		return "'" + strings.ReplaceAll(s.Path, "'", "''") + "'"
	}
	return s.Table
}

func (o OrderItem) String() string {
	if o.Descending {
		return o.Expression.String() + " DESC"
	}
	return o.Expression.String() + " ASC"
}
