package teide

import (
	"fmt"

	"github.com/paveg/teide/internal/errors"
	"github.com/paveg/teide/internal/sql"
)

// SQL compiles a SELECT statement into a Query. A quoted FROM source
// ('sales.csv') is read on c; a bare name is looked up in tables, which
// must belong to c.
//
//	q, err := ctx.SQL(`SELECT region, sum(qty) AS total FROM sales
//	                   WHERE price > 4 GROUP BY region ORDER BY total DESC`,
//	                  map[string]*teide.RowSet{"sales": sales})
//
// Nothing runs until the Query is materialized, except reading a quoted
// source.
func (c *Context) SQL(query string, tables map[string]*RowSet) (*Query, error) {
	if err := c.check("SQL"); err != nil {
		return nil, err
	}
	stmt, err := sql.Parse(query)
	if err != nil {
		return nil, err
	}
	ops, err := sql.Compile(stmt)
	if err != nil {
		return nil, err
	}

	var src *RowSet
	if stmt.From.Path != "" {
		if src, err = c.ReadSource(stmt.From.Path); err != nil {
			return nil, err
		}
	} else {
		var ok bool
		if src, ok = tables[stmt.From.Table]; !ok || src == nil {
			return nil, errors.NewInvalidArgumentError("SQL", fmt.Sprintf("unknown table %s", stmt.From.Table))
		}
		if src.ctx != c {
			return nil, errors.NewInvalidArgumentError("SQL",
				fmt.Sprintf("table %s belongs to another context", stmt.From.Table))
		}
	}

	c.logger.Debug("sql compiled", "statement", stmt.String(), "ops", len(ops))
	q := src.Query().Append(ops...)
	return q, q.Err()
}
