package teide

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/paveg/teide/internal/engine"
	teideio "github.com/paveg/teide/internal/io"
	"github.com/paveg/teide/internal/series"
)

// RowSet is an engine-owned table. Shape accessors stay valid after the
// Context is released; column access does not.
type RowSet struct {
	ctx  *Context
	data engine.DataHandle
}

var _ teideio.Frame = (*RowSet)(nil)

// Context returns the Context that owns r.
func (r *RowSet) Context() *Context { return r.ctx }

func (r *RowSet) NumRows() int { return r.data.RowCount() }
func (r *RowSet) NumCols() int { return r.data.ColumnCount() }

// Columns returns the column names in table order.
func (r *RowSet) Columns() []string { return r.data.ColumnNames() }

// ColumnNames is Columns; it lets a RowSet be written by the CSV writer.
func (r *RowSet) ColumnNames() []string { return r.data.ColumnNames() }

// RowCount is NumRows.
func (r *RowSet) RowCount() int { return r.data.RowCount() }

// Column returns a typed view of the named column. The view fails with
// ErrResourceReleased once the Context is released.
func (r *RowSet) Column(name string) (*Column, error) {
	if err := r.ctx.check("Column"); err != nil {
		return nil, err
	}
	c, err := r.data.Column(name)
	if err != nil {
		return nil, err
	}
	return series.New(c, func() error { return r.ctx.check("Column") }), nil
}

// Cell renders row i of the named column, empty for null.
func (r *RowSet) Cell(column string, i int) (string, error) {
	c, err := r.Column(column)
	if err != nil {
		return "", err
	}
	return c.Format(i)
}

// Query starts a lazy query over r.
func (r *RowSet) Query() *Query {
	return newQuery(r)
}

func (r *RowSet) Filter(predicate Expr) *Query {
	return r.Query().Filter(predicate)
}

func (r *RowSet) GroupBy(keys ...string) *Grouping {
	return r.Query().GroupBy(keys...)
}

func (r *RowSet) Sort(column string, opts ...SortOption) *Query {
	return r.Query().Sort(column, opts...)
}

func (r *RowSet) SortBy(columns []string, descending []bool) *Query {
	return r.Query().SortBy(columns, descending)
}

func (r *RowSet) Head(n int) *Query {
	return r.Query().Head(n)
}

// WriteCSV writes r with a header row.
func (r *RowSet) WriteCSV(w io.Writer) error {
	if err := r.ctx.check("WriteCSV"); err != nil {
		return err
	}
	return teideio.NewCSVWriter(w, teideio.DefaultCSVOptions()).Write(r)
}

// WriteTable renders at most limit rows as an aligned text table; limit < 0
// renders every row.
func (r *RowSet) WriteTable(w io.Writer, limit int) error {
	names := r.Columns()
	cols := make([]*Column, len(names))
	header := make([]string, len(names))
	for i, name := range names {
		c, err := r.Column(name)
		if err != nil {
			return err
		}
		cols[i] = c
		header[i] = fmt.Sprintf("%s (%s)", name, c.DType())
	}

	n := r.NumRows()
	if limit >= 0 && limit < n {
		n = limit
	}

	tw := tablewriter.NewWriter(w)
	tw.SetHeader(header)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	row := make([]string, len(cols))
	for i := range n {
		for j, c := range cols {
			v, err := c.Format(i)
			if err != nil {
				return err
			}
			row[j] = v
		}
		tw.Append(row)
	}
	if n < r.NumRows() && len(cols) > 0 {
		tw.SetFooter(footer(len(cols), fmt.Sprintf("%d of %d rows", n, r.NumRows())))
	}
	tw.Render()
	return nil
}

func footer(width int, text string) []string {
	out := make([]string, width)
	out[width-1] = text
	return out
}

func (r *RowSet) String() string {
	return fmt.Sprintf("RowSet[%d x %d](%s)", r.NumRows(), r.NumCols(), strings.Join(r.Columns(), ", "))
}
