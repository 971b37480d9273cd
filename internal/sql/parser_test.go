package sql

import (
	"testing"

	"github.com/paveg/teide/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Statement(t *testing.T) {
	stmt, err := Parse(`select region, SUM(qty) AS total, count(*) n
		from sales
		where price > 4 and region != 'east'
		group by region
		having total > 10
		order by total desc, region
		limit 3;`)
	require.NoError(t, err)

	assert.Equal(t, Source{Table: "sales"}, stmt.From)
	require.Len(t, stmt.SelectList, 3)
	assert.Equal(t, "col(region)", stmt.SelectList[0].String())
	assert.Equal(t, "sum(col(qty)) AS total", stmt.SelectList[1].String())
	assert.Equal(t, "count(lit(1)) AS n", stmt.SelectList[2].String())
	assert.Equal(t, `((col(price) > lit(4)) && (col(region) != lit("east")))`, stmt.Where.String())
	require.Len(t, stmt.GroupBy, 1)
	assert.Equal(t, "(col(total) > lit(10))", stmt.Having.String())
	assert.Equal(t, []string{"col(total) DESC", "col(region) ASC"},
		[]string{stmt.OrderBy[0].String(), stmt.OrderBy[1].String()})
	require.NotNil(t, stmt.Limit)
	assert.Equal(t, int64(3), *stmt.Limit)
	assert.Nil(t, stmt.Offset)

	assert.Equal(t,
		`SELECT col(region), sum(col(qty)) AS total, count(lit(1)) AS n FROM sales `+
			`WHERE ((col(price) > lit(4)) && (col(region) != lit("east"))) GROUP BY col(region) `+
			`HAVING (col(total) > lit(10)) ORDER BY col(total) DESC, col(region) ASC LIMIT 3`,
		stmt.String())
}

func TestParse_Source(t *testing.T) {
	stmt, err := Parse("SELECT * FROM 'data/it''s.csv'")
	require.NoError(t, err)
	assert.Equal(t, Source{Path: "data/it's.csv"}, stmt.From)
	assert.True(t, stmt.SelectList[0].IsWildcard)
	assert.Equal(t, "SELECT * FROM 'data/it''s.csv'", stmt.String())

	stmt, err = Parse(`SELECT * FROM "my table" LIMIT 1 OFFSET 2`)
	require.NoError(t, err)
	assert.Equal(t, Source{Table: "my table"}, stmt.From)
	require.NotNil(t, stmt.Offset)
	assert.Equal(t, int64(2), *stmt.Offset)
}

func TestParse_Expressions(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"a + b * 2 > 10 OR NOT c", "(((col(a) + (col(b) * lit(2))) > lit(10)) || (!col(c)))"},
		{"(a + b) * 2", "((col(a) + col(b)) * lit(2))"},
		{"a - b - c", "((col(a) - col(b)) - col(c))"},
		{"a OR b AND c", "(col(a) || (col(b) && col(c)))"},
		{"NOT a = 1 AND b", "((!(col(a) == lit(1))) && col(b))"},
		{"-3", "lit(-3)"},
		{"-2.5", "lit(-2.5)"},
		{"-price * 2", "((-col(price)) * lit(2))"},
		{"price % 7 = 0", "((col(price) % lit(7)) == lit(0))"},
		{"price IS NULL", "isnull(col(price))"},
		{"price IS NOT NULL AND qty > 1", "((!isnull(col(price))) && (col(qty) > lit(1)))"},
		{"active = true", "(col(active) == lit(true))"},
		{"name = 'it''s'", `(col(name) == lit("it's"))`},
		{"AVG(price)", "avg(col(price))"},
		{"mean(price)", "avg(col(price))"},
		{"count(*)", "count(lit(1))"},
		{"max(qty * price)", "max((col(qty) * col(price)))"},
		{"abs(delta) + sqrt(x)", "(abs(col(delta)) + sqrt(col(x)))"},
		{"floor(price)", "floor(col(price))"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			stmt, err := Parse("SELECT * FROM t WHERE " + tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stmt.Where.String())
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{"empty", "", "expected SELECT, got end of input"},
		{"not a select", "DELETE FROM t", "expected SELECT"},
		{"empty select list", "SELECT FROM t", `expected an expression, got FROM "FROM"`},
		{"missing from", "SELECT a", "expected FROM"},
		{"missing source", "SELECT * FROM", "expected a quoted path or table name"},
		{"dangling where", "SELECT * FROM t WHERE", "expected an expression"},
		{"bad limit", "SELECT * FROM t LIMIT x", "expected integer"},
		{"negative limit", "SELECT * FROM t LIMIT -1", "expected integer"},
		{"trailing tokens", "SELECT * FROM t extra", "expected end of statement"},
		{"unknown function", "SELECT median(x) FROM t", "unknown function median"},
		{"arity", "SELECT sum(a, b) FROM t", "SUM takes exactly one argument, got 2"},
		{"unterminated string", "SELECT * FROM t WHERE name = 'abc", "unterminated quoted text"},
		{"null literal", "SELECT * FROM t WHERE x = NULL", "NULL literals are not supported"},
		{"unbalanced parens", "SELECT * FROM t WHERE (a > 1", "expected )"},
		{"illegal character", "SELECT * FROM t WHERE a ! 1", `got illegal "!"`},
		{"group without by", "SELECT sum(a) FROM t GROUP a", "expected BY"},
		{"is without null", "SELECT * FROM t WHERE a IS 1", "expected NULL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := Parse(tt.input)
			require.Error(t, err)
			assert.Nil(t, stmt)
			assert.ErrorIs(t, err, errors.ErrInvalidArgument)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
