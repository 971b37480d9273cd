package expr_test

import (
	"math"
	"testing"

	"github.com/goccy/go-json"
	"github.com/paveg/teide/internal/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRecord_Shape(t *testing.T) {
	e := expr.Col("value").Gt(expr.Int(15))

	rec, err := expr.ToRecord(e)
	require.NoError(t, err)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"kind": "binop",
		"op": "gt",
		"left": {"kind": "col", "name": "value"},
		"right": {"kind": "lit", "type": "i64", "value": 15}
	}`, string(data))
}

func TestToRecord_Aggregate(t *testing.T) {
	rec, err := expr.ToRecord(expr.Col("price").Mean().Alias("avg_price"))
	require.NoError(t, err)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"kind": "alias",
		"name": "avg_price",
		"arg": {"kind": "agg", "opcode": 55, "arg": {"kind": "col", "name": "price"}}
	}`, string(data))
}

func TestRecord_RoundTripPreservesRendering(t *testing.T) {
	exprs := []expr.Expr{
		expr.Col("a"),
		expr.Lit(int64(1) << 60),
		expr.Lit(0.1),
		expr.Lit("quoted \"text\""),
		expr.Lit(true),
		expr.Col("a").Add(expr.Int(1)).Mul(expr.Col("b")).Ge(expr.Float(2.5)),
		expr.Col("flag").Not().Or(expr.Col("x").IsNull()),
		expr.Col("v").Abs().Sqrt().Log().Exp().Ceil().Floor().Neg(),
		expr.Col("v").Count().Alias("n"),
	}

	for _, e := range exprs {
		t.Run(e.String(), func(t *testing.T) {
			rec, err := expr.ToRecord(e)
			require.NoError(t, err)

			data, err := json.Marshal(rec)
			require.NoError(t, err)

			var decoded expr.Record
			require.NoError(t, json.Unmarshal(data, &decoded))

			back, err := expr.FromRecord(&decoded)
			require.NoError(t, err)
			assert.Equal(t, e.String(), back.String())
			assert.Equal(t, e.Kind(), back.Kind())
		})
	}
}

func TestRecord_NonFiniteFloats(t *testing.T) {
	tests := []struct {
		value float64
		token string
	}{
		{math.Inf(1), `"Infinity"`},
		{math.Inf(-1), `"-Infinity"`},
		{math.NaN(), `"NaN"`},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			rec, err := expr.ToRecord(expr.Col("x").Lt(expr.Float(tt.value)))
			require.NoError(t, err)
			assert.Equal(t, "f64", rec.Right.Type)
			assert.JSONEq(t, tt.token, string(rec.Right.Value))

			data, err := json.Marshal(rec)
			require.NoError(t, err)
			var decoded expr.Record
			require.NoError(t, json.Unmarshal(data, &decoded))

			back, err := expr.FromRecord(&decoded)
			require.NoError(t, err)
			lit, ok := back.(*expr.BinaryExpr).Right().(*expr.LiteralExpr)
			require.True(t, ok)
			got, ok := lit.Value().(float64)
			require.True(t, ok)
			if math.IsNaN(tt.value) {
				assert.True(t, math.IsNaN(got))
			} else {
				assert.Equal(t, tt.value, got)
			}
		})
	}

	_, err := expr.FromRecord(&expr.Record{Kind: "lit", Type: "f64", Value: []byte(`"Infinite"`)})
	assert.ErrorContains(t, err, "unknown float token")
}

func TestFromRecord_Errors(t *testing.T) {
	tests := []struct {
		name string
		rec  *expr.Record
	}{
		{"nil record", nil},
		{"unknown kind", &expr.Record{Kind: "case"}},
		{"unnamed column", &expr.Record{Kind: "col"}},
		{"unknown literal type", &expr.Record{Kind: "lit", Type: "decimal", Value: []byte("1")}},
		{"bad literal value", &expr.Record{Kind: "lit", Type: "i64", Value: []byte(`"x"`)}},
		{"unknown binop", &expr.Record{Kind: "binop", Op: "pow"}},
		{"missing operand", &expr.Record{Kind: "binop", Op: "add", Left: &expr.Record{Kind: "col", Name: "a"}}},
		{"bad opcode", &expr.Record{Kind: "agg", Opcode: 49, Arg: &expr.Record{Kind: "col", Name: "a"}}},
		{"alias without arg", &expr.Record{Kind: "alias", Name: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := expr.FromRecord(tt.rec)
			assert.Error(t, err)
		})
	}
}

func TestToRecord_Nil(t *testing.T) {
	_, err := expr.ToRecord(nil)
	assert.Error(t, err)

	_, err = expr.ToRecord(expr.Col("a").Add(nil))
	assert.Error(t, err)
}

func TestColumnsAndOutputName(t *testing.T) {
	e := expr.Col("a").Add(expr.Col("b")).Gt(expr.Col("a"))
	assert.Equal(t, []string{"a", "b"}, expr.Columns(e))
	assert.False(t, expr.HasAggregate(e))
	assert.True(t, expr.HasAggregate(expr.Col("a").Sum().Add(expr.Int(1))))

	assert.Equal(t, "price", expr.OutputName(expr.Col("price")))
	assert.Equal(t, "price", expr.OutputName(expr.Col("price").Max()))
	assert.Equal(t, "top", expr.OutputName(expr.Col("price").Max().Alias("top")))
	assert.Equal(t, "sum((col(a) + lit(1)))", expr.OutputName(expr.Col("a").Add(expr.Int(1)).Sum()))
}
