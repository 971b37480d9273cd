package expr_test

import (
	"testing"

	"github.com/paveg/teide/internal/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnExpr(t *testing.T) {
	col := expr.Col("test_column")

	assert.Equal(t, expr.KindColumn, col.Kind())
	assert.Equal(t, "test_column", col.Name())
	assert.Equal(t, "col(test_column)", col.String())
}

func TestLiteralExpr(t *testing.T) {
	tests := []struct {
		name     string
		lit      *expr.LiteralExpr
		typ      expr.LitType
		value    any
		expected string
	}{
		{"int literal", expr.Lit(42), expr.LitInt, int64(42), "lit(42)"},
		{"int32 literal", expr.Lit(int32(-7)), expr.LitInt, int64(-7), "lit(-7)"},
		{"float literal", expr.Lit(3.14), expr.LitFloat, 3.14, "lit(3.14)"},
		{"integral float stays float", expr.Lit(2.0), expr.LitFloat, 2.0, "lit(2)"},
		{"string literal", expr.Lit("hello"), expr.LitString, "hello", `lit("hello")`},
		{"bool literal", expr.Lit(true), expr.LitBool, true, "lit(true)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, expr.KindLiteral, tt.lit.Kind())
			assert.Equal(t, tt.typ, tt.lit.Type())
			assert.Equal(t, tt.value, tt.lit.Value())
			assert.Equal(t, tt.expected, tt.lit.String())
		})
	}
}

func TestBinaryExpressions(t *testing.T) {
	col := expr.Col("value")
	lit := expr.Lit(10)

	tests := []struct {
		name     string
		expr     expr.Expr
		expected string
		op       expr.BinaryOp
	}{
		{"addition", col.Add(lit), "(col(value) + lit(10))", expr.OpAdd},
		{"subtraction", col.Sub(lit), "(col(value) - lit(10))", expr.OpSub},
		{"multiplication", col.Mul(lit), "(col(value) * lit(10))", expr.OpMul},
		{"division", col.Div(lit), "(col(value) / lit(10))", expr.OpDiv},
		{"modulo", col.Mod(lit), "(col(value) % lit(10))", expr.OpMod},
		{"equality", col.Eq(lit), "(col(value) == lit(10))", expr.OpEq},
		{"not equal", col.Ne(lit), "(col(value) != lit(10))", expr.OpNe},
		{"less than", col.Lt(lit), "(col(value) < lit(10))", expr.OpLt},
		{"less than or equal", col.Le(lit), "(col(value) <= lit(10))", expr.OpLe},
		{"greater than", col.Gt(lit), "(col(value) > lit(10))", expr.OpGt},
		{"greater than or equal", col.Ge(lit), "(col(value) >= lit(10))", expr.OpGe},
		{"and", col.Gt(lit).And(col.Lt(expr.Int(20))), "((col(value) > lit(10)) && (col(value) < lit(20)))", expr.OpAnd},
		{"or", col.Lt(lit).Or(col.Gt(expr.Int(20))), "((col(value) < lit(10)) || (col(value) > lit(20)))", expr.OpOr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, ok := tt.expr.(*expr.BinaryExpr)
			require.True(t, ok)
			assert.Equal(t, expr.KindBinary, b.Kind())
			assert.Equal(t, tt.op, b.Op())
			assert.Equal(t, tt.expected, b.String())
		})
	}
}

func TestUnaryExpressions(t *testing.T) {
	col := expr.Col("x")

	tests := []struct {
		name     string
		expr     expr.Expr
		op       expr.UnaryOp
		expected string
	}{
		{"not", col.Not(), expr.UnaryNot, "(!col(x))"},
		{"neg", col.Neg(), expr.UnaryNeg, "(-col(x))"},
		{"abs", col.Abs(), expr.UnaryAbs, "abs(col(x))"},
		{"sqrt", col.Sqrt(), expr.UnarySqrt, "sqrt(col(x))"},
		{"log", col.Log(), expr.UnaryLog, "log(col(x))"},
		{"exp", col.Exp(), expr.UnaryExp, "exp(col(x))"},
		{"ceil", col.Ceil(), expr.UnaryCeil, "ceil(col(x))"},
		{"floor", col.Floor(), expr.UnaryFloor, "floor(col(x))"},
		{"isnull", col.IsNull(), expr.UnaryIsNull, "isnull(col(x))"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, ok := tt.expr.(*expr.UnaryExpr)
			require.True(t, ok)
			assert.Equal(t, expr.KindUnary, u.Kind())
			assert.Equal(t, tt.op, u.Op())
			assert.Same(t, col, u.Operand())
			assert.Equal(t, tt.expected, u.String())
		})
	}
}

func TestAggregationOpcodes(t *testing.T) {
	col := expr.Col("v")

	tests := []struct {
		name   string
		expr   expr.Expr
		opcode int
	}{
		{"sum", col.Sum(), 50},
		{"prod", col.Prod(), 51},
		{"min", col.Min(), 52},
		{"max", col.Max(), 53},
		{"count", col.Count(), 54},
		{"mean", col.Mean(), 55},
		{"first", col.First(), 56},
		{"last", col.Last(), 57},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, ok := tt.expr.(*expr.AggregationExpr)
			require.True(t, ok)
			assert.Equal(t, expr.KindAggregate, a.Kind())
			assert.Equal(t, tt.opcode, int(a.Op()))
			assert.Same(t, col, a.Arg())
		})
	}

	assert.Equal(t, "avg(col(v))", col.Mean().String())
}

func TestAlias(t *testing.T) {
	e := expr.Col("price").Sum().Alias("total")

	a, ok := e.(*expr.AliasExpr)
	require.True(t, ok)
	assert.Equal(t, expr.KindAlias, a.Kind())
	assert.Equal(t, "total", a.Name())
	assert.Equal(t, "sum(col(price)) as total", a.String())
	assert.Equal(t, expr.KindAggregate, a.Arg().Kind())
}

func TestCombinatorsDoNotMutate(t *testing.T) {
	base := expr.Col("a").Add(expr.Int(1))
	before := base.String()

	derived := []expr.Expr{
		base.Gt(expr.Int(3)),
		base.Neg(),
		base.Sum(),
		base.Alias("renamed"),
		base.Mul(base),
	}

	assert.Equal(t, before, base.String())
	for _, d := range derived {
		assert.NotSame(t, base, d)
	}

	// Shared subtrees are referenced, not copied.
	product := derived[4].(*expr.BinaryExpr)
	assert.Same(t, base, product.Left())
	assert.Same(t, base, product.Right())
}

func TestScalarOperandsMatchExplicitLiterals(t *testing.T) {
	col := expr.Col("x")

	tests := []struct {
		name     string
		implicit expr.Expr
		explicit expr.Expr
	}{
		{"int", col.Gt(expr.Int(15)), col.Gt(expr.Lit(int64(15)))},
		{"float", col.Add(expr.Float(1.5)), col.Add(expr.Lit(1.5))},
		{"string", col.Eq(expr.Str("alpha")), col.Eq(expr.Lit("alpha"))},
		{"bool", col.Ne(expr.Bool(false)), col.Ne(expr.Lit(false))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			implicit, err := expr.ToRecord(tt.implicit)
			require.NoError(t, err)
			explicit, err := expr.ToRecord(tt.explicit)
			require.NoError(t, err)
			assert.Equal(t, explicit, implicit)
		})
	}
}

func TestParseOps(t *testing.T) {
	op, err := expr.ParseBinaryOp("ge")
	require.NoError(t, err)
	assert.Equal(t, expr.OpGe, op)
	assert.True(t, op.IsComparison())
	assert.True(t, expr.OpAnd.IsLogical())

	_, err = expr.ParseBinaryOp("pow")
	assert.Error(t, err)

	u, err := expr.ParseUnaryOp("isnull")
	require.NoError(t, err)
	assert.Equal(t, expr.UnaryIsNull, u)

	a, err := expr.ParseAggOp("mean")
	require.NoError(t, err)
	assert.Equal(t, expr.AggAvg, a)

	a, err = expr.ParseAggOp("last")
	require.NoError(t, err)
	assert.Equal(t, expr.AggLast, a)

	_, err = expr.ParseAggOp("median")
	assert.Error(t, err)
	assert.Equal(t, "agg(99)", expr.AggOp(99).String())
}
