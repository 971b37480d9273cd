// Package expr provides the immutable expression tree used to describe
// predicates, computed values and aggregates in a query plan.
//
// Nodes are never mutated after construction. Every combinator returns a new
// node that references its inputs, so subtrees can be shared freely between
// expressions and plans.
package expr

import (
	"fmt"
	"strconv"
)

// Operand is anything accepted where an expression is expected: an Expr or
// one of the scalar types Int, Float, Str and Bool.
type Operand interface {
	toExpr() Expr
}

// Expr is a node of the expression tree. The set of implementations is
// closed: *ColumnExpr, *LiteralExpr, *BinaryExpr, *UnaryExpr,
// *AggregationExpr and *AliasExpr.
type Expr interface {
	Operand
	Kind() Kind
	String() string

	Add(other Operand) Expr
	Sub(other Operand) Expr
	Mul(other Operand) Expr
	Div(other Operand) Expr
	Mod(other Operand) Expr
	Eq(other Operand) Expr
	Ne(other Operand) Expr
	Lt(other Operand) Expr
	Le(other Operand) Expr
	Gt(other Operand) Expr
	Ge(other Operand) Expr
	And(other Operand) Expr
	Or(other Operand) Expr

	Not() Expr
	Neg() Expr
	Abs() Expr
	Sqrt() Expr
	Log() Expr
	Exp() Expr
	Ceil() Expr
	Floor() Expr
	IsNull() Expr

	Sum() Expr
	Prod() Expr
	Mean() Expr
	Min() Expr
	Max() Expr
	Count() Expr
	First() Expr
	Last() Expr

	Alias(name string) Expr
}

// chain implements the combinators once for every node type. self points
// back at the embedding node.
type chain struct {
	self Expr
}

func (c chain) toExpr() Expr { return c.self }

func (c chain) Add(other Operand) Expr { return Binary(OpAdd, c.self, other) }
func (c chain) Sub(other Operand) Expr { return Binary(OpSub, c.self, other) }
func (c chain) Mul(other Operand) Expr { return Binary(OpMul, c.self, other) }
func (c chain) Div(other Operand) Expr { return Binary(OpDiv, c.self, other) }
func (c chain) Mod(other Operand) Expr { return Binary(OpMod, c.self, other) }
func (c chain) Eq(other Operand) Expr { return Binary(OpEq, c.self, other) }
func (c chain) Ne(other Operand) Expr { return Binary(OpNe, c.self, other) }
func (c chain) Lt(other Operand) Expr { return Binary(OpLt, c.self, other) }
func (c chain) Le(other Operand) Expr { return Binary(OpLe, c.self, other) }
func (c chain) Gt(other Operand) Expr { return Binary(OpGt, c.self, other) }
func (c chain) Ge(other Operand) Expr { return Binary(OpGe, c.self, other) }
func (c chain) And(other Operand) Expr { return Binary(OpAnd, c.self, other) }
func (c chain) Or(other Operand) Expr { return Binary(OpOr, c.self, other) }

func (c chain) Not() Expr { return Unary(UnaryNot, c.self) }
func (c chain) Neg() Expr { return Unary(UnaryNeg, c.self) }
func (c chain) Abs() Expr { return Unary(UnaryAbs, c.self) }
func (c chain) Sqrt() Expr { return Unary(UnarySqrt, c.self) }
func (c chain) Log() Expr { return Unary(UnaryLog, c.self) }
func (c chain) Exp() Expr { return Unary(UnaryExp, c.self) }
func (c chain) Ceil() Expr { return Unary(UnaryCeil, c.self) }
func (c chain) Floor() Expr { return Unary(UnaryFloor, c.self) }
func (c chain) IsNull() Expr { return Unary(UnaryIsNull, c.self) }

func (c chain) Sum() Expr { return Aggregate(AggSum, c.self) }
func (c chain) Prod() Expr { return Aggregate(AggProd, c.self) }
func (c chain) Mean() Expr { return Aggregate(AggAvg, c.self) }
func (c chain) Min() Expr { return Aggregate(AggMin, c.self) }
func (c chain) Max() Expr { return Aggregate(AggMax, c.self) }
func (c chain) Count() Expr { return Aggregate(AggCount, c.self) }
func (c chain) First() Expr { return Aggregate(AggFirst, c.self) }
func (c chain) Last() Expr { return Aggregate(AggLast, c.self) }

func (c chain) Alias(name string) Expr { return As(c.self, name) }

// ColumnExpr represents a column reference
type ColumnExpr struct {
	chain
	name string
}

// Col references a column by name.
func Col(name string) *ColumnExpr {
	c := &ColumnExpr{name: name}
	c.self = c
	return c
}

func (c *ColumnExpr) Kind() Kind { return KindColumn }
func (c *ColumnExpr) Name() string { return c.name }
func (c *ColumnExpr) String() string { return fmt.Sprintf("col(%s)", c.name) }

// LitType tags the scalar held by a literal.
type LitType int

const (
	LitInt LitType = iota
	LitFloat
	LitString
	LitBool
)

var litTypeNames = [...]string{
	LitInt:    "i64",
	LitFloat:  "f64",
	LitString: "str",
	LitBool:   "bool",
}

func (t LitType) String() string {
	if t >= 0 && int(t) < len(litTypeNames) {
		return litTypeNames[t]
	}
	return fmt.Sprintf("littype(%d)", int(t))
}

// LiteralExpr represents a literal value
type LiteralExpr struct {
	chain
	typ LitType
	i   int64
	f   float64
	s   string
	b   bool
}

func newLiteral(l *LiteralExpr) *LiteralExpr {
	l.self = l
	return l
}

// Scalar is the closed set of Go types accepted by Lit.
type Scalar interface {
	int | int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 |
		float32 | float64 | string | bool
}

// Lit wraps a Go scalar into a literal node. Integer types become i64
// literals and floating-point types become f64 literals.
func Lit[T Scalar](v T) *LiteralExpr {
	switch x := any(v).(type) {
	case int:
		return newLiteral(&LiteralExpr{typ: LitInt, i: int64(x)})
	case int8:
		return newLiteral(&LiteralExpr{typ: LitInt, i: int64(x)})
	case int16:
		return newLiteral(&LiteralExpr{typ: LitInt, i: int64(x)})
	case int32:
		return newLiteral(&LiteralExpr{typ: LitInt, i: int64(x)})
	case int64:
		return newLiteral(&LiteralExpr{typ: LitInt, i: x})
	case uint8:
		return newLiteral(&LiteralExpr{typ: LitInt, i: int64(x)})
	case uint16:
		return newLiteral(&LiteralExpr{typ: LitInt, i: int64(x)})
	case uint32:
		return newLiteral(&LiteralExpr{typ: LitInt, i: int64(x)})
	case float32:
		return newLiteral(&LiteralExpr{typ: LitFloat, f: float64(x)})
	case float64:
		return newLiteral(&LiteralExpr{typ: LitFloat, f: x})
	case string:
		return newLiteral(&LiteralExpr{typ: LitString, s: x})
	case bool:
		return newLiteral(&LiteralExpr{typ: LitBool, b: x})
	}
	panic(fmt.Sprintf("expr: unreachable literal type %T", v))
}

func (l *LiteralExpr) Kind() Kind { return KindLiteral }

// Type returns the scalar tag of the literal.
func (l *LiteralExpr) Type() LitType { return l.typ }

// Value returns the scalar as int64, float64, string or bool.
func (l *LiteralExpr) Value() any {
	switch l.typ {
	case LitInt:
		return l.i
	case LitFloat:
		return l.f
	case LitString:
		return l.s
	default:
		return l.b
	}
}

func (l *LiteralExpr) Int() int64 { return l.i }
func (l *LiteralExpr) Float() float64 { return l.f }
func (l *LiteralExpr) Str() string { return l.s }
func (l *LiteralExpr) Bool() bool { return l.b }
func (l *LiteralExpr) String() string { return fmt.Sprintf("lit(%s)", l.text()) }

func (l *LiteralExpr) text() string {
	switch l.typ {
	case LitInt:
		return strconv.FormatInt(l.i, 10)
	case LitFloat:
		return strconv.FormatFloat(l.f, 'g', -1, 64)
	case LitString:
		return strconv.Quote(l.s)
	default:
		return strconv.FormatBool(l.b)
	}
}

// Int, Float, Str and Bool are scalar operands. They convert explicitly at
// the call site, e.g. Col("x").Gt(expr.Int(15)).
type (
	Int   int64
	Float float64
	Str   string
	Bool  bool
)

func (v Int) toExpr() Expr { return Lit(int64(v)) }
func (v Float) toExpr() Expr { return Lit(float64(v)) }
func (v Str) toExpr() Expr { return Lit(string(v)) }
func (v Bool) toExpr() Expr { return Lit(bool(v)) }

// Of converts an operand to an expression node.
func Of(o Operand) Expr {
	if o == nil {
		return nil
	}
	return o.toExpr()
}

// BinaryExpr represents a binary operation
type BinaryExpr struct {
	chain
	op    BinaryOp
	left  Expr
	right Expr
}

// Binary builds a binary node.
func Binary(op BinaryOp, left, right Operand) *BinaryExpr {
	b := &BinaryExpr{op: op, left: Of(left), right: Of(right)}
	b.self = b
	return b
}

func (b *BinaryExpr) Kind() Kind { return KindBinary }
func (b *BinaryExpr) Op() BinaryOp { return b.op }
func (b *BinaryExpr) Left() Expr { return b.left }
func (b *BinaryExpr) Right() Expr { return b.right }

func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", str(b.left), b.op.Symbol(), str(b.right))
}

// UnaryExpr represents a unary operation
type UnaryExpr struct {
	chain
	op      UnaryOp
	operand Expr
}

// Unary builds a unary node.
func Unary(op UnaryOp, operand Operand) *UnaryExpr {
	u := &UnaryExpr{op: op, operand: Of(operand)}
	u.self = u
	return u
}

func (u *UnaryExpr) Kind() Kind { return KindUnary }
func (u *UnaryExpr) Op() UnaryOp { return u.op }
func (u *UnaryExpr) Operand() Expr { return u.operand }

func (u *UnaryExpr) String() string {
	switch u.op {
	case UnaryNeg:
		return fmt.Sprintf("(-%s)", str(u.operand))
	case UnaryNot:
		return fmt.Sprintf("(!%s)", str(u.operand))
	default:
		return fmt.Sprintf("%s(%s)", u.op, str(u.operand))
	}
}

// AggregationExpr represents an aggregation over its argument
type AggregationExpr struct {
	chain
	op  AggOp
	arg Expr
}

// Aggregate builds an aggregate node.
func Aggregate(op AggOp, arg Operand) *AggregationExpr {
	a := &AggregationExpr{op: op, arg: Of(arg)}
	a.self = a
	return a
}

func (a *AggregationExpr) Kind() Kind { return KindAggregate }
func (a *AggregationExpr) Op() AggOp { return a.op }
func (a *AggregationExpr) Arg() Expr { return a.arg }

func (a *AggregationExpr) String() string {
	return fmt.Sprintf("%s(%s)", a.op, str(a.arg))
}

// AliasExpr renames the result of its argument.
type AliasExpr struct {
	chain
	name string
	arg  Expr
}

// As builds an alias node.
func As(arg Operand, name string) *AliasExpr {
	a := &AliasExpr{name: name, arg: Of(arg)}
	a.self = a
	return a
}

func (a *AliasExpr) Kind() Kind { return KindAlias }
func (a *AliasExpr) Name() string { return a.name }
func (a *AliasExpr) Arg() Expr { return a.arg }

func (a *AliasExpr) String() string {
	return fmt.Sprintf("%s as %s", str(a.arg), a.name)
}

func str(e Expr) string {
	if e == nil {
		return "<nil>"
	}
	return e.String()
}
