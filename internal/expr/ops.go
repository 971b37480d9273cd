package expr

import "fmt"

// Kind identifies the variant of an expression node.
type Kind int

const (
	KindColumn Kind = iota
	KindLiteral
	KindBinary
	KindUnary
	KindAggregate
	KindAlias
)

var kindNames = [...]string{
	KindColumn:    "col",
	KindLiteral:   "lit",
	KindBinary:    "binop",
	KindUnary:     "unop",
	KindAggregate: "agg",
	KindAlias:     "alias",
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func parseKind(s string) (Kind, bool) {
	for k, n := range kindNames {
		if n == s {
			return Kind(k), true
		}
	}
	return 0, false
}

// BinaryOp represents binary operations
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

var binaryOps = [...]struct{ name, symbol string }{
	OpAdd: {"add", "+"},
	OpSub: {"sub", "-"},
	OpMul: {"mul", "*"},
	OpDiv: {"div", "/"},
	OpMod: {"mod", "%"},
	OpEq:  {"eq", "=="},
	OpNe:  {"ne", "!="},
	OpLt:  {"lt", "<"},
	OpLe:  {"le", "<="},
	OpGt:  {"gt", ">"},
	OpGe:  {"ge", ">="},
	OpAnd: {"and", "&&"},
	OpOr:  {"or", "||"},
}

// String returns the wire name of the operator.
func (op BinaryOp) String() string {
	if op >= 0 && int(op) < len(binaryOps) {
		return binaryOps[op].name
	}
	return fmt.Sprintf("binop(%d)", int(op))
}

// Symbol returns the infix symbol used when rendering expressions.
func (op BinaryOp) Symbol() string {
	if op >= 0 && int(op) < len(binaryOps) {
		return binaryOps[op].symbol
	}
	return "?"
}

// IsComparison reports whether op yields a boolean from two comparable operands.
func (op BinaryOp) IsComparison() bool {
	return op >= OpEq && op <= OpGe
}

// IsLogical reports whether op combines two booleans.
func (op BinaryOp) IsLogical() bool {
	return op == OpAnd || op == OpOr
}

// ParseBinaryOp resolves a wire name.
func ParseBinaryOp(s string) (BinaryOp, error) {
	for op, o := range binaryOps {
		if o.name == s {
			return BinaryOp(op), nil
		}
	}
	return 0, fmt.Errorf("unknown binary operator %q", s)
}

// UnaryOp represents unary operations
type UnaryOp int

const (
	UnaryNot UnaryOp = iota
	UnaryNeg
	UnaryAbs
	UnarySqrt
	UnaryLog
	UnaryExp
	UnaryCeil
	UnaryFloor
	UnaryIsNull
)

var unaryNames = [...]string{
	UnaryNot:    "not",
	UnaryNeg:    "neg",
	UnaryAbs:    "abs",
	UnarySqrt:   "sqrt",
	UnaryLog:    "log",
	UnaryExp:    "exp",
	UnaryCeil:   "ceil",
	UnaryFloor:  "floor",
	UnaryIsNull: "isnull",
}

func (op UnaryOp) String() string {
	if op >= 0 && int(op) < len(unaryNames) {
		return unaryNames[op]
	}
	return fmt.Sprintf("unop(%d)", int(op))
}

// ParseUnaryOp resolves a wire name.
func ParseUnaryOp(s string) (UnaryOp, error) {
	for op, n := range unaryNames {
		if n == s {
			return UnaryOp(op), nil
		}
	}
	return 0, fmt.Errorf("unknown unary operator %q", s)
}

// AggOp is an aggregate operator code. The values are fixed by the engine
// ABI and must stay in lock-step with it.
type AggOp int

const (
	AggSum   AggOp = 50
	AggProd  AggOp = 51
	AggMin   AggOp = 52
	AggMax   AggOp = 53
	AggCount AggOp = 54
	AggAvg   AggOp = 55
	AggFirst AggOp = 56
	AggLast  AggOp = 57
)

var aggNames = map[AggOp]string{
	AggSum:   "sum",
	AggProd:  "prod",
	AggMin:   "min",
	AggMax:   "max",
	AggCount: "count",
	AggAvg:   "avg",
	AggFirst: "first",
	AggLast:  "last",
}

func (op AggOp) String() string {
	if n, ok := aggNames[op]; ok {
		return n
	}
	return fmt.Sprintf("agg(%d)", int(op))
}

// Valid reports whether op is one of the known aggregate codes.
func (op AggOp) Valid() bool {
	_, ok := aggNames[op]
	return ok
}

// ParseAggOp resolves an aggregate by name. "mean" is accepted for avg.
func ParseAggOp(s string) (AggOp, error) {
	if s == "mean" {
		return AggAvg, nil
	}
	for op, n := range aggNames {
		if n == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown aggregate %q", s)
}
