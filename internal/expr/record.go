package expr

import (
	"fmt"
	"math"

	"github.com/goccy/go-json"
)

// Record is the wire form of an expression: a tagged record whose kind
// decides which of the remaining fields are populated.
type Record struct {
	Kind   string          `json:"kind"`
	Name   string          `json:"name,omitempty"`
	Op     string          `json:"op,omitempty"`
	Opcode int             `json:"opcode,omitempty"`
	Type   string          `json:"type,omitempty"`
	Value  json.RawMessage `json:"value,omitempty"`
	Left   *Record         `json:"left,omitempty"`
	Right  *Record         `json:"right,omitempty"`
	Arg    *Record         `json:"arg,omitempty"`
}

// ToRecord converts an expression tree to its wire form.
func ToRecord(e Expr) (*Record, error) {
	switch n := e.(type) {
	case *ColumnExpr:
		return &Record{Kind: KindColumn.String(), Name: n.name}, nil
	case *LiteralExpr:
		v, err := json.Marshal(literalValue(n.Value()))
		if err != nil {
			return nil, fmt.Errorf("encoding literal %s: %w", n, err)
		}
		return &Record{Kind: KindLiteral.String(), Type: n.typ.String(), Value: v}, nil
	case *BinaryExpr:
		left, err := ToRecord(n.left)
		if err != nil {
			return nil, err
		}
		right, err := ToRecord(n.right)
		if err != nil {
			return nil, err
		}
		return &Record{Kind: KindBinary.String(), Op: n.op.String(), Left: left, Right: right}, nil
	case *UnaryExpr:
		arg, err := ToRecord(n.operand)
		if err != nil {
			return nil, err
		}
		return &Record{Kind: KindUnary.String(), Op: n.op.String(), Arg: arg}, nil
	case *AggregationExpr:
		arg, err := ToRecord(n.arg)
		if err != nil {
			return nil, err
		}
		return &Record{Kind: KindAggregate.String(), Opcode: int(n.op), Arg: arg}, nil
	case *AliasExpr:
		arg, err := ToRecord(n.arg)
		if err != nil {
			return nil, err
		}
		return &Record{Kind: KindAlias.String(), Name: n.name, Arg: arg}, nil
	case nil:
		return nil, fmt.Errorf("nil expression")
	default:
		return nil, fmt.Errorf("unknown expression node %T", e)
	}
}

// FromRecord rebuilds an expression tree from its wire form.
func FromRecord(r *Record) (Expr, error) {
	if r == nil {
		return nil, fmt.Errorf("missing expression record")
	}
	kind, ok := parseKind(r.Kind)
	if !ok {
		return nil, fmt.Errorf("unknown expression kind %q", r.Kind)
	}

	switch kind {
	case KindColumn:
		if r.Name == "" {
			return nil, fmt.Errorf("column reference without a name")
		}
		return Col(r.Name), nil
	case KindLiteral:
		return literalFromRecord(r)
	case KindBinary:
		op, err := ParseBinaryOp(r.Op)
		if err != nil {
			return nil, err
		}
		left, err := FromRecord(r.Left)
		if err != nil {
			return nil, fmt.Errorf("%s left operand: %w", op, err)
		}
		right, err := FromRecord(r.Right)
		if err != nil {
			return nil, fmt.Errorf("%s right operand: %w", op, err)
		}
		return Binary(op, left, right), nil
	case KindUnary:
		op, err := ParseUnaryOp(r.Op)
		if err != nil {
			return nil, err
		}
		arg, err := FromRecord(r.Arg)
		if err != nil {
			return nil, fmt.Errorf("%s operand: %w", op, err)
		}
		return Unary(op, arg), nil
	case KindAggregate:
		op := AggOp(r.Opcode)
		if !op.Valid() {
			return nil, fmt.Errorf("unknown aggregate opcode %d", r.Opcode)
		}
		arg, err := FromRecord(r.Arg)
		if err != nil {
			return nil, fmt.Errorf("%s argument: %w", op, err)
		}
		return Aggregate(op, arg), nil
	default:
		arg, err := FromRecord(r.Arg)
		if err != nil {
			return nil, fmt.Errorf("alias %s: %w", r.Name, err)
		}
		return As(arg, r.Name), nil
	}
}

func literalFromRecord(r *Record) (Expr, error) {
	var err error
	switch r.Type {
	case LitInt.String():
		var v int64
		if err = json.Unmarshal(r.Value, &v); err == nil {
			return Lit(v), nil
		}
	case LitFloat.String():
		var v float64
		if err = json.Unmarshal(r.Value, &v); err == nil {
			return Lit(v), nil
		}
		var token string
		if json.Unmarshal(r.Value, &token) == nil {
			if f, ok := nonFinite[token]; ok {
				return Lit(f), nil
			}
			err = fmt.Errorf("unknown float token %q", token)
		}
	case LitString.String():
		var v string
		if err = json.Unmarshal(r.Value, &v); err == nil {
			return Lit(v), nil
		}
	case LitBool.String():
		var v bool
		if err = json.Unmarshal(r.Value, &v); err == nil {
			return Lit(v), nil
		}
	default:
		return nil, fmt.Errorf("unknown literal type %q", r.Type)
	}
	return nil, fmt.Errorf("decoding %s literal: %w", r.Type, err)
}

// JSON has no encoding for infinities or NaN, so they travel as strings.
var nonFinite = map[string]float64{
	"Infinity":  math.Inf(1),
	"-Infinity": math.Inf(-1),
	"NaN":       math.NaN(),
}

func literalValue(v any) any {
	f, ok := v.(float64)
	switch {
	case !ok:
		return v
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return f
}
