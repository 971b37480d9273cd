// Package teide builds deferred queries over columnar tables and evaluates
// them on an execution engine.
//
// A Context owns the engine session. Sources read through it become RowSets;
// RowSet methods start a Query that records filter, group, sort and head
// operations without running anything until Materialize:
//
//	ctx, err := teide.New()
//	if err != nil {
//		return err
//	}
//	defer ctx.Release()
//
//	sales, err := ctx.ReadSource("sales.csv")
//	if err != nil {
//		return err
//	}
//	top, err := sales.
//		Filter(teide.Col("qty").Gt(teide.Int(2))).
//		GroupBy("region").Agg(teide.Col("price").Sum()).
//		Sort("price", teide.Descending()).
//		Head(3).
//		Materialize()
//
// Column views returned by a RowSet read engine memory directly and become
// unusable once the Context is released.
package teide

import (
	"github.com/paveg/teide/internal/config"
	"github.com/paveg/teide/internal/dtype"
	"github.com/paveg/teide/internal/engine"
	"github.com/paveg/teide/internal/errors"
	"github.com/paveg/teide/internal/expr"
	teidemem "github.com/paveg/teide/internal/memory"
	"github.com/paveg/teide/internal/monitoring"
	"github.com/paveg/teide/internal/plan"
	"github.com/paveg/teide/internal/series"
)

// Expressions.
type (
	Expr    = expr.Expr
	Operand = expr.Operand
	Scalar  = expr.Scalar

	Int   = expr.Int
	Float = expr.Float
	Str   = expr.Str
	Bool  = expr.Bool
)

// Col references a column by name.
func Col(name string) Expr { return expr.Col(name) }

// Lit wraps a Go scalar in a literal expression.
func Lit[T Scalar](v T) Expr { return expr.Lit(v) }

// As names the output of arg.
func As(arg Operand, name string) Expr { return expr.As(arg, name) }

// Results and plans.
type (
	Column         = series.Column
	DType          = dtype.Code
	Operation      = plan.Operation
	Config         = config.Config
	MetricsSummary = monitoring.MetricsSummary
	QueryPlan      = monitoring.QueryPlan
	MemoryStats    = teidemem.Stats

	// Future is the pending result of an asynchronous call.
	Future[T any] = engine.Future[T]
)

// Element types reported by Column.DType.
const (
	DTypeBool      = dtype.Bool
	DTypeU8        = dtype.U8
	DTypeChar      = dtype.Char
	DTypeI16       = dtype.I16
	DTypeI32       = dtype.I32
	DTypeI64       = dtype.I64
	DTypeF64       = dtype.F64
	DTypeDate      = dtype.Date
	DTypeTime      = dtype.Time
	DTypeTimestamp = dtype.Timestamp
	DTypeGUID      = dtype.GUID
	DTypeSym       = dtype.Sym
)

// Error kinds. Match with errors.Is.
var (
	ErrResourceReleased = errors.ErrResourceReleased
	ErrColumnNotFound   = errors.ErrColumnNotFound
	ErrInvalidArgument  = errors.ErrInvalidArgument
	ErrEngineFailure    = errors.ErrEngineFailure
)

// NewConfig returns the default configuration.
func NewConfig() Config { return config.NewConfig() }
