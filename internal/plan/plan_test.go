package plan_test

import (
	"testing"

	"github.com/paveg/teide/internal/errors"
	"github.com/paveg/teide/internal/expr"
	"github.com/paveg/teide/internal/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_PreservesOrder(t *testing.T) {
	pred := expr.Col("value").Gt(expr.Int(15))

	p := plan.New().
		Filter(pred).
		Sort([]string{"value"}, []bool{false}).
		Head(2)

	require.NoError(t, p.Err())
	ops := p.Operations()
	require.Len(t, ops, 3)

	f, ok := ops[0].(*plan.Filter)
	require.True(t, ok)
	assert.Same(t, pred, f.Predicate)

	s, ok := ops[1].(*plan.Sort)
	require.True(t, ok)
	assert.Equal(t, []string{"value"}, s.Columns)
	assert.Equal(t, []bool{false}, s.Descending)

	h, ok := ops[2].(*plan.Head)
	require.True(t, ok)
	assert.Equal(t, 2, h.N)

	assert.Equal(t, "filter((col(value) > lit(15))) -> sort(value asc) -> head(2)", p.String())
}

func TestPlan_OperationsIsACopy(t *testing.T) {
	p := plan.New().Head(1)
	ops := p.Operations()
	ops[0] = &plan.Head{N: 99}

	assert.Equal(t, 1, p.Operations()[0].(*plan.Head).N)
}

func TestPlan_Validation(t *testing.T) {
	tests := []struct {
		name string
		p    *plan.Plan
		msg  string
	}{
		{"negative head", plan.New().Head(-1), "row limit must be a non-negative integer, got -1"},
		{"group without aggs", plan.New().Group([]string{"k"}, nil), "at least one aggregate"},
		{"nil predicate", plan.New().Filter(nil), "predicate is required"},
		{"sort flag mismatch", plan.New().Sort([]string{"a", "b"}, []bool{true}), "2 sort columns but 1 direction flags"},
		{"empty sort", plan.New().Sort(nil, nil), "at least one sort column"},
		{"empty key", plan.New().Group([]string{""}, []expr.Expr{expr.Col("v").Sum()}), "group key name is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Err()
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidArgument)
			assert.Contains(t, err.Error(), tt.msg)
			assert.Zero(t, tt.p.Len())
		})
	}
}

func TestPlan_FirstErrorWins(t *testing.T) {
	p := plan.New().Head(1).Head(-5).Head(3).Filter(nil)

	require.Error(t, p.Err())
	assert.Contains(t, p.Err().Error(), "got -5")
	assert.Equal(t, 1, p.Len())
}

func TestPlan_GroupCopiesInputs(t *testing.T) {
	keys := []string{"a"}
	aggs := []expr.Expr{expr.Col("v").Sum()}
	p := plan.New().Group(keys, aggs)
	keys[0] = "mutated"

	g := p.Operations()[0].(*plan.Group)
	assert.Equal(t, []string{"a"}, g.Keys)
	assert.Equal(t, plan.KindGroup, g.Kind())
	assert.Equal(t, "group([a], [sum(col(v))])", g.String())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "filter", plan.KindFilter.String())
	assert.Equal(t, "group", plan.KindGroup.String())
	assert.Equal(t, "sort", plan.KindSort.String())
	assert.Equal(t, "head", plan.KindHead.String())
	assert.Equal(t, "op(9)", plan.Kind(9).String())
}
