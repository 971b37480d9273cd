package plan_test

import (
	"testing"

	"github.com/paveg/teide/internal/errors"
	"github.com/paveg/teide/internal/expr"
	"github.com/paveg/teide/internal/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_WireShape(t *testing.T) {
	ops := plan.New().
		Filter(expr.Col("value").Gt(expr.Int(15))).
		Group([]string{"name"}, []expr.Expr{expr.Col("value").Sum()}).
		Sort([]string{"value"}, []bool{true}).
		Head(2).
		Operations()

	data, err := plan.Marshal(ops)
	require.NoError(t, err)

	assert.JSONEq(t, `[
		{"filter": {"kind": "binop", "op": "gt",
			"left": {"kind": "col", "name": "value"},
			"right": {"kind": "lit", "type": "i64", "value": 15}}},
		{"group": {"keys": ["name"], "aggs": [
			{"kind": "agg", "opcode": 50, "arg": {"kind": "col", "name": "value"}}]}},
		{"sort": {"cols": ["value"], "descs": [true]}},
		{"head": {"n": 2}}
	]`, string(data))
}

func TestUnmarshal_RoundTrip(t *testing.T) {
	ops := plan.New().
		Filter(expr.Col("name").Eq(expr.Str("beta")).Or(expr.Col("value").Le(expr.Float(10.5)))).
		Group(nil, []expr.Expr{expr.Col("value").Mean().Alias("avg"), expr.Col("id").Count()}).
		Sort([]string{"avg", "id"}, []bool{false, true}).
		Head(0).
		Operations()

	data, err := plan.Marshal(ops)
	require.NoError(t, err)

	back, err := plan.Unmarshal(data)
	require.NoError(t, err)
	require.Len(t, back, len(ops))
	for i := range ops {
		assert.Equal(t, ops[i].Kind(), back[i].Kind())
		assert.Equal(t, ops[i].String(), back[i].String())
	}
}

func TestUnmarshal_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"empty record", `[{}]`},
		{"two variants", `[{"head": {"n": 1}, "sort": {"cols": ["a"], "descs": [false]}}]`},
		{"negative head", `[{"head": {"n": -3}}]`},
		{"group without aggs", `[{"group": {"keys": ["a"], "aggs": []}}]`},
		{"bad expression", `[{"filter": {"kind": "nope"}}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := plan.Unmarshal([]byte(tt.data))
			assert.Error(t, err)
		})
	}

	_, err := plan.Unmarshal([]byte(`[{"head": {"n": -3}}]`))
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestMarshalIndent(t *testing.T) {
	data, err := plan.MarshalIndent(plan.New().Head(5).Operations())
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n")
	assert.JSONEq(t, `[{"head": {"n": 5}}]`, string(data))
}

func TestMarshal_EmptyPlan(t *testing.T) {
	data, err := plan.Marshal(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}
