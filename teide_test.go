package teide_test

import (
	"testing"

	"github.com/paveg/teide"
	"github.com/paveg/teide/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newContext opens a Context on a checked allocator. Cleanup releases it
// and asserts that no Arrow memory is left behind.
func newContext(t *testing.T, opts ...teide.Option) *teide.Context {
	t.Helper()
	mem := testutil.SetupMemoryTest(t)
	base := []teide.Option{teide.WithAllocator(mem.Allocator), teide.WithConfig(teide.NewConfig())}
	ctx, err := teide.New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, ctx.Release())
		mem.Release()
	})
	return ctx
}

func read(t *testing.T, ctx *teide.Context, name, content string) *teide.RowSet {
	t.Helper()
	rs, err := ctx.ReadSource(testutil.WriteFixture(t, name, content))
	require.NoError(t, err)
	return rs
}

func column(t *testing.T, rs *teide.RowSet, name string) *teide.Column {
	t.Helper()
	c, err := rs.Column(name)
	require.NoError(t, err)
	return c
}

func floats(t *testing.T, rs *teide.RowSet, name string) []float64 {
	t.Helper()
	v, err := column(t, rs, name).Float64s()
	require.NoError(t, err)
	return v
}

func ints(t *testing.T, rs *teide.RowSet, name string) []int64 {
	t.Helper()
	v, err := column(t, rs, name).Int64s()
	require.NoError(t, err)
	return v
}

func strs(t *testing.T, rs *teide.RowSet, name string) []string {
	t.Helper()
	v, err := column(t, rs, name).Strings()
	require.NoError(t, err)
	return v
}

func TestFilterKeepsRelativeOrder(t *testing.T) {
	ctx := newContext(t)
	small := read(t, ctx, "small.csv", testutil.SmallCSV)

	out, err := small.Filter(teide.Col("value").Gt(teide.Int(15))).Materialize()
	require.NoError(t, err)

	assert.Equal(t, 2, out.NumRows())
	assert.Equal(t, 3, out.NumCols())
	assert.InDeltaSlice(t, []float64{20.3, 30.1}, floats(t, out, "value"), 1e-9)
	assert.Equal(t, []int64{2, 3}, ints(t, out, "id"))
	assert.Same(t, ctx, out.Context())
}

func TestDictionaryPreserved(t *testing.T) {
	ctx := newContext(t)
	small := read(t, ctx, "small.csv", testutil.SmallCSV)

	tests := []struct {
		name    string
		query   *teide.Query
		indices []uint8
		values  []string
	}{
		{
			name:    "filter",
			query:   small.Filter(teide.Col("id").Gt(teide.Int(1))),
			indices: []uint8{1, 2},
			values:  []string{"beta", "gamma"},
		},
		{
			name:    "sort descending",
			query:   small.Sort("name", teide.Descending()),
			indices: []uint8{2, 1, 0},
			values:  []string{"gamma", "beta", "alpha"},
		},
		{
			name:    "head",
			query:   small.Head(1),
			indices: []uint8{0},
			values:  []string{"alpha"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.query.Materialize()
			require.NoError(t, err)

			name := column(t, out, "name")
			assert.Equal(t, teide.DTypeSym, name.DType())
			dict, err := name.Dictionary()
			require.NoError(t, err)
			assert.Equal(t, []string{"alpha", "beta", "gamma"}, dict)

			idx, err := name.Indices()
			require.NoError(t, err)
			assert.Equal(t, tt.indices, idx)
			assert.Equal(t, tt.values, strs(t, out, "name"))
		})
	}
}

func TestSortDirection(t *testing.T) {
	ctx := newContext(t)
	prices := read(t, ctx, "prices.csv", "product,price\nwidget,19.99\ngadget,3.99\ngizmo,999.99\nsprocket,24.5\n")

	asc, err := prices.Sort("price").Materialize()
	require.NoError(t, err)
	assert.InDelta(t, 3.99, floats(t, asc, "price")[0], 1e-9)

	desc, err := prices.Sort("price", teide.Descending()).Materialize()
	require.NoError(t, err)
	assert.InDelta(t, 999.99, floats(t, desc, "price")[0], 1e-9)
	assert.Equal(t, []string{"gizmo", "sprocket", "widget", "gadget"}, strs(t, desc, "product"))
}

func TestHeadTakesFromCurrentOrder(t *testing.T) {
	ctx := newContext(t)
	sales := read(t, ctx, "sales.csv", testutil.SalesCSV)

	out, err := sales.Head(2).Materialize()
	require.NoError(t, err)
	assert.Equal(t, 2, out.NumRows())
	assert.Equal(t, []string{"widget", "gadget"}, strs(t, out, "product"))

	sorted, err := sales.Sort("qty", teide.Descending()).Head(2).Materialize()
	require.NoError(t, err)
	assert.Equal(t, []int64{12, 10}, ints(t, sorted, "qty"))

	all, err := sales.Head(100).Materialize()
	require.NoError(t, err)
	assert.Equal(t, sales.NumRows(), all.NumRows())
}

func TestGroupAggregate(t *testing.T) {
	ctx := newContext(t)
	sales := read(t, ctx, "sales.csv", testutil.SalesCSV)

	out, err := sales.
		GroupBy("region").
		Agg(teide.Col("qty").Sum(), teide.Col("price").Count().Alias("n")).
		Sort("qty", teide.Descending()).
		Materialize()
	require.NoError(t, err)

	assert.Equal(t, []string{"region", "qty", "n"}, out.Columns())
	assert.Equal(t, []string{"north", "south", "east"}, strs(t, out, "region"))
	assert.Equal(t, []int64{16, 12, 7}, ints(t, out, "qty"))
}

func TestChainedQueries(t *testing.T) {
	ctx := newContext(t)
	sales := read(t, ctx, "sales.csv", testutil.SalesCSV)

	cheap, err := sales.Filter(teide.Col("price").Lt(teide.Float(20))).Materialize()
	require.NoError(t, err)
	require.Equal(t, 3, cheap.NumRows())

	top, err := cheap.Sort("price").Head(1).Materialize()
	require.NoError(t, err)
	assert.Equal(t, []string{"gadget"}, strs(t, top, "product"))
}
