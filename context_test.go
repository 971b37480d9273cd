package teide_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/paveg/teide"
	"github.com/paveg/teide/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_Release(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	ctx, err := teide.New(teide.WithAllocator(mem.Allocator), teide.WithConfig(teide.NewConfig()))
	require.NoError(t, err)
	path := testutil.WriteFixture(t, "sales.csv", testutil.SalesCSV)

	sales, err := ctx.ReadSource(path)
	require.NoError(t, err)
	price, err := sales.Column("price")
	require.NoError(t, err)
	q := sales.Head(2)

	assert.False(t, ctx.Released())
	require.NoError(t, ctx.Release())
	require.NoError(t, ctx.Release(), "second release is a no-op")
	assert.True(t, ctx.Released())

	assert.Equal(t, 6, sales.NumRows())
	assert.Equal(t, []string{"product", "region", "price", "qty"}, sales.Columns())

	_, err = sales.Column("price")
	assert.ErrorIs(t, err, teide.ErrResourceReleased)
	_, err = price.Float64s()
	assert.ErrorIs(t, err, teide.ErrResourceReleased)
	_, err = price.NullBitmap()
	assert.ErrorIs(t, err, teide.ErrResourceReleased)
	_, err = price.Format(0)
	assert.ErrorIs(t, err, teide.ErrResourceReleased)

	_, err = ctx.ReadSource(path)
	assert.ErrorIs(t, err, teide.ErrResourceReleased)
	_, err = q.Materialize()
	assert.ErrorIs(t, err, teide.ErrResourceReleased)
	assert.ErrorIs(t, sales.WriteCSV(&bytes.Buffer{}), teide.ErrResourceReleased)

	for _, fut := range []*teide.Future[*teide.RowSet]{ctx.ReadSourceAsync(path), q.MaterializeAsync()} {
		select {
		case <-fut.Done():
		default:
			t.Fatal("calls on a released context must fail without waiting")
		}
		_, err = fut.Await(context.Background())
		assert.ErrorIs(t, err, teide.ErrResourceReleased)
	}
}

func TestContext_ReadSourceAsync(t *testing.T) {
	ctx := newContext(t)

	fut := ctx.ReadSourceAsync(testutil.WriteFixture(t, "small.csv", testutil.SmallCSV))
	rs, err := fut.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, rs.NumRows())
	assert.Same(t, ctx, rs.Context())

	_, err = ctx.ReadSourceAsync(filepath.Join(t.TempDir(), "absent.csv")).Await(context.Background())
	require.ErrorIs(t, err, teide.ErrEngineFailure)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRowSet_ColumnNotFound(t *testing.T) {
	ctx := newContext(t)
	small := read(t, ctx, "small.csv", testutil.SmallCSV)

	_, err := small.Column("salary")
	require.ErrorIs(t, err, teide.ErrColumnNotFound)
	assert.Contains(t, err.Error(), "salary")
}

func TestRowSet_ColumnAccessors(t *testing.T) {
	ctx := newContext(t)
	sales := read(t, ctx, "sales.csv", testutil.SalesCSV)

	price := column(t, sales, "price")
	assert.Equal(t, teide.DTypeF64, price.DType())
	assert.Equal(t, 6, price.Len())

	bm, err := price.NullBitmap()
	require.NoError(t, err)
	require.NotNil(t, bm)
	assert.Equal(t, byte(1<<4), bm[0])

	_, err = price.Int64s()
	assert.ErrorIs(t, err, teide.ErrInvalidArgument)
	_, err = column(t, sales, "region").Float64s()
	assert.ErrorIs(t, err, teide.ErrInvalidArgument)

	qty := column(t, sales, "qty")
	bm, err = qty.NullBitmap()
	require.NoError(t, err)
	assert.Nil(t, bm)
}

func TestRowSet_WriteCSV(t *testing.T) {
	ctx := newContext(t)
	small := read(t, ctx, "small.csv", testutil.SmallCSV)

	out, err := small.Filter(teide.Col("value").Gt(teide.Int(15))).Materialize()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, out.WriteCSV(&buf))
	assert.Equal(t, "id,name,value\n2,beta,20.3\n3,gamma,30.1\n", buf.String())
}

func TestRowSet_WriteTable(t *testing.T) {
	ctx := newContext(t)
	sales := read(t, ctx, "sales.csv", testutil.SalesCSV)

	var buf bytes.Buffer
	require.NoError(t, sales.WriteTable(&buf, 2))
	out := buf.String()
	assert.Contains(t, out, "product (sym)")
	assert.Contains(t, out, "price (f64)")
	assert.Contains(t, out, "gadget")
	assert.NotContains(t, out, "gizmo")
	assert.Contains(t, out, "2 of 6 rows")
}

func TestContext_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "teide.yaml")
	require.NoError(t, os.WriteFile(good, []byte("csv_delimiter: \";\"\nworker_pool_size: 2\n"), 0o600))

	ctx := newContext(t, teide.WithConfigFile(good))
	rs := read(t, ctx, "semi.csv", "a;b\n1;x\n2;y\n")
	assert.Equal(t, []string{"a", "b"}, rs.Columns())
	assert.Equal(t, []int64{1, 2}, ints(t, rs, "a"))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("worker_pool_size: -1\n"), 0o600))
	_, err := teide.New(teide.WithConfigFile(bad))
	assert.ErrorIs(t, err, teide.ErrInvalidArgument)

	_, err = teide.New(teide.WithConfigFile(filepath.Join(dir, "missing.yaml")))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestContext_Metrics(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	ctx := newContext(t, teide.WithRegisterer(reg))
	sales := read(t, ctx, "sales.csv", testutil.SalesCSV)

	_, err := sales.Filter(teide.Col("qty").Gt(teide.Int(2))).Head(3).Materialize()
	require.NoError(t, err)

	summary := ctx.Metrics()
	assert.Equal(t, 2, summary.TotalOperations)
	assert.Equal(t, 1, summary.OperationCounts["read_source"])

	qp, ok := ctx.LastPlan()
	require.True(t, ok)
	require.Len(t, qp.Operations, 2)
	assert.Equal(t, "filter", qp.Operations[0].Type)
	assert.Equal(t, int64(3), qp.TotalRows)

	count, err := promtest.GatherAndCount(reg, "teide_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, err := teide.New(teide.WithConfig(teide.NewConfig()), teide.WithLogger(logger))
	require.NoError(t, err)
	_, err = ctx.ReadSource(testutil.WriteFixture(t, "small.csv", testutil.SmallCSV))
	require.NoError(t, err)
	require.NoError(t, ctx.Release())

	logs := buf.String()
	assert.Contains(t, logs, "msg=\"source read\"")
	assert.Contains(t, logs, "rows=3")
	assert.Contains(t, logs, "msg=\"context released\"")
}

func TestContext_MemoryStats(t *testing.T) {
	ctx, err := teide.New(teide.WithConfig(teide.NewConfig()))
	require.NoError(t, err)
	path := testutil.WriteFixture(t, "sales.csv", testutil.SalesCSV)

	sales, err := ctx.ReadSource(path)
	require.NoError(t, err)
	_, err = sales.Sort("qty").Materialize()
	require.NoError(t, err)

	held := ctx.MemoryStats()
	assert.Positive(t, held.InUse)
	assert.GreaterOrEqual(t, held.Peak, held.InUse)
	assert.Positive(t, held.Allocations)

	require.NoError(t, ctx.Release())
	after := ctx.MemoryStats()
	assert.Zero(t, after.InUse)
	assert.Equal(t, held.Peak, after.Peak)
}

func TestWith(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()
	path := testutil.WriteFixture(t, "small.csv", testutil.SmallCSV)
	opts := []teide.Option{teide.WithAllocator(mem.Allocator), teide.WithConfig(teide.NewConfig())}

	var kept *teide.Context
	err := teide.With(func(ctx *teide.Context) error {
		kept = ctx
		rs, err := ctx.ReadSource(path)
		if err != nil {
			return err
		}
		assert.Equal(t, 3, rs.NumRows())
		return nil
	}, opts...)
	require.NoError(t, err)
	assert.True(t, kept.Released())

	sentinel := stderrors.New("stop")
	err = teide.With(func(*teide.Context) error { return sentinel }, opts...)
	assert.ErrorIs(t, err, sentinel)
}
