package local_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/paveg/teide/internal/config"
	"github.com/paveg/teide/internal/dtype"
	"github.com/paveg/teide/internal/engine"
	"github.com/paveg/teide/internal/engine/local"
	"github.com/paveg/teide/internal/errors"
	"github.com/paveg/teide/internal/expr"
	"github.com/paveg/teide/internal/monitoring"
	"github.com/paveg/teide/internal/plan"
	"github.com/paveg/teide/internal/series"
	"github.com/paveg/teide/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newEngine returns an engine on a checked allocator and an open handle.
// Cleanup releases the handle and asserts that every buffer was freed.
func newEngine(t *testing.T, opts ...local.Option) (*local.Engine, engine.Handle) {
	t.Helper()
	mem := testutil.SetupMemoryTest(t)
	base := []local.Option{local.WithAllocator(mem.Allocator), local.WithConfig(config.NewConfig())}
	eng := local.New(append(base, opts...)...)

	h, err := eng.CreateHandle()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, eng.Release(h))
		mem.Release()
	})
	return eng, h
}

func column(t *testing.T, d engine.DataHandle, name string) *series.Column {
	t.Helper()
	c, err := d.Column(name)
	require.NoError(t, err)
	return series.New(c, nil)
}

func strs(t *testing.T, d engine.DataHandle, name string) []string {
	t.Helper()
	v, err := column(t, d, name).Strings()
	require.NoError(t, err)
	return v
}

func floats(t *testing.T, d engine.DataHandle, name string) []float64 {
	t.Helper()
	v, err := column(t, d, name).Float64s()
	require.NoError(t, err)
	return v
}

func ints(t *testing.T, d engine.DataHandle, name string) []int64 {
	t.Helper()
	v, err := column(t, d, name).Int64s()
	require.NoError(t, err)
	return v
}

func TestEngine_ReadSource(t *testing.T) {
	eng, h := newEngine(t)

	d, err := eng.ReadSource(h, testutil.WriteFixture(t, "small.csv", testutil.SmallCSV))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "value"}, d.ColumnNames())
	assert.Equal(t, 3, d.RowCount())
	assert.Equal(t, 3, d.ColumnCount())

	name, err := d.Column("name")
	require.NoError(t, err)
	assert.Equal(t, dtype.Sym, name.Type())
	assert.Equal(t, 1, name.IndexWidth())
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, name.Dictionary())
	assert.Equal(t, []byte{0, 1, 2}, name.Indices())
	assert.Empty(t, name.Data())
	assert.Nil(t, name.NullBitmap())

	assert.Equal(t, []int64{1, 2, 3}, ints(t, d, "id"))
	assert.InDeltaSlice(t, []float64{10.5, 20.3, 30.1}, floats(t, d, "value"), 1e-9)

	_, err = d.Column("missing")
	require.ErrorIs(t, err, errors.ErrColumnNotFound)
	assert.Contains(t, err.Error(), "missing")
}

func TestEngine_ReadSource_Parquet(t *testing.T) {
	eng, h := newEngine(t)

	src := testutil.SetupMemoryTest(t)
	rec := testutil.CreateTestRecord(src.Allocator, testutil.WithNulls(), testutil.WithActiveColumn(), testutil.WithRowCount(9))
	path := testutil.WriteParquetFixture(t, "employees.parquet", rec)
	rec.Release()
	src.Release()

	d, err := eng.ReadSource(h, path)
	require.NoError(t, err)
	require.Equal(t, 9, d.RowCount())

	assert.Equal(t, []string{"Engineering", "Sales", "Engineering", "Marketing", "HR", "Finance", "Engineering", "Sales", "Engineering"},
		strs(t, d, "department"))

	salary := column(t, d, "salary")
	nulls, err := salary.NullCount()
	require.NoError(t, err)
	assert.Equal(t, 3, nulls)
	isNull, err := salary.IsNull(1)
	require.NoError(t, err)
	assert.True(t, isNull)

	active := column(t, d, "active")
	assert.Equal(t, dtype.Bool, active.DType())
	raw, err := active.Uint8s()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 1, 0, 1, 1, 0, 1, 0, 1}, raw)
}

func TestEngine_ReadSource_Errors(t *testing.T) {
	eng, h := newEngine(t)

	_, err := eng.ReadSource(h, "/nonexistent/data.csv")
	require.ErrorIs(t, err, errors.ErrEngineFailure)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = eng.ReadSource(nil, "x.csv")
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestEngine_Async(t *testing.T) {
	eng, h := newEngine(t)
	ctx := context.Background()

	read := eng.ReadSourceAsync(h, testutil.WriteFixture(t, "sales.csv", testutil.SalesCSV))
	head := engine.Then(read, func(d engine.DataHandle) (*engine.Future[engine.DataHandle], error) {
		return eng.MaterializeAsync(d, []plan.Operation{&plan.Head{N: 2}}), nil
	})

	next, err := head.Await(ctx)
	require.NoError(t, err)
	d, err := next.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"widget", "gadget"}, strs(t, d, "product"))
}

func TestEngine_Release(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()
	eng := local.New(local.WithAllocator(mem.Allocator), local.WithConfig(config.NewConfig()))

	h, err := eng.CreateHandle()
	require.NoError(t, err)

	d, err := eng.ReadSource(h, testutil.WriteFixture(t, "sales.csv", testutil.SalesCSV))
	require.NoError(t, err)
	col, err := d.Column("price")
	require.NoError(t, err)

	require.NoError(t, eng.Release(h))
	require.NoError(t, eng.Release(h), "release is idempotent")

	assert.Nil(t, col.Data())
	assert.Nil(t, col.NullBitmap())

	_, err = d.Column("price")
	assert.ErrorIs(t, err, errors.ErrResourceReleased)

	_, err = eng.ReadSource(h, "any.csv")
	assert.ErrorIs(t, err, errors.ErrResourceReleased)

	_, err = eng.Materialize(d, nil)
	assert.ErrorIs(t, err, errors.ErrResourceReleased)

	fut := eng.MaterializeAsync(d, nil)
	select {
	case <-fut.Done():
	default:
		t.Fatal("future for a released handle must already be resolved")
	}
	_, err = fut.Await(context.Background())
	assert.ErrorIs(t, err, errors.ErrResourceReleased)
}

func TestEngine_ReleaseDrainsQueuedWork(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()
	eng := local.New(local.WithAllocator(mem.Allocator), local.WithConfig(config.NewConfig()))

	h, err := eng.CreateHandle()
	require.NoError(t, err)
	d, err := eng.ReadSource(h, testutil.WriteFixture(t, "sales.csv", testutil.SalesCSV))
	require.NoError(t, err)

	ops := []plan.Operation{&plan.Sort{Columns: []string{"price"}, Descending: []bool{true}}}
	futures := make([]*engine.Future[engine.DataHandle], 20)
	for i := range futures {
		futures[i] = eng.MaterializeAsync(d, ops)
	}
	require.NoError(t, eng.Release(h))

	for _, f := range futures {
		select {
		case <-f.Done():
		default:
			t.Fatal("queued work left unresolved after release")
		}
		if _, err := f.Await(context.Background()); err != nil {
			assert.ErrorIs(t, err, errors.ErrResourceReleased)
		}
	}
}

func TestEngine_ForeignDataHandle(t *testing.T) {
	eng, h := newEngine(t)
	other, otherHandle := newEngine(t)

	d, err := other.ReadSource(otherHandle, testutil.WriteFixture(t, "small.csv", testutil.SmallCSV))
	require.NoError(t, err)

	_, err = eng.Materialize(d, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)

	_, err = eng.Materialize(nil, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)

	_, err = eng.ReadSource(h, testutil.WriteFixture(t, "small.csv", testutil.SmallCSV))
	assert.NoError(t, err)
}

func TestEngine_ConcurrentSessions(t *testing.T) {
	eng, _ := newEngine(t)
	path := testutil.WriteFixture(t, "sales.csv", testutil.SalesCSV)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := eng.CreateHandle()
			if !assert.NoError(t, err) {
				return
			}
			defer func() { assert.NoError(t, eng.Release(h)) }()

			d, err := eng.ReadSource(h, path)
			if !assert.NoError(t, err) {
				return
			}
			out, err := eng.Materialize(d, []plan.Operation{&plan.Filter{Predicate: expr.Col("qty").Gt(expr.Int(5))}})
			if assert.NoError(t, err) {
				assert.Equal(t, 3, out.RowCount())
			}
		}()
	}
	wg.Wait()
}

func TestEngine_Metrics(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	em := monitoring.NewEngineMetrics(reg)
	mc := monitoring.NewMetricsCollector(true, em)

	eng, h := newEngine(t, local.WithMetrics(mc))
	assert.Same(t, mc, eng.Metrics())
	assert.InDelta(t, 1, promtest.ToFloat64(em.ActiveSessions), 0)

	d, err := eng.ReadSource(h, testutil.WriteFixture(t, "sales.csv", testutil.SalesCSV))
	require.NoError(t, err)
	_, err = eng.Materialize(d, []plan.Operation{
		&plan.Filter{Predicate: expr.Col("qty").Gt(expr.Int(2))},
		&plan.Head{N: 3},
	})
	require.NoError(t, err)

	summary := mc.GetSummary()
	assert.Equal(t, 2, summary.TotalOperations)
	assert.Equal(t, 1, summary.OperationCounts["materialize"])

	qp, ok := mc.LastPlan()
	require.True(t, ok)
	require.Len(t, qp.Operations, 2)
	assert.Equal(t, int64(6), qp.Operations[0].RowsIn)
	assert.Equal(t, int64(4), qp.Operations[0].RowsOut)
	assert.Equal(t, int64(3), qp.TotalRows)

	assert.InDelta(t, 6, promtest.ToFloat64(em.Rows.WithLabelValues("read_source")), 0)
	assert.InDelta(t, 1, promtest.ToFloat64(em.Operations.WithLabelValues("materialize", "ok")), 0)

	stats := eng.MemoryStats()
	assert.Positive(t, stats.InUse)
	assert.GreaterOrEqual(t, stats.Peak, stats.InUse)
	assert.InDelta(t, float64(stats.InUse), promtest.ToFloat64(em.BytesInUse), 0)

	require.NoError(t, eng.Release(h))
	assert.Zero(t, eng.MemoryStats().InUse)
	assert.Zero(t, promtest.ToFloat64(em.BytesInUse))
}
