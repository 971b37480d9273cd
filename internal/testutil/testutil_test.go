package testutil_test

import (
	"os"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/paveg/teide/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTestRecord(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	t.Run("default configuration", func(t *testing.T) {
		rec := testutil.CreateTestRecord(mem.Allocator)
		defer rec.Release()

		assert.Equal(t, int64(4), rec.NumRows())
		assert.Equal(t, int64(4), rec.NumCols())
		assert.Equal(t, "department", rec.ColumnName(2))
		assert.Zero(t, rec.Column(3).NullN())
	})

	t.Run("with active column and nulls", func(t *testing.T) {
		rec := testutil.CreateTestRecord(mem.Allocator, testutil.WithActiveColumn(), testutil.WithNulls(), testutil.WithRowCount(9))
		defer rec.Release()

		assert.Equal(t, int64(9), rec.NumRows())
		assert.Equal(t, "active", rec.ColumnName(4))
		assert.Equal(t, 3, rec.Column(3).NullN())

		dept := rec.Column(2).(*array.Dictionary)
		assert.Equal(t, 5, dept.Dictionary().Len())
	})
}

func TestFixtures(t *testing.T) {
	path := testutil.WriteFixture(t, "small.csv", testutil.SmallCSV)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, testutil.SmallCSV, string(data))

	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()
	rec := testutil.CreateTestRecord(mem.Allocator)
	defer rec.Release()

	pq := testutil.WriteParquetFixture(t, "employees.parquet", rec)
	info, err := os.Stat(pq)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
