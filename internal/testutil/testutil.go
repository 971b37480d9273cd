// Package testutil provides common testing utilities shared by the engine,
// source and public API tests.
//
// It covers:
// - Checked memory allocators that fail the test on leaked buffers
// - Standard in-memory test records
// - Fixture files (CSV, Parquet) written to a temporary directory
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	teideio "github.com/paveg/teide/internal/io"
	"github.com/stretchr/testify/require"
)

const (
	// defaultRowCount is the default number of rows in test records.
	defaultRowCount = 4
)

// TestMemoryContext provides a checked allocator that verifies every buffer
// was released.
type TestMemoryContext struct {
	Allocator *memory.CheckedAllocator
	tb        testing.TB
}

// Release asserts that no allocations are outstanding.
func (tmc *TestMemoryContext) Release() {
	tmc.Allocator.AssertSize(tmc.tb, 0)
}

// SetupMemoryTest creates a checked allocator for a test.
//
// Example usage:
//
//	mem := testutil.SetupMemoryTest(t)
//	defer mem.Release()
func SetupMemoryTest(tb testing.TB) *TestMemoryContext {
	tb.Helper()
	return &TestMemoryContext{
		Allocator: memory.NewCheckedAllocator(memory.NewGoAllocator()),
		tb:        tb,
	}
}

// TestRecordOption configures test record creation.
type TestRecordOption func(*testRecordConfig)

type testRecordConfig struct {
	includeNulls bool
	rowCount     int
	withActive   bool
}

// WithNulls makes every third salary null.
func WithNulls() TestRecordOption {
	return func(cfg *testRecordConfig) {
		cfg.includeNulls = true
	}
}

// WithRowCount sets the number of rows in test data.
func WithRowCount(count int) TestRecordOption {
	return func(cfg *testRecordConfig) {
		cfg.rowCount = count
	}
}

// WithActiveColumn includes an 'active' boolean column.
func WithActiveColumn() TestRecordOption {
	return func(cfg *testRecordConfig) {
		cfg.withActive = true
	}
}

// CreateTestRecord creates a standard employee record.
//
// Default record includes:
// - name (sym): ["Alice", "Bob", "Charlie", "David"]
// - age (i64): [25, 30, 35, 28]
// - department (sym): ["Engineering", "Sales", "Engineering", "Marketing"]
// - salary (f64): [100000, 80000, 120000, 75000]
func CreateTestRecord(mem memory.Allocator, opts ...TestRecordOption) arrow.Record {
	cfg := &testRecordConfig{rowCount: defaultRowCount}
	for _, opt := range opts {
		opt(cfg)
	}

	names := teideio.EncodeSym(mem, generateNames(cfg.rowCount), nil)
	defer names.Release()
	departments := teideio.EncodeSym(mem, generateDepartments(cfg.rowCount), nil)
	defer departments.Release()

	ab := array.NewInt64Builder(mem)
	defer ab.Release()
	ab.AppendValues(generateAges(cfg.rowCount), nil)
	ages := ab.NewArray()
	defer ages.Release()

	var valid []bool
	if cfg.includeNulls {
		valid = make([]bool, cfg.rowCount)
		for i := range valid {
			valid[i] = i%3 != 1
		}
	}
	sb := array.NewFloat64Builder(mem)
	defer sb.Release()
	sb.AppendValues(generateSalaries(cfg.rowCount), valid)
	salaries := sb.NewArray()
	defer salaries.Release()

	fields := []arrow.Field{
		{Name: "name", Type: names.DataType()},
		{Name: "age", Type: ages.DataType()},
		{Name: "department", Type: departments.DataType()},
		{Name: "salary", Type: salaries.DataType(), Nullable: cfg.includeNulls},
	}
	cols := []arrow.Array{names, ages, departments, salaries}

	if cfg.withActive {
		bb := array.NewBooleanBuilder(mem)
		defer bb.Release()
		bb.AppendValues(generateActiveFlags(cfg.rowCount), nil)
		active := bb.NewArray()
		defer active.Release()
		fields = append(fields, arrow.Field{Name: "active", Type: active.DataType()})
		cols = append(cols, active)
	}

	return array.NewRecord(arrow.NewSchema(fields, nil), cols, int64(cfg.rowCount))
}

// SmallCSV is a 3-row table with a categorical name column.
const SmallCSV = "id,name,value\n" +
	"1,alpha,10.5\n" +
	"2,beta,20.3\n" +
	"3,gamma,30.1\n"

// SalesCSV has a price column whose minimum is 3.99 and maximum 999.99.
const SalesCSV = "product,region,price,qty\n" +
	"widget,north,19.99,3\n" +
	"gadget,south,3.99,10\n" +
	"gizmo,north,999.99,1\n" +
	"widget,east,24.5,7\n" +
	"doohickey,south,,2\n" +
	"gadget,north,4.25,12\n"

// WriteFixture writes content to name inside a fresh temporary directory and
// returns the path.
func WriteFixture(tb testing.TB, name, content string) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), name)
	require.NoError(tb, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// WriteParquetFixture writes rec as a Parquet file and returns the path.
func WriteParquetFixture(tb testing.TB, name string, rec arrow.Record) string {
	tb.Helper()
	var buf bytes.Buffer
	require.NoError(tb, teideio.NewParquetWriter(&buf, teideio.DefaultParquetOptions()).Write(rec))
	return WriteFixture(tb, name, buf.String())
}

// Helper functions for generating test data

func generateNames(count int) []string {
	baseNames := []string{"Alice", "Bob", "Charlie", "David", "Eve", "Frank", "Grace", "Henry"}
	names := make([]string, count)
	for i := range count {
		names[i] = baseNames[i%len(baseNames)]
	}
	return names
}

func generateAges(count int) []int64 {
	baseAges := []int64{25, 30, 35, 28, 32, 45, 29, 38}
	ages := make([]int64, count)
	for i := range count {
		ages[i] = baseAges[i%len(baseAges)]
	}
	return ages
}

func generateDepartments(count int) []string {
	baseDepts := []string{"Engineering", "Sales", "Engineering", "Marketing", "HR", "Finance", "Engineering", "Sales"}
	departments := make([]string, count)
	for i := range count {
		departments[i] = baseDepts[i%len(baseDepts)]
	}
	return departments
}

func generateSalaries(count int) []float64 {
	baseSalaries := []float64{100000, 80000, 120000, 75000, 90000, 110000, 95000, 85000}
	salaries := make([]float64, count)
	for i := range count {
		salaries[i] = baseSalaries[i%len(baseSalaries)]
	}
	return salaries
}

func generateActiveFlags(count int) []bool {
	baseFlags := []bool{true, true, false, true, true, false, true, false}
	flags := make([]bool, count)
	for i := range count {
		flags[i] = baseFlags[i%len(baseFlags)]
	}
	return flags
}
