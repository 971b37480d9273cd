// Package io reads tabular sources into Arrow records and writes results
// back out.
//
// Every reader returns an arrow.Record whose columns use only the storage
// types the engine understands (see internal/dtype). Formats with a richer
// type system are normalized on the way in; string columns become
// dictionary-encoded sym columns.
//
// Key components:
//   - DataReader for pluggable source formats
//   - CSVReader with type inference, ParquetReader, JSONReader
//   - Normalize for mapping foreign Arrow types onto engine storage
//   - Open for local paths and s3:// objects
//   - CSVWriter and ParquetWriter for results and fixtures
//
// Memory management: records returned by readers must be released by the
// caller.
package io

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// DataReader defines the interface for reading data from various sources
type DataReader interface {
	// Read reads the whole source into a single record.
	Read() (arrow.Record, error)
}

// Frame is a materialized table that can be written out cell by cell.
type Frame interface {
	ColumnNames() []string
	RowCount() int
	// Cell renders row i of the named column as text, empty for null.
	Cell(column string, i int) (string, error)
}

// CSVOptions contains configuration options for CSV operations
type CSVOptions struct {
	// Delimiter is the field delimiter (default: comma)
	Delimiter rune
	// Comment is the comment character (default: 0 = disabled)
	Comment rune
	// Header indicates whether the first row contains headers
	Header bool
	// SkipInitialSpace indicates whether to skip initial whitespace
	SkipInitialSpace bool
	// NullValue is read as null in addition to the empty field
	NullValue string
	// MaxSymEntries bounds the dictionary of string columns (0 = unlimited)
	MaxSymEntries int
}

// DefaultCSVOptions returns default CSV options
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter: ',',
		Header:    true,
	}
}

// CSVReader reads delimited text into a record.
type CSVReader struct {
	reader  io.Reader
	options CSVOptions
	mem     memory.Allocator
}

// NewCSVReader creates a new CSV reader with the specified options
func NewCSVReader(reader io.Reader, options CSVOptions, mem memory.Allocator) *CSVReader {
	return &CSVReader{
		reader:  reader,
		options: options,
		mem:     mem,
	}
}

// CSVWriter writes frames to CSV format
type CSVWriter struct {
	writer  io.Writer
	options CSVOptions
}

// NewCSVWriter creates a new CSV writer with the specified options
func NewCSVWriter(writer io.Writer, options CSVOptions) *CSVWriter {
	return &CSVWriter{
		writer:  writer,
		options: options,
	}
}

// ParquetOptions contains configuration options for Parquet operations
type ParquetOptions struct {
	// Compression codec for written files
	Compression string
	// BatchSize for reading/writing operations
	BatchSize int
	// MaxSymEntries bounds the dictionary of string columns (0 = unlimited)
	MaxSymEntries int
}

// DefaultBatchSize is the default batch size for Parquet I/O.
const DefaultBatchSize = 1024

// DefaultParquetOptions returns default Parquet options
func DefaultParquetOptions() ParquetOptions {
	return ParquetOptions{
		Compression: "snappy",
		BatchSize:   DefaultBatchSize,
	}
}

// ParquetReader reads a Parquet file into a record.
type ParquetReader struct {
	reader  io.Reader
	options ParquetOptions
	mem     memory.Allocator
}

// NewParquetReader creates a new Parquet reader with the specified options
func NewParquetReader(reader io.Reader, options ParquetOptions, mem memory.Allocator) *ParquetReader {
	return &ParquetReader{
		reader:  reader,
		options: options,
		mem:     mem,
	}
}

// ParquetWriter writes records to Parquet format
type ParquetWriter struct {
	writer  io.Writer
	options ParquetOptions
}

// NewParquetWriter creates a new Parquet writer with the specified options
func NewParquetWriter(writer io.Writer, options ParquetOptions) *ParquetWriter {
	return &ParquetWriter{
		writer:  writer,
		options: options,
	}
}

// JSONFormat selects between a top-level array and newline-delimited objects.
type JSONFormat int

const (
	// JSONArray is a single array of objects.
	JSONArray JSONFormat = iota
	// JSONLines is one object per line.
	JSONLines
)

// JSONOptions contains configuration options for JSON reading.
type JSONOptions struct {
	Format JSONFormat
	// MaxRecords stops reading after this many objects (0 = all)
	MaxRecords int
	// MaxSymEntries bounds the dictionary of string columns (0 = unlimited)
	MaxSymEntries int
}

// DefaultJSONOptions returns default JSON options.
func DefaultJSONOptions() JSONOptions {
	return JSONOptions{Format: JSONArray}
}

// JSONReader reads JSON objects into a record.
type JSONReader struct {
	reader  io.Reader
	options JSONOptions
	mem     memory.Allocator
}

// NewJSONReader creates a new JSON reader.
func NewJSONReader(reader io.Reader, options JSONOptions, mem memory.Allocator) *JSONReader {
	return &JSONReader{
		reader:  reader,
		options: options,
		mem:     mem,
	}
}
