package io

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// Read reads Parquet data and returns a normalized record.
func (r *ParquetReader) Read() (arrow.Record, error) {
	// Read all data into memory for Parquet reading
	data, err := io.ReadAll(r.reader)
	if err != nil {
		return nil, fmt.Errorf("reading data: %w", err)
	}
	readerAt := bytes.NewReader(data)

	pqReader, err := file.NewParquetReader(readerAt)
	if err != nil {
		return nil, fmt.Errorf("creating parquet file reader: %w", err)
	}
	defer pqReader.Close()

	batch := r.options.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	props := pqarrow.ArrowReadProperties{Parallel: true, BatchSize: int64(batch)}
	arrowReader, err := pqarrow.NewFileReader(pqReader, props, r.mem)
	if err != nil {
		return nil, fmt.Errorf("creating arrow file reader: %w", err)
	}

	ctx := context.Background()
	table, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading table: %w", err)
	}
	defer table.Release()

	rec, err := tableToRecord(table, r.mem)
	if err != nil {
		return nil, err
	}
	defer rec.Release()

	return Normalize(ctx, rec, r.mem, r.options.MaxSymEntries)
}

// tableToRecord flattens every chunked column of table into one array.
func tableToRecord(table arrow.Table, mem memory.Allocator) (arrow.Record, error) {
	ncols := int(table.NumCols())
	cols := make([]arrow.Array, 0, ncols)
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	for i := range ncols {
		chunks := table.Column(i).Data().Chunks()
		switch len(chunks) {
		case 0:
			b := array.NewBuilder(mem, table.Schema().Field(i).Type)
			cols = append(cols, b.NewArray())
			b.Release()
		case 1:
			chunks[0].Retain()
			cols = append(cols, chunks[0])
		default:
			arr, err := array.Concatenate(chunks, mem)
			if err != nil {
				return nil, fmt.Errorf("concatenating column %s: %w", table.Schema().Field(i).Name, err)
			}
			cols = append(cols, arr)
		}
	}

	return array.NewRecord(table.Schema(), cols, table.NumRows()), nil
}

// Write writes rec to Parquet format.
func (w *ParquetWriter) Write(rec arrow.Record) error {
	var compression compress.Compression
	switch w.options.Compression {
	case "snappy":
		compression = compress.Codecs.Snappy
	case "gzip":
		compression = compress.Codecs.Gzip
	case "lz4":
		compression = compress.Codecs.Lz4Raw
	case "zstd":
		compression = compress.Codecs.Zstd
	case "uncompressed":
		compression = compress.Codecs.Uncompressed
	default:
		compression = compress.Codecs.Snappy
	}

	batch := w.options.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	props := parquet.NewWriterProperties(
		parquet.WithCompression(compression),
		parquet.WithBatchSize(int64(batch)),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(memory.NewGoAllocator()))

	writer, err := pqarrow.NewFileWriter(rec.Schema(), w.writer, props, arrowProps)
	if err != nil {
		return fmt.Errorf("creating file writer: %w", err)
	}

	if err := writer.Write(rec); err != nil {
		_ = writer.Close()
		return fmt.Errorf("writing record: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing file writer: %w", err)
	}
	return nil
}
