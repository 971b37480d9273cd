package io

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/google/uuid"
	"github.com/paveg/teide/internal/dtype"
)

// Inferred column kinds, most specific first.
type inferredType int

const (
	inferBool inferredType = iota
	inferInt
	inferFloat
	inferDate
	inferTimestamp
	inferGUID
	inferSym
)

const (
	dateLayout = "2006-01-02"
	uuidLength = 36
)

// Read reads CSV data and returns a record
func (r *CSVReader) Read() (arrow.Record, error) {
	csvReader := csv.NewReader(r.reader)
	csvReader.Comma = r.options.Delimiter
	csvReader.Comment = r.options.Comment
	csvReader.TrimLeadingSpace = r.options.SkipInitialSpace
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}

	// Handle empty CSV
	if len(records) == 0 {
		return array.NewRecord(arrow.NewSchema(nil, nil), nil, 0), nil
	}

	var headers []string
	var dataRows [][]string

	if r.options.Header {
		headers = records[0]
		dataRows = records[1:]
	} else {
		headers = make([]string, len(records[0]))
		dataRows = records
	}

	seen := make(map[string]bool, len(headers))
	for i, h := range headers {
		if h == "" {
			h = fmt.Sprintf("column_%d", i)
			headers[i] = h
		}
		if seen[h] {
			return nil, fmt.Errorf("duplicate column name %q", h)
		}
		seen[h] = true
	}

	// Transpose data to work with columns; short rows are padded with nulls.
	numCols := len(headers)
	columns := make([][]string, numCols)
	for i := range numCols {
		columns[i] = make([]string, len(dataRows))
		for j, row := range dataRows {
			if i < len(row) {
				columns[i][j] = row[i]
			}
		}
	}

	fields := make([]arrow.Field, numCols)
	arrs := make([]arrow.Array, 0, numCols)
	defer func() {
		for _, a := range arrs {
			a.Release()
		}
	}()

	for i, header := range headers {
		arr, err := r.buildColumn(header, columns[i])
		if err != nil {
			return nil, fmt.Errorf("creating column %s: %w", header, err)
		}
		arrs = append(arrs, arr)
		fields[i] = arrow.Field{Name: header, Type: arr.DataType(), Nullable: true}
	}

	return array.NewRecord(arrow.NewSchema(fields, nil), arrs, int64(len(dataRows))), nil
}

func (r *CSVReader) isNull(v string) bool {
	return v == "" || (r.options.NullValue != "" && v == r.options.NullValue)
}

// buildColumn infers the column type and builds the Arrow array for it.
func (r *CSVReader) buildColumn(name string, data []string) (arrow.Array, error) {
	valid := make([]bool, len(data))
	for i, v := range data {
		valid[i] = !r.isNull(v)
	}

	switch r.inferDataType(data, valid) {
	case inferBool:
		b := array.NewBooleanBuilder(r.mem)
		defer b.Release()
		for i, v := range data {
			if !valid[i] {
				b.AppendNull()
				continue
			}
			b.Append(strings.EqualFold(v, "true"))
		}
		return b.NewArray(), nil

	case inferInt:
		b := array.NewInt64Builder(r.mem)
		defer b.Release()
		for i, v := range data {
			if !valid[i] {
				b.AppendNull()
				continue
			}
			n, _ := strconv.ParseInt(v, 10, 64)
			b.Append(n)
		}
		return b.NewArray(), nil

	case inferFloat:
		b := array.NewFloat64Builder(r.mem)
		defer b.Release()
		for i, v := range data {
			if !valid[i] {
				b.AppendNull()
				continue
			}
			f, _ := strconv.ParseFloat(v, 64)
			b.Append(f)
		}
		return b.NewArray(), nil

	case inferDate:
		b := array.NewDate32Builder(r.mem)
		defer b.Release()
		for i, v := range data {
			if !valid[i] {
				b.AppendNull()
				continue
			}
			t, _ := time.Parse(dateLayout, v)
			b.Append(arrow.Date32FromTime(t))
		}
		return b.NewArray(), nil

	case inferTimestamp:
		b := array.NewTimestampBuilder(r.mem, dtype.TimestampType)
		defer b.Release()
		for i, v := range data {
			if !valid[i] {
				b.AppendNull()
				continue
			}
			t, _ := time.Parse(time.RFC3339Nano, v)
			b.Append(arrow.Timestamp(t.UnixNano()))
		}
		return b.NewArray(), nil

	case inferGUID:
		b := array.NewFixedSizeBinaryBuilder(r.mem, dtype.GUIDType)
		defer b.Release()
		for i, v := range data {
			if !valid[i] {
				b.AppendNull()
				continue
			}
			id := uuid.MustParse(v)
			b.Append(id[:])
		}
		return b.NewArray(), nil

	default:
		return encodeSym(r.mem, name, data, valid, r.options.MaxSymEntries)
	}
}

// inferDataType determines the most specific type every non-null value
// parses as.
func (r *CSVReader) inferDataType(data []string, valid []bool) inferredType {
	canBeBool := true
	canBeInt := true
	canBeFloat := true
	canBeDate := true
	canBeTimestamp := true
	canBeGUID := true
	hasNonEmptyValue := false

	for i, value := range data {
		if !valid[i] {
			continue
		}
		hasNonEmptyValue = true

		if canBeBool && !strings.EqualFold(value, "true") && !strings.EqualFold(value, "false") {
			canBeBool = false
		}
		if canBeInt {
			if _, err := strconv.ParseInt(value, 10, 64); err != nil {
				canBeInt = false
			}
		}
		if canBeFloat {
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				canBeFloat = false
			}
		}
		if canBeDate {
			if _, err := time.Parse(dateLayout, value); err != nil {
				canBeDate = false
			}
		}
		if canBeTimestamp {
			if _, err := time.Parse(time.RFC3339Nano, value); err != nil {
				canBeTimestamp = false
			}
		}
		if canBeGUID {
			if len(value) != uuidLength {
				canBeGUID = false
			} else if _, err := uuid.Parse(value); err != nil {
				canBeGUID = false
			}
		}

		if !canBeBool && !canBeInt && !canBeFloat && !canBeDate && !canBeTimestamp && !canBeGUID {
			return inferSym
		}
	}

	switch {
	case !hasNonEmptyValue:
		return inferSym
	case canBeBool:
		return inferBool
	case canBeInt:
		return inferInt
	case canBeFloat:
		return inferFloat
	case canBeDate:
		return inferDate
	case canBeTimestamp:
		return inferTimestamp
	case canBeGUID:
		return inferGUID
	default:
		return inferSym
	}
}

// Write writes the frame to CSV format
func (w *CSVWriter) Write(f Frame) error {
	csvWriter := csv.NewWriter(w.writer)
	csvWriter.Comma = w.options.Delimiter

	names := f.ColumnNames()
	if w.options.Header {
		if err := csvWriter.Write(names); err != nil {
			return fmt.Errorf("writing headers: %w", err)
		}
	}

	row := make([]string, len(names))
	for i := range f.RowCount() {
		for j, name := range names {
			value, err := f.Cell(name, i)
			if err != nil {
				return fmt.Errorf("formatting row %d column %s: %w", i, name, err)
			}
			row[j] = value
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}
