package io

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/goccy/go-json"
)

// Read reads JSON data and returns a record. Columns are the union of keys
// across all objects in sorted order; missing keys and JSON nulls are null.
func (r *JSONReader) Read() (arrow.Record, error) {
	var records []map[string]any
	var err error

	switch r.options.Format {
	case JSONArray:
		records, err = r.readJSONArray()
	case JSONLines:
		records, err = r.readJSONLines()
	default:
		return nil, fmt.Errorf("unsupported JSON format: %d", r.options.Format)
	}
	if err != nil {
		return nil, err
	}

	return r.recordsToRecord(records)
}

// readJSONArray reads JSON array format.
func (r *JSONReader) readJSONArray() ([]map[string]any, error) {
	data, err := io.ReadAll(r.reader)
	if err != nil {
		return nil, fmt.Errorf("reading JSON data: %w", err)
	}

	var records []map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("unmarshaling JSON array: %w", err)
	}

	if r.options.MaxRecords > 0 && len(records) > r.options.MaxRecords {
		records = records[:r.options.MaxRecords]
	}
	return records, nil
}

// readJSONLines reads JSON Lines format.
func (r *JSONReader) readJSONLines() ([]map[string]any, error) {
	scanner := bufio.NewScanner(r.reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var records []map[string]any
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var record map[string]any
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		if err := dec.Decode(&record); err != nil {
			return nil, fmt.Errorf("unmarshaling JSON line %d: %w", lineNum, err)
		}
		records = append(records, record)

		if r.options.MaxRecords > 0 && len(records) >= r.options.MaxRecords {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning JSON lines: %w", err)
	}
	return records, nil
}

// recordsToRecord converts decoded objects into a columnar record.
func (r *JSONReader) recordsToRecord(records []map[string]any) (arrow.Record, error) {
	columnSet := make(map[string]bool)
	for _, record := range records {
		for key := range record {
			columnSet[key] = true
		}
	}
	columns := make([]string, 0, len(columnSet))
	for col := range columnSet {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	fields := make([]arrow.Field, 0, len(columns))
	arrs := make([]arrow.Array, 0, len(columns))
	defer func() {
		for _, a := range arrs {
			a.Release()
		}
	}()

	for _, col := range columns {
		data := make([]any, len(records))
		for i, record := range records {
			data[i] = record[col]
		}
		arr, err := r.buildColumn(col, data)
		if err != nil {
			return nil, fmt.Errorf("creating column %s: %w", col, err)
		}
		arrs = append(arrs, arr)
		fields = append(fields, arrow.Field{Name: col, Type: arr.DataType(), Nullable: true})
	}

	return array.NewRecord(arrow.NewSchema(fields, nil), arrs, int64(len(records))), nil
}

// buildColumn picks bool when every value is a JSON boolean, i64 when every
// value is an integral number, f64 for any mix of numbers and sym otherwise.
func (r *JSONReader) buildColumn(name string, data []any) (arrow.Array, error) {
	allBool, allInt, allNumber := true, true, true
	for _, v := range data {
		switch val := v.(type) {
		case nil:
		case bool:
			allInt, allNumber = false, false
		case json.Number:
			allBool = false
			if _, err := val.Int64(); err != nil {
				allInt = false
			}
		default:
			allBool, allInt, allNumber = false, false, false
		}
	}

	switch {
	case allBool:
		b := array.NewBooleanBuilder(r.mem)
		defer b.Release()
		for _, v := range data {
			if bv, ok := v.(bool); ok {
				b.Append(bv)
			} else {
				b.AppendNull()
			}
		}
		// An all-null column has no evidence of type; keep it as sym.
		if b.NullN() == len(data) {
			break
		}
		return b.NewArray(), nil
	case allInt:
		b := array.NewInt64Builder(r.mem)
		defer b.Release()
		for _, v := range data {
			if n, ok := v.(json.Number); ok {
				iv, _ := n.Int64()
				b.Append(iv)
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray(), nil
	case allNumber:
		b := array.NewFloat64Builder(r.mem)
		defer b.Release()
		for _, v := range data {
			if n, ok := v.(json.Number); ok {
				fv, _ := n.Float64()
				b.Append(fv)
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray(), nil
	}

	values := make([]string, len(data))
	valid := make([]bool, len(data))
	for i, v := range data {
		if v == nil {
			continue
		}
		valid[i] = true
		values[i] = r.interfaceToString(v)
	}
	return encodeSym(r.mem, name, values, valid, r.options.MaxSymEntries)
}

// interfaceToString renders scalars as text and nested values as JSON.
func (r *JSONReader) interfaceToString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
