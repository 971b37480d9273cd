package io

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrObjectStoreDisabled is returned for s3:// paths when no endpoint is configured.
var ErrObjectStoreDisabled = errors.New("object store not configured")

// ObjectStoreConfig holds S3-compatible connection settings.
type ObjectStoreConfig struct {
	Endpoint  string // e.g. "localhost:9000"
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// SourceOptions controls how ReadFile parses a source.
type SourceOptions struct {
	CSV         CSVOptions
	Parquet     ParquetOptions
	JSON        JSONOptions
	ObjectStore ObjectStoreConfig
}

// DefaultSourceOptions returns defaults for every format.
func DefaultSourceOptions() SourceOptions {
	return SourceOptions{
		CSV:     DefaultCSVOptions(),
		Parquet: DefaultParquetOptions(),
		JSON:    DefaultJSONOptions(),
	}
}

// ReadFile reads the source at location into a normalized record. location
// is a local path or s3://bucket/key; the format follows the extension.
func ReadFile(ctx context.Context, location string, opts SourceOptions, mem memory.Allocator) (arrow.Record, error) {
	rc, err := Open(ctx, location, opts.ObjectStore)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	reader, err := NewReader(location, rc, opts, mem)
	if err != nil {
		return nil, err
	}
	rec, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", location, err)
	}
	return rec, nil
}

// NewReader returns the DataReader for location's extension.
func NewReader(location string, r io.Reader, opts SourceOptions, mem memory.Allocator) (DataReader, error) {
	switch ext := strings.ToLower(path.Ext(location)); ext {
	case ".csv", ".txt":
		return NewCSVReader(r, opts.CSV, mem), nil
	case ".tsv":
		csvOpts := opts.CSV
		csvOpts.Delimiter = '\t'
		return NewCSVReader(r, csvOpts, mem), nil
	case ".parquet", ".pq":
		return NewParquetReader(r, opts.Parquet, mem), nil
	case ".json":
		jsonOpts := opts.JSON
		jsonOpts.Format = JSONArray
		return NewJSONReader(r, jsonOpts, mem), nil
	case ".jsonl", ".ndjson":
		jsonOpts := opts.JSON
		jsonOpts.Format = JSONLines
		return NewJSONReader(r, jsonOpts, mem), nil
	default:
		return nil, fmt.Errorf("unsupported source format %q", ext)
	}
}

// Open opens a local file or an s3://bucket/key object.
func Open(ctx context.Context, location string, store ObjectStoreConfig) (io.ReadCloser, error) {
	rest, isS3 := strings.CutPrefix(location, "s3://")
	if !isS3 {
		f, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", location, err)
		}
		return f, nil
	}

	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("invalid object path %q: want s3://bucket/key", location)
	}
	if store.Endpoint == "" {
		return nil, fmt.Errorf("opening %s: %w", location, ErrObjectStoreDisabled)
	}
	mc, err := minio.New(store.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(store.AccessKey, store.SecretKey, ""),
		Secure: store.UseSSL,
		Region: store.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	obj, err := mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", location, err)
	}
	defer obj.Close()

	// Buffered whole; the parquet reader needs random access.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", location, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
