//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of GoETL.
//
// GoETL is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// GoETL is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with GoETL. If not, see https://www.gnu.org/licenses/.

package writers

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/aaronlmathis/ingest/core"
)

// This file encodes a whole in-memory table as a single Parquet file.
// Column types are inferred per column from the non-null cells.

// ParquetWriterError wraps Parquet-specific write errors with context about the operation.
type ParquetWriterError struct {
	Op  string // Operation that failed (e.g., "schema", "append_value", "write_table")
	Err error  // Underlying error
}

// Error returns the error string for ParquetWriterError.
func (e *ParquetWriterError) Error() string {
	return fmt.Sprintf("parquet writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for ParquetWriterError.
func (e *ParquetWriterError) Unwrap() error {
	return e.Err
}

// ParquetWriterOptions configures the Parquet encoder.
type ParquetWriterOptions struct {
	Compression  compress.Compression
	RowGroupSize int64
	Metadata     map[string]string
}

// WriterOption represents a configuration function for ParquetWriterOptions.
type WriterOption func(*ParquetWriterOptions)

// WithCompression sets the Parquet compression algorithm.
func WithCompression(compression compress.Compression) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.Compression = compression
	}
}

// WithRowGroupSize sets the maximum row group length.
func WithRowGroupSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.RowGroupSize = size
	}
}

// WithMetadata sets key/value metadata on the Arrow schema.
func WithMetadata(metadata map[string]string) WriterOption {
	return func(opts *ParquetWriterOptions) {
		if opts.Metadata == nil {
			opts.Metadata = make(map[string]string)
		}
		for k, v := range metadata {
			opts.Metadata[k] = v
		}
	}
}

// WriteParquet encodes table as a Parquet file on w.
func WriteParquet(ctx context.Context, w io.Writer, table *core.Table, options ...WriterOption) error {
	opts := ParquetWriterOptions{
		Compression:  compress.Codecs.Snappy,
		RowGroupSize: 64 * 1024,
	}
	for _, option := range options {
		option(&opts)
	}

	select {
	case <-ctx.Done():
		return &ParquetWriterError{Op: "write_table", Err: ctx.Err()}
	default:
	}

	schema := inferSchema(table, opts.Metadata)
	allocator := memory.NewGoAllocator()

	arrays := make([]arrow.Array, len(table.Columns))
	for i, col := range table.Columns {
		arr, err := buildColumn(allocator, schema.Field(i).Type, table, col)
		if err != nil {
			for _, a := range arrays[:i] {
				a.Release()
			}
			return err
		}
		arrays[i] = arr
	}

	record := array.NewRecord(schema, arrays, int64(table.Len()))
	for _, a := range arrays {
		a.Release()
	}
	defer record.Release()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(opts.Compression),
		parquet.WithMaxRowGroupLength(opts.RowGroupSize),
	)

	fw, err := pqarrow.NewFileWriter(schema, w, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return &ParquetWriterError{Op: "create_writer", Err: err}
	}
	if err := fw.Write(record); err != nil {
		fw.Close()
		return &ParquetWriterError{Op: "write_table", Err: err}
	}
	if err := fw.Close(); err != nil {
		return &ParquetWriterError{Op: "close_writer", Err: err}
	}
	return nil
}

// inferSchema picks one Arrow type per column.
// int columns that also hold floats widen to float64; any other mix falls back to string.
func inferSchema(table *core.Table, metadata map[string]string) *arrow.Schema {
	fields := make([]arrow.Field, len(table.Columns))
	for i, col := range table.Columns {
		fields[i] = arrow.Field{
			Name:     col,
			Type:     inferColumnType(table, col),
			Nullable: true,
		}
	}

	if len(metadata) == 0 {
		return arrow.NewSchema(fields, nil)
	}
	keys := make([]string, 0, len(metadata))
	values := make([]string, 0, len(metadata))
	for k, v := range metadata {
		keys = append(keys, k)
		values = append(values, v)
	}
	md := arrow.NewMetadata(keys, values)
	return arrow.NewSchema(fields, &md)
}

func inferColumnType(table *core.Table, col string) arrow.DataType {
	var hasInt, hasFloat, hasBool, hasTime, hasOther bool
	for _, row := range table.Rows {
		switch row[col].(type) {
		case nil:
		case int, int32, int64:
			hasInt = true
		case float32, float64:
			hasFloat = true
		case bool:
			hasBool = true
		case time.Time:
			hasTime = true
		default:
			hasOther = true
		}
	}

	switch {
	case hasOther:
		return arrow.BinaryTypes.String
	case hasTime && !hasInt && !hasFloat && !hasBool:
		return arrow.FixedWidthTypes.Timestamp_us
	case hasBool && !hasInt && !hasFloat && !hasTime:
		return arrow.FixedWidthTypes.Boolean
	case hasFloat && !hasBool && !hasTime:
		return arrow.PrimitiveTypes.Float64
	case hasInt && !hasBool && !hasTime:
		return arrow.PrimitiveTypes.Int64
	default:
		return arrow.BinaryTypes.String
	}
}

func buildColumn(mem memory.Allocator, dtype arrow.DataType, table *core.Table, col string) (arrow.Array, error) {
	builder := array.NewBuilder(mem, dtype)
	defer builder.Release()

	for _, row := range table.Rows {
		value := row[col]
		if value == nil {
			builder.AppendNull()
			continue
		}
		if err := appendValue(builder, value); err != nil {
			return nil, &ParquetWriterError{
				Op:  "append_value",
				Err: fmt.Errorf("column %s: %w", col, err),
			}
		}
	}
	return builder.NewArray(), nil
}

// appendValue appends a non-nil value to the appropriate Arrow array builder.
func appendValue(builder array.Builder, value interface{}) error {
	switch b := builder.(type) {
	case *array.BooleanBuilder:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", value)
		}
		b.Append(v)
	case *array.Int64Builder:
		switch v := value.(type) {
		case int:
			b.Append(int64(v))
		case int32:
			b.Append(int64(v))
		case int64:
			b.Append(v)
		default:
			return fmt.Errorf("expected integer, got %T", value)
		}
	case *array.Float64Builder:
		switch v := value.(type) {
		case int:
			b.Append(float64(v))
		case int32:
			b.Append(float64(v))
		case int64:
			b.Append(float64(v))
		case float32:
			b.Append(float64(v))
		case float64:
			b.Append(v)
		default:
			return fmt.Errorf("expected number, got %T", value)
		}
	case *array.TimestampBuilder:
		v, ok := value.(time.Time)
		if !ok {
			return fmt.Errorf("expected time, got %T", value)
		}
		b.Append(arrow.Timestamp(v.UnixMicro()))
	case *array.StringBuilder:
		b.Append(FormatValue(value))
	default:
		return fmt.Errorf("unsupported builder type %T", builder)
	}
	return nil
}
