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

package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Package core defines the shared data model of the ingestion pipeline.
//
// This file contains records, tables and the dataset/export descriptors supplied by the caller.

// Record represents a single row of a table.
// Each record is a map from column names to values. A nil value is a missing cell.
type Record map[string]interface{}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// TransformFunc is a function adapter for the Transformer interface.
// Allows ordinary functions to be used as Transformers.
type TransformFunc func(ctx context.Context, record Record) (Record, error)

// Transform implements the Transformer interface for TransformFunc.
func (f TransformFunc) Transform(ctx context.Context, record Record) (Record, error) {
	return f(ctx, record)
}

// Table is an in-memory, column-ordered collection of records.
type Table struct {
	Columns []string
	Rows    []Record
}

// NewTable creates an empty table with the given column order.
func NewTable(columns ...string) *Table {
	return &Table{
		Columns: append([]string(nil), columns...),
		Rows:    make([]Record, 0),
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether name is one of the table's columns.
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// ColumnIndex returns the position of name in the column order, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Append adds a row to the table. Columns not yet known are appended to the
// column order in sorted order.
func (t *Table) Append(record Record) {
	var added []string
	for k := range record {
		if !t.HasColumn(k) {
			added = append(added, k)
		}
	}
	sort.Strings(added)
	t.Columns = append(t.Columns, added...)
	t.Rows = append(t.Rows, record)
}

// Column returns the values of a column in row order.
func (t *Table) Column(name string) ([]interface{}, error) {
	if !t.HasColumn(name) {
		return nil, &ColumnError{Column: name, Err: ErrMissingColumn}
	}
	values := make([]interface{}, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[name]
	}
	return values, nil
}

// Dedupe returns a new table without exact duplicate rows.
// The first occurrence of each row is kept and row order is preserved.
func (t *Table) Dedupe() *Table {
	out := &Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Record, 0, len(t.Rows)),
	}
	seen := make(map[string]struct{}, len(t.Rows))
	for _, row := range t.Rows {
		key := t.rowKey(row)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// rowKey builds a comparable identity for a row across all columns.
// Cell types are part of the key so that the string "1" and the integer 1 differ.
func (t *Table) rowKey(row Record) string {
	var b strings.Builder
	for _, col := range t.Columns {
		v := row[col]
		if v == nil {
			b.WriteString("<nil>")
		} else {
			fmt.Fprintf(&b, "%T:%v", v, v)
		}
		b.WriteByte(0x1f)
	}
	return b.String()
}

// NamedTable pairs a table with the logical name it was imported under.
type NamedTable struct {
	Name  string
	Table *Table
}

// DatasetDescriptor locates one CSV dataset in object storage.
type DatasetDescriptor struct {
	BucketName       string `mapstructure:"bucket_name"`
	ImportDataFolder string `mapstructure:"import_data_folder"`
	Filename         string `mapstructure:"filename"`
	DFName           string `mapstructure:"df_name"`
}

// URI composes the object location as <scheme>://<bucket>/<folder>/<filename>.
func (d DatasetDescriptor) URI(scheme string) string {
	return ObjectURI(scheme, d.BucketName, d.ImportDataFolder, d.Filename)
}

// ExportDescriptor describes where the merged table is written.
type ExportDescriptor struct {
	BucketName        string `mapstructure:"bucket_name"`
	ExportDataFolder  string `mapstructure:"export_data_folder"`
	LocalExportFolder string `mapstructure:"local_export_folder"`
	Filename          string `mapstructure:"filename"`
	Parquet           bool   `mapstructure:"parquet"`
}

// CloudURI returns the cloud destination for filename.
func (d ExportDescriptor) CloudURI(scheme, filename string) string {
	return ObjectURI(scheme, d.BucketName, d.ExportDataFolder, filename)
}

// LocalPath returns the local destination for filename.
func (d ExportDescriptor) LocalPath(filename string) string {
	folder := strings.TrimRight(d.LocalExportFolder, "/")
	if folder == "" {
		return filename
	}
	return folder + "/" + filename
}

// ObjectURI joins bucket, folder and filename under scheme, dropping empty folder segments.
func ObjectURI(scheme, bucket, folder, filename string) string {
	parts := []string{strings.Trim(bucket, "/")}
	if f := strings.Trim(folder, "/"); f != "" {
		parts = append(parts, f)
	}
	parts = append(parts, strings.TrimLeft(filename, "/"))
	return scheme + "://" + strings.Join(parts, "/")
}
