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

// Package exporter writes a table as CSV to cloud storage and a local folder.
package exporter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aaronlmathis/ingest/core"
	"github.com/aaronlmathis/ingest/logger"
	"github.com/aaronlmathis/ingest/storage"
	"github.com/aaronlmathis/ingest/writers"
)

// ExportError wraps a failed export step with its destination.
type ExportError struct {
	Op          string
	Destination string
	Err         error
}

func (e *ExportError) Error() string {
	if e.Destination == "" {
		return fmt.Sprintf("export %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("export %s %s: %v", e.Op, e.Destination, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// Exporter writes tables through a storage.Store.
type Exporter struct {
	store          storage.Store
	scheme         string
	logger         logger.Logger
	csvOptions     []writers.WriterOptionCSV
	parquetOptions []writers.WriterOption
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithScheme sets the URI scheme of the cloud destination. Defaults to gs.
func WithScheme(scheme string) ExporterOption {
	return func(e *Exporter) {
		if scheme != "" {
			e.scheme = scheme
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) ExporterOption {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithCSVOptions passes extra options to the CSV writer. Headers always follow the table.
func WithCSVOptions(opts ...writers.WriterOptionCSV) ExporterOption {
	return func(e *Exporter) { e.csvOptions = append(e.csvOptions, opts...) }
}

// WithParquetOptions passes options to the Parquet encoder.
func WithParquetOptions(opts ...writers.WriterOption) ExporterOption {
	return func(e *Exporter) { e.parquetOptions = append(e.parquetOptions, opts...) }
}

// NewExporter creates an Exporter writing to store.
func NewExporter(store storage.Store, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		store:  store,
		scheme: storage.SchemeGCS,
		logger: logger.NopLogger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export writes table as CSV to the cloud destination and then to the local
// folder, and optionally a Parquet copy to both. The table is returned as is.
// A failure after the cloud write leaves the cloud copy in place.
func (e *Exporter) Export(ctx context.Context, table *core.Table, desc core.ExportDescriptor) (*core.Table, error) {
	if table == nil {
		return nil, &ExportError{Op: "validate", Err: fmt.Errorf("nil table")}
	}
	if desc.Filename == "" {
		return nil, &ExportError{Op: "validate", Err: fmt.Errorf("export filename is empty")}
	}

	data, err := e.renderCSV(ctx, table)
	if err != nil {
		return nil, &ExportError{Op: "render_csv", Err: err}
	}
	if err := e.writeBoth(ctx, desc, desc.Filename, data); err != nil {
		return nil, err
	}

	if desc.Parquet {
		var buf bytes.Buffer
		if err := writers.WriteParquet(ctx, &buf, table, e.parquetOptions...); err != nil {
			return nil, &ExportError{Op: "render_parquet", Err: err}
		}
		if err := e.writeBoth(ctx, desc, parquetName(desc.Filename), buf.Bytes()); err != nil {
			return nil, err
		}
	}

	return table, nil
}

func (e *Exporter) writeBoth(ctx context.Context, desc core.ExportDescriptor, filename string, data []byte) error {
	cloudURI := desc.CloudURI(e.scheme, filename)
	e.logger.Infof("Exporting %s to %s", filename, cloudLabel(e.scheme))
	if err := e.write(ctx, cloudURI, data); err != nil {
		return &ExportError{Op: "write_cloud", Destination: cloudURI, Err: err}
	}

	localPath := desc.LocalPath(filename)
	e.logger.Infof("Exporting %s to %s", filename, localFolder(desc))
	if err := e.write(ctx, localPath, data); err != nil {
		return &ExportError{Op: "write_local", Destination: localPath, Err: err}
	}
	return nil
}

func (e *Exporter) write(ctx context.Context, uri string, data []byte) error {
	w, err := e.store.Create(ctx, uri)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// renderCSV encodes the table once so every destination gets the same bytes.
func (e *Exporter) renderCSV(ctx context.Context, table *core.Table) ([]byte, error) {
	var buf bytes.Buffer
	opts := append([]writers.WriterOptionCSV{}, e.csvOptions...)
	opts = append(opts, writers.WithHeaders(table.Columns), writers.WithWriteHeader(true))

	w, err := writers.NewCSVWriter(nopWriteCloser{&buf}, opts...)
	if err != nil {
		return nil, err
	}
	if err := core.WriteTable(ctx, table, w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func parquetName(filename string) string {
	return strings.TrimSuffix(filename, path.Ext(filename)) + ".parquet"
}

func cloudLabel(scheme string) string {
	switch scheme {
	case storage.SchemeGCS:
		return "GCS"
	case storage.SchemeS3:
		return "S3"
	default:
		return scheme
	}
}

func localFolder(desc core.ExportDescriptor) string {
	if desc.LocalExportFolder == "" {
		return "."
	}
	return desc.LocalExportFolder
}
