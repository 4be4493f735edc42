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
	"io"
)

// DataSource defines the interface for record extraction.
// Implementations stream records from a source such as a CSV object.
type DataSource interface {
	// Read returns the next record or io.EOF when no more records are available.
	Read(ctx context.Context) (Record, error)
	// Close releases any resources held by the data source.
	Close() error
}

// DataSink defines the interface for record loading.
type DataSink interface {
	// Write outputs a single record to the sink.
	Write(ctx context.Context, record Record) error
	// Flush ensures all buffered data is written to the sink.
	Flush() error
	// Close releases any resources held by the data sink.
	Close() error
}

// Transformer defines the interface for record transformation operations.
type Transformer interface {
	// Transform applies the transformation to a record and returns the result.
	Transform(ctx context.Context, record Record) (Record, error)
}

// Columnar is implemented by sources that know their column order up front.
type Columnar interface {
	Columns() []string
}

// ReadTable drains a DataSource into a Table and closes it.
// Column order comes from the source when it implements Columnar.
func ReadTable(ctx context.Context, src DataSource) (*Table, error) {
	defer src.Close()

	var table *Table
	if c, ok := src.(Columnar); ok {
		table = NewTable(c.Columns()...)
	} else {
		table = NewTable()
	}

	for {
		record, err := src.Read(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		table.Append(record)
	}
	return table, nil
}

// WriteTable writes every row of table to sink, then flushes and closes it.
func WriteTable(ctx context.Context, table *Table, sink DataSink) error {
	for _, row := range table.Rows {
		if err := sink.Write(ctx, row); err != nil {
			sink.Close()
			return err
		}
	}
	if err := sink.Flush(); err != nil {
		sink.Close()
		return err
	}
	return sink.Close()
}
