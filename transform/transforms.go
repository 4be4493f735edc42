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

package transform

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aaronlmathis/ingest/core"
)

// Package transform provides column coercions applied to table rows.
//
// All functions return core.Transformer implementations; Apply runs one over a whole table.

// DefaultDateLayouts are tried in order when no layouts are configured.
// Day-first dotted dates are accepted because the sales logs use them.
var DefaultDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02.01.2006",
	"01/02/2006",
	"20060102",
}

// ToDate creates a transformer that converts a text field to a time.Time.
// Each layout is tried in order; a value matching none of them is an error.
// Missing and nil fields are left as they are.
func ToDate(field string, layouts ...string) core.Transformer {
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts
	}
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		value, exists := record[field]
		if !exists || value == nil {
			return record, nil
		}

		result := record.Clone()
		switch v := value.(type) {
		case time.Time:
			result[field] = v
		default:
			parsed, err := ParseDate(fmt.Sprintf("%v", v), layouts...)
			if err != nil {
				return nil, fmt.Errorf("failed to parse date field %s: %w", field, err)
			}
			result[field] = parsed
		}
		return result, nil
	})
}

// ParseDate parses s with the first matching layout. A value carrying an
// offset keeps it, so its calendar day is the one written in s; values
// without an offset are in UTC.
func ParseDate(s string, layouts ...string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("value %q matches none of the layouts %v", s, layouts)
}

// Apply runs t over every row of table, returning a new table with the same column order.
func Apply(ctx context.Context, table *core.Table, t core.Transformer) (*core.Table, error) {
	out := &core.Table{
		Columns: append([]string(nil), table.Columns...),
		Rows:    make([]core.Record, 0, len(table.Rows)),
	}
	for i, row := range table.Rows {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		transformed, err := t.Transform(ctx, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out.Rows = append(out.Rows, transformed)
	}
	return out, nil
}
