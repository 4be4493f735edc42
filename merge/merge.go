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

// Package merge combines the sales log, items and item category tables into one.
package merge

import (
	"context"
	"fmt"
	"time"

	"github.com/aaronlmathis/ingest/core"
	"github.com/aaronlmathis/ingest/logger"
	"github.com/aaronlmathis/ingest/transform"
)

// Logical names of the three input tables.
const (
	SalesLogName   = "df_sl"
	ItemsName      = "df_it"
	CategoriesName = "df_ic"
)

// Inputs holds the three tables consumed by Merge.
type Inputs struct {
	SalesLog   *core.Table
	Items      *core.Table
	Categories *core.Table
}

// NewInputs assigns named tables to their slots by logical name.
// Names other than the three expected ones are ignored. A missing or repeated
// expected name is an error.
func NewInputs(tables ...core.NamedTable) (Inputs, error) {
	var in Inputs
	slots := map[string]**core.Table{
		SalesLogName:   &in.SalesLog,
		ItemsName:      &in.Items,
		CategoriesName: &in.Categories,
	}

	for _, nt := range tables {
		slot, ok := slots[nt.Name]
		if !ok {
			continue
		}
		if *slot != nil {
			return Inputs{}, &core.TableError{Name: nt.Name, Err: core.ErrDuplicateTable}
		}
		if nt.Table == nil {
			return Inputs{}, &core.TableError{Name: nt.Name, Err: fmt.Errorf("nil table")}
		}
		*slot = nt.Table
	}

	for _, name := range []string{SalesLogName, ItemsName, CategoriesName} {
		if *slots[name] == nil {
			return Inputs{}, &core.TableError{Name: name, Err: core.ErrMissingTable}
		}
	}
	return in, nil
}

// Config names the join keys and the date column.
type Config struct {
	CategoryKey string   `mapstructure:"category_key"`
	ItemKey     string   `mapstructure:"item_key"`
	DateColumn  string   `mapstructure:"date_column"`
	DateLayouts []string `mapstructure:"date_layouts"`
}

// DefaultConfig returns the key and column names of the sales datasets.
func DefaultConfig() Config {
	return Config{
		CategoryKey: "item_category_id",
		ItemKey:     "item_id",
		DateColumn:  "date",
		DateLayouts: append([]string(nil), transform.DefaultDateLayouts...),
	}
}

// MergeError wraps a failed merge step.
type MergeError struct {
	Step string
	Err  error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge %s: %v", e.Step, e.Err)
}

func (e *MergeError) Unwrap() error {
	return e.Err
}

// Merger joins the three input tables.
type Merger struct {
	config Config
	logger logger.Logger
}

// MergerOption configures a Merger.
type MergerOption func(*Merger)

// WithLogger sets the logger used by the Merger.
func WithLogger(l logger.Logger) MergerOption {
	return func(m *Merger) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithDefaults returns c with empty fields taken from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.CategoryKey == "" {
		c.CategoryKey = def.CategoryKey
	}
	if c.ItemKey == "" {
		c.ItemKey = def.ItemKey
	}
	if c.DateColumn == "" {
		c.DateColumn = def.DateColumn
	}
	if len(c.DateLayouts) == 0 {
		c.DateLayouts = def.DateLayouts
	}
	return c
}

// NewMerger creates a Merger. Empty config fields fall back to DefaultConfig.
func NewMerger(config Config, opts ...MergerOption) *Merger {
	m := &Merger{config: config.WithDefaults(), logger: logger.NopLogger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Merge left joins items to categories, then the sales log to that result,
// and converts the date column to time.Time. The inputs are not modified.
// Every table in in must be set.
func (m *Merger) Merge(ctx context.Context, in Inputs) (*core.Table, error) {
	start := time.Now()

	for _, slot := range []struct {
		name  string
		table *core.Table
	}{
		{SalesLogName, in.SalesLog},
		{ItemsName, in.Items},
		{CategoriesName, in.Categories},
	} {
		if slot.table == nil {
			return nil, &MergeError{Step: "validate", Err: &core.TableError{Name: slot.name, Err: core.ErrMissingTable}}
		}
	}

	items, err := LeftJoin(ctx, in.Items, in.Categories, m.config.CategoryKey)
	if err != nil {
		return nil, &MergeError{Step: "join_item_categories", Err: err}
	}
	m.logger.Debugf("joined %d items with %d categories on %s", in.Items.Len(), in.Categories.Len(), m.config.CategoryKey)

	merged, err := LeftJoin(ctx, in.SalesLog, items, m.config.ItemKey)
	if err != nil {
		return nil, &MergeError{Step: "join_sales_items", Err: err}
	}
	m.logger.Debugf("joined %d sales rows with items on %s", in.SalesLog.Len(), m.config.ItemKey)

	if !merged.HasColumn(m.config.DateColumn) {
		return nil, &MergeError{
			Step: "convert_date",
			Err:  &core.ColumnError{Table: SalesLogName, Column: m.config.DateColumn, Err: core.ErrMissingColumn},
		}
	}
	merged, err = transform.Apply(ctx, merged, transform.ToDate(m.config.DateColumn, m.config.DateLayouts...))
	if err != nil {
		return nil, &MergeError{Step: "convert_date", Err: err}
	}

	m.logger.Infof("merged %d rows, %d columns in %s", merged.Len(), len(merged.Columns), time.Since(start))
	return merged, nil
}
