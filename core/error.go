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
	"errors"
	"fmt"
)

// Package core defines the error types shared by the pipeline stages.
//
// Stages do not recover from failures; errors are wrapped with context and returned to the caller.

var (
	// ErrMissingTable is returned when one of the expected logical tables was not supplied.
	ErrMissingTable = errors.New("missing table")
	// ErrDuplicateTable is returned when a logical table name is supplied more than once.
	ErrDuplicateTable = errors.New("duplicate table")
	// ErrMissingColumn is returned when a required column is absent from a table.
	ErrMissingColumn = errors.New("missing column")
)

// TableError reports a problem with a logical table name.
type TableError struct {
	Name string
	Err  error
}

func (e *TableError) Error() string {
	return fmt.Sprintf("table %q: %v", e.Name, e.Err)
}

func (e *TableError) Unwrap() error {
	return e.Err
}

// ColumnError reports a problem with a named column.
type ColumnError struct {
	Table  string
	Column string
	Err    error
}

func (e *ColumnError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("column %q: %v", e.Column, e.Err)
	}
	return fmt.Sprintf("table %q column %q: %v", e.Table, e.Column, e.Err)
}

func (e *ColumnError) Unwrap() error {
	return e.Err
}
