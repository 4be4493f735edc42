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

package storage

import (
	"context"
	"io"
)

// DryRunStore reads from an underlying Store and captures every write in memory.
type DryRunStore struct {
	source  Store
	written *MemoryStore
}

// NewDryRunStore wraps source so that nothing is written to it.
func NewDryRunStore(source Store) *DryRunStore {
	return &DryRunStore{source: source, written: NewMemoryStore()}
}

// Open implements Store. Objects written during the run shadow the source.
func (d *DryRunStore) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if _, ok := d.written.Get(uri); ok {
		return d.written.Open(ctx, uri)
	}
	return d.source.Open(ctx, uri)
}

// Create implements Store.
func (d *DryRunStore) Create(ctx context.Context, uri string) (io.WriteCloser, error) {
	return d.written.Create(ctx, uri)
}

// Written returns the captured objects.
func (d *DryRunStore) Written() *MemoryStore {
	return d.written
}
