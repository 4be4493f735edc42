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

// Package importer loads CSV datasets from object storage into deduplicated tables.
package importer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aaronlmathis/ingest/core"
	"github.com/aaronlmathis/ingest/logger"
	"github.com/aaronlmathis/ingest/readers"
	"github.com/aaronlmathis/ingest/storage"
)

// ImportError wraps a failed import with the operation and object location.
type ImportError struct {
	Op  string
	URI string
	Err error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import %s %s: %v", e.Op, e.URI, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// Importer reads datasets through a storage.Store.
type Importer struct {
	store      storage.Store
	scheme     string
	logger     logger.Logger
	parallel   bool
	csvOptions []readers.ReaderOptionCSV
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithScheme sets the URI scheme used to address datasets. Defaults to gs.
func WithScheme(scheme string) ImporterOption {
	return func(i *Importer) {
		if scheme != "" {
			i.scheme = scheme
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) ImporterOption {
	return func(i *Importer) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithParallel makes ImportAll read datasets concurrently.
func WithParallel(parallel bool) ImporterOption {
	return func(i *Importer) { i.parallel = parallel }
}

// WithCSVOptions passes options through to the CSV reader.
func WithCSVOptions(opts ...readers.ReaderOptionCSV) ImporterOption {
	return func(i *Importer) { i.csvOptions = append(i.csvOptions, opts...) }
}

// NewImporter creates an Importer reading from store.
func NewImporter(store storage.Store, opts ...ImporterOption) *Importer {
	i := &Importer{
		store:  store,
		scheme: storage.SchemeGCS,
		logger: logger.NopLogger,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Import reads one dataset, drops exact duplicate rows keeping the first
// occurrence, and tags the result with the descriptor's logical name.
func (i *Importer) Import(ctx context.Context, desc core.DatasetDescriptor) (core.NamedTable, error) {
	if desc.DFName == "" {
		return core.NamedTable{}, &ImportError{Op: "validate", URI: desc.Filename, Err: fmt.Errorf("dataset has no logical name")}
	}

	uri := desc.URI(i.scheme)
	log := i.logger.WithField("dataset", desc.DFName)
	start := time.Now()

	r, err := i.store.Open(ctx, uri)
	if err != nil {
		return core.NamedTable{}, &ImportError{Op: "open", URI: uri, Err: err}
	}

	table, err := readers.ReadCSVTable(ctx, r, i.csvOptions...)
	if err != nil {
		return core.NamedTable{}, &ImportError{Op: "parse", URI: uri, Err: err}
	}

	deduped := table.Dedupe()
	if dropped := table.Len() - deduped.Len(); dropped > 0 {
		log.Debugf("dropped %d duplicate rows", dropped)
	}
	log.Infof("imported %s: %d rows, %d columns in %s", uri, deduped.Len(), len(deduped.Columns), time.Since(start))

	return core.NamedTable{Name: desc.DFName, Table: deduped}, nil
}

// ImportAll imports every descriptor. The result follows the order of descs.
// With parallel imports enabled the first failure cancels the rest.
func (i *Importer) ImportAll(ctx context.Context, descs ...core.DatasetDescriptor) ([]core.NamedTable, error) {
	results := make([]core.NamedTable, len(descs))

	if !i.parallel {
		for idx, desc := range descs {
			nt, err := i.Import(ctx, desc)
			if err != nil {
				return nil, err
			}
			results[idx] = nt
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for idx, desc := range descs {
		idx, desc := idx, desc
		g.Go(func() error {
			nt, err := i.Import(gctx, desc)
			if err != nil {
				return err
			}
			results[idx] = nt
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
