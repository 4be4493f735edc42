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

// Package storage provides URI-addressed object access for the pipeline.
//
// A Store opens objects for reading and creates them for writing. The Router
// dispatches on the URI scheme so that callers can mix cloud and local paths.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Store reads and writes whole objects addressed by URI.
type Store interface {
	// Open returns a reader over the object at uri.
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
	// Create returns a writer for the object at uri. The object is complete once Close returns nil.
	Create(ctx context.Context, uri string) (io.WriteCloser, error)
}

// Location is a parsed object URI.
type Location struct {
	Scheme string
	Bucket string
	Key    string
}

func (l Location) String() string {
	if l.Scheme == SchemeFile {
		return l.Key
	}
	return l.Scheme + "://" + l.Bucket + "/" + l.Key
}

// Well-known schemes.
const (
	SchemeS3     = "s3"
	SchemeGCS    = "gs"
	SchemeFile   = "file"
	SchemeMemory = "mem"
)

// ParseURI splits uri into scheme, bucket and key.
// A URI without a scheme is treated as a local file path.
func ParseURI(uri string) (Location, error) {
	if uri == "" {
		return Location{}, fmt.Errorf("empty uri")
	}
	if !strings.Contains(uri, "://") {
		return Location{Scheme: SchemeFile, Key: uri}, nil
	}

	scheme, rest, _ := strings.Cut(uri, "://")
	scheme = strings.ToLower(scheme)
	if scheme == "" {
		return Location{}, fmt.Errorf("uri %q has no scheme", uri)
	}
	if scheme == SchemeFile {
		return Location{Scheme: SchemeFile, Key: rest}, nil
	}

	// The key is kept byte for byte: object names may contain '#', '?' or '%'.
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Location{}, fmt.Errorf("uri %q has no bucket", uri)
	}
	if key == "" {
		return Location{}, fmt.Errorf("uri %q has no object key", uri)
	}
	return Location{Scheme: scheme, Bucket: bucket, Key: key}, nil
}

// Router dispatches Open and Create calls to the Store registered for the URI scheme.
type Router struct {
	mu     sync.RWMutex
	stores map[string]Store
}

// NewRouter creates a Router with a LocalStore registered for file paths.
func NewRouter() *Router {
	return &Router{
		stores: map[string]Store{SchemeFile: NewLocalStore()},
	}
}

// Register associates store with scheme, replacing any previous registration.
func (r *Router) Register(scheme string, store Store) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[scheme] = store
	return r
}

// Open implements Store.
func (r *Router) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	store, err := r.storeFor(uri)
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, uri)
}

// Create implements Store.
func (r *Router) Create(ctx context.Context, uri string) (io.WriteCloser, error) {
	store, err := r.storeFor(uri)
	if err != nil {
		return nil, err
	}
	return store.Create(ctx, uri)
}

func (r *Router) storeFor(uri string) (Store, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	store, ok := r.stores[loc.Scheme]
	if !ok {
		return nil, fmt.Errorf("no store registered for scheme %q", loc.Scheme)
	}
	return store, nil
}
