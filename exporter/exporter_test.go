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

package exporter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/ingest/core"
	"github.com/aaronlmathis/ingest/logger"
	"github.com/aaronlmathis/ingest/readers"
	"github.com/aaronlmathis/ingest/storage"
)

func mergedTable() *core.Table {
	table := core.NewTable("item_id", "date", "qty", "item_category_id", "name")
	table.Append(core.Record{
		"item_id": 1, "date": time.Date(2013, 1, 2, 0, 0, 0, 0, time.UTC), "qty": 2,
		"item_category_id": 10, "name": "Games",
	})
	table.Append(core.Record{
		"item_id": 7, "date": time.Date(2013, 1, 4, 0, 0, 0, 0, time.UTC), "qty": 5,
		"item_category_id": nil, "name": nil,
	})
	return table
}

const wantCSV = "item_id,date,qty,item_category_id,name\n" +
	"1,2013-01-02,2,10,Games\n" +
	"7,2013-01-04,5,,\n"

func TestExport_WritesIdenticalCopies(t *testing.T) {
	dir := t.TempDir()
	cloud := storage.NewMemoryStore()
	router := storage.NewRouter().Register(storage.SchemeGCS, cloud)

	var logs bytes.Buffer
	log, err := logger.New(&logs, logger.Options{Level: "info", Format: "text"})
	require.NoError(t, err)

	table := mergedTable()
	desc := core.ExportDescriptor{
		BucketName:        "out-bucket",
		ExportDataFolder:  "merged",
		LocalExportFolder: dir,
		Filename:          "merged.csv",
	}

	out, err := NewExporter(router, WithLogger(log)).Export(context.Background(), table, desc)
	require.NoError(t, err)
	assert.Same(t, table, out)

	cloudData, ok := cloud.Get("gs://out-bucket/merged/merged.csv")
	require.True(t, ok)
	assert.Equal(t, wantCSV, string(cloudData))

	localData, err := os.ReadFile(filepath.Join(dir, "merged.csv"))
	require.NoError(t, err)
	assert.Equal(t, cloudData, localData)

	output := logs.String()
	gcsAt := strings.Index(output, "Exporting merged.csv to GCS")
	localAt := strings.Index(output, "Exporting merged.csv to "+dir)
	require.GreaterOrEqual(t, gcsAt, 0)
	require.GreaterOrEqual(t, localAt, 0)
	assert.Less(t, gcsAt, localAt)
}

func TestExport_TextCellsRoundTrip(t *testing.T) {
	const src = "item_category_id,name\n1,T\n2,f\n3,inf\n4,2.5\n5,\n"

	table, err := readers.ReadCSVTable(context.Background(), io.NopCloser(strings.NewReader(src)))
	require.NoError(t, err)

	cloud := storage.NewMemoryStore()
	router := storage.NewRouter().Register(storage.SchemeGCS, cloud)
	_, err = NewExporter(router).Export(context.Background(), table, core.ExportDescriptor{
		BucketName:        "out-bucket",
		LocalExportFolder: t.TempDir(),
		Filename:          "categories.csv",
	})
	require.NoError(t, err)

	data, ok := cloud.Get("gs://out-bucket/categories.csv")
	require.True(t, ok)
	assert.Equal(t, src, string(data))
}

func TestExport_Parquet(t *testing.T) {
	store := storage.NewMemoryStore()
	desc := core.ExportDescriptor{
		BucketName:        "b",
		ExportDataFolder:  "f",
		LocalExportFolder: "mem://local/export",
		Filename:          "merged.csv",
		Parquet:           true,
	}

	_, err := NewExporter(store, WithScheme(storage.SchemeMemory)).Export(context.Background(), mergedTable(), desc)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"mem://b/f/merged.csv",
		"mem://b/f/merged.parquet",
		"mem://local/export/merged.csv",
		"mem://local/export/merged.parquet",
	}, store.Keys())

	cloudPq, _ := store.Get("mem://b/f/merged.parquet")
	localPq, _ := store.Get("mem://local/export/merged.parquet")
	assert.Equal(t, []byte("PAR1"), cloudPq[:4])
	assert.Equal(t, cloudPq, localPq)
}

type failingStore struct {
	err error
}

func (f failingStore) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	return nil, f.err
}

func (f failingStore) Create(ctx context.Context, uri string) (io.WriteCloser, error) {
	return nil, f.err
}

func TestExport_LocalFailureKeepsCloudCopy(t *testing.T) {
	diskFull := errors.New("disk full")
	cloud := storage.NewMemoryStore()
	router := storage.NewRouter().
		Register(storage.SchemeGCS, cloud).
		Register(storage.SchemeFile, failingStore{err: diskFull})

	desc := core.ExportDescriptor{
		BucketName:        "out-bucket",
		ExportDataFolder:  "merged",
		LocalExportFolder: "/var/export",
		Filename:          "merged.csv",
	}

	_, err := NewExporter(router).Export(context.Background(), mergedTable(), desc)
	var expErr *ExportError
	require.ErrorAs(t, err, &expErr)
	assert.Equal(t, "write_local", expErr.Op)
	assert.Equal(t, "/var/export/merged.csv", expErr.Destination)
	assert.ErrorIs(t, err, diskFull)

	_, ok := cloud.Get("gs://out-bucket/merged/merged.csv")
	assert.True(t, ok)
}

func TestExport_CloudFailureSkipsLocal(t *testing.T) {
	dir := t.TempDir()
	router := storage.NewRouter().Register(storage.SchemeGCS, failingStore{err: errors.New("denied")})

	desc := core.ExportDescriptor{
		BucketName:        "out-bucket",
		LocalExportFolder: dir,
		Filename:          "merged.csv",
	}

	_, err := NewExporter(router).Export(context.Background(), mergedTable(), desc)
	var expErr *ExportError
	require.ErrorAs(t, err, &expErr)
	assert.Equal(t, "write_cloud", expErr.Op)
	assert.Equal(t, "gs://out-bucket/merged.csv", expErr.Destination)

	_, statErr := os.Stat(filepath.Join(dir, "merged.csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExport_Validation(t *testing.T) {
	exp := NewExporter(storage.NewMemoryStore())

	_, err := exp.Export(context.Background(), nil, core.ExportDescriptor{Filename: "x.csv"})
	assert.ErrorContains(t, err, "nil table")

	_, err = exp.Export(context.Background(), mergedTable(), core.ExportDescriptor{})
	assert.ErrorContains(t, err, "filename is empty")
}

func TestParquetName(t *testing.T) {
	assert.Equal(t, "merged.parquet", parquetName("merged.csv"))
	assert.Equal(t, "merged.parquet", parquetName("merged"))
	assert.Equal(t, "a.b.parquet", parquetName("a.b.csv"))
}
