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

package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/ingest/config"
	"github.com/aaronlmathis/ingest/core"
	"github.com/aaronlmathis/ingest/merge"
	"github.com/aaronlmathis/ingest/storage"
)

const (
	salesCSV      = "item_id,date,qty\n1,2013-01-02,2\n1,2013-01-02,2\n2,03.01.2013,1\n7,2013-01-04,5\n"
	itemsCSV      = "item_id,item_category_id\n1,10\n2,20\n"
	categoriesCSV = "item_category_id,name\n10,Games\n20,Music\n"

	wantMerged = "item_id,date,qty,item_category_id,name\n" +
		"1,2013-01-02,2,10,Games\n" +
		"2,2013-01-03,1,20,Music\n" +
		"7,2013-01-04,5,,\n"
)

func testDatasets() []core.DatasetDescriptor {
	return []core.DatasetDescriptor{
		{BucketName: "raw", ImportDataFolder: "2013", Filename: "sales_train.csv", DFName: merge.SalesLogName},
		{BucketName: "raw", ImportDataFolder: "2013", Filename: "items.csv", DFName: merge.ItemsName},
		{BucketName: "raw", ImportDataFolder: "2013", Filename: "item_categories.csv", DFName: merge.CategoriesName},
	}
}

func testStores(t *testing.T) (*storage.MemoryStore, *storage.Router) {
	t.Helper()
	cloud := storage.NewMemoryStore()
	cloud.Put("gs://raw/2013/sales_train.csv", []byte(salesCSV))
	cloud.Put("gs://raw/2013/items.csv", []byte(itemsCSV))
	cloud.Put("gs://raw/2013/item_categories.csv", []byte(categoriesCSV))
	return cloud, storage.NewRouter().Register(storage.SchemeGCS, cloud)
}

func TestPipeline_Execute(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		dir := t.TempDir()
		cloud, router := testStores(t)

		p, err := NewPipeline(router).
			Import(testDatasets()...).
			ExportTo(core.ExportDescriptor{
				BucketName:        "processed",
				ExportDataFolder:  "merged",
				LocalExportFolder: dir,
				Filename:          "merged.csv",
			}).
			WithParallelImports(parallel).
			Build()
		require.NoError(t, err)

		result, err := p.Execute(context.Background())
		require.NoError(t, err)

		_, err = uuid.Parse(result.RunID)
		assert.NoError(t, err)
		require.Len(t, result.Imported, 3)
		assert.Equal(t, 3, result.Imported[0].Table.Len())
		assert.Equal(t, []string{"item_id", "date", "qty", "item_category_id", "name"}, result.Merged.Columns)

		cloudData, ok := cloud.Get("gs://processed/merged/merged.csv")
		require.True(t, ok)
		assert.Equal(t, wantMerged, string(cloudData))

		localData, err := os.ReadFile(filepath.Join(dir, "merged.csv"))
		require.NoError(t, err)
		assert.Equal(t, cloudData, localData)
	}
}

func TestPipeline_MissingDataset(t *testing.T) {
	_, router := testStores(t)

	p, err := NewPipeline(router).
		Import(testDatasets()[:2]...).
		ExportTo(core.ExportDescriptor{BucketName: "processed", LocalExportFolder: t.TempDir(), Filename: "merged.csv"}).
		Build()
	require.NoError(t, err)

	_, err = p.Execute(context.Background())
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "merge", stageErr.Stage)
	assert.ErrorIs(t, err, core.ErrMissingTable)
}

func TestPipeline_ImportFailure(t *testing.T) {
	router := storage.NewRouter().Register(storage.SchemeGCS, storage.NewMemoryStore())

	p, err := NewPipeline(router).
		Import(testDatasets()...).
		ExportTo(core.ExportDescriptor{BucketName: "processed", LocalExportFolder: t.TempDir(), Filename: "merged.csv"}).
		Build()
	require.NoError(t, err)

	_, err = p.Execute(context.Background())
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "import", stageErr.Stage)
}

func TestPipelineBuilder_Validation(t *testing.T) {
	_, err := NewPipeline(nil).Import(testDatasets()...).ExportTo(core.ExportDescriptor{Filename: "m.csv"}).Build()
	assert.ErrorContains(t, err, "requires a store")

	_, router := testStores(t)
	_, err = NewPipeline(router).ExportTo(core.ExportDescriptor{Filename: "m.csv"}).Build()
	assert.ErrorContains(t, err, "at least one dataset")

	_, err = NewPipeline(router).Import(testDatasets()...).Build()
	assert.ErrorContains(t, err, "export filename")
}

func TestNewPipelineFromConfig(t *testing.T) {
	dir := t.TempDir()
	cloud, router := testStores(t)

	cfg := config.Default()
	cfg.Datasets = testDatasets()
	cfg.Export = core.ExportDescriptor{
		BucketName:        "processed",
		LocalExportFolder: dir,
		Filename:          "merged.csv",
		Parquet:           true,
	}

	p, err := NewPipelineFromConfig(&cfg, router, nil)
	require.NoError(t, err)

	_, err = p.Execute(context.Background())
	require.NoError(t, err)

	_, ok := cloud.Get("gs://processed/merged.parquet")
	assert.True(t, ok)
	_, err = os.Stat(filepath.Join(dir, "merged.parquet"))
	assert.NoError(t, err)

	cfg.Datasets = nil
	_, err = NewPipelineFromConfig(&cfg, router, nil)
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestPipeline_MissingJoinColumn(t *testing.T) {
	cloud, router := testStores(t)
	cloud.Put("gs://raw/2013/items.csv", []byte("item_id,category\n1,10\n"))

	p, err := NewPipeline(router).
		Import(testDatasets()...).
		ExportTo(core.ExportDescriptor{BucketName: "processed", LocalExportFolder: t.TempDir(), Filename: "merged.csv"}).
		Build()
	require.NoError(t, err)

	_, err = p.Execute(context.Background())
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "merge", stageErr.Stage)
	assert.ErrorIs(t, err, core.ErrMissingColumn)
	assert.ErrorContains(t, err, "item_category_id")
}
