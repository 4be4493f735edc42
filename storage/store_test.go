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
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected Location
		wantErr  bool
	}{
		{
			name:     "gcs object",
			uri:      "gs://bucket/folder/file.csv",
			expected: Location{Scheme: "gs", Bucket: "bucket", Key: "folder/file.csv"},
		},
		{
			name:     "s3 object at bucket root",
			uri:      "s3://bucket/file.csv",
			expected: Location{Scheme: "s3", Bucket: "bucket", Key: "file.csv"},
		},
		{
			name:     "bare relative path",
			uri:      "export/file.csv",
			expected: Location{Scheme: "file", Key: "export/file.csv"},
		},
		{
			name:     "file uri",
			uri:      "file:///tmp/file.csv",
			expected: Location{Scheme: "file", Key: "/tmp/file.csv"},
		},
		{
			name:     "key with reserved characters",
			uri:      "gs://bucket/f/sales#1.csv",
			expected: Location{Scheme: "gs", Bucket: "bucket", Key: "f/sales#1.csv"},
		},
		{
			name:     "key kept undecoded",
			uri:      "s3://bucket/a%20b?v=1.csv",
			expected: Location{Scheme: "s3", Bucket: "bucket", Key: "a%20b?v=1.csv"},
		},
		{name: "empty", uri: "", wantErr: true},
		{name: "missing scheme", uri: "://bucket/file.csv", wantErr: true},
		{name: "missing key", uri: "gs://bucket/", wantErr: true},
		{name: "missing bucket", uri: "s3:///file.csv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := ParseURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, loc)
		})
	}
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	w, err := store.Create(ctx, "mem://b/k.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte("a,b\n1,2\n"))
	require.NoError(t, err)

	// Not visible until closed.
	_, ok := store.Get("mem://b/k.csv")
	assert.False(t, ok)

	require.NoError(t, w.Close())

	r, err := store.Open(ctx, "mem://b/k.csv")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))
	assert.Equal(t, []string{"mem://b/k.csv"}, store.Keys())

	_, err = store.Open(ctx, "mem://b/missing.csv")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestLocalStore_CreatesDirectories(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dir", "out.csv")
	store := NewLocalStore()

	w, err := store.Create(ctx, path)
	require.NoError(t, err)
	_, err = w.Write([]byte("x\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x\n", string(data))

	r, err := store.Open(ctx, "file://"+path)
	require.NoError(t, err)
	defer r.Close()

	_, err = store.Open(ctx, "gs://bucket/key.csv")
	assert.Error(t, err)
}

func TestRouter_DispatchesByScheme(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	mem.Put("gs://bucket/in.csv", []byte("id\n1\n"))

	router := NewRouter().Register(SchemeGCS, mem)

	r, err := router.Open(ctx, "gs://bucket/in.csv")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "id\n1\n", string(data))

	_, err = router.Open(ctx, "s3://bucket/in.csv")
	assert.ErrorContains(t, err, `no store registered for scheme "s3"`)

	local := filepath.Join(t.TempDir(), "out.csv")
	w, err := router.Create(ctx, local)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	_, err = os.Stat(local)
	assert.NoError(t, err)
}

type fakeS3 struct {
	objects map[string][]byte
	putErr  error
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = data
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store_OpenAndCreate(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	client.objects["bucket/raw/items.csv"] = []byte("item_id\n1\n")
	store := NewS3StoreWithClient(client)

	r, err := store.Open(ctx, "gs://bucket/raw/items.csv")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "item_id\n1\n", string(data))

	w, err := store.Create(ctx, "gs://bucket/out/merged.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte("a\n"))
	require.NoError(t, err)
	_, ok := client.objects["bucket/out/merged.csv"]
	assert.False(t, ok, "object must not be uploaded before Close")

	require.NoError(t, w.Close())
	assert.Equal(t, []byte("a\n"), client.objects["bucket/out/merged.csv"])
	assert.Contains(t, client.types["bucket/out/merged.csv"], "csv")

	stats := store.Stats()
	assert.Equal(t, int64(1), stats.ObjectsRead)
	assert.Equal(t, int64(1), stats.ObjectsWritten)
	assert.Equal(t, int64(2), stats.BytesWritten)
}

func TestS3Store_Errors(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	store := NewS3StoreWithClient(client)

	_, err := store.Open(ctx, "gs://bucket/missing.csv")
	var storeErr *S3StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "get_object", storeErr.Op)
	assert.Equal(t, "gs://bucket/missing.csv", storeErr.URI)

	client.putErr = errors.New("AccessDenied")
	w, err := store.Create(ctx, "gs://bucket/out.csv")
	require.NoError(t, err)
	err = w.Close()
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "put_object", storeErr.Op)
	assert.ErrorContains(t, err, "AccessDenied")
}

func TestDryRunStore(t *testing.T) {
	ctx := context.Background()
	source := NewMemoryStore()
	source.Put("gs://b/in.csv", []byte("a\n1\n"))

	dry := NewDryRunStore(source)

	r, err := dry.Open(ctx, "gs://b/in.csv")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "a\n1\n", string(data))

	w, err := dry.Create(ctx, "gs://b/out.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, ok := source.Get("gs://b/out.csv")
	assert.False(t, ok)
	assert.Equal(t, []string{"gs://b/out.csv"}, dry.Written().Keys())

	r, err = dry.Open(ctx, "gs://b/out.csv")
	require.NoError(t, err)
	data, _ = io.ReadAll(r)
	assert.Equal(t, "x", string(data))
}
