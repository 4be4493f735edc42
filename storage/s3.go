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
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// GCSEndpoint is the S3-compatible XML API endpoint of Google Cloud Storage.
const GCSEndpoint = "https://storage.googleapis.com"

// S3StoreError provides structured error information for S3 store operations
type S3StoreError struct {
	Op  string // Operation that failed (e.g., "get_object", "put_object")
	URI string
	Err error
}

func (e *S3StoreError) Error() string {
	if e.URI == "" {
		return fmt.Sprintf("s3 store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("s3 store %s %s: %v", e.Op, e.URI, e.Err)
}

func (e *S3StoreError) Unwrap() error {
	return e.Err
}

// S3StoreStats holds statistics about the store's object traffic
type S3StoreStats struct {
	ObjectsRead    int64
	ObjectsWritten int64
	BytesWritten   int64
	WriteDuration  time.Duration
	LastWriteTime  time.Time
}

// S3StoreOptions configures the S3 store
type S3StoreOptions struct {
	Region         string          // AWS region, "auto" for GCS interoperability
	Profile        string          // Shared config profile
	Credentials    aws.Credentials // Explicit credentials (HMAC keys for GCS)
	EndpointURL    string          // Custom endpoint for S3-compatible services
	ForcePathStyle bool            // Use path-style addressing
}

// StoreOptionS3 represents a configuration function for S3Store
type StoreOptionS3 func(*S3StoreOptions)

func WithS3Region(region string) StoreOptionS3 {
	return func(opts *S3StoreOptions) {
		opts.Region = region
	}
}

func WithS3Profile(profile string) StoreOptionS3 {
	return func(opts *S3StoreOptions) {
		opts.Profile = profile
	}
}

func WithS3Credentials(creds aws.Credentials) StoreOptionS3 {
	return func(opts *S3StoreOptions) {
		opts.Credentials = creds
	}
}

func WithS3Endpoint(endpoint string) StoreOptionS3 {
	return func(opts *S3StoreOptions) {
		opts.EndpointURL = endpoint
	}
}

func WithS3PathStyle(pathStyle bool) StoreOptionS3 {
	return func(opts *S3StoreOptions) {
		opts.ForcePathStyle = pathStyle
	}
}

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store implements Store for Amazon S3 and S3-compatible services such as GCS.
type S3Store struct {
	client S3API
	stats  S3StoreStats
	mu     sync.Mutex
}

// NewS3Store creates an S3 store from the default AWS configuration chain and options.
func NewS3Store(ctx context.Context, options ...StoreOptionS3) (*S3Store, error) {
	var opts S3StoreOptions
	for _, option := range options {
		option(&opts)
	}

	cfg, err := createAWSConfig(ctx, opts)
	if err != nil {
		return nil, &S3StoreError{Op: "create_aws_config", Err: err}
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.EndpointURL != "" {
			o.BaseEndpoint = aws.String(opts.EndpointURL)
			// Non-AWS endpoints reject the optional flexible checksum headers.
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}
		o.UsePathStyle = opts.ForcePathStyle
	})

	return NewS3StoreWithClient(client), nil
}

// NewS3StoreWithClient creates an S3 store around an existing client.
func NewS3StoreWithClient(client S3API) *S3Store {
	return &S3Store{client: client}
}

// Open implements Store.
func (s *S3Store) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return nil, &S3StoreError{Op: "parse_uri", URI: uri, Err: err}
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, &S3StoreError{Op: "get_object", URI: uri, Err: err}
	}

	s.mu.Lock()
	s.stats.ObjectsRead++
	s.mu.Unlock()

	return result.Body, nil
}

// Create implements Store. The object is uploaded with a single PutObject when the writer is closed.
func (s *S3Store) Create(ctx context.Context, uri string) (io.WriteCloser, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return nil, &S3StoreError{Op: "parse_uri", URI: uri, Err: err}
	}
	return &s3ObjectWriter{ctx: ctx, store: s, loc: loc, uri: uri}, nil
}

// Stats returns store statistics
func (s *S3Store) Stats() S3StoreStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *S3Store) put(ctx context.Context, loc Location, uri string, data []byte) error {
	start := time.Now()

	input := &s3.PutObjectInput{
		Bucket:        aws.String(loc.Bucket),
		Key:           aws.String(loc.Key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if ct := contentType(loc.Key); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return &S3StoreError{Op: "put_object", URI: uri, Err: err}
	}

	s.mu.Lock()
	s.stats.ObjectsWritten++
	s.stats.BytesWritten += int64(len(data))
	s.stats.WriteDuration += time.Since(start)
	s.stats.LastWriteTime = time.Now()
	s.mu.Unlock()
	return nil
}

func contentType(key string) string {
	switch ext := strings.ToLower(filepath.Ext(key)); ext {
	case ".csv":
		return "text/csv"
	case ".parquet":
		return "application/vnd.apache.parquet"
	default:
		return mime.TypeByExtension(ext)
	}
}

type s3ObjectWriter struct {
	ctx    context.Context
	store  *S3Store
	loc    Location
	uri    string
	buf    bytes.Buffer
	closed bool
}

func (w *s3ObjectWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, &S3StoreError{Op: "write", URI: w.uri, Err: fmt.Errorf("writer is closed")}
	}
	return w.buf.Write(p)
}

func (w *s3ObjectWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.store.put(w.ctx, w.loc, w.uri, w.buf.Bytes())
}

// createAWSConfig creates AWS configuration from options
func createAWSConfig(ctx context.Context, opts S3StoreOptions) (aws.Config, error) {
	configOpts := []func(*config.LoadOptions) error{}

	if opts.Region != "" {
		configOpts = append(configOpts, config.WithRegion(opts.Region))
	}

	if opts.Profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, err
	}

	if opts.Credentials.AccessKeyID != "" {
		cfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(
				opts.Credentials.AccessKeyID,
				opts.Credentials.SecretAccessKey,
				opts.Credentials.SessionToken,
			),
		)
	}

	return cfg, nil
}
