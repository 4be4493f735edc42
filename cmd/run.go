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

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"

	"github.com/aaronlmathis/ingest"
	"github.com/aaronlmathis/ingest/config"
	"github.com/aaronlmathis/ingest/logger"
	"github.com/aaronlmathis/ingest/storage"
)

// newCloudStore builds the object store for the configured scheme.
// Tests replace it to avoid network access.
var newCloudStore = func(ctx context.Context, sc config.StorageConfig) (storage.Store, error) {
	switch sc.Scheme {
	case storage.SchemeMemory:
		return storage.NewMemoryStore(), nil
	case storage.SchemeGCS:
		if sc.Endpoint == "" {
			sc.Endpoint = storage.GCSEndpoint
		}
		if sc.Region == "" {
			sc.Region = "auto"
		}
	}

	opts := []storage.StoreOptionS3{
		storage.WithS3Region(sc.Region),
		storage.WithS3Profile(sc.Profile),
		storage.WithS3Endpoint(sc.Endpoint),
		storage.WithS3PathStyle(sc.PathStyle),
	}
	if sc.AccessKeyID != "" {
		opts = append(opts, storage.WithS3Credentials(aws.Credentials{
			AccessKeyID:     sc.AccessKeyID,
			SecretAccessKey: sc.SecretAccessKey,
		}))
	}
	return storage.NewS3Store(ctx, opts...)
}

func newRunCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the import, merge and export stages once.",
		Long: `
Imports every configured dataset, merges the sales log with items and item
categories, and exports the merged table to the cloud bucket and then to the
local export folder.

With --dry-run the datasets are read as usual but nothing is written; the
objects that would have been written are listed instead.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}
			dryRun, err := cmd.Flags().GetBool("dry-run")
			if err != nil {
				return fmt.Errorf("problem getting dry-run flag: %v", err)
			}
			return runPipeline(cmd.Context(), path, cmd, dryRun, stdout, stderr)
		},
	}
	flags := runCmd.Flags()
	flags.Bool("parallel", false, "Import datasets concurrently.")
	flags.Bool("dry-run", false, "Read inputs but capture outputs in memory instead of writing them.")

	return runCmd
}

func runPipeline(ctx context.Context, path string, cmd *cobra.Command, dryRun bool, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(stderr, cfg.Log)
	if err != nil {
		return err
	}

	cloud, err := newCloudStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("creating %s store: %w", cfg.Storage.Scheme, err)
	}
	router := storage.NewRouter().Register(cfg.Storage.Scheme, cloud)

	var store storage.Store = router
	var dry *storage.DryRunStore
	if dryRun {
		dry = storage.NewDryRunStore(router)
		store = dry
	}

	p, err := ingest.NewPipelineFromConfig(cfg, store, log)
	if err != nil {
		return err
	}
	result, err := p.Execute(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "run %s: %d rows exported in %s\n", result.RunID, result.Merged.Len(), result.Duration)
	if dry != nil {
		for _, uri := range dry.Written().Keys() {
			fmt.Fprintf(stdout, "dry run: would write %s\n", uri)
		}
	}
	return nil
}
