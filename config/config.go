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

// Package config loads pipeline configuration from a file, the environment and flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/aaronlmathis/ingest/core"
	"github.com/aaronlmathis/ingest/logger"
	"github.com/aaronlmathis/ingest/merge"
	"github.com/aaronlmathis/ingest/storage"
)

// EnvPrefix prefixes environment variables, e.g. INGEST_STORAGE_SCHEME.
const EnvPrefix = "INGEST"

// StorageConfig selects and configures the cloud object store.
type StorageConfig struct {
	Scheme          string `mapstructure:"scheme"` // gs, s3 or mem
	Region          string `mapstructure:"region"`
	Profile         string `mapstructure:"profile"`
	Endpoint        string `mapstructure:"endpoint"`
	PathStyle       bool   `mapstructure:"path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// Config is the full pipeline configuration.
type Config struct {
	Storage  StorageConfig            `mapstructure:"storage"`
	Datasets []core.DatasetDescriptor `mapstructure:"datasets"`
	Export   core.ExportDescriptor    `mapstructure:"export"`
	Merge    merge.Config             `mapstructure:"merge"`
	Log      logger.Options           `mapstructure:"log"`
	Parallel bool                     `mapstructure:"parallel"`
}

// Default returns a Config with every optional field set.
func Default() Config {
	return Config{
		Storage: StorageConfig{Scheme: storage.SchemeGCS},
		Merge:   merge.DefaultConfig(),
		Log:     logger.Options{Level: "info", Format: "text"},
	}
}

func setDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("storage.scheme", def.Storage.Scheme)
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.profile", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.path_style", false)
	v.SetDefault("storage.access_key_id", "")
	v.SetDefault("storage.secret_access_key", "")
	v.SetDefault("merge.category_key", def.Merge.CategoryKey)
	v.SetDefault("merge.item_key", def.Merge.ItemKey)
	v.SetDefault("merge.date_column", def.Merge.DateColumn)
	v.SetDefault("merge.date_layouts", def.Merge.DateLayouts)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("parallel", false)
}

// Load reads configuration in increasing priority: defaults, the file at
// path (if any), INGEST_* environment variables, then flags that were set.
// Flags are bound by name, so a flag named "parallel" overrides the
// "parallel" key.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading configuration file '%s': %v", path, err)
		}
	}

	if flags != nil {
		if f := flags.Lookup("parallel"); f != nil {
			if err := v.BindPFlag("parallel", f); err != nil {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	return &cfg, nil
}

// Validate reports every missing or inconsistent setting.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Scheme {
	case storage.SchemeGCS, storage.SchemeS3, storage.SchemeMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.scheme must be one of gs, s3, mem; got %q", c.Storage.Scheme))
	}
	if (c.Storage.AccessKeyID == "") != (c.Storage.SecretAccessKey == "") {
		errs = append(errs, errors.New("storage.access_key_id and storage.secret_access_key must be set together"))
	}

	if len(c.Datasets) == 0 {
		errs = append(errs, errors.New("at least one dataset is required"))
	}
	seen := make(map[string]bool, len(c.Datasets))
	for i, d := range c.Datasets {
		if d.BucketName == "" {
			errs = append(errs, fmt.Errorf("datasets[%d].bucket_name is required", i))
		}
		if d.Filename == "" {
			errs = append(errs, fmt.Errorf("datasets[%d].filename is required", i))
		}
		if d.DFName == "" {
			errs = append(errs, fmt.Errorf("datasets[%d].df_name is required", i))
		} else if seen[d.DFName] {
			errs = append(errs, fmt.Errorf("datasets[%d].df_name %q: %w", i, d.DFName, core.ErrDuplicateTable))
		}
		seen[d.DFName] = true
	}

	if c.Export.BucketName == "" {
		errs = append(errs, errors.New("export.bucket_name is required"))
	}
	if c.Export.Filename == "" {
		errs = append(errs, errors.New("export.filename is required"))
	}
	if c.Export.LocalExportFolder == "" {
		errs = append(errs, errors.New("export.local_export_folder is required"))
	}

	return errors.Join(errs...)
}
