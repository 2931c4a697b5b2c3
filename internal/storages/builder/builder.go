// Copyright 2023 Greenmask
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package builder

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Enybeatz/psycopg/internal/domains"
	"github.com/Enybeatz/psycopg/internal/storages"
	"github.com/Enybeatz/psycopg/internal/storages/directory"
	"github.com/Enybeatz/psycopg/internal/storages/s3"
)

func GetStorage(ctx context.Context, stCfg *domains.StorageConfig, logCfg *domains.LogConfig) (
	storages.Storager, error,
) {
	storageType := stCfg.Type
	if envCfg := os.Getenv("STORAGE_TYPE"); envCfg != "" {
		storageType = envCfg
	}
	switch storageType {
	case "directory":
		if err := stCfg.Directory.Validate(); err != nil {
			return nil, fmt.Errorf("directory storage config error: %w", err)
		}
		return directory.NewStorage(stCfg.Directory)
	case "s3":
		if err := stCfg.S3.Validate(); err != nil {
			return nil, fmt.Errorf("s3 storage config error: %w", err)
		}
		return s3.NewStorage(ctx, stCfg.S3, logCfg.Level)
	}
	return nil, fmt.Errorf("unknown storage type %q", storageType)
}

// GetStorageFromURI derives a storage from an output location: an
// "s3://bucket/prefix" URI selects the s3 backend reusing the configured
// credentials, anything else is a filesystem directory created on demand.
func GetStorageFromURI(ctx context.Context, uri string, cfg *domains.Config) (storages.Storager, error) {
	if after, ok := strings.CutPrefix(uri, "s3://"); ok {
		bucket, prefix, _ := strings.Cut(after, "/")
		if bucket == "" {
			return nil, fmt.Errorf("s3 URI %q has no bucket", uri)
		}
		s3Cfg := *cfg.Storage.S3
		s3Cfg.Bucket = bucket
		s3Cfg.Prefix = prefix
		return s3.NewStorage(ctx, &s3Cfg, cfg.Log.Level)
	}

	if err := os.MkdirAll(uri, 0750); err != nil {
		return nil, fmt.Errorf("cannot create output directory: %w", err)
	}
	return directory.NewStorage(&directory.Config{Path: uri})
}
