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

package domains

import (
	"sync"
	"time"

	"github.com/Enybeatz/psycopg/internal/render"
	"github.com/Enybeatz/psycopg/internal/storages/directory"
	"github.com/Enybeatz/psycopg/internal/storages/s3"
)

var (
	Cfg  *Config
	once sync.Once
)

const (
	defaultDirectoryStoragePath = "/tmp"
	defaultStorageType          = "directory"

	defaultFetchSize  = 1
	defaultStreamSize = 100
)

func NewConfig() *Config {
	once.Do(
		func() {
			Cfg = &Config{
				Cursor: CursorConfig{
					Format:     "default",
					FetchSize:  defaultFetchSize,
					StreamSize: defaultStreamSize,
				},
				Output: render.Config{
					Format: render.TextFormatName,
				},
				Export: ExportConfig{
					Compression: true,
				},
				Storage: StorageConfig{
					Type: defaultStorageType,
					S3:   s3.NewConfig(),
					Directory: &directory.Config{
						Path: defaultDirectoryStoragePath,
					},
				},
			}
		},
	)
	return Cfg
}

type Config struct {
	Log      LogConfig      `mapstructure:"log" yaml:"log" json:"log"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database" json:"database"`
	Cursor   CursorConfig   `mapstructure:"cursor" yaml:"cursor" json:"cursor"`
	Output   render.Config  `mapstructure:"output" yaml:"output" json:"output"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage" json:"storage"`
	Export   ExportConfig   `mapstructure:"export" yaml:"export" json:"export"`
}

type LogConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format,omitempty"`
	Level  string `mapstructure:"level" yaml:"level" json:"level,omitempty"`
}

type DatabaseConfig struct {
	// URI is a libpq connection string or URI.
	URI              string        `mapstructure:"uri" yaml:"uri" json:"uri,omitempty"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout" json:"connect_timeout,omitempty"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout" yaml:"statement_timeout" json:"statement_timeout,omitempty"`
}

// CursorConfig carries the cursor defaults applied by the CLI commands.
type CursorConfig struct {
	Format     string `mapstructure:"format" yaml:"format" json:"format,omitempty"`
	FetchSize  int    `mapstructure:"fetch_size" yaml:"fetch_size" json:"fetch_size,omitempty"`
	StreamSize int    `mapstructure:"stream_size" yaml:"stream_size" json:"stream_size,omitempty"`
}

type StorageConfig struct {
	Type      string            `mapstructure:"type" yaml:"type" json:"type,omitempty"`
	S3        *s3.Config        `mapstructure:"s3"  json:"s3,omitempty" yaml:"s3"`
	Directory *directory.Config `mapstructure:"directory" json:"directory,omitempty" yaml:"directory"`
}

type ExportConfig struct {
	// Compression wraps every uploaded part in gzip framing.
	Compression bool `mapstructure:"compression" yaml:"compression" json:"compression,omitempty"`
	// UsePgzip switches the gzip framing to the parallel implementation.
	UsePgzip bool `mapstructure:"use_pgzip" yaml:"use_pgzip" json:"use_pgzip,omitempty"`
	// RowsPerPart splits the exported rows into objects of at most this
	// many rows each; zero means a single part.
	RowsPerPart int64 `mapstructure:"rows_per_part" yaml:"rows_per_part" json:"rows_per_part,omitempty"`
	// MaskColumns lists column names whose values are masked before
	// leaving the database host.
	MaskColumns []string `mapstructure:"mask_columns" yaml:"mask_columns" json:"mask_columns,omitempty"`
}
