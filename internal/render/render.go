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

// Package render turns fetched query rows into terminal output. A RowWriter
// receives the column names once and then every row in order, so big result
// sets stream through without being buffered whole.
package render

import (
	"encoding/hex"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

const (
	TextFormatName     = "text"
	JsonFormatName     = "json"
	YamlFormatName     = "yaml"
	TemplateFormatName = "template"
)

// NullType marks SQL NULL values inside template contexts so that the isNull
// and sqlCoalesce template functions can tell them apart from empty strings.
type NullType string

var NullValue NullType = "\\N"

const timestampOutputFormat = "2006-01-02 15:04:05.999999Z07"

type RowWriter interface {
	// Open is called once with the column names of the result set before any
	// row is written.
	Open(columns []string) error
	// WriteRow renders one row. The values slice is aligned with the columns
	// passed to Open.
	WriteRow(values []any) error
	// Close flushes everything that is still buffered.
	Close() error
}

type Config struct {
	Format         string `mapstructure:"format" yaml:"format" json:"format,omitempty"`
	Template       string `mapstructure:"template" yaml:"template" json:"template,omitempty"`
	Path           string `mapstructure:"path" yaml:"path" json:"path,omitempty"`
	Filter         string `mapstructure:"filter" yaml:"filter" json:"filter,omitempty"`
	MaxColumnWidth int    `mapstructure:"max_column_width" yaml:"max_column_width" json:"max_column_width,omitempty"`
}

func GetRowWriter(w io.Writer, cfg *Config) (RowWriter, error) {
	switch cfg.Format {
	case TextFormatName, "":
		return NewTextRowWriter(w, cfg.MaxColumnWidth), nil
	case JsonFormatName:
		return NewJsonRowWriter(w, cfg.Path), nil
	case YamlFormatName:
		return NewYamlRowWriter(w), nil
	case TemplateFormatName:
		return NewTemplateRowWriter(w, cfg.Template)
	}
	return nil, fmt.Errorf("unknown output format %q", cfg.Format)
}

// ValueToString renders a decoded column value the way psql would print it.
// NULL becomes \N and non UTF-8 byte strings are hex encoded.
func ValueToString(v any) string {
	switch vv := v.(type) {
	case nil:
		return string(NullValue)
	case time.Time:
		return vv.Format(timestampOutputFormat)
	case decimal.Decimal:
		return vv.String()
	case []byte:
		if utf8.Valid(vv) {
			return string(vv)
		}
		return "\\x" + hex.EncodeToString(vv)
	}
	res, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return res
}

// jsonValue prepares a decoded column value for JSON and YAML encoders that
// would otherwise base64 byte strings or reject driver specific types.
func jsonValue(v any) any {
	switch vv := v.(type) {
	case []byte:
		if utf8.Valid(vv) {
			return string(vv)
		}
		return "\\x" + hex.EncodeToString(vv)
	case decimal.Decimal:
		return vv.String()
	}
	return v
}
