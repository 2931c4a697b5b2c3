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

package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var jsonSetOpt = &sjson.Options{
	ReplaceInPlace: true,
}

// sjson treats dots and wildcards in paths as separators, column names must
// be escaped before being used as object keys.
var jsonPathEscaper = strings.NewReplacer(
	".", `\.`,
	"*", `\*`,
	"?", `\?`,
)

// JsonRowWriter prints one JSON object per row. When path is set, the gjson
// path is applied to each object and only its raw result is printed, rows
// where the path does not resolve are skipped.
type JsonRowWriter struct {
	w       io.Writer
	columns []string
	path    string
}

func NewJsonRowWriter(w io.Writer, path string) *JsonRowWriter {
	return &JsonRowWriter{
		w:    w,
		path: path,
	}
}

func (jw *JsonRowWriter) Open(columns []string) error {
	jw.columns = columns
	return nil
}

func (jw *JsonRowWriter) WriteRow(values []any) error {
	line := []byte("{}")
	var err error
	for idx, name := range jw.columns {
		line, err = sjson.SetBytesOptions(line, jsonPathEscaper.Replace(name), jsonValue(values[idx]), jsonSetOpt)
		if err != nil {
			return fmt.Errorf("error encoding column \"%s\": %w", name, err)
		}
	}
	if jw.path != "" {
		res := gjson.GetBytes(line, jw.path)
		if !res.Exists() {
			return nil
		}
		line = []byte(res.Raw)
	}
	if _, err = jw.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("error writing row: %w", err)
	}
	return nil
}

func (jw *JsonRowWriter) Close() error {
	return nil
}
