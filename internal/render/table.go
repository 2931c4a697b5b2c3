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
	"io"

	"github.com/olekukonko/tablewriter"

	stringsUtils "github.com/Enybeatz/psycopg/internal/utils/strings"
)

const defaultMaxColumnWidth = 64

// TextRowWriter prints rows as an ASCII table. Long cell values are wrapped
// by word before rendering so the table stays within maxColumnWidth per cell.
type TextRowWriter struct {
	t              *tablewriter.Table
	maxColumnWidth int
}

func NewTextRowWriter(w io.Writer, maxColumnWidth int) *TextRowWriter {
	if maxColumnWidth <= 0 {
		maxColumnWidth = defaultMaxColumnWidth
	}
	t := tablewriter.NewWriter(w)
	t.SetAutoFormatHeaders(false)
	t.SetAutoWrapText(false)
	return &TextRowWriter{
		t:              t,
		maxColumnWidth: maxColumnWidth,
	}
}

func (tw *TextRowWriter) Open(columns []string) error {
	tw.t.SetHeader(columns)
	return nil
}

func (tw *TextRowWriter) WriteRow(values []any) error {
	record := make([]string, len(values))
	for idx, v := range values {
		record[idx] = stringsUtils.WrapString(ValueToString(v), tw.maxColumnWidth)
	}
	tw.t.Append(record)
	return nil
}

func (tw *TextRowWriter) Close() error {
	tw.t.Render()
	return nil
}
