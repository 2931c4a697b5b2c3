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
	"text/template"
)

// TemplateContext is the data a row template is executed with. Record maps
// column names to decoded values, NULL values are substituted with NullValue
// so the isNull and sqlCoalesce template functions work on them.
type TemplateContext struct {
	Record    map[string]any
	Columns   []string
	Values    []any
	RowNumber int
}

type TemplateRowWriter struct {
	w         io.Writer
	tmpl      *template.Template
	columns   []string
	rowNumber int
}

func NewTemplateRowWriter(w io.Writer, text string) (*TemplateRowWriter, error) {
	if text == "" {
		return nil, fmt.Errorf("template output format requires a template")
	}
	tmpl, err := template.New("row").Funcs(FuncMap()).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("error parsing row template: %w", err)
	}
	return &TemplateRowWriter{
		w:    w,
		tmpl: tmpl,
	}, nil
}

func (tw *TemplateRowWriter) Open(columns []string) error {
	tw.columns = columns
	return nil
}

func (tw *TemplateRowWriter) WriteRow(values []any) error {
	record := make(map[string]any, len(tw.columns))
	for idx, name := range tw.columns {
		if values[idx] == nil {
			record[name] = NullValue
		} else {
			record[name] = values[idx]
		}
	}
	tctx := &TemplateContext{
		Record:    record,
		Columns:   tw.columns,
		Values:    values,
		RowNumber: tw.rowNumber,
	}
	tw.rowNumber++
	if err := tw.tmpl.Execute(tw.w, tctx); err != nil {
		return fmt.Errorf("error executing row template: %w", err)
	}
	if _, err := tw.w.Write([]byte("\n")); err != nil {
		return fmt.Errorf("error writing row: %w", err)
	}
	return nil
}

func (tw *TemplateRowWriter) Close() error {
	return nil
}
