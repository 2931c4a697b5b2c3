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

package testutils

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Enybeatz/psycopg/pq"
)

// Column describes one fixture column.
type Column struct {
	Name string
	OID  uint32
}

func Col(name string, oid uint32) Column {
	return Column{Name: name, OID: oid}
}

// Fields renders fixture columns as a row description in the given format.
func Fields(cols []Column, f pq.Format) []pgconn.FieldDescription {
	out := make([]pgconn.FieldDescription, len(cols))
	for i, c := range cols {
		out[i] = pgconn.FieldDescription{
			Name:         c.Name,
			DataTypeOID:  c.OID,
			TypeModifier: -1,
			Format:       int16(f),
		}
	}
	return out
}

// EncodeRows encodes fixture values the way a server would send them. A nil
// value is the SQL NULL.
func EncodeRows(m *pgtype.Map, cols []Column, f pq.Format, rows [][]any) ([][][]byte, error) {
	out := make([][][]byte, len(rows))
	for ri, row := range rows {
		if len(row) != len(cols) {
			return nil, fmt.Errorf("row %d has %d values for %d columns", ri, len(row), len(cols))
		}
		enc := make([][]byte, len(row))
		for ci, v := range row {
			if v == nil {
				continue
			}
			buf, err := m.Encode(cols[ci].OID, int16(f), v, nil)
			if err != nil {
				return nil, fmt.Errorf("cannot encode row %d column %q: %w", ri, cols[ci].Name, err)
			}
			enc[ci] = buf
		}
		out[ri] = enc
	}
	return out, nil
}

func mustEncodeRows(m *pgtype.Map, cols []Column, f pq.Format, rows [][]any) [][][]byte {
	out, err := EncodeRows(m, cols, f, rows)
	if err != nil {
		panic(fmt.Sprintf("bad fixture: %v", err))
	}
	return out
}

// Command builds a result for a statement that returns no rows.
func Command(tag string) *pq.Result {
	return &pq.Result{Status: pq.StatusCommandOK, Tag: pgconn.NewCommandTag(tag)}
}

// EmptyQuery builds the result of an empty statement.
func EmptyQuery() *pq.Result {
	return &pq.Result{Status: pq.StatusEmptyQuery}
}

// Rows builds a static row-returning result in text format.
func (c *Conn) Rows(tag string, cols []Column, rows ...[]any) *pq.Result {
	return c.RowsIn(pq.FormatText, tag, cols, rows...)
}

// RowsIn builds a static row-returning result in the given format.
func (c *Conn) RowsIn(f pq.Format, tag string, cols []Column, rows ...[]any) *pq.Result {
	return &pq.Result{
		Status: pq.StatusTuplesOK,
		Fields: Fields(cols, f),
		Rows:   mustEncodeRows(c.M, cols, f, rows),
		Tag:    pgconn.NewCommandTag(tag),
	}
}
