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

package pq

import (
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Result is the materialized outcome of one statement: status, row
// description, raw encoded rows and the command tag. A nil value inside Rows
// is the SQL NULL.
type Result struct {
	Status Status
	Fields []pgconn.FieldDescription
	Rows   [][][]byte
	Tag    pgconn.CommandTag
}

func (r *Result) NTuples() int {
	return len(r.Rows)
}

func (r *Result) NFields() int {
	return len(r.Fields)
}

func (r *Result) FieldName(i int) string {
	return r.Fields[i].Name
}

// FieldFormat returns the wire format the i-th column arrived in.
func (r *Result) FieldFormat(i int) Format {
	return Format(r.Fields[i].Format)
}

// ValueBytes returns the raw encoded value at (row, col), nil for NULL.
func (r *Result) ValueBytes(row, col int) []byte {
	return r.Rows[row][col]
}

// FromPgconn classifies a pgconn result. An empty command tag with no row
// description is what an empty query string leaves behind.
func FromPgconn(res *pgconn.Result) *Result {
	out := &Result{
		Fields: res.FieldDescriptions,
		Rows:   res.Rows,
		Tag:    res.CommandTag,
	}
	switch {
	case len(res.FieldDescriptions) > 0:
		out.Status = StatusTuplesOK
	case res.CommandTag.String() == "":
		out.Status = StatusEmptyQuery
	default:
		out.Status = StatusCommandOK
	}
	return out
}

// Chunk is one portal pull: the rows delivered, whether the portal is
// exhausted and, once it is, the statement's command tag.
type Chunk struct {
	Rows [][][]byte
	Done bool
	Tag  pgconn.CommandTag
}

// TagVerb extracts the leading word of a command tag ("INSERT 0 1" yields
// "INSERT"), empty when there is no tag.
func TagVerb(tag pgconn.CommandTag) string {
	s := tag.String()
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}
