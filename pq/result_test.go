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
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
)

func TestFromPgconn(t *testing.T) {
	t.Run("rows", func(t *testing.T) {
		res := &pgconn.Result{
			FieldDescriptions: []pgconn.FieldDescription{{Name: "n", DataTypeOID: pgtype.Int4OID}},
			Rows:              [][][]byte{{[]byte("1")}},
			CommandTag:        pgconn.NewCommandTag("SELECT 1"),
		}
		r := FromPgconn(res)
		assert.Equal(t, StatusTuplesOK, r.Status)
		assert.Equal(t, 1, r.NTuples())
		assert.Equal(t, 1, r.NFields())
		assert.Equal(t, "n", r.FieldName(0))
		assert.Equal(t, []byte("1"), r.ValueBytes(0, 0))
	})

	t.Run("command", func(t *testing.T) {
		res := &pgconn.Result{CommandTag: pgconn.NewCommandTag("CREATE TABLE")}
		r := FromPgconn(res)
		assert.Equal(t, StatusCommandOK, r.Status)
		assert.Equal(t, 0, r.NTuples())
	})

	t.Run("empty query", func(t *testing.T) {
		r := FromPgconn(&pgconn.Result{})
		assert.Equal(t, StatusEmptyQuery, r.Status)
	})

	t.Run("rows without data keep their description", func(t *testing.T) {
		res := &pgconn.Result{
			FieldDescriptions: []pgconn.FieldDescription{{Name: "n"}},
			CommandTag:        pgconn.NewCommandTag("SELECT 0"),
		}
		r := FromPgconn(res)
		assert.Equal(t, StatusTuplesOK, r.Status)
		assert.Equal(t, 0, r.NTuples())
	})
}

func TestFieldFormat(t *testing.T) {
	r := &Result{Fields: []pgconn.FieldDescription{{Format: 0}, {Format: 1}}}
	assert.Equal(t, FormatText, r.FieldFormat(0))
	assert.Equal(t, FormatBinary, r.FieldFormat(1))
}

func TestTagVerb(t *testing.T) {
	assert.Equal(t, "INSERT", TagVerb(pgconn.NewCommandTag("INSERT 0 1")))
	assert.Equal(t, "SELECT", TagVerb(pgconn.NewCommandTag("SELECT 42")))
	assert.Equal(t, "CREATE", TagVerb(pgconn.NewCommandTag("CREATE TABLE")))
	assert.Equal(t, "COMMIT", TagVerb(pgconn.NewCommandTag("COMMIT")))
	assert.Equal(t, "", TagVerb(pgconn.CommandTag{}))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "TUPLES_OK", StatusTuplesOK.String())
	assert.Equal(t, "COMMAND_OK", StatusCommandOK.String())
	assert.Equal(t, "EMPTY_QUERY", StatusEmptyQuery.String())
	assert.Equal(t, "COPY_OUT", StatusCopyOut.String())
	assert.Equal(t, "COPY_IN", StatusCopyIn.String())
	assert.Equal(t, "SINGLE_TUPLE", StatusSingleTuple.String())
}
