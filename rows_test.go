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

package psycopg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Enybeatz/psycopg/internal/testutils"
	"github.com/Enybeatz/psycopg/pq"
)

func TestTupleRowDecodesCommonTypes(t *testing.T) {
	ctx := context.Background()
	cols := []testutils.Column{
		testutils.Col("i2", pgtype.Int2OID),
		testutils.Col("i4", pgtype.Int4OID),
		testutils.Col("i8", pgtype.Int8OID),
		testutils.Col("ok", pgtype.BoolOID),
		testutils.Col("f8", pgtype.Float8OID),
		testutils.Col("name", pgtype.TextOID),
		testutils.Col("born", pgtype.DateOID),
		testutils.Col("amount", pgtype.NumericOID),
		testutils.Col("missing", pgtype.TextOID),
	}
	day := time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC)
	amount := decimal.RequireFromString("123.45")
	in := []any{int16(1), int32(2), int64(3), true, 3.5, "Dune", day, amount, nil}
	want := []any{int16(1), int32(2), int64(3), true, 3.5, "Dune", day, amount, nil}

	for _, format := range []pq.Format{pq.FormatText, pq.FormatBinary} {
		conn := testutils.NewConn()
		cur := NewCursor(conn, WithFormat(format))
		conn.QueueRows("SELECT 1", cols, in)
		require.NoError(t, cur.Execute(ctx, "select * from sample", []any{}))

		row, err := cur.FetchOne()
		require.NoError(t, err)
		if diff := cmp.Diff(want, row); diff != "" {
			t.Errorf("row mismatch in %s format (-want +got):\n%s", format, diff)
		}
	}
}

func TestUnknownTypeFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("text comes back as string", func(t *testing.T) {
		conn := testutils.NewConn()
		cur := NewCursor(conn)
		conn.QueueResults(&pq.Result{
			Status: pq.StatusTuplesOK,
			Fields: []pgconn.FieldDescription{{Name: "u", DataTypeOID: 999999, TypeModifier: -1}},
			Rows:   [][][]byte{{[]byte("mystery")}},
			Tag:    pgconn.NewCommandTag("SELECT 1"),
		})
		require.NoError(t, cur.Execute(ctx, "select u from t", nil))
		row, err := cur.FetchOne()
		require.NoError(t, err)
		assert.Equal(t, []any{"mystery"}, row)
	})

	t.Run("binary comes back as bytes", func(t *testing.T) {
		conn := testutils.NewConn()
		cur := NewCursor(conn)
		conn.QueueResults(&pq.Result{
			Status: pq.StatusTuplesOK,
			Fields: []pgconn.FieldDescription{{Name: "u", DataTypeOID: 999999, TypeModifier: -1, Format: 1}},
			Rows:   [][][]byte{{{0xde, 0xad}}},
			Tag:    pgconn.NewCommandTag("SELECT 1"),
		})
		require.NoError(t, cur.Execute(ctx, "select u from t", nil))
		row, err := cur.FetchOne()
		require.NoError(t, err)
		assert.Equal(t, []any{[]byte{0xde, 0xad}}, row)
	})
}

func TestDictRow(t *testing.T) {
	conn := testutils.NewConn()
	cur := NewCursor(conn, WithRowFactory(DictRow))
	cols := []testutils.Column{
		testutils.Col("id", pgtype.Int8OID),
		testutils.Col("title", pgtype.TextOID),
	}
	conn.QueueRows("SELECT 1", cols, []any{int64(7), "Dune"})
	require.NoError(t, cur.Execute(context.Background(), "select id, title from films", nil))

	row, err := cur.FetchOne()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": int64(7), "title": "Dune"}, row)
}

func TestScalarRow(t *testing.T) {
	conn := testutils.NewConn()
	cur := NewCursor(conn, WithRowFactory(ScalarRow))
	conn.QueueRows("SELECT 2", numberCol(), []any{1}, []any{2})
	require.NoError(t, cur.Execute(context.Background(), "select n from t", nil))

	row, err := cur.FetchOne()
	require.NoError(t, err)
	assert.Equal(t, int32(1), row)
}

func TestScalarRowNeedsAColumn(t *testing.T) {
	conn := testutils.NewConn()
	cur := NewCursor(conn, WithRowFactory(ScalarRow))
	conn.QueueRows("SELECT 1", nil, []any{})

	err := cur.Execute(context.Background(), "select from t", nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "at least one column")
}

func TestStructRow(t *testing.T) {
	type filmRow struct {
		ID    int    `db:"id"`
		Title string `db:"title"`
	}
	conn := testutils.NewConn()
	cur := NewCursor(conn, WithRowFactory(StructRow[filmRow]()))
	cols := []testutils.Column{
		testutils.Col("id", pgtype.Int8OID),
		testutils.Col("title", pgtype.TextOID),
	}
	conn.QueueRows("SELECT 2", cols, []any{int64(1), "Dune"}, []any{int64(2), "Alien"})
	require.NoError(t, cur.Execute(context.Background(), "select id, title from films", nil))

	rows, err := cur.FetchAll()
	require.NoError(t, err)
	want := []any{filmRow{ID: 1, Title: "Dune"}, filmRow{ID: 2, Title: "Alien"}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestRowFactorySwapTakesEffectNextRow(t *testing.T) {
	conn := testutils.NewConn()
	cur := NewCursor(conn)
	conn.QueueRows("SELECT 2", numberCol(), []any{1}, []any{2})
	require.NoError(t, cur.Execute(context.Background(), "select n from t", nil))

	row, err := cur.FetchOne()
	require.NoError(t, err)
	assert.Equal(t, []any{int32(1)}, row)

	cur.SetRowFactory(DictRow)
	row, err = cur.FetchOne()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": int32(2)}, row)
}

func TestRowFactoryErrorPropagatesUnwrapped(t *testing.T) {
	factoryErr := errors.New("broken factory")
	bad := func(fields []pgconn.FieldDescription) (RowMaker, error) {
		return nil, factoryErr
	}

	conn := testutils.NewConn()
	cur := NewCursor(conn, WithRowFactory(bad))
	conn.QueueRows("SELECT 1", numberCol(), []any{1})

	// Construction happens at execution.
	err := cur.Execute(context.Background(), "select n from t", nil)
	require.ErrorIs(t, err, factoryErr)
	assert.NotErrorIs(t, err, ErrDatabase)

	// The result is still published: swapping in a working factory
	// makes the rows reachable.
	require.NotNil(t, cur.Result())
	cur.SetRowFactory(TupleRow)
	row, err := cur.FetchOne()
	require.NoError(t, err)
	assert.Equal(t, []any{int32(1)}, row)
}

func TestRowMakerErrorPropagatesUnwrapped(t *testing.T) {
	makerErr := errors.New("broken maker")
	bad := func(fields []pgconn.FieldDescription) (RowMaker, error) {
		return func(values []any) (any, error) { return nil, makerErr }, nil
	}

	conn := testutils.NewConn()
	cur := NewCursor(conn, WithRowFactory(bad))
	conn.QueueRows("SELECT 1", numberCol(), []any{1})
	require.NoError(t, cur.Execute(context.Background(), "select n from t", nil))

	_, err := cur.FetchOne()
	require.ErrorIs(t, err, makerErr)

	// The failed row was not consumed.
	assert.Equal(t, 0, cur.RowNumber())
}
