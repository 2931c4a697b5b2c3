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

// Package psycopg implements a client-side PostgreSQL cursor on top of the
// pgx protocol stack: execute a statement, page through its buffered result
// sets, or stream arbitrarily large results through a server-side portal in
// constant client memory.
//
//	conn, err := psycopg.Connect(ctx, "postgres://localhost/app")
//	if err != nil { ... }
//	defer conn.Close(ctx)
//
//	cur := psycopg.NewCursor(conn, psycopg.WithRowFactory(psycopg.DictRow))
//	defer cur.Close(ctx)
//
//	if err := cur.Execute(ctx, "select id, title from films where kind = $1", []any{"comedy"}); err != nil { ... }
//	rows, err := cur.FetchAll()
//
// Results arrive in text format unless the cursor (WithFormat) or the call
// (WithResultFormat) asks for binary. Rows materialize through a pluggable
// RowFactory; TupleRow, DictRow, ScalarRow and StructRow ship in the box.
//
// Errors follow the DB-API taxonomy: errors.Is against ErrProgramming,
// ErrData and the other kind sentinels classifies them, ErrDatabase matches
// the whole server-side family, and errors.As still digs out the underlying
// *pgconn.PgError with the full SQLSTATE detail.
//
// A cursor is not safe for concurrent use. Operations that touch the
// network take a context; fetch operations only read client-side buffers
// and do not.
package psycopg
