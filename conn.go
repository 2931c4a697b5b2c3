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

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Enybeatz/psycopg/pq"
)

// Conn is what a cursor needs from a connection: parameter adaptation,
// query submission and portal management. *pq.Wire satisfies it; tests use
// a scripted implementation.
type Conn interface {
	Adapt(sql string, args []any, resFmt pq.Format) (*pq.Query, error)
	Submit(ctx context.Context, q *pq.Query) ([]*pq.Result, error)
	OpenPortal(ctx context.Context, name string, q *pq.Query) (pq.Portal, error)
	TypeMap() *pgtype.Map
}

// Portal is re-exported for callers holding streams open.
type Portal = pq.Portal

// Connect opens a wire connection ready for cursor use.
func Connect(ctx context.Context, connString string) (*pq.Wire, error) {
	return pq.Connect(ctx, connString)
}
