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
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgproto3"
)

var (
	// ErrNoRows reports that a portal was opened over a statement that
	// cannot return rows. The statement has not been executed.
	ErrNoRows = errors.New("query returns no rows")

	// ErrCopy reports a COPY response where rows were expected.
	ErrCopy = errors.New("COPY is not supported on this path")
)

// pgErrorFromResponse lifts a raw protocol error into the pgconn error type
// the rest of the stack already classifies on.
func pgErrorFromResponse(er *pgproto3.ErrorResponse) *pgconn.PgError {
	return &pgconn.PgError{
		Severity:            er.Severity,
		SeverityUnlocalized: er.SeverityUnlocalized,
		Code:                er.Code,
		Message:             er.Message,
		Detail:              er.Detail,
		Hint:                er.Hint,
		Position:            er.Position,
		InternalPosition:    er.InternalPosition,
		InternalQuery:       er.InternalQuery,
		Where:               er.Where,
		SchemaName:          er.SchemaName,
		TableName:           er.TableName,
		ColumnName:          er.ColumnName,
		DataTypeName:        er.DataTypeName,
		ConstraintName:      er.ConstraintName,
		File:                er.File,
		Line:                er.Line,
		Routine:             er.Routine,
	}
}
