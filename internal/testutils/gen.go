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

	"github.com/go-faker/faker/v4"
	"github.com/jackc/pgx/v5/pgtype"
)

type film struct {
	Title    string `faker:"sentence"`
	Director string `faker:"name"`
	Email    string `faker:"email"`
}

// FilmColumns is the fixture schema the workload tests run against.
func FilmColumns() []Column {
	return []Column{
		Col("id", pgtype.Int8OID),
		Col("title", pgtype.TextOID),
		Col("director", pgtype.TextOID),
		Col("email", pgtype.TextOID),
	}
}

// FilmRows fabricates n faker-populated rows matching FilmColumns.
func FilmRows(n int) [][]any {
	rows := make([][]any, n)
	for i := range rows {
		var f film
		if err := faker.FakeData(&f); err != nil {
			panic(fmt.Sprintf("cannot fake film data: %v", err))
		}
		rows[i] = []any{int64(i + 1), f.Title, f.Director, f.Email}
	}
	return rows
}
