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
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5/pgtype"
)

// NewTypeMap builds the type map every connection (and every offline
// fixture) adapts and decodes through: the stock pgtype codecs plus numeric
// mapped onto shopspring decimals, so money-grade values never round-trip
// through float64.
func NewTypeMap() *pgtype.Map {
	m := pgtype.NewMap()
	pgxdecimal.Register(m)
	return m
}
