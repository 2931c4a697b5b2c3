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
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

// Query is the adapted, wire-ready form of a single submission. Parameter
// values are already encoded; a nil element of Params is the SQL NULL.
type Query struct {
	SQL          string
	Params       [][]byte
	ParamOIDs    []uint32
	ParamFormats []int16
	ResultFormat Format

	// Simple reports that the query goes through the simple protocol,
	// which permits multiple statements per submission but no parameters
	// and no binary results.
	Simple bool
}

// BuildQuery adapts a statement and its arguments against a type map.
//
// A nil args slice selects the simple protocol unless binary results were
// requested; a non-nil empty slice forces the extended protocol with zero
// parameters. Each argument is encoded in the resolved format when its codec
// supports it, falling back to the other format otherwise. Arguments that
// cannot be adapted fail the whole query before anything reaches the server.
func BuildQuery(m *pgtype.Map, sql string, args []any, resFmt Format) (*Query, error) {
	resFmt = resFmt.Resolve(FormatDefault)
	q := &Query{
		SQL:          sql,
		ResultFormat: resFmt,
		Simple:       args == nil && resFmt != FormatBinary,
	}
	if q.Simple || len(args) == 0 {
		return q, nil
	}

	q.Params = make([][]byte, len(args))
	q.ParamOIDs = make([]uint32, len(args))
	q.ParamFormats = make([]int16, len(args))
	for i, arg := range args {
		val, oid, format, err := encodeParam(m, arg, resFmt)
		if err != nil {
			return nil, fmt.Errorf("cannot adapt parameter $%d: %w", i+1, err)
		}
		q.Params[i] = val
		q.ParamOIDs[i] = oid
		q.ParamFormats[i] = format
	}
	return q, nil
}

func encodeParam(m *pgtype.Map, arg any, preferred Format) ([]byte, uint32, int16, error) {
	switch v := arg.(type) {
	case nil:
		return nil, 0, int16(FormatText), nil
	case []byte:
		// Raw bytes always travel binary: the text rendition would need
		// hex escaping and the server accepts mixed parameter formats.
		return v, pgtype.ByteaOID, int16(FormatBinary), nil
	case string:
		// Strings keep the unspecified OID so the server can infer the
		// type from context, the same trick the source driver plays.
		return []byte(v), 0, int16(FormatText), nil
	}

	t, ok := m.TypeForValue(arg)
	if !ok {
		return nil, 0, 0, fmt.Errorf("no registered type for %T", arg)
	}
	buf, err := m.Encode(t.OID, int16(preferred), arg, nil)
	if err != nil {
		other := FormatText
		if preferred == FormatText {
			other = FormatBinary
		}
		var err2 error
		if buf, err2 = m.Encode(t.OID, int16(other), arg, nil); err2 != nil {
			return nil, 0, 0, err
		}
		return buf, t.OID, int16(other), nil
	}
	return buf, t.OID, int16(preferred), nil
}
