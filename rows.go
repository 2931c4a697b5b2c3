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
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Enybeatz/psycopg/pq"
)

// RowFactory inspects a result's row description once and returns the maker
// that materializes each row. Factories run when a result is published (or a
// stream opens); makers run once per fetched row. Errors from either
// propagate to the caller unwrapped.
type RowFactory func(fields []pgconn.FieldDescription) (RowMaker, error)

// RowMaker builds one row object from the decoded column values.
type RowMaker func(values []any) (any, error)

// TupleRow is the default factory: each row is the []any of decoded values
// in column order.
func TupleRow(fields []pgconn.FieldDescription) (RowMaker, error) {
	return func(values []any) (any, error) {
		return values, nil
	}, nil
}

// DictRow maps column names to decoded values. Duplicate column names
// collapse to the last one, like any map construction would.
func DictRow(fields []pgconn.FieldDescription) (RowMaker, error) {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return func(values []any) (any, error) {
		row := make(map[string]any, len(names))
		for i, v := range values {
			row[names[i]] = v
		}
		return row, nil
	}, nil
}

// ScalarRow yields only the first column of each row.
func ScalarRow(fields []pgconn.FieldDescription) (RowMaker, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("scalar row requires at least one column")
	}
	return func(values []any) (any, error) {
		return values[0], nil
	}, nil
}

// StructRow decodes each row into a value of T by column name, honoring
// `db` field tags. Input is weakly typed, so an int8 column fills an int
// field without ceremony.
func StructRow[T any]() RowFactory {
	return func(fields []pgconn.FieldDescription) (RowMaker, error) {
		names := make([]string, len(fields))
		for i, f := range fields {
			names[i] = f.Name
		}
		return func(values []any) (any, error) {
			src := make(map[string]any, len(names))
			for i, v := range values {
				src[names[i]] = v
			}
			var out T
			dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
				Result:           &out,
				TagName:          "db",
				WeaklyTypedInput: true,
			})
			if err != nil {
				return nil, err
			}
			if err := dec.Decode(src); err != nil {
				return nil, fmt.Errorf("cannot map row into %T: %w", out, err)
			}
			return out, nil
		}, nil
	}
}

// decodeRow turns one raw wire row into Go values through the type map.
// NULL stays nil; values of unregistered types come back as string (text
// format) or a byte copy (binary format).
func decodeRow(m *pgtype.Map, fields []pgconn.FieldDescription, raw [][]byte) ([]any, error) {
	values := make([]any, len(fields))
	for i, f := range fields {
		v, err := decodeValue(m, f, raw[i])
		if err != nil {
			return nil, dataError(fmt.Sprintf("cannot decode column %q", f.Name), err)
		}
		values[i] = v
	}
	return values, nil
}

func decodeValue(m *pgtype.Map, f pgconn.FieldDescription, raw []byte) (any, error) {
	if raw == nil {
		return nil, nil
	}
	t, ok := m.TypeForOID(f.DataTypeOID)
	if !ok {
		if f.Format == int16(pq.FormatBinary) {
			return append([]byte(nil), raw...), nil
		}
		return string(raw), nil
	}
	return t.Codec.DecodeValue(m, f.DataTypeOID, f.Format, raw)
}
