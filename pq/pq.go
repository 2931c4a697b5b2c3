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

// Package pq binds the cursor layer to the PostgreSQL wire protocol. It
// adapts Go values into wire-ready queries, submits them over a pgconn
// connection using the simple or the extended protocol, and drives
// server-side portals at the pgproto3 message level for chunked row
// retrieval.
package pq

import "fmt"

// Format is a PostgreSQL wire format code. FormatDefault means "not chosen
// here": the resolution order is per-call override, then cursor preference,
// then text.
type Format int16

const (
	FormatDefault Format = -1
	FormatText    Format = 0
	FormatBinary  Format = 1
)

func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatBinary:
		return "binary"
	default:
		return "default"
	}
}

// Resolve applies the format resolution order: f wins when set, then
// fallback, then text.
func (f Format) Resolve(fallback Format) Format {
	if f != FormatDefault {
		return f
	}
	if fallback != FormatDefault {
		return fallback
	}
	return FormatText
}

// ParseFormat reads a format name as it appears in configuration files and
// CLI flags.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "default":
		return FormatDefault, nil
	case "text":
		return FormatText, nil
	case "binary":
		return FormatBinary, nil
	default:
		return FormatDefault, fmt.Errorf("unknown format %q: expected text, binary or default", s)
	}
}

// Status is the execution status of a single result, following the libpq
// ExecStatusType values and names.
type Status int

const (
	StatusEmptyQuery Status = iota
	StatusCommandOK
	StatusTuplesOK
	StatusCopyOut
	StatusCopyIn
	StatusBadResponse
	StatusNonfatalError
	StatusFatalError
	StatusCopyBoth
	StatusSingleTuple
)

func (s Status) String() string {
	switch s {
	case StatusEmptyQuery:
		return "EMPTY_QUERY"
	case StatusCommandOK:
		return "COMMAND_OK"
	case StatusTuplesOK:
		return "TUPLES_OK"
	case StatusCopyOut:
		return "COPY_OUT"
	case StatusCopyIn:
		return "COPY_IN"
	case StatusBadResponse:
		return "BAD_RESPONSE"
	case StatusNonfatalError:
		return "NONFATAL_ERROR"
	case StatusFatalError:
		return "FATAL_ERROR"
	case StatusCopyBoth:
		return "COPY_BOTH"
	case StatusSingleTuple:
		return "SINGLE_TUPLE"
	default:
		return fmt.Sprintf("STATUS_%d", int(s))
	}
}
