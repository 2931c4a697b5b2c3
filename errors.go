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
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Kind is the error class of the DB-API taxonomy. Every kind except
// KindInterface is a subclass of KindDatabase, so errors.Is against
// ErrDatabase matches any of them.
type Kind int

const (
	KindInterface Kind = iota
	KindDatabase
	KindData
	KindOperational
	KindIntegrity
	KindInternal
	KindProgramming
	KindNotSupported
)

func (k Kind) String() string {
	switch k {
	case KindInterface:
		return "interface error"
	case KindDatabase:
		return "database error"
	case KindData:
		return "data error"
	case KindOperational:
		return "operational error"
	case KindIntegrity:
		return "integrity error"
	case KindInternal:
		return "internal error"
	case KindProgramming:
		return "programming error"
	case KindNotSupported:
		return "not supported error"
	default:
		return fmt.Sprintf("error kind %d", int(k))
	}
}

// Error is a classified cursor error. Code carries the SQLSTATE when the
// server raised it; the wrapped cause (a *pgconn.PgError for server errors)
// stays reachable through errors.As.
type Error struct {
	Kind    Kind
	Message string
	Code    string
	cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s (SQLSTATE %s)", msg, e.Code)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is treats the bare-kind sentinels as class matches: a programming error
// raised by the server satisfies both ErrProgramming and ErrDatabase.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Message != "" || t.Code != "" || t.cause != nil {
		return false
	}
	if e.Kind == t.Kind {
		return true
	}
	return t.Kind == KindDatabase && e.Kind != KindInterface
}

// Sentinels for errors.Is checks, one per kind.
var (
	ErrInterface    = &Error{Kind: KindInterface}
	ErrDatabase     = &Error{Kind: KindDatabase}
	ErrData         = &Error{Kind: KindData}
	ErrOperational  = &Error{Kind: KindOperational}
	ErrIntegrity    = &Error{Kind: KindIntegrity}
	ErrInternal     = &Error{Kind: KindInternal}
	ErrProgramming  = &Error{Kind: KindProgramming}
	ErrNotSupported = &Error{Kind: KindNotSupported}
)

// Client-side misuse sentinels, deliberately outside the database taxonomy.
var (
	// ErrOutOfRange reports a scroll target outside the buffered result.
	ErrOutOfRange = errors.New("position out of range")

	// ErrInvalidArgument reports a malformed argument such as an unknown
	// scroll mode.
	ErrInvalidArgument = errors.New("invalid argument")
)

func interfaceError(msg string) *Error {
	return &Error{Kind: KindInterface, Message: msg}
}

func programmingError(msg string) *Error {
	return &Error{Kind: KindProgramming, Message: msg}
}

func dataError(msg string, cause error) *Error {
	return &Error{Kind: KindData, Message: msg, cause: cause}
}

// classify folds an arbitrary submission failure into the taxonomy. Context
// errors become operational while staying visible to
// errors.Is(err, context.Canceled); server errors are classified by their
// SQLSTATE class.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &Error{
			Kind:    kindForSQLState(pgErr.Code),
			Message: pgErr.Message,
			Code:    pgErr.Code,
			cause:   err,
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindOperational, Message: "operation canceled", cause: err}
	}
	return &Error{Kind: KindOperational, Message: err.Error(), cause: err}
}

// kindForSQLState maps a SQLSTATE class to an error kind the way the DB-API
// drivers traditionally do.
func kindForSQLState(code string) Kind {
	if len(code) < 2 {
		return KindDatabase
	}
	switch code[:2] {
	case "22":
		return KindData
	case "23":
		return KindIntegrity
	case "20", "21", "42":
		return KindProgramming
	case "0A":
		return KindNotSupported
	case "08", "53", "54", "55", "57", "58":
		return KindOperational
	case "24", "25", "XX":
		return KindInternal
	default:
		return KindDatabase
	}
}
