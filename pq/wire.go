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
	"context"
	"fmt"
	"net"
	"time"

	"github.com/dchest/siphash"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"
)

// Fingerprint keys. Fixed so the same statement logs the same query_id
// across processes, like pg_stat_statements does with its queryid.
const (
	fingerprintK0 = 0x70737963 // "psyc"
	fingerprintK1 = 0x6f70671a
)

// fingerprint returns a stable 64-bit identifier of a statement text for
// log correlation.
func fingerprint(sql string) string {
	return fmt.Sprintf("%016x", siphash.Hash(fingerprintK0, fingerprintK1, []byte(sql)))
}

// frontend is the slice of pgproto3.Frontend the portal machinery uses.
// Send buffers, Flush writes the buffer out.
type frontend interface {
	Send(msg pgproto3.FrontendMessage)
	Flush() error
	Receive() (pgproto3.BackendMessage, error)
}

// Wire is a pgconn-backed connection binding. It submits adapted queries
// over the simple or the extended protocol and opens server-side portals by
// driving the connection's frontend directly.
//
// A Wire is not safe for concurrent use, and a submission must not be
// interleaved with an open portal's pulls; the cursor layer serializes both.
// Canceling a context mid-receive poisons the connection: the read deadline
// is forced so the blocked receive returns, and no recovery is attempted.
type Wire struct {
	pg *pgconn.PgConn
	fe frontend
	m  *pgtype.Map
}

// Connect establishes a connection and prepares its type map.
func Connect(ctx context.Context, connString string) (*Wire, error) {
	pg, err := pgconn.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("cannot connect: %w", err)
	}
	log.Debug().
		Str("database", pg.ParameterStatus("session_authorization")).
		Msg("connection established")
	return &Wire{pg: pg, fe: pg.Frontend(), m: NewTypeMap()}, nil
}

// Adapt encodes a statement and its arguments against the connection's
// type map.
func (w *Wire) Adapt(sql string, args []any, resFmt Format) (*Query, error) {
	return BuildQuery(w.m, sql, args, resFmt)
}

// Submit executes an adapted query and materializes every result it
// produces. Simple-protocol submissions may carry several statements and
// return one result per statement; extended-protocol submissions return
// exactly one. Server errors come back untranslated.
func (w *Wire) Submit(ctx context.Context, q *Query) ([]*Result, error) {
	log.Debug().
		Str("query_id", fingerprint(q.SQL)).
		Bool("simple", q.Simple).
		Int("params", len(q.Params)).
		Stringer("format", q.ResultFormat).
		Msg("submitting query")

	if q.Simple {
		results, err := w.pg.Exec(ctx, q.SQL).ReadAll()
		if err != nil {
			return nil, err
		}
		if len(results) == 0 {
			// An empty query string completes without producing any
			// result at all.
			return []*Result{{Status: StatusEmptyQuery}}, nil
		}
		out := make([]*Result, 0, len(results))
		for _, res := range results {
			out = append(out, FromPgconn(res))
		}
		return out, nil
	}

	res := w.pg.ExecParams(ctx, q.SQL, q.Params, q.ParamOIDs, q.ParamFormats, []int16{int16(q.ResultFormat)}).Read()
	if res.Err != nil {
		return nil, res.Err
	}
	return []*Result{FromPgconn(res)}, nil
}

// TypeMap exposes the connection's type map for decoding fetched values.
func (w *Wire) TypeMap() *pgtype.Map {
	return w.m
}

// ClientEncoding reports the session's client_encoding parameter.
func (w *Wire) ClientEncoding() string {
	return w.pg.ParameterStatus("client_encoding")
}

// TxStatus reports the backend transaction status byte: 'I' idle, 'T' in
// transaction, 'E' in a failed transaction.
func (w *Wire) TxStatus() byte {
	return w.pg.TxStatus()
}

// PgConn exposes the underlying connection.
func (w *Wire) PgConn() *pgconn.PgConn {
	return w.pg
}

func (w *Wire) IsClosed() bool {
	return w.pg.IsClosed()
}

func (w *Wire) Close(ctx context.Context) error {
	return w.pg.Close(ctx)
}

// netConn returns the raw connection for deadline poking, nil when the Wire
// is frontend-only (tests).
func (w *Wire) netConn() net.Conn {
	if w.pg == nil {
		return nil
	}
	return w.pg.Conn()
}

// receive waits for one backend message, honoring ctx. Cancellation forces
// the read deadline into the past so the blocked read returns, then reports
// the context's error; the connection must not be used afterwards.
func (w *Wire) receive(ctx context.Context) (pgproto3.BackendMessage, error) {
	nc := w.netConn()
	if ctx.Done() == nil || nc == nil {
		return w.fe.Receive()
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = nc.SetReadDeadline(time.Unix(1, 0))
		case <-done:
		}
	}()
	msg, err := w.fe.Receive()
	close(done)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return msg, err
}

// syncAndDrain closes the current extended-protocol unit and discards
// everything up to ReadyForQuery, leaving the connection usable again.
func (w *Wire) syncAndDrain(ctx context.Context) error {
	w.fe.Send(&pgproto3.Sync{})
	if err := w.fe.Flush(); err != nil {
		return err
	}
	for {
		msg, err := w.receive(ctx)
		if err != nil {
			return err
		}
		if _, ok := msg.(*pgproto3.ReadyForQuery); ok {
			return nil
		}
	}
}
