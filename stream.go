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

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"

	"github.com/Enybeatz/psycopg/pq"
)

// Stream executes a statement through a server-side portal and returns a
// single-pass row iterator that never buffers more than one chunk client
// side. The portal is validated before anything executes: a statement that
// cannot return rows fails here with a programming error and never runs.
//
// The context is captured and governs every subsequent pull. Opening a new
// stream, or any other execution, closes the previous one; fetch and scroll
// are unavailable until the stream is closed or exhausted.
func (c *Cursor) Stream(ctx context.Context, sql string, args []any, opts ...ExecOption) (*RowStream, error) {
	if c.closed {
		return nil, interfaceError("the cursor is closed")
	}
	c.detachStream(ctx)

	var cfg execConfig
	cfg.format = pq.FormatDefault
	for _, opt := range opts {
		opt(&cfg)
	}
	resFmt := cfg.format.Resolve(c.format)

	if leadingKeyword(sql) == "COPY" {
		return nil, programmingError("COPY statements are not supported")
	}
	q, err := c.conn.Adapt(sql, args, resFmt)
	if err != nil {
		return nil, dataError("cannot adapt query", err)
	}
	c.lastQuery = q

	name := "psycopg_" + uuid.NewString()
	portal, err := c.conn.OpenPortal(ctx, name, q)
	if err != nil {
		if errors.Is(err, pq.ErrNoRows) {
			return nil, &Error{
				Kind:    KindProgramming,
				Message: "the query doesn't return rows",
				cause:   err,
			}
		}
		return nil, classify(err)
	}

	maker, err := c.factory(portal.Fields())
	if err != nil {
		if closeErr := portal.Close(ctx); closeErr != nil {
			log.Warn().Err(closeErr).Msg("cannot close portal after row factory failure")
		}
		return nil, err
	}

	rs := &RowStream{
		cur:    c,
		ctx:    ctx,
		portal: portal,
		fields: portal.Fields(),
		maker:  maker,
		gen:    c.fgen,
		size:   c.streamSize,
	}
	c.results = []*pq.Result{{Status: pq.StatusTuplesOK, Fields: rs.fields}}
	c.index = 0
	c.pos = 0
	c.maker = nil
	c.rowcount = 0
	c.stream = rs
	return rs, nil
}

// RowStream iterates a streamed result one row at a time:
//
//	rs, err := cur.Stream(ctx, "select * from big", nil)
//	if err != nil { ... }
//	defer rs.Close()
//	for rs.Next() {
//	    row := rs.Row()
//	    ...
//	}
//	if err := rs.Err(); err != nil { ... }
//
// Exhaustion releases the portal automatically; Close does so on early
// abandonment and is idempotent.
type RowStream struct {
	cur    *Cursor
	ctx    context.Context
	portal pq.Portal
	fields []pgconn.FieldDescription
	maker  RowMaker
	gen    uint64
	size   int

	buf    [][][]byte
	bi     int
	done   bool
	closed bool
	row    any
	err    error
}

// Next pulls the next row, fetching a chunk from the portal when the buffer
// runs out. It returns false at exhaustion or on error; Err distinguishes
// the two.
func (rs *RowStream) Next() bool {
	if rs.closed || rs.err != nil {
		return false
	}
	for rs.bi >= len(rs.buf) {
		if rs.done {
			if err := rs.Close(); err != nil {
				rs.err = classify(err)
			}
			return false
		}
		chunk, err := rs.portal.Pull(rs.ctx, rs.size)
		if err != nil {
			rs.err = classify(err)
			rs.release()
			return false
		}
		rs.buf = chunk.Rows
		rs.bi = 0
		rs.done = chunk.Done
		rs.mirror(chunk)
	}

	raw := rs.buf[rs.bi]
	rs.bi++

	if rs.gen != rs.cur.fgen {
		maker, err := rs.cur.factory(rs.fields)
		if err != nil {
			rs.err = err
			rs.release()
			return false
		}
		rs.maker = maker
		rs.gen = rs.cur.fgen
	}

	values, err := decodeRow(rs.cur.conn.TypeMap(), rs.fields, raw)
	if err != nil {
		rs.err = err
		rs.release()
		return false
	}
	row, err := rs.maker(values)
	if err != nil {
		rs.err = err
		rs.release()
		return false
	}
	rs.row = row
	return true
}

// Row returns the row produced by the last successful Next.
func (rs *RowStream) Row() any {
	return rs.row
}

func (rs *RowStream) Err() error {
	return rs.err
}

func (rs *RowStream) Fields() []pgconn.FieldDescription {
	return rs.fields
}

// Close releases the portal and detaches the stream from its cursor.
func (rs *RowStream) Close() error {
	return rs.closeWith(rs.ctx)
}

func (rs *RowStream) closeWith(ctx context.Context) error {
	if rs.closed {
		return nil
	}
	rs.closed = true
	err := rs.portal.Close(ctx)
	if rs.cur.stream == rs {
		rs.cur.stream = nil
		// Rows went past the cursor, not through it: park the position
		// at the end so the mirrored tail chunk is not fetchable again.
		if r := rs.cur.currentResult(); r != nil {
			rs.cur.pos = len(r.Rows)
		}
	}
	return err
}

// release is the error-path Close: the portal must not leak, but the
// original error is what the consumer sees.
func (rs *RowStream) release() {
	if err := rs.closeWith(rs.ctx); err != nil {
		log.Warn().Err(err).Msg("cannot close portal after stream failure")
	}
}

// mirror projects the pulled chunk into the owning cursor, so Result,
// Description, RowCount and StatusMessage stay meaningful mid-stream. The
// rowcount accumulates; the command tag lands with the final chunk.
func (rs *RowStream) mirror(chunk *pq.Chunk) {
	if rs.cur.stream != rs {
		return
	}
	rs.cur.results = []*pq.Result{{
		Status: pq.StatusTuplesOK,
		Fields: rs.fields,
		Rows:   chunk.Rows,
		Tag:    chunk.Tag,
	}}
	rs.cur.index = 0
	rs.cur.rowcount += int64(len(chunk.Rows))
}
