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
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Enybeatz/psycopg/pq"
)

// Conn is a scripted connection: tests queue the replies each submission or
// portal open should produce, in order, and every unscripted call fails
// loudly. Adaptation and value encoding run through a real type map, so the
// cursor's decode paths execute for real against the fixture bytes.
type Conn struct {
	M *pgtype.Map

	// Submits records every adapted query handed to Submit.
	Submits []*pq.Query
	// Portals records every portal opened, in order, including closed ones.
	Portals []*Portal
	// PortalQueries records the adapted query behind each portal open.
	PortalQueries []*pq.Query

	TxState byte

	submitQueue []submitReply
	portalQueue []*PortalScript
}

func NewConn() *Conn {
	return &Conn{M: pq.NewTypeMap(), TxState: 'I'}
}

func (c *Conn) Adapt(sql string, args []any, resFmt pq.Format) (*pq.Query, error) {
	return pq.BuildQuery(c.M, sql, args, resFmt)
}

func (c *Conn) TypeMap() *pgtype.Map {
	return c.M
}

func (c *Conn) TxStatus() byte {
	return c.TxState
}

type submitReply func(q *pq.Query) ([]*pq.Result, error)

func (c *Conn) Submit(ctx context.Context, q *pq.Query) ([]*pq.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.Submits = append(c.Submits, q)
	if len(c.submitQueue) == 0 {
		return nil, fmt.Errorf("unscripted submission: %s", q.SQL)
	}
	reply := c.submitQueue[0]
	c.submitQueue = c.submitQueue[1:]
	return reply(q)
}

// QueueResults schedules a static reply for the next submission.
func (c *Conn) QueueResults(results ...*pq.Result) {
	c.submitQueue = append(c.submitQueue, func(*pq.Query) ([]*pq.Result, error) {
		return results, nil
	})
}

// QueueError schedules a failing submission.
func (c *Conn) QueueError(err error) {
	c.submitQueue = append(c.submitQueue, func(*pq.Query) ([]*pq.Result, error) {
		return nil, err
	})
}

// QueueRows schedules a single row-returning result whose values are
// encoded at submission time in the query's resolved format, so the same
// fixture serves text and binary executions.
func (c *Conn) QueueRows(tag string, cols []Column, rows ...[]any) {
	c.submitQueue = append(c.submitQueue, func(q *pq.Query) ([]*pq.Result, error) {
		return []*pq.Result{c.RowsIn(q.ResultFormat, tag, cols, rows...)}, nil
	})
}

// QueueFunc schedules an arbitrary responder.
func (c *Conn) QueueFunc(fn func(q *pq.Query) ([]*pq.Result, error)) {
	c.submitQueue = append(c.submitQueue, fn)
}

// PortalScript is a queued portal-open outcome; its Fail methods inject
// pull and close failures.
type PortalScript struct {
	cols    []Column
	rows    [][]any
	tag     string
	openErr error

	pullErrAt int
	pullErr   error
	closeErr  error
}

// QueuePortal schedules a successful portal open serving the given rows.
// The returned script can be decorated with failure injections.
func (c *Conn) QueuePortal(cols []Column, rows [][]any, tag string) *PortalScript {
	ps := &PortalScript{cols: cols, rows: rows, tag: tag, pullErrAt: -1}
	c.portalQueue = append(c.portalQueue, ps)
	return ps
}

// QueuePortalError schedules a failing portal open.
func (c *Conn) QueuePortalError(err error) {
	c.portalQueue = append(c.portalQueue, &PortalScript{openErr: err, pullErrAt: -1})
}

// FailPull makes the portal's pull number at (zero-based) fail with err
// after serving the preceding pulls normally.
func (ps *PortalScript) FailPull(at int, err error) *PortalScript {
	ps.pullErrAt = at
	ps.pullErr = err
	return ps
}

// FailClose makes the portal's Close return err (once).
func (ps *PortalScript) FailClose(err error) *PortalScript {
	ps.closeErr = err
	return ps
}

func (c *Conn) OpenPortal(ctx context.Context, name string, q *pq.Query) (pq.Portal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(c.portalQueue) == 0 {
		return nil, fmt.Errorf("unscripted portal open: %s", q.SQL)
	}
	ps := c.portalQueue[0]
	c.portalQueue = c.portalQueue[1:]
	c.PortalQueries = append(c.PortalQueries, q)
	if ps.openErr != nil {
		return nil, ps.openErr
	}
	p := &Portal{
		Name:   name,
		fields: Fields(ps.cols, q.ResultFormat),
		rows:   mustEncodeRows(c.M, ps.cols, q.ResultFormat, ps.rows),
		tag:    pgconn.NewCommandTag(ps.tag),
		script: ps,
	}
	c.Portals = append(c.Portals, p)
	return p, nil
}

// OpenPortalCount reports how many portals are still open, the leak meter
// of the resource-safety tests.
func (c *Conn) OpenPortalCount() int {
	n := 0
	for _, p := range c.Portals {
		if !p.Closed {
			n++
		}
	}
	return n
}

// Unconsumed reports scripted replies that were never used, which usually
// means the test expected more traffic than happened.
func (c *Conn) Unconsumed() int {
	return len(c.submitQueue) + len(c.portalQueue)
}

// Portal is the scripted pq.Portal. It emulates the server's suspension
// rule: a pull that fills its row budget suspends even when the result is
// exactly exhausted, so the final pull of an evenly divisible result comes
// back empty with the command tag.
type Portal struct {
	Name   string
	Pulls  []int
	Closed bool

	fields []pgconn.FieldDescription
	rows   [][][]byte
	tag    pgconn.CommandTag
	i      int
	script *PortalScript
}

func (p *Portal) Fields() []pgconn.FieldDescription {
	return p.fields
}

func (p *Portal) Pull(ctx context.Context, n int) (*pq.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Closed {
		return nil, fmt.Errorf("pull from closed portal %s", p.Name)
	}
	pull := len(p.Pulls)
	p.Pulls = append(p.Pulls, n)
	if p.script.pullErr != nil && pull == p.script.pullErrAt {
		// A server error aborts the implicit transaction and destroys
		// the portal with it.
		p.Closed = true
		return nil, p.script.pullErr
	}
	k := min(n, len(p.rows)-p.i)
	chunk := &pq.Chunk{Rows: p.rows[p.i : p.i+k]}
	p.i += k
	if k < n {
		chunk.Done = true
		chunk.Tag = p.tag
	}
	return chunk, nil
}

func (p *Portal) Close(ctx context.Context) error {
	if p.Closed {
		return nil
	}
	p.Closed = true
	return p.script.closeErr
}
