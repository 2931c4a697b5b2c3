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
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"

	"github.com/Enybeatz/psycopg/pq"
)

const (
	defaultFetchSize  = 1
	defaultStreamSize = 100
)

// Option configures a new cursor.
type Option func(*Cursor)

// WithRowFactory sets the factory that materializes fetched rows. The
// default is TupleRow.
func WithRowFactory(rf RowFactory) Option {
	return func(c *Cursor) { c.factory = rf }
}

// WithFormat sets the cursor's result format preference. Per-call overrides
// still win; the final fallback is text.
func WithFormat(f pq.Format) Option {
	return func(c *Cursor) { c.format = f }
}

// WithFetchSize sets how many rows FetchMany returns when called with a
// non-positive size.
func WithFetchSize(n int) Option {
	return func(c *Cursor) { c.fetchSize = n }
}

// WithStreamSize sets how many rows each portal pull requests during
// streaming.
func WithStreamSize(n int) Option {
	return func(c *Cursor) { c.streamSize = n }
}

// ExecOption configures a single execution.
type ExecOption func(*execConfig)

type execConfig struct {
	format pq.Format
}

// WithResultFormat overrides the result format for one call only.
func WithResultFormat(f pq.Format) ExecOption {
	return func(ec *execConfig) { ec.format = f }
}

// Cursor executes statements over a connection and pages through their
// results. It owns the buffered result sets, the row position within the
// current one, the row factory, and at most one active stream.
//
// A cursor is not safe for concurrent use: the caller serializes access,
// and only one operation may be in flight on the underlying connection.
type Cursor struct {
	conn       Conn
	format     pq.Format
	fetchSize  int
	streamSize int
	factory    RowFactory
	fgen       uint64

	results   []*pq.Result
	index     int
	pos       int
	maker     RowMaker
	makerGen  uint64
	lastQuery *pq.Query
	rowcount  int64
	stream    *RowStream
	closed    bool
}

// NewCursor builds a cursor over conn.
func NewCursor(conn Conn, opts ...Option) *Cursor {
	c := &Cursor{
		conn:       conn,
		format:     pq.FormatDefault,
		fetchSize:  defaultFetchSize,
		streamSize: defaultStreamSize,
		factory:    TupleRow,
		rowcount:   -1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute runs a statement and buffers every result it produces. A nil args
// slice goes through the simple protocol, which permits multiple
// semicolon-separated statements; passing arguments (even zero of them as an
// empty non-nil slice) switches to the extended protocol, where the server
// enforces a single statement.
//
// On a server error the previous results are discarded and the error comes
// back classified; on context cancellation nothing is published and the
// previous results stay intact.
func (c *Cursor) Execute(ctx context.Context, sql string, args []any, opts ...ExecOption) error {
	if c.closed {
		return interfaceError("the cursor is closed")
	}
	c.detachStream(ctx)

	var cfg execConfig
	cfg.format = pq.FormatDefault
	for _, opt := range opts {
		opt(&cfg)
	}
	resFmt := cfg.format.Resolve(c.format)

	if leadingKeyword(sql) == "COPY" {
		return programmingError("COPY statements are not supported")
	}
	q, err := c.conn.Adapt(sql, args, resFmt)
	if err != nil {
		return dataError("cannot adapt query", err)
	}
	c.lastQuery = q

	results, err := c.conn.Submit(ctx, q)
	if err != nil {
		if ctx.Err() != nil {
			// Nothing was published; the previous results survive.
			return classify(err)
		}
		c.discardResults()
		return classify(err)
	}
	if err := rejectCopyResults(results); err != nil {
		c.discardResults()
		return err
	}

	c.publish(results)
	return c.ensureMaker()
}

// ExecuteMany runs the same statement once per argument set, sequentially
// and always through the extended protocol. The rowcount accumulates across
// sets; the buffered results, status message and last query are those of the
// final set, so RETURNING rows of the last set stay fetchable.
//
// An argument set that cannot be adapted stops the loop before that set is
// sent; earlier sets remain applied and published. A server error discards
// the cursor's results like a failed Execute does.
func (c *Cursor) ExecuteMany(ctx context.Context, sql string, argSets [][]any) error {
	if c.closed {
		return interfaceError("the cursor is closed")
	}
	c.detachStream(ctx)

	if leadingKeyword(sql) == "COPY" {
		return programmingError("COPY statements are not supported")
	}
	resFmt := pq.FormatDefault.Resolve(c.format)

	var (
		last    []*pq.Result
		total   int64
		counted bool
		retErr  error
	)
	for i, args := range argSets {
		if args == nil {
			args = []any{}
		}
		q, err := c.conn.Adapt(sql, args, resFmt)
		if err != nil {
			retErr = dataError(fmt.Sprintf("cannot adapt argument set %d", i), err)
			break
		}
		c.lastQuery = q

		results, err := c.conn.Submit(ctx, q)
		if err != nil {
			if ctx.Err() == nil {
				c.discardResults()
				return classify(err)
			}
			retErr = classify(err)
			break
		}
		if err := rejectCopyResults(results); err != nil {
			c.discardResults()
			return err
		}
		for _, r := range results {
			if n := rowcountOf(r); n >= 0 {
				total += n
				counted = true
			}
		}
		last = results
	}

	if last != nil {
		c.publish(last)
	}
	if counted {
		c.rowcount = total
	}
	if retErr != nil {
		return retErr
	}
	if last == nil {
		return nil
	}
	return c.ensureMaker()
}

// FetchOne returns the next row of the current result, or (nil, nil) once
// the result is exhausted.
func (c *Cursor) FetchOne() (any, error) {
	r, err := c.fetchableResult()
	if err != nil {
		return nil, err
	}
	if c.pos >= len(r.Rows) {
		return nil, nil
	}
	row, err := c.buildRow(r, c.pos)
	if err != nil {
		return nil, err
	}
	c.pos++
	return row, nil
}

// FetchMany returns up to n rows; a non-positive n uses the cursor's fetch
// size. Fewer rows (possibly none) come back near the end of the result.
func (c *Cursor) FetchMany(n int) ([]any, error) {
	r, err := c.fetchableResult()
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = c.fetchSize
	}
	rows := make([]any, 0, min(n, len(r.Rows)-c.pos))
	for len(rows) < n && c.pos < len(r.Rows) {
		row, err := c.buildRow(r, c.pos)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		c.pos++
	}
	return rows, nil
}

// FetchAll returns every remaining row of the current result.
func (c *Cursor) FetchAll() ([]any, error) {
	r, err := c.fetchableResult()
	if err != nil {
		return nil, err
	}
	rows := make([]any, 0, len(r.Rows)-c.pos)
	for c.pos < len(r.Rows) {
		row, err := c.buildRow(r, c.pos)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		c.pos++
	}
	return rows, nil
}

// ScrollMode selects how Scroll interprets its value.
type ScrollMode string

const (
	ScrollRelative ScrollMode = "relative"
	ScrollAbsolute ScrollMode = "absolute"
)

// Scroll moves the position within the current result. The target must land
// in [0, rowcount]; rowcount itself is the legal one-past-last position from
// which a fetch returns no rows. Out-of-range targets fail wrapping
// ErrOutOfRange and leave the position untouched; a relative move of zero
// rows is rejected as a programming error.
func (c *Cursor) Scroll(value int, mode ScrollMode) error {
	if c.closed {
		return interfaceError("the cursor is closed")
	}
	switch mode {
	case ScrollRelative, ScrollAbsolute:
	default:
		return fmt.Errorf("%w: scroll mode %q, expected %q or %q",
			ErrInvalidArgument, string(mode), ScrollRelative, ScrollAbsolute)
	}
	if c.stream != nil {
		return programmingError("scroll cannot be used while a stream is active")
	}
	r := c.currentResult()
	if r == nil || r.Status != pq.StatusTuplesOK {
		return programmingError("the last operation didn't produce a result")
	}
	if mode == ScrollRelative && value == 0 {
		return programmingError("relative scroll of zero rows is not allowed")
	}
	target := value
	if mode == ScrollRelative {
		target = c.pos + value
	}
	if target < 0 || target > len(r.Rows) {
		return fmt.Errorf("%w: target position %d, result has %d rows",
			ErrOutOfRange, target, len(r.Rows))
	}
	c.pos = target
	return nil
}

// NextResultSet advances to the next buffered result, resetting the
// position. It reports false when no further result remains or the cursor
// is closed, and never fails.
func (c *Cursor) NextResultSet() bool {
	if c.closed || c.stream != nil {
		return false
	}
	if c.index+1 >= len(c.results) {
		return false
	}
	c.index++
	c.pos = 0
	c.maker = nil
	c.rowcount = rowcountOf(c.results[c.index])
	return true
}

// Close releases the cursor: any active stream's portal is closed first,
// then the buffered results are dropped. RowCount stays frozen at its last
// value. Closing twice is a no-op.
func (c *Cursor) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	var err error
	if c.stream != nil {
		err = c.stream.closeWith(ctx)
		c.stream = nil
	}
	c.closed = true
	c.results = nil
	c.maker = nil
	return err
}

func (c *Cursor) Closed() bool {
	return c.closed
}

// RowCount reports the size of the current result: buffered rows for row
// returning statements, the command tag's count for INSERT and friends, -1
// when no count applies. During a stream it accumulates the rows pulled so
// far. Close freezes the last value.
func (c *Cursor) RowCount() int64 {
	return c.rowcount
}

// RowNumber reports the zero-based position within the current result, -1
// when there is none.
func (c *Cursor) RowNumber() int {
	if c.closed || len(c.results) == 0 {
		return -1
	}
	return c.pos
}

// StatusMessage returns the command tag of the current result, "" when
// there is none.
func (c *Cursor) StatusMessage() string {
	if c.closed {
		return ""
	}
	if r := c.currentResult(); r != nil {
		return r.Tag.String()
	}
	return ""
}

// Result exposes the current raw result, nil when there is none. During a
// stream it mirrors the chunk pulled last.
func (c *Cursor) Result() *pq.Result {
	return c.currentResult()
}

// Description returns the row description of the current result, nil for
// statements that return no rows.
func (c *Cursor) Description() []pgconn.FieldDescription {
	r := c.currentResult()
	if r == nil || r.Status != pq.StatusTuplesOK {
		return nil
	}
	return r.Fields
}

// LastQuery returns the most recently adapted submission, including its
// encoded parameters, even when the server rejected it.
func (c *Cursor) LastQuery() *pq.Query {
	return c.lastQuery
}

func (c *Cursor) RowFactory() RowFactory {
	return c.factory
}

// SetRowFactory swaps the row factory. The swap takes effect on the next
// produced row, including in the middle of a result or a stream.
func (c *Cursor) SetRowFactory(rf RowFactory) {
	c.factory = rf
	c.fgen++
}

// Format reports the cursor's result format preference.
func (c *Cursor) Format() pq.Format {
	return c.format
}

func (c *Cursor) FetchSize() int {
	return c.fetchSize
}

func (c *Cursor) SetFetchSize(n int) {
	if n > 0 {
		c.fetchSize = n
	}
}

func (c *Cursor) StreamSize() int {
	return c.streamSize
}

func (c *Cursor) SetStreamSize(n int) {
	if n > 0 {
		c.streamSize = n
	}
}

// String renders the cursor state for logs: result status (or absence) and
// the connection's transaction status when it exposes one.
func (c *Cursor) String() string {
	var b strings.Builder
	b.WriteString("psycopg.Cursor")
	switch {
	case c.closed:
		b.WriteString(" [closed]")
	case len(c.results) == 0:
		b.WriteString(" [no result]")
	default:
		fmt.Fprintf(&b, " [%s]", c.results[c.index].Status)
	}
	if tc, ok := c.conn.(interface{ TxStatus() byte }); ok {
		fmt.Fprintf(&b, " [%s]", txStatusName(tc.TxStatus()))
	}
	return b.String()
}

func txStatusName(s byte) string {
	switch s {
	case 'I':
		return "IDLE"
	case 'T':
		return "INTRANS"
	case 'E':
		return "INERROR"
	case 'A':
		return "ACTIVE"
	default:
		return fmt.Sprintf("TX_%c", s)
	}
}

func (c *Cursor) currentResult() *pq.Result {
	if len(c.results) == 0 {
		return nil
	}
	return c.results[c.index]
}

func (c *Cursor) fetchableResult() (*pq.Result, error) {
	if c.closed {
		return nil, interfaceError("the cursor is closed")
	}
	if c.stream != nil {
		return nil, programmingError("fetch cannot be used while a stream is active")
	}
	r := c.currentResult()
	if r == nil || r.Status != pq.StatusTuplesOK {
		return nil, programmingError("the last operation didn't produce a result")
	}
	return r, nil
}

// publish installs a fully materialized result list. Nothing mutates the
// visible state before this point, so failed submissions never leave a
// half-updated cursor behind.
func (c *Cursor) publish(results []*pq.Result) {
	c.results = results
	c.index = 0
	c.pos = 0
	c.maker = nil
	c.rowcount = rowcountOf(results[0])
}

func (c *Cursor) discardResults() {
	c.results = nil
	c.index = 0
	c.pos = 0
	c.maker = nil
	c.rowcount = -1
}

// ensureMaker builds the row maker for the current result if it is row
// returning and the factory changed or was never consulted. Factory errors
// propagate untouched; the result stays published, so swapping in a working
// factory afterwards makes the rows fetchable.
func (c *Cursor) ensureMaker() error {
	r := c.currentResult()
	if r == nil || r.Status != pq.StatusTuplesOK {
		return nil
	}
	if c.maker != nil && c.makerGen == c.fgen {
		return nil
	}
	mk, err := c.factory(r.Fields)
	if err != nil {
		c.maker = nil
		return err
	}
	c.maker = mk
	c.makerGen = c.fgen
	return nil
}

func (c *Cursor) buildRow(r *pq.Result, i int) (any, error) {
	if err := c.ensureMaker(); err != nil {
		return nil, err
	}
	values, err := decodeRow(c.conn.TypeMap(), r.Fields, r.Rows[i])
	if err != nil {
		return nil, err
	}
	return c.maker(values)
}

// detachStream force-closes an abandoned stream before a new execution
// claims the connection. Close failures are logged, not returned: the new
// execution's outcome is what the caller asked about.
func (c *Cursor) detachStream(ctx context.Context) {
	if c.stream == nil {
		return
	}
	if err := c.stream.closeWith(ctx); err != nil {
		log.Warn().Err(err).Msg("cannot close superseded stream")
	}
	c.stream = nil
}

func rejectCopyResults(results []*pq.Result) error {
	for _, r := range results {
		switch r.Status {
		case pq.StatusCopyIn, pq.StatusCopyOut, pq.StatusCopyBoth:
			return programmingError("COPY statements are not supported")
		}
		if pq.TagVerb(r.Tag) == "COPY" {
			return programmingError("COPY statements are not supported")
		}
	}
	return nil
}

// rowcountOf derives the affected/returned row count of one result: the
// buffered row count for row-returning statements, the trailing count of
// the command tag for the verbs that carry one, -1 otherwise.
func rowcountOf(r *pq.Result) int64 {
	switch r.Status {
	case pq.StatusTuplesOK:
		return int64(len(r.Rows))
	case pq.StatusCommandOK:
		switch pq.TagVerb(r.Tag) {
		case "INSERT", "UPDATE", "DELETE", "SELECT", "MOVE", "FETCH", "COPY", "MERGE":
			return r.Tag.RowsAffected()
		}
		return -1
	default:
		return -1
	}
}

// leadingKeyword extracts the first SQL keyword, skipping whitespace and
// comments, uppercased for comparison.
func leadingKeyword(sql string) string {
	s := strings.TrimSpace(sql)
	for {
		switch {
		case strings.HasPrefix(s, "--"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return ""
			}
			s = strings.TrimSpace(s[i+1:])
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s, "*/")
			if i < 0 {
				return ""
			}
			s = strings.TrimSpace(s[i+2:])
		default:
			i := 0
			for i < len(s) {
				ch := s[i]
				if (ch < 'a' || ch > 'z') && (ch < 'A' || ch > 'Z') {
					break
				}
				i++
			}
			return strings.ToUpper(s[:i])
		}
	}
}
