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

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/rs/zerolog/log"
)

// Portal is a server-side portal delivering a statement's rows in chunks.
// Pull may be called until a chunk reports Done; Close releases the portal
// and is idempotent.
type Portal interface {
	Fields() []pgconn.FieldDescription
	Pull(ctx context.Context, n int) (*Chunk, error)
	Close(ctx context.Context) error
}

// OpenPortal parses and binds a query to a named portal and describes it,
// all inside one extended-protocol unit terminated by Flush rather than
// Sync: the implicit transaction must stay open, otherwise the portal would
// be destroyed before the first pull.
//
// A statement that cannot return rows fails with ErrNoRows before any
// Execute reaches the server.
func (w *Wire) OpenPortal(ctx context.Context, name string, q *Query) (Portal, error) {
	log.Debug().
		Str("query_id", fingerprint(q.SQL)).
		Str("portal", name).
		Msg("opening portal")

	w.fe.Send(&pgproto3.Parse{Query: q.SQL, ParameterOIDs: q.ParamOIDs})
	w.fe.Send(&pgproto3.Bind{
		DestinationPortal:    name,
		ParameterFormatCodes: q.ParamFormats,
		Parameters:           q.Params,
		ResultFormatCodes:    []int16{int16(q.ResultFormat)},
	})
	w.fe.Send(&pgproto3.Describe{ObjectType: 'P', Name: name})
	w.fe.Send(&pgproto3.Flush{})
	if err := w.fe.Flush(); err != nil {
		return nil, err
	}

	for {
		msg, err := w.receive(ctx)
		if err != nil {
			return nil, err
		}
		switch v := msg.(type) {
		case *pgproto3.ParseComplete, *pgproto3.BindComplete:
		case *pgproto3.RowDescription:
			return &wirePortal{w: w, name: name, fields: copyFields(v.Fields)}, nil
		case *pgproto3.NoData:
			p := &wirePortal{w: w, name: name}
			if closeErr := p.Close(ctx); closeErr != nil {
				return nil, closeErr
			}
			return nil, ErrNoRows
		case *pgproto3.ErrorResponse:
			pgErr := pgErrorFromResponse(v)
			if drainErr := w.syncAndDrain(ctx); drainErr != nil {
				log.Warn().Err(drainErr).Msg("cannot resync after portal open failure")
			}
			return nil, pgErr
		case *pgproto3.NoticeResponse:
			log.Debug().Str("notice", v.Message).Msg("server notice during portal open")
		case *pgproto3.ParameterStatus, *pgproto3.NotificationResponse:
		default:
			return nil, fmt.Errorf("unexpected message %T while opening portal %s", msg, name)
		}
	}
}

type wirePortal struct {
	w      *Wire
	name   string
	fields []pgconn.FieldDescription
	closed bool
}

func (p *wirePortal) Fields() []pgconn.FieldDescription {
	return p.fields
}

// Pull executes the portal for at most n rows. Row values are copied out of
// the frontend's read buffer, which the next Receive reuses.
func (p *wirePortal) Pull(ctx context.Context, n int) (*Chunk, error) {
	if p.closed {
		return nil, fmt.Errorf("portal %s is closed", p.name)
	}
	p.w.fe.Send(&pgproto3.Execute{Portal: p.name, MaxRows: uint32(n)})
	p.w.fe.Send(&pgproto3.Flush{})
	if err := p.w.fe.Flush(); err != nil {
		return nil, err
	}

	chunk := &Chunk{}
	for {
		msg, err := p.w.receive(ctx)
		if err != nil {
			return nil, err
		}
		switch v := msg.(type) {
		case *pgproto3.DataRow:
			row := make([][]byte, len(v.Values))
			for i, val := range v.Values {
				if val != nil {
					row[i] = append([]byte(nil), val...)
				}
			}
			chunk.Rows = append(chunk.Rows, row)
		case *pgproto3.PortalSuspended:
			return chunk, nil
		case *pgproto3.CommandComplete:
			chunk.Done = true
			chunk.Tag = pgconn.NewCommandTag(string(v.CommandTag))
			return chunk, nil
		case *pgproto3.EmptyQueryResponse:
			chunk.Done = true
			return chunk, nil
		case *pgproto3.ErrorResponse:
			pgErr := pgErrorFromResponse(v)
			// The error aborted the implicit transaction and took the
			// portal with it.
			p.closed = true
			if drainErr := p.w.syncAndDrain(ctx); drainErr != nil {
				log.Warn().Err(drainErr).Msg("cannot resync after portal error")
			}
			return nil, pgErr
		case *pgproto3.CopyInResponse:
			p.w.fe.Send(&pgproto3.CopyFail{Message: "COPY is not supported"})
			p.closed = true
			if drainErr := p.w.syncAndDrain(ctx); drainErr != nil {
				log.Warn().Err(drainErr).Msg("cannot resync after rejecting COPY")
			}
			return nil, ErrCopy
		case *pgproto3.CopyOutResponse, *pgproto3.CopyBothResponse:
			p.closed = true
			if drainErr := p.w.syncAndDrain(ctx); drainErr != nil {
				log.Warn().Err(drainErr).Msg("cannot resync after rejecting COPY")
			}
			return nil, ErrCopy
		case *pgproto3.NoticeResponse:
			log.Debug().Str("notice", v.Message).Msg("server notice during portal pull")
		case *pgproto3.ParameterStatus, *pgproto3.NotificationResponse:
		default:
			return nil, fmt.Errorf("unexpected message %T while pulling from portal %s", msg, p.name)
		}
	}
}

// Close destroys the portal and ends the extended-protocol unit with a
// Sync, draining to ReadyForQuery.
func (p *wirePortal) Close(ctx context.Context) error {
	if p.closed {
		return nil
	}
	p.closed = true
	log.Debug().Str("portal", p.name).Msg("closing portal")
	p.w.fe.Send(&pgproto3.Close{ObjectType: 'P', Name: p.name})
	return p.w.syncAndDrain(ctx)
}

func copyFields(fields []pgproto3.FieldDescription) []pgconn.FieldDescription {
	out := make([]pgconn.FieldDescription, len(fields))
	for i, f := range fields {
		out[i] = pgconn.FieldDescription{
			Name:                 string(f.Name),
			TableOID:             f.TableOID,
			TableAttributeNumber: f.TableAttributeNumber,
			DataTypeOID:          f.DataTypeOID,
			DataTypeSize:         f.DataTypeSize,
			TypeModifier:         f.TypeModifier,
			Format:               f.Format,
		}
	}
	return out
}
