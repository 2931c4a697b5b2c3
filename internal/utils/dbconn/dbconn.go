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

// Package dbconn opens wire connections and cursors configured from the
// application config.
package dbconn

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	psycopg "github.com/Enybeatz/psycopg"
	"github.com/Enybeatz/psycopg/internal/domains"
	"github.com/Enybeatz/psycopg/pq"
)

// Open connects using the database section of the config and returns the
// connection together with a cursor carrying the configured defaults. An
// empty URI falls back to the PG* environment variables.
func Open(ctx context.Context, cfg *domains.Config) (*pq.Wire, *psycopg.Cursor, error) {
	connectCtx := ctx
	if cfg.Database.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
		defer cancel()
	}

	conn, err := psycopg.Connect(connectCtx, cfg.Database.URI)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot connect to database: %w", err)
	}

	format, err := pq.ParseFormat(cfg.Cursor.Format)
	if err != nil {
		Close(ctx, conn)
		return nil, nil, err
	}

	opts := []psycopg.Option{psycopg.WithFormat(format)}
	if cfg.Cursor.FetchSize > 0 {
		opts = append(opts, psycopg.WithFetchSize(cfg.Cursor.FetchSize))
	}
	if cfg.Cursor.StreamSize > 0 {
		opts = append(opts, psycopg.WithStreamSize(cfg.Cursor.StreamSize))
	}
	cur := psycopg.NewCursor(conn, opts...)

	if cfg.Database.StatementTimeout > 0 {
		sql := fmt.Sprintf("SET statement_timeout TO %d", cfg.Database.StatementTimeout.Milliseconds())
		if err := cur.Execute(ctx, sql, nil); err != nil {
			Close(ctx, conn)
			return nil, nil, fmt.Errorf("cannot set statement timeout: %w", err)
		}
	}

	return conn, cur, nil
}

// Close closes the connection logging the failure. Commands defer it.
func Close(ctx context.Context, conn *pq.Wire) {
	if err := conn.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("error closing database connection")
	}
}
