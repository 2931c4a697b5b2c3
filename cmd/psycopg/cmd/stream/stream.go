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

package stream

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	pgDomains "github.com/Enybeatz/psycopg/internal/domains"
	"github.com/Enybeatz/psycopg/internal/render"
	"github.com/Enybeatz/psycopg/internal/utils/dbconn"
	"github.com/Enybeatz/psycopg/internal/utils/logger"
)

var (
	Cmd = &cobra.Command{
		Use:   "stream [flags] statement [param...]",
		Short: "stream a result of any size to stdout as json lines",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := logger.SetLogLevel(Config.Log.Level, Config.Log.Format); err != nil {
				log.Fatal().Err(err).Msg("")
			}

			if err := runStream(args[0], args[1:]); err != nil {
				log.Fatal().Err(err).Msg("")
			}
		},
	}
	Config = pgDomains.NewConfig()
)

// runStream pages the result through a server-side portal, so memory stays
// bounded by the cursor's stream size however large the result is.
func runStream(statement string, params []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, cur, err := dbconn.Open(ctx, Config)
	if err != nil {
		return err
	}
	defer dbconn.Close(ctx, conn)

	rs, err := cur.Stream(ctx, statement, queryArgs(params))
	if err != nil {
		return err
	}
	defer func() {
		if err := rs.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing row stream")
		}
	}()

	fields := rs.Fields()
	columns := make([]string, len(fields))
	for idx, f := range fields {
		columns[idx] = f.Name
	}

	out := bufio.NewWriter(os.Stdout)
	rw := render.NewJsonRowWriter(out, "")
	if err := rw.Open(columns); err != nil {
		return err
	}

	for rs.Next() {
		values, ok := rs.Row().([]any)
		if !ok {
			return fmt.Errorf("streaming requires rows decoded as value slices, got %T", rs.Row())
		}
		if err := rw.WriteRow(values); err != nil {
			return err
		}
	}
	if err := rs.Err(); err != nil {
		return err
	}
	if err := rw.Close(); err != nil {
		return err
	}
	return out.Flush()
}

func queryArgs(params []string) []any {
	if len(params) == 0 {
		return nil
	}
	args := make([]any, len(params))
	for idx, p := range params {
		args[idx] = p
	}
	return args
}
