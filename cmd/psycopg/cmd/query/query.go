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

package query

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	psycopg "github.com/Enybeatz/psycopg"
	pgDomains "github.com/Enybeatz/psycopg/internal/domains"
	"github.com/Enybeatz/psycopg/internal/render"
	"github.com/Enybeatz/psycopg/internal/utils/dbconn"
	"github.com/Enybeatz/psycopg/internal/utils/logger"
)

var (
	Cmd = &cobra.Command{
		Use:   "query [flags] statement [param...]",
		Short: "execute a statement and render its result sets",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := logger.SetLogLevel(Config.Log.Level, Config.Log.Format); err != nil {
				log.Fatal().Err(err).Msg("")
			}

			if err := runQuery(args[0], args[1:]); err != nil {
				log.Fatal().Err(err).Msg("")
			}
		},
	}
	Config = pgDomains.NewConfig()
)

func runQuery(statement string, params []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, cur, err := dbconn.Open(ctx, Config)
	if err != nil {
		return err
	}
	defer dbconn.Close(ctx, conn)

	filter, err := render.NewRowFilter(Config.Output.Filter)
	if err != nil {
		return err
	}

	if err := cur.Execute(ctx, statement, queryArgs(params)); err != nil {
		return err
	}

	for {
		if err := renderResult(cur, filter); err != nil {
			return err
		}
		if !cur.NextResultSet() {
			break
		}
	}
	return nil
}

// renderResult streams the current result set through a row writer. Results
// without rows (INSERT and friends) log their command tag instead of
// producing output.
func renderResult(cur *psycopg.Cursor, filter *render.RowFilter) error {
	fields := cur.Description()
	if fields == nil {
		if tag := cur.StatusMessage(); tag != "" {
			log.Info().Str("status", tag).Msg("statement completed")
		}
		return nil
	}

	columns := make([]string, len(fields))
	for idx, f := range fields {
		columns[idx] = f.Name
	}

	rw, err := render.GetRowWriter(os.Stdout, &Config.Output)
	if err != nil {
		return err
	}
	if err := rw.Open(columns); err != nil {
		return err
	}

	rowNum := 0
	for {
		rows, err := cur.FetchMany(0)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			values, ok := row.([]any)
			if !ok {
				return fmt.Errorf("rendering requires rows decoded as value slices, got %T", row)
			}
			matched, err := filter.Matches(columns, values, rowNum)
			rowNum++
			if err != nil {
				return err
			}
			if !matched {
				continue
			}
			if err := rw.WriteRow(values); err != nil {
				return err
			}
		}
	}
	return rw.Close()
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

func init() {
	Cmd.Flags().StringP("format", "f", render.TextFormatName, "output format [text|json|yaml|template]")
	Cmd.Flags().StringP("template", "", "", "go template applied to each row when the format is template")
	Cmd.Flags().StringP("jsonpath", "", "", "gjson path extracting a single value per row when the format is json")
	Cmd.Flags().StringP("where", "", "", "expr filter selecting the rows to render")
	Cmd.Flags().IntP("max-column-width", "", 0, "wrap table cells wider than this many characters")

	for _, binding := range []struct{ key, flagName string }{
		{"output.format", "format"},
		{"output.template", "template"},
		{"output.path", "jsonpath"},
		{"output.filter", "where"},
		{"output.max_column_width", "max-column-width"},
	} {
		flag := Cmd.Flags().Lookup(binding.flagName)
		if err := viper.BindPFlag(binding.key, flag); err != nil {
			log.Fatal().Err(err).Msg("")
		}
	}
}
