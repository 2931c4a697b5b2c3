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

package export

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	pgDomains "github.com/Enybeatz/psycopg/internal/domains"
	exportInternals "github.com/Enybeatz/psycopg/internal/export"
	"github.com/Enybeatz/psycopg/internal/storages"
	"github.com/Enybeatz/psycopg/internal/storages/builder"
	"github.com/Enybeatz/psycopg/internal/utils/dbconn"
	"github.com/Enybeatz/psycopg/internal/utils/logger"
)

var (
	Cmd = &cobra.Command{
		Use:   "export [flags] statement",
		Short: "stream a result into the storage, masked and split into parts",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := logger.SetLogLevel(Config.Log.Level, Config.Log.Format); err != nil {
				log.Fatal().Err(err).Msg("")
			}

			if err := runExport(args[0]); err != nil {
				log.Fatal().Err(err).Msg("cannot export the result")
			}
		},
	}
	Config   = pgDomains.NewConfig()
	exportId string
	output   string
)

func runExport(statement string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var st storages.Storager
	var err error
	if output != "" {
		st, err = builder.GetStorageFromURI(ctx, output, Config)
	} else {
		st, err = builder.GetStorage(ctx, &Config.Storage, &Config.Log)
	}
	if err != nil {
		return err
	}

	conn, cur, err := dbconn.Open(ctx, Config)
	if err != nil {
		return err
	}
	defer dbconn.Close(ctx, conn)

	mf, err := exportInternals.Run(ctx, cur, st, &exportInternals.Options{
		Query:       statement,
		ExportId:    exportId,
		RowsPerPart: Config.Export.RowsPerPart,
		Compression: Config.Export.Compression,
		UsePgzip:    Config.Export.UsePgzip,
		MaskColumns: Config.Export.MaskColumns,
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("ExportId", mf.ExportId).
		Int64("RowCount", mf.RowCount).
		Int64("OriginalSize", mf.OriginalSize).
		Int64("CompressedSize", mf.CompressedSize).
		Str("Checksum", mf.Checksum).
		Str("Duration", mf.CompletedAt.Sub(mf.StartedAt).String()).
		Msg("export completed")
	return nil
}

func init() {
	Cmd.Flags().StringVarP(&output, "output", "o", "",
		"write into this location (directory path or s3://bucket/prefix) instead of the configured storage")
	Cmd.Flags().StringVarP(&exportId, "export-id", "", "",
		"identifier naming the export in the storage (default: random uuid)")
	Cmd.Flags().Int64P("rows-per-part", "", 0, "split the export into parts of at most this many rows")
	Cmd.Flags().BoolP("compression", "", true, "gzip compress the uploaded parts")
	Cmd.Flags().BoolP("use-pgzip", "", false, "compress with the parallel gzip implementation")
	Cmd.Flags().StringSliceP("mask", "", []string{},
		"mask this column before upload, either a name or name:rule (rules: password, name, addr, email, mobile, tel, id, credit_cart, url, default)")

	for _, binding := range []struct{ key, flagName string }{
		{"export.rows_per_part", "rows-per-part"},
		{"export.compression", "compression"},
		{"export.use_pgzip", "use-pgzip"},
		{"export.mask_columns", "mask"},
	} {
		flag := Cmd.Flags().Lookup(binding.flagName)
		if err := viper.BindPFlag(binding.key, flag); err != nil {
			log.Fatal().Err(err).Msg("")
		}
	}
}
