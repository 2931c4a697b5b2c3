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

package show_export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	pgDomains "github.com/Enybeatz/psycopg/internal/domains"
	"github.com/Enybeatz/psycopg/internal/export"
	"github.com/Enybeatz/psycopg/internal/storages"
	"github.com/Enybeatz/psycopg/internal/storages/builder"
	"github.com/Enybeatz/psycopg/internal/utils/exportstatus"
	"github.com/Enybeatz/psycopg/internal/utils/logger"
)

const (
	latestExportName = "latest"
)

var (
	Config = pgDomains.NewConfig()
	format string
)

var (
	Cmd = &cobra.Command{
		Use:   "show-export [flags] exportId|latest",
		Args:  cobra.ExactArgs(1),
		Short: "shows the manifest of the export",
		Run: func(cmd *cobra.Command, args []string) {
			if err := logger.SetLogLevel(Config.Log.Level, Config.Log.Format); err != nil {
				log.Fatal().Err(err).Msg("error setting up logger")
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			st, err := builder.GetStorage(ctx, &Config.Storage, &Config.Log)
			if err != nil {
				log.Fatal().Err(err).Msg("error building storage")
			}

			exportId := args[0]
			if exportId == latestExportName {
				exportId, err = latestExportId(ctx, st)
				if err != nil {
					log.Fatal().Err(err).Msg("")
				}
			}

			if err := showExport(ctx, st, exportId); err != nil {
				log.Fatal().Err(err).Msg("")
			}
		},
	}
)

// latestExportId picks the completed export that started last. Export ids
// are uuids, so the manifests decide the order, not the directory names.
func latestExportId(ctx context.Context, st storages.Storager) (string, error) {
	_, dirs, err := st.ListDir(ctx)
	if err != nil {
		return "", fmt.Errorf("cannot walk through storage: %w", err)
	}

	var latest string
	var latestStarted time.Time
	for _, dir := range dirs {
		status, mf, err := exportstatus.GetExportStatusAndManifest(ctx, dir)
		if err != nil {
			log.Warn().
				Err(err).
				Str("ExportId", dir.Dirname()).
				Msg("unable to read export manifest")
			continue
		}
		if status != exportstatus.DoneStatusName {
			continue
		}
		if mf.StartedAt.After(latestStarted) {
			latest = dir.Dirname()
			latestStarted = mf.StartedAt
		}
	}
	if latest == "" {
		return "", fmt.Errorf("no completed exports found")
	}
	return latest, nil
}

func showExport(ctx context.Context, st storages.Storager, exportId string) error {
	mf, err := exportstatus.GetManifest(ctx, st.SubStorage(exportId, true))
	if err != nil {
		return fmt.Errorf("cannot read manifest of export %s: %w", exportId, err)
	}

	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(mf)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(mf); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		showText(mf)
		return nil
	}
	return fmt.Errorf("unknown format %s", format)
}

func showText(mf *export.Manifest) {
	summary := tablewriter.NewWriter(os.Stdout)
	summary.SetHeader([]string{"export id", "query", "rows", "size", "compressed size", "checksum", "started", "duration"})
	summary.Append([]string{
		mf.ExportId,
		mf.Query,
		fmt.Sprintf("%d", mf.RowCount),
		SizePretty(mf.OriginalSize),
		SizePretty(mf.CompressedSize),
		mf.Checksum,
		mf.StartedAt.Format(time.RFC3339),
		time.Time{}.Add(mf.CompletedAt.Sub(mf.StartedAt)).Format("15:04:05"),
	})
	summary.Render()

	parts := tablewriter.NewWriter(os.Stdout)
	parts.SetHeader([]string{"name", "rows", "size", "compressed size", "checksum"})
	for _, p := range mf.Parts {
		parts.Append([]string{
			p.Name,
			fmt.Sprintf("%d", p.RowCount),
			SizePretty(p.OriginalSize),
			SizePretty(p.CompressedSize),
			p.Checksum,
		})
	}
	parts.Render()
}

func SizePretty(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

func init() {
	Cmd.Flags().StringVarP(&format, "format", "f", "text", "output format [text|yaml|json]")
}
