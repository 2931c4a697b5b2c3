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

package list_exports

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Enybeatz/psycopg/internal/domains"
	"github.com/Enybeatz/psycopg/internal/storages"
	"github.com/Enybeatz/psycopg/internal/storages/builder"
	"github.com/Enybeatz/psycopg/internal/utils/exportstatus"
	"github.com/Enybeatz/psycopg/internal/utils/logger"
)

var (
	Cmd = &cobra.Command{
		Use:   "list-exports",
		Short: "list all exports in the storage",
		Run: func(cmd *cobra.Command, args []string) {
			if err := logger.SetLogLevel(Config.Log.Level, Config.Log.Format); err != nil {
				log.Err(err).Msg("")
			}

			if err := listExports(); err != nil {
				log.Fatal().Err(err).Msg("")
			}
		},
	}
	Config = domains.NewConfig()
)

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

func listExports() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st, err := builder.GetStorage(ctx, &Config.Storage, &Config.Log)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}

	_, dirs, err := st.ListDir(ctx)
	if err != nil {
		return err
	}

	var data [][]string

	for _, ex := range dirs {
		exportId := ex.Dirname()
		if err = renderListItem(ctx, ex, &data); err != nil {
			log.Warn().
				Err(err).
				Str("ExportId", exportId).
				Msg("unable to render list export item")
		}
	}

	slices.SortFunc(data, func(a, b []string) int {
		if a[1] > b[1] {
			return -1
		}
		return 1
	})

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"id", "date", "rows", "size", "compressed size", "duration", "parts", "status"})
	table.AppendBulk(data)
	table.Render()
	return nil
}

func renderListItem(ctx context.Context, st storages.Storager, data *[][]string) error {
	exportId := st.Dirname()

	status, mf, err := exportstatus.GetExportStatusAndManifest(ctx, st)
	if err != nil {
		return fmt.Errorf("failed to get status and manifest: %w", err)
	}

	var creationDate, rows, size, compressedSize, duration, parts string
	if status == exportstatus.DoneStatusName {
		creationDate = mf.StartedAt.Format(time.RFC3339)
		rows = fmt.Sprintf("%d", mf.RowCount)
		size = SizePretty(mf.OriginalSize)
		compressedSize = SizePretty(mf.CompressedSize)
		diff := mf.CompletedAt.Sub(mf.StartedAt)
		duration = time.Time{}.Add(diff).Format("15:04:05")
		parts = fmt.Sprintf("%d", len(mf.Parts))
	}

	*data = append(*data, []string{
		exportId,
		creationDate,
		rows,
		size,
		compressedSize,
		duration,
		parts,
		status,
	})
	return nil
}
