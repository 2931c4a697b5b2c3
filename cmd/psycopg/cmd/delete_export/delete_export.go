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

package delete_export

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	pgDomains "github.com/Enybeatz/psycopg/internal/domains"
	"github.com/Enybeatz/psycopg/internal/storages"
	"github.com/Enybeatz/psycopg/internal/storages/builder"
	"github.com/Enybeatz/psycopg/internal/utils/logger"
)

var (
	Cmd = &cobra.Command{
		Use:   "delete",
		Short: "delete export from the storage with a specific ID",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := logger.SetLogLevel(Config.Log.Level, Config.Log.Format); err != nil {
				log.Fatal().Err(err).Msg("")
			}

			if err := deleteExport(args[0]); err != nil {
				log.Fatal().Err(err).Msg("")
			}
		},
	}
	Config = pgDomains.NewConfig()
)

func deleteExport(exportId string) error {

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st, err := builder.GetStorage(ctx, &Config.Storage, &Config.Log)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}

	_, dirs, err := st.ListDir(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}

	if !slices.ContainsFunc(dirs, func(sst storages.Storager) bool {
		return exportId == sst.Dirname()
	}) {
		return fmt.Errorf("export with id %s was not found", exportId)
	}

	if err = st.DeleteAll(ctx, exportId); err != nil {
		return fmt.Errorf("storage error: %s", err)
	}

	return nil
}
