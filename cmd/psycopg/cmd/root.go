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

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Enybeatz/psycopg/cmd/psycopg/cmd/delete_export"
	"github.com/Enybeatz/psycopg/cmd/psycopg/cmd/export"
	"github.com/Enybeatz/psycopg/cmd/psycopg/cmd/list_exports"
	"github.com/Enybeatz/psycopg/cmd/psycopg/cmd/query"
	"github.com/Enybeatz/psycopg/cmd/psycopg/cmd/show_export"
	"github.com/Enybeatz/psycopg/cmd/psycopg/cmd/stream"
	pgDomains "github.com/Enybeatz/psycopg/internal/domains"
	configUtils "github.com/Enybeatz/psycopg/internal/utils/config"
)

var (
	Version    string
	Commit     string
	CommitDate string

	RootCmd = &cobra.Command{
		Use:   "psycopg",
		Short: "psycopg is a PostgreSQL client with server-side paging and result export",
		Long: "A PostgreSQL query tool built around client-side cursors. It executes " +
			"statements over the extended protocol, pages large results through " +
			"server-side portals with bounded memory, renders them as table, json, " +
			"yaml or template output, and exports result sets into a storage " +
			"(directory and S3) with optional column masking",
	}
	cfgFile string
	Config  = pgDomains.NewConfig()
)

func Execute() error {
	return RootCmd.Execute()
}

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				Commit = setting.Value
			}
			if setting.Key == "vcs.time" {
				CommitDate = setting.Value
			}
		}
	}
	if Version != "" {
		RootCmd.Version = fmt.Sprintf("%s %s %s", Version, Commit, CommitDate)
	} else {
		RootCmd.Version = fmt.Sprintf("%s %s", Commit, CommitDate)
	}

	cobra.OnInitialize(initConfig)
	// Removing short help flag from default
	RootCmd.PersistentFlags().BoolP("help", "", false, "help for psycopg")
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file ")
	RootCmd.PersistentFlags().StringP("uri", "", "", "postgres connection string or URI")
	RootCmd.PersistentFlags().StringP("log-format", "", "text", "logging format [text|json]")
	RootCmd.PersistentFlags().StringP("log-level", "", zerolog.LevelInfoValue,
		fmt.Sprintf(
			"logging level %s|%s|%s",
			zerolog.LevelDebugValue,
			zerolog.LevelInfoValue,
			zerolog.LevelWarnValue,
		),
	)
	RootCmd.PersistentFlags().StringP("result-format", "", "default", "requested result format [default|text|binary]")
	RootCmd.PersistentFlags().IntP("fetch-size", "", 1, "rows fetched from a buffered result per batch")
	RootCmd.PersistentFlags().IntP("stream-size", "", 100, "rows pulled from the server portal per round trip")

	RootCmd.AddCommand(query.Cmd)
	RootCmd.AddCommand(stream.Cmd)
	RootCmd.AddCommand(export.Cmd)
	RootCmd.AddCommand(list_exports.Cmd)
	RootCmd.AddCommand(show_export.Cmd)
	RootCmd.AddCommand(delete_export.Cmd)

	if err := viper.BindPFlag("database.uri", RootCmd.PersistentFlags().Lookup("uri")); err != nil {
		log.Fatal().Err(err).Msg("")
	}

	if err := viper.BindPFlag("log.format", RootCmd.PersistentFlags().Lookup("log-format")); err != nil {
		log.Fatal().Err(err).Msg("")
	}

	if err := viper.BindPFlag("log.level", RootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		log.Fatal().Err(err).Msg("")
	}

	if err := viper.BindPFlag("cursor.format", RootCmd.PersistentFlags().Lookup("result-format")); err != nil {
		log.Fatal().Err(err).Msg("")
	}

	if err := viper.BindPFlag("cursor.fetch_size", RootCmd.PersistentFlags().Lookup("fetch-size")); err != nil {
		log.Fatal().Err(err).Msg("")
	}

	if err := viper.BindPFlag("cursor.stream_size", RootCmd.PersistentFlags().Lookup("stream-size")); err != nil {
		log.Fatal().Err(err).Msg("")
	}

	if err := viper.BindEnv("database.uri", "PSYCOPG_DATABASE_URI"); err != nil {
		log.Fatal().Err(err).Msg("")
	}

	RootCmd.InitDefaultCompletionCmd()
	RootCmd.InitDefaultHelpCmd()
	RootCmd.InitDefaultVersionFlag()

	for _, c := range RootCmd.Commands() {
		if c.Name() == "completion" || c.Name() == "help" {
			c.DisableFlagParsing = true
			for _, subc := range c.Commands() {
				subc.DisableFlagParsing = true
			}
		}
	}

}

// defaultConfigFile returns the platform config location
// ($XDG_CONFIG_HOME/psycopg/config.yml or the OS equivalent) when a config
// file exists there, "" otherwise.
func defaultConfigFile() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(configDir, "psycopg", "config.yml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func initConfig() {
	if cfgFile == "" {
		cfgFile = defaultConfigFile()
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			log.Fatal().Err(err).Msg("error reading from config file")
		}
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	decoderCfg := func(cfg *mapstructure.DecoderConfig) {
		cfg.DecodeHook = configUtils.DecodeHook()
	}

	if err := viper.Unmarshal(Config, decoderCfg); err != nil {
		log.Fatal().Err(err).Msg("")
	}
}
