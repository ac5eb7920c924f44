// Copyright 2024 The Skein Authors
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

package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tangleworks/skein"
)

// extractConfig holds configuration for the extract command.
type extractConfig struct {
	project   string
	assetsDir string
	verbose   bool
}

// newExtractCmd creates the extract subcommand with all flags configured.
func newExtractCmd() *cobra.Command {
	cfg := &extractConfig{}

	cmd := &cobra.Command{
		Use:   "extract <program>",
		Short: "Generate or refresh strings files for translation",
		Long: `Load a compiled program's string table and create a strings file for
each translation language in the project config. Existing strings files
are validated and upgraded with rows for newly added lines.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, cfg, args[0])
		},
	}

	cmd.Flags().StringVar(&cfg.project, "project", skein.DefaultProjectFile, "project config file")
	cmd.Flags().StringVar(&cfg.assetsDir, "assets-dir", "", "directory strings files live in (default: the project config's directory)")
	cmd.Flags().BoolVarP(&cfg.verbose, "verbose", "v", false, "log at debug level")

	return cmd
}

// runExtract executes the extract command.
func runExtract(cmd *cobra.Command, cfg *extractConfig, programPath string) error {
	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	pc, err := skein.LoadProjectConfig(cfg.project)
	if err != nil {
		return err
	}
	loc, err := pc.BuildLocalizations()
	if err != nil {
		return err
	}

	_, table, err := skein.LoadFiles(programPath, loc.BaseLanguage.String())
	if err != nil {
		return err
	}
	if table.ContainsImplicit() {
		return fmt.Errorf("string table has untagged lines; run %q first", "skein tag")
	}

	assetsDir := cfg.assetsDir
	if assetsDir == "" {
		assetsDir = filepath.Dir(cfg.project)
	}
	files, err := skein.CreateStringsFiles(loc, table, assetsDir, logger)
	if err != nil {
		return err
	}

	for lang, sf := range files {
		cmd.Printf("%s: %d record(s)\n", lang, len(sf.Records))
	}
	return nil
}
