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
	"os"

	"github.com/spf13/cobra"

	"github.com/tangleworks/skein"
)

// tagConfig holds configuration for the tag command.
type tagConfig struct {
	verify bool
}

// newTagCmd creates the tag subcommand with all flags configured.
func newTagCmd() *cobra.Command {
	cfg := &tagConfig{}

	cmd := &cobra.Command{
		Use:   "tag <file>...",
		Short: "Add stable line IDs to narrative source files",
		Long: `Rewrite narrative source files so every line of dialogue carries an
explicit #line: tag. Untagged lines get a deterministic generated ID;
existing tags, layout, and comments are left untouched. IDs are unique
across all the files passed in one invocation.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTag(cmd, cfg, args)
		},
	}

	cmd.Flags().BoolVar(&cfg.verify, "verify", false,
		"report files that need tagging without writing; exit nonzero if any do")

	return cmd
}

// runTag executes the tag command.
func runTag(cmd *cobra.Command, cfg *tagConfig, paths []string) error {
	sources := make(map[string]string, len(paths))

	// First pass: read everything so that IDs from every file count as
	// taken before any file is tagged.
	existing := make(map[skein.LineID]bool)
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		sources[path] = string(raw)
		for id := range skein.CollectLineTags(string(raw)) {
			existing[id] = true
		}
	}

	needed := 0
	for _, path := range paths {
		tagged, changed := skein.AddLineTags(sources[path], existing)
		if !changed {
			continue
		}
		needed++
		if cfg.verify {
			cmd.Printf("%s: needs tagging\n", path)
			continue
		}
		if err := os.WriteFile(path, []byte(tagged), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		// New IDs must stay unique across the remaining files.
		for id := range skein.CollectLineTags(tagged) {
			existing[id] = true
		}
		cmd.Printf("%s: tagged\n", path)
	}

	if cfg.verify && needed > 0 {
		return fmt.Errorf("%d file(s) need tagging", needed)
	}
	return nil
}
