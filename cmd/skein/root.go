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
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the skein CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skein",
		Short: "skein - branching narrative tooling",
		Long: `skein is the companion tool for the skein dialogue engine: it tags
narrative source with stable line IDs, generates strings files for
translators, dumps compiled programs for debugging, and plays compiled
programs on the terminal.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(newTagCmd())
	cmd.AddCommand(newExtractCmd())
	cmd.AddCommand(newDumpCmd())
	cmd.AddCommand(newRunCmd())

	return cmd
}
