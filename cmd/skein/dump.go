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

	"github.com/tangleworks/skein"
)

// newDumpCmd creates the dump subcommand.
func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <program>",
		Short: "Disassemble a compiled program",
		Long: `Load a compiled program and print its nodes and instructions in a
human-readable form. The output format is for debugging only and may
change between versions.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := skein.LoadProgramFile(args[0])
			if err != nil {
				return err
			}
			cmd.Print(skein.FormatProgram(prog))
			return nil
		},
	}
}
