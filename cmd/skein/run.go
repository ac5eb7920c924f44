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
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tangleworks/skein"
)

// runConfig holds configuration for the run command.
type runConfig struct {
	language string
	node     string
}

// newRunCmd creates the run subcommand with all flags configured.
func newRunCmd() *cobra.Command {
	cfg := &runConfig{}

	cmd := &cobra.Command{
		Use:   "run <program>",
		Short: "Play a compiled program on the terminal",
		Long: `Load a compiled program and its string table and play it as a text
game: lines print to the terminal, options are chosen by number, and
commands are echoed but otherwise ignored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, cfg, args[0])
		},
	}

	cmd.Flags().StringVar(&cfg.language, "language", "en", "base language of the string table")
	cmd.Flags().StringVar(&cfg.node, "node", skein.DefaultStartNode, "node to start at")

	return cmd
}

// runRun executes the run command.
func runRun(cmd *cobra.Command, cfg *runConfig, programPath string) error {
	prog, table, err := skein.LoadFiles(programPath, cfg.language)
	if err != nil {
		return err
	}

	player := &terminalPlayer{
		cmd: cmd,
		in:  bufio.NewScanner(cmd.InOrStdin()),
	}
	d, err := skein.NewDialogue(skein.DialogueConfig{
		Program:      prog,
		TextProvider: skein.NewStringTableTextProvider(table),
		Events:       player.event,
	})
	if err != nil {
		return err
	}
	player.d = d

	if err := d.StartAtNode(cfg.node); err != nil {
		return err
	}
	for d.IsRunning() {
		if err := d.Update(); err != nil {
			return err
		}
		if err := player.respond(); err != nil {
			return err
		}
	}
	if player.fault != nil {
		return player.fault
	}
	return nil
}

// terminalPlayer plays dialogue events on the terminal. It buffers each
// event during Update and responds between ticks, once the dialogue is in
// its waiting state.
type terminalPlayer struct {
	cmd   *cobra.Command
	in    *bufio.Scanner
	d     *skein.Dialogue
	fault error

	pendingLine    *skein.LocalizedLine
	pendingOptions []skein.LocalizedOption
}

func (p *terminalPlayer) event(ev skein.Event) {
	switch ev.Kind {
	case skein.EventPresentLine:
		p.pendingLine = ev.Line
	case skein.EventPresentOptions:
		p.pendingOptions = ev.Options
	case skein.EventExecuteCommand:
		p.cmd.Printf("[command: %s %s]\n", ev.CommandName, strings.Join(ev.CommandArgs, " "))
	case skein.EventDialogueComplete:
		p.fault = ev.Fault
	}
}

func (p *terminalPlayer) respond() error {
	switch {
	case p.pendingLine != nil:
		p.cmd.Println(p.pendingLine.Text)
		p.cmd.Println("(Press ENTER to continue)")
		p.in.Scan()
		p.pendingLine = nil
		p.d.ContinueInNextUpdate()
	case p.pendingOptions != nil:
		for _, opt := range p.pendingOptions {
			p.cmd.Printf("%d: %s\n", opt.ID+1, opt.Line.Text)
		}
		opts := p.pendingOptions
		p.pendingOptions = nil
		for {
			p.cmd.Print("Enter the number of your choice: ")
			if !p.in.Scan() {
				return fmt.Errorf("input closed while waiting for a choice")
			}
			n, err := strconv.Atoi(strings.TrimSpace(p.in.Text()))
			if err != nil || n < 1 || n > len(opts) {
				continue
			}
			if err := p.d.SelectOption(n - 1); err != nil {
				return err
			}
			break
		}
	}
	return nil
}
