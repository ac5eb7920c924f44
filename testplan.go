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

package skein

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// TestPlan implements test plans. A test plan is a dialogue handler that
// expects specific lines, options, and commands from the dialogue system,
// in order, and chooses options as the plan dictates.
type TestPlan struct {
	StringTable *StringTable
	Steps       []TestStep
	Step        int

	nextSelection     int
	dialogueCompleted bool

	FakeDialogueHandler // implements remaining methods
}

// LoadTestPlanFile is a convenient function for loading a test plan given a
// file path.
func LoadTestPlanFile(testPlanPath string) (*TestPlan, error) {
	tpf, err := os.Open(testPlanPath)
	if err != nil {
		return nil, fmt.Errorf("opening testplan file: %w", err)
	}
	defer tpf.Close()
	tp, err := ReadTestPlan(tpf)
	if err != nil {
		return nil, fmt.Errorf("reading testplan file: %w", err)
	}
	return tp, nil
}

// ReadTestPlan reads a testplan from an io.Reader into a TestPlan.
func ReadTestPlan(r io.Reader) (*TestPlan, error) {
	var tp TestPlan
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		txt := strings.TrimSpace(sc.Text())
		if txt == "" || strings.HasPrefix(txt, "#") {
			// Skip blanks and comments
			continue
		}
		if strings.HasPrefix(txt, "stop") {
			// Superfluous stop at end of file
			break
		}
		tok := strings.SplitN(txt, ":", 2)
		if len(tok) < 2 {
			return nil, fmt.Errorf("malformed step %q", txt)
		}
		tp.Steps = append(tp.Steps, TestStep{
			Type:     strings.TrimSpace(tok[0]),
			Contents: strings.TrimSpace(tok[1]),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return &tp, nil
}

// TestStep is a step in a test plan.
type TestStep struct {
	Type     string
	Contents string
}

func (s TestStep) String() string { return s.Type + ": " + s.Contents }

// Run starts the VM at startNode with the plan as its handler, and pumps it
// until the dialogue completes, selecting options as the plan dictates.
func (p *TestPlan) Run(vm *VirtualMachine, startNode string) error {
	vm.Handler = p
	if err := vm.Start(startNode); err != nil {
		return fmt.Errorf("vm.Start: %w", err)
	}
	for vm.ExecutionState() != ExecutionStopped {
		if vm.ExecutionState() == ExecutionWaitingOnOptionSelection {
			if err := vm.SetSelectedOption(p.nextSelection); err != nil {
				return fmt.Errorf("vm.SetSelectedOption: %w", err)
			}
		}
		if err := vm.Continue(); err != nil {
			return fmt.Errorf("vm.Continue: %w", err)
		}
	}
	return p.Complete()
}

// Complete checks if the test plan was completed.
func (p *TestPlan) Complete() error {
	if p.Step != len(p.Steps) {
		return fmt.Errorf("on step %d %v", p.Step, p.Steps[p.Step])
	}
	if !p.dialogueCompleted {
		return errors.New("did not receive DialogueComplete")
	}
	return nil
}

// Line checks that the line matches the one expected by the plan.
func (p *TestPlan) Line(line Line) error {
	if p.Step >= len(p.Steps) {
		return errors.New("next step after end")
	}
	step := p.Steps[p.Step]
	if step.Type != "line" {
		return fmt.Errorf("testplan got line, want %q", step.Type)
	}
	p.Step++
	text, err := p.StringTable.Render(line)
	if err != nil {
		return err
	}
	if text != step.Contents {
		return fmt.Errorf("testplan got line %q, want %q", text, step.Contents)
	}
	return nil
}

// Options checks that the options match those expected by the plan, then
// records the selection specified in the plan for when the VM resumes.
func (p *TestPlan) Options(opts []Option) error {
	for _, opt := range opts {
		if p.Step >= len(p.Steps) {
			return errors.New("next testplan step after end")
		}
		step := p.Steps[p.Step]
		if step.Type != "option" {
			return fmt.Errorf("testplan got option, want %q", step.Type)
		}
		p.Step++
		text, err := p.StringTable.Render(opt.Line)
		if err != nil {
			return err
		}
		want := step.Contents
		if !opt.IsAvailable {
			want = strings.TrimSuffix(want, " [disabled]")
		}
		if text != want {
			return fmt.Errorf("testplan got option line %q, want %q", text, want)
		}
	}
	// Next step should be a select
	if p.Step >= len(p.Steps) {
		return errors.New("next testplan step after end")
	}
	step := p.Steps[p.Step]
	if step.Type != "select" {
		return fmt.Errorf("testplan got select, want %q", step.Type)
	}
	p.Step++
	n, err := strconv.Atoi(step.Contents)
	if err != nil {
		return fmt.Errorf("converting testplan step to int: %w", err)
	}
	// Plans number options from 1.
	p.nextSelection = n - 1
	return nil
}

// Command checks that the command matches the one expected by the plan.
func (p *TestPlan) Command(command string) error {
	if p.Step >= len(p.Steps) {
		return errors.New("next testplan step after end")
	}
	step := p.Steps[p.Step]
	if step.Type != "command" {
		return fmt.Errorf("testplan got command, want %q", step.Type)
	}
	p.Step++
	if command != step.Contents {
		return fmt.Errorf("testplan got command %q, want %q", command, step.Contents)
	}
	return nil
}

// DialogueComplete records that the dialogue completed.
func (p *TestPlan) DialogueComplete() error {
	p.dialogueCompleted = true
	return nil
}
