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
	"strings"
	"testing"

	"golang.org/x/text/language"

	"github.com/tangleworks/skein/bytecode"
)

func TestReadTestPlan(t *testing.T) {
	const plan = `
# a comment
line: Hello there.

option: Yes
option: No
select: 2
command: flash
stop
line: never reached
`
	tp, err := ReadTestPlan(strings.NewReader(plan))
	if err != nil {
		t.Fatalf("ReadTestPlan: %v", err)
	}
	want := []TestStep{
		{Type: "line", Contents: "Hello there."},
		{Type: "option", Contents: "Yes"},
		{Type: "option", Contents: "No"},
		{Type: "select", Contents: "2"},
		{Type: "command", Contents: "flash"},
	}
	if len(tp.Steps) != len(want) {
		t.Fatalf("got %d steps, want %d", len(tp.Steps), len(want))
	}
	for i, step := range tp.Steps {
		if step != want[i] {
			t.Errorf("Steps[%d] = %v, want %v", i, step, want[i])
		}
	}
}

func TestReadTestPlanMalformed(t *testing.T) {
	if _, err := ReadTestPlan(strings.NewReader("line without a colon\n")); err == nil {
		t.Error("ReadTestPlan = nil error, want malformed step error")
	}
}

// planProgram greets, offers two options, runs a command on the second
// branch, and stops.
func planProgram() *bytecode.Program {
	return &bytecode.Program{
		Nodes: map[string]*bytecode.Node{
			"Start": {
				Name: "Start",
				Instructions: []*bytecode.Instruction{
					instr(bytecode.OpRunLine, bytecode.StringOperand("line:greet")),
					instr(bytecode.OpAddOption, bytecode.StringOperand("line:yes"), bytecode.StringOperand("Yes")),
					instr(bytecode.OpAddOption, bytecode.StringOperand("line:no"), bytecode.StringOperand("No")),
					instr(bytecode.OpShowOptions),
					instr(bytecode.OpJump),
					instr(bytecode.OpRunLine, bytecode.StringOperand("line:agreed")), // label Yes
					instr(bytecode.OpStop),
					instr(bytecode.OpRunCommand, bytecode.StringOperand("flash")), // label No
					instr(bytecode.OpRunLine, bytecode.StringOperand("line:declined")),
				},
				Labels: map[string]int32{"Yes": 5, "No": 7},
			},
		},
	}
}

func planStringTable() *StringTable {
	st := NewStringTable(language.AmericanEnglish)
	for id, text := range map[LineID]string{
		"line:greet":    "Well met.",
		"line:yes":      "Yes",
		"line:no":       "No",
		"line:agreed":   "Glad to hear it.",
		"line:declined": "Suit yourself.",
	} {
		st.Insert(id, StringInfo{Text: text, NodeName: "Start", FileName: "a.yarn"})
	}
	return st
}

func TestTestPlanRun(t *testing.T) {
	const plan = `
line: Well met.
option: Yes
option: No
select: 2
command: flash
line: Suit yourself.
`
	tp, err := ReadTestPlan(strings.NewReader(plan))
	if err != nil {
		t.Fatalf("ReadTestPlan: %v", err)
	}
	tp.StringTable = planStringTable()

	vm := &VirtualMachine{Program: planProgram(), Vars: NewMapVariableStorage()}
	if err := tp.Run(vm, "Start"); err != nil {
		t.Errorf("TestPlan.Run: %v", err)
	}
}

func TestTestPlanRunDetectsDivergence(t *testing.T) {
	const plan = `
line: Well met.
option: Yes
option: No
select: 1
command: flash
line: Suit yourself.
`
	tp, err := ReadTestPlan(strings.NewReader(plan))
	if err != nil {
		t.Fatalf("ReadTestPlan: %v", err)
	}
	tp.StringTable = planStringTable()

	// Selecting option 1 takes the Yes branch, so the expected command
	// never runs.
	vm := &VirtualMachine{Program: planProgram(), Vars: NewMapVariableStorage()}
	if err := tp.Run(vm, "Start"); err == nil {
		t.Error("TestPlan.Run = nil error, want divergence error")
	}
}
