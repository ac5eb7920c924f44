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

package bytecode

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func testProgram() *Program {
	return &Program{
		Name: "garden",
		Nodes: map[string]*Node{
			"Start": {
				Name: "Start",
				Instructions: []*Instruction{
					{Opcode: OpRunLine, Operands: []*Operand{StringOperand("line:hello"), FloatOperand(0)}},
					{Opcode: OpPushBool, Operands: []*Operand{BoolOperand(true)}},
					{Opcode: OpAddOption, Operands: []*Operand{
						StringOperand("line:optA"), StringOperand("A"), FloatOperand(0), BoolOperand(false),
					}},
					{Opcode: OpShowOptions},
					{Opcode: OpJump},
					{Opcode: OpStop},
				},
				Labels:             map[string]int32{"A": 5, "End": 5},
				Tags:               []string{"intro", "outdoor"},
				SourceTextStringID: "line:Start-src",
				Headers: []Header{
					{Key: "title", Value: "Start"},
					{Key: "tags", Value: "intro outdoor"},
				},
			},
			"Shed": {
				Name: "Shed",
				Instructions: []*Instruction{
					{Opcode: OpPushFloat, Operands: []*Operand{FloatOperand(2.5)}},
					{Opcode: OpStoreVariable, Operands: []*Operand{StringOperand("$rust")}},
					{Opcode: OpPop},
					{Opcode: OpPushString, Operands: []*Operand{StringOperand("Start")}},
				{Opcode: OpRunNode},
				},
			},
		},
		InitialValues: map[string]*Operand{
			"$visited": BoolOperand(false),
			"$gold":    FloatOperand(12),
			"$name":    StringOperand("traveller"),
		},
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	prog := testProgram()
	data, err := Marshal(prog)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(prog, got, cmp.AllowUnexported(Operand{}), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("program diff (-marshalled +unmarshalled):\n%s", diff)
	}
}

// Map fields are written in sorted key order, so the encoding is a
// deterministic function of the program.
func TestMarshalDeterministic(t *testing.T) {
	a, err := Marshal(testProgram())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	b, err := Marshal(testProgram())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("Marshal produced different bytes for the same program")
	}
}

func TestUnmarshalEmpty(t *testing.T) {
	got, err := Unmarshal(nil)
	if err != nil {
		t.Fatalf("Unmarshal(nil): %v", err)
	}
	if got.Name != "" || len(got.Nodes) != 0 || len(got.InitialValues) != 0 {
		t.Errorf("Unmarshal(nil) = %+v, want empty program", got)
	}
}

func TestUnmarshalGarbage(t *testing.T) {
	if _, err := Unmarshal([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Error("Unmarshal(garbage) = nil error, want error")
	}
}
