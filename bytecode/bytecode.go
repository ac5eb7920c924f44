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

// Package bytecode defines the compiled program artifact executed by the
// Skein virtual machine, together with its wire codec. The compiler front end
// producing these artifacts lives elsewhere; this package only needs to
// describe and (de)serialize them.
package bytecode

// Opcode enumerates the instructions the virtual machine understands.
type Opcode int32

const (
	// OpJumpTo jumps to a named label in the current node.
	// operands: [label string]
	OpJumpTo Opcode = iota

	// OpJump peeks a label name from the stack and jumps to it.
	// operands: none
	OpJump

	// OpRunLine delivers a line to the host.
	// operands: [line ID string, substitution count float]
	OpRunLine

	// OpRunCommand delivers a command to the host.
	// operands: [command text string, substitution count float]
	OpRunCommand

	// OpAddOption adds an entry to the pending option list.
	// operands: [line ID string, destination label string,
	// substitution count float, has-condition bool]
	OpAddOption

	// OpShowOptions delivers the pending option list to the host.
	// operands: none
	OpShowOptions

	// OpPushString pushes a string constant.
	// operands: [value string]
	OpPushString

	// OpPushFloat pushes a number constant.
	// operands: [value float]
	OpPushFloat

	// OpPushBool pushes a boolean constant.
	// operands: [value bool]
	OpPushBool

	// OpPushNull pushes a null value. Retained for compatibility with older
	// compilers; current compilers do not emit it.
	// operands: none
	OpPushNull

	// OpJumpIfFalse jumps to a named label if the top of the stack is falsey.
	// The value is peeked, not popped.
	// operands: [label string]
	OpJumpIfFalse

	// OpPop discards the top of the stack.
	// operands: none
	OpPop

	// OpCallFunc calls a library function. The argument count is on the
	// stack, above the arguments themselves.
	// operands: [function name string]
	OpCallFunc

	// OpPushVariable pushes the value of a variable.
	// operands: [variable name string]
	OpPushVariable

	// OpStoreVariable stores the top of the stack (peeked, not popped) in a
	// variable.
	// operands: [variable name string]
	OpStoreVariable

	// OpStop stops execution of the program.
	// operands: none
	OpStop

	// OpRunNode pops a node name from the stack and transfers execution to
	// that node.
	// operands: none
	OpRunNode
)

var opcodeNames = map[Opcode]string{
	OpJumpTo:        "JUMP_TO",
	OpJump:          "JUMP",
	OpRunLine:       "RUN_LINE",
	OpRunCommand:    "RUN_COMMAND",
	OpAddOption:     "ADD_OPTION",
	OpShowOptions:   "SHOW_OPTIONS",
	OpPushString:    "PUSH_STRING",
	OpPushFloat:     "PUSH_FLOAT",
	OpPushBool:      "PUSH_BOOL",
	OpPushNull:      "PUSH_NULL",
	OpJumpIfFalse:   "JUMP_IF_FALSE",
	OpPop:           "POP",
	OpCallFunc:      "CALL_FUNC",
	OpPushVariable:  "PUSH_VARIABLE",
	OpStoreVariable: "STORE_VARIABLE",
	OpStop:          "STOP",
	OpRunNode:       "RUN_NODE",
}

func (o Opcode) String() string {
	if s, ok := opcodeNames[o]; ok {
		return s
	}
	return "INVALID"
}

// OperandKind reports which kind of value an Operand holds.
type OperandKind uint8

const (
	OperandNone OperandKind = iota
	OperandString
	OperandBool
	OperandFloat
)

// Operand is a single instruction operand: a string, a bool, or a number.
type Operand struct {
	Kind OperandKind

	str string
	b   bool
	f   float64
}

// StringOperand returns an operand holding s.
func StringOperand(s string) *Operand {
	return &Operand{Kind: OperandString, str: s}
}

// BoolOperand returns an operand holding b.
func BoolOperand(b bool) *Operand {
	return &Operand{Kind: OperandBool, b: b}
}

// FloatOperand returns an operand holding f.
func FloatOperand(f float64) *Operand {
	return &Operand{Kind: OperandFloat, f: f}
}

// StringValue returns the held string, or "" if the operand is not a string.
func (o *Operand) StringValue() string {
	if o == nil || o.Kind != OperandString {
		return ""
	}
	return o.str
}

// BoolValue returns the held bool, or false if the operand is not a bool.
func (o *Operand) BoolValue() bool {
	if o == nil || o.Kind != OperandBool {
		return false
	}
	return o.b
}

// FloatValue returns the held number, or 0 if the operand is not a number.
func (o *Operand) FloatValue() float64 {
	if o == nil || o.Kind != OperandFloat {
		return 0
	}
	return o.f
}

// Instruction is one opcode plus its operands.
type Instruction struct {
	Opcode   Opcode
	Operands []*Operand
}

// Header is one raw source-tracking header from a node ("title", "tags",
// "position", ...).
type Header struct {
	Key   string
	Value string
}

// Node is a named unit of dialogue: an instruction sequence with entry at the
// top, plus label targets and source-tracking metadata.
type Node struct {
	Name               string
	Instructions       []*Instruction
	Labels             map[string]int32
	Tags               []string
	SourceTextStringID string
	Headers            []Header
}

// Program is a compiled script: nodes keyed by name, plus the initial values
// of variables declared in source.
type Program struct {
	Name          string
	Nodes         map[string]*Node
	InitialValues map[string]*Operand
}
