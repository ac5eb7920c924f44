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
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tangleworks/skein/bytecode"
)

// FormatInstruction prints an instruction in a format convenient for
// debugging. The output is intended for human consumption only and may
// change between incremental versions of this package.
func FormatInstruction(inst *bytecode.Instruction) string {
	b := new(strings.Builder)
	fmt.Fprint(b, inst.Opcode)
	for _, op := range inst.Operands {
		switch op.Kind {
		case bytecode.OperandBool:
			fmt.Fprintf(b, " %t", op.BoolValue())
		case bytecode.OperandFloat:
			// Print as an int for instructions that use int operands.
			switch inst.Opcode {
			case bytecode.OpPushFloat:
				fmt.Fprintf(b, " %f", op.FloatValue())
			default:
				fmt.Fprintf(b, " %d", int(op.FloatValue()))
			}
		case bytecode.OperandString:
			fmt.Fprintf(b, " %q", op.StringValue())
		}
	}
	return b.String()
}

// FormatProgram prints a program in a format convenient for debugging, with
// nodes in name order. The output is intended for human consumption only
// and may change between incremental versions of this package.
func FormatProgram(prog *bytecode.Program) string {
	sb := new(strings.Builder)

	// Make all the labels line up, even across nodes.
	labelWidth := 0
	names := make([]string, 0, len(prog.Nodes))
	for name, node := range prog.Nodes {
		names = append(names, name)
		for l := range node.Labels {
			if len(l) > labelWidth {
				labelWidth = len(l)
			}
		}
	}
	sort.Strings(names)
	labelFmt := "% " + strconv.Itoa(labelWidth) + "s: "
	labelSpace := strings.Repeat(" ", labelWidth+2)

	for _, name := range names {
		node := prog.Nodes[name]

		// Quick reverse label table.
		labels := make(map[int]string)
		for l, a := range node.Labels {
			labels[int(a)] = l
		}

		fmt.Fprintf(sb, "%s--- %s ---\n", labelSpace, name)
		for n, inst := range node.Instructions {
			if l := labels[n]; l != "" {
				fmt.Fprintf(sb, labelFmt, l)
			} else {
				fmt.Fprint(sb, labelSpace)
			}
			fmt.Fprintf(sb, "%06d %s\n", n, FormatInstruction(inst))
		}
		fmt.Fprintln(sb)
	}
	return sb.String()
}
