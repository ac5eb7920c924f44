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

// Package skein implements a dialogue execution engine for compiled
// branching-narrative scripts, together with the author-time line-ID and
// localization pipeline around it.
package skein // import "github.com/tangleworks/skein"

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tangleworks/skein/bytecode"
)

// Various sentinel errors.
var (
	// ErrNoNodeSelected indicates the VM tried to run but SetNode hadn't
	// been called.
	ErrNoNodeSelected = errors.New("no node selected to run")

	// ErrWaitingOnOptionSelection indicates the VM delivered options to the
	// handler, but an option hasn't been selected (with SetSelectedOption).
	ErrWaitingOnOptionSelection = errors.New("waiting on option selection")

	// ErrNotWaitingOnOptions indicates SetSelectedOption was called but the
	// VM had not delivered options.
	ErrNotWaitingOnOptions = errors.New("not waiting on option selection")

	// ErrOptionUnavailable indicates the selected option was presented with
	// its availability flag off.
	ErrOptionUnavailable = errors.New("selected option is unavailable")

	// ErrNilDialogueHandler indicates that Handler hasn't been set.
	ErrNilDialogueHandler = errors.New("nil dialogue handler")

	// ErrNilVariableStorage indicates that Vars hasn't been set.
	ErrNilVariableStorage = errors.New("nil variable storage")

	// ErrMissingProgram indicates that Program hasn't been set.
	ErrMissingProgram = errors.New("missing or empty program")

	// ErrNoOptions indicates the program is invalid - it tried to show
	// options but none had been added.
	ErrNoOptions = errors.New("no options were added")

	// ErrStackUnderflow indicates the program tried to pop or peek when the
	// stack was empty.
	ErrStackUnderflow = errors.New("stack underflow")

	// ErrWrongType indicates the program needed a value of one type, but
	// got something else instead.
	ErrWrongType = errors.New("wrong type")

	// ErrUndefinedVariable indicates the program read a variable that has
	// neither a stored nor an initial value.
	ErrUndefinedVariable = errors.New("undefined variable")

	// ErrStopped indicates an operation that needs a running VM was applied
	// to a stopped one.
	ErrStopped = errors.New("dialogue stopped")
)

// ExecutionState enumerates the states the VM can be in.
type ExecutionState int32

const (
	// ExecutionStopped: execution has not begun, or has ended.
	ExecutionStopped ExecutionState = iota

	// ExecutionRunning: the VM is inside Continue, advancing instructions.
	ExecutionRunning

	// ExecutionDeliveringContent: the VM is inside a handler callback.
	ExecutionDeliveringContent

	// ExecutionWaitingOnLine: a line was delivered; call Continue once the
	// host has presented it.
	ExecutionWaitingOnLine

	// ExecutionWaitingOnOptionSelection: options were delivered; call
	// SetSelectedOption then Continue.
	ExecutionWaitingOnOptionSelection

	// ExecutionWaitingOnCommand: a command was delivered; call Continue
	// once its task has finished.
	ExecutionWaitingOnCommand
)

func (s ExecutionState) String() string {
	switch s {
	case ExecutionStopped:
		return "Stopped"
	case ExecutionRunning:
		return "Running"
	case ExecutionDeliveringContent:
		return "DeliveringContent"
	case ExecutionWaitingOnLine:
		return "WaitingOnLine"
	case ExecutionWaitingOnOptionSelection:
		return "WaitingOnOptionSelection"
	case ExecutionWaitingOnCommand:
		return "WaitingOnCommand"
	}
	return fmt.Sprintf("(invalid ExecutionState %d)", int32(s))
}

// StateMismatchErr is returned when an operation requires the VM to be in a
// different execution state than the one it is in. These are recoverable:
// the VM state is unchanged.
type StateMismatchErr struct {
	Op        string
	Got, Want ExecutionState
}

func (e StateMismatchErr) Error() string {
	return fmt.Sprintf("cannot %s: VM is %v, want %v", e.Op, e.Got, e.Want)
}

// VirtualMachine executes a compiled program one suspension point at a time.
// Continue advances execution until an instruction needs host interaction,
// at which point the VM delivers the event to Handler, parks in the matching
// waiting state, and returns. The VM never blocks mid-instruction.
type VirtualMachine struct {
	// Program to execute.
	Program *bytecode.Program

	// Handlers / callbacks.
	Handler DialogueHandler
	Vars    VariableStorage
	Library *Library

	// TraceLogf, if set, receives a line per instruction executed.
	TraceLogf func(string, ...interface{})

	execState ExecutionState
	state     state
}

type state struct {
	node     *bytecode.Node // current node
	pc       int            // program counter
	stack    []Value
	options  []Option
	selected int // pending option selection, -1 if none
}

// ExecutionState returns the current execution state.
func (vm *VirtualMachine) ExecutionState() ExecutionState { return vm.execState }

// CurrentNode returns the name of the current node, if there is one.
func (vm *VirtualMachine) CurrentNode() (string, bool) {
	if vm.state.node == nil {
		return "", false
	}
	return vm.state.node.Name, true
}

// CurrentOptions returns the options most recently delivered, while the VM
// is waiting on a selection.
func (vm *VirtualMachine) CurrentOptions() []Option {
	if vm.execState != ExecutionWaitingOnOptionSelection {
		return nil
	}
	return vm.state.options
}

// SetNode sets the VM to begin a node. If another node was executing, it is
// designated complete first.
func (vm *VirtualMachine) SetNode(name string) error {
	if vm.Program == nil || len(vm.Program.Nodes) == 0 {
		return ErrMissingProgram
	}
	node, found := vm.Program.Nodes[name]
	if !found {
		return fmt.Errorf("node %q not found", name)
	}

	// Designate the current node complete.
	if vm.state.node != nil {
		if err := vm.Handler.NodeComplete(vm.state.node.Name); err != nil {
			return fmt.Errorf("handler.NodeComplete: %w", err)
		}
	}

	// Reset the state and start at this node.
	vm.state = state{
		node:     node,
		selected: -1,
	}
	if err := vm.Handler.NodeStart(name); err != nil {
		return fmt.Errorf("handler.NodeStart: %w", err)
	}

	// Find all lines reachable in the node and pass them to PrepareForLines,
	// so providers can prefetch text and assets.
	if err := vm.Handler.PrepareForLines(nodeLineIDs(node)); err != nil {
		return fmt.Errorf("handler.PrepareForLines: %w", err)
	}
	return nil
}

// nodeLineIDs lists every line ID a node could deliver, in source order.
func nodeLineIDs(node *bytecode.Node) []LineID {
	var ids []LineID
	for _, inst := range node.Instructions {
		switch inst.Opcode {
		case bytecode.OpRunLine, bytecode.OpAddOption:
			ids = append(ids, LineID(inst.Operands[0].StringValue()))
		}
	}
	return ids
}

// Start readies the VM at the named node. The first Continue begins
// executing it.
func (vm *VirtualMachine) Start(startNode string) error {
	if vm.Handler == nil {
		return ErrNilDialogueHandler
	}
	if vm.Vars == nil {
		return ErrNilVariableStorage
	}
	if vm.Library == nil {
		vm.Library = DefaultLibrary()
	}
	if err := vm.SetNode(startNode); err != nil {
		return err
	}
	vm.execState = ExecutionRunning
	return nil
}

// SetSelectedOption tells the VM which option the player chose. Valid only
// in the WaitingOnOptionSelection state; the selection takes effect on the
// next Continue.
func (vm *VirtualMachine) SetSelectedOption(id int) error {
	if vm.execState != ExecutionWaitingOnOptionSelection {
		return fmt.Errorf("%w [state %v]", ErrNotWaitingOnOptions, vm.execState)
	}
	if id < 0 || id >= len(vm.state.options) {
		return fmt.Errorf("selected option %d out of bounds [0, %d)", id, len(vm.state.options))
	}
	if !vm.state.options[id].IsAvailable {
		return fmt.Errorf("%w [option %d]", ErrOptionUnavailable, id)
	}
	vm.state.selected = id
	vm.execState = ExecutionRunning
	return nil
}

// Stop halts the dialogue immediately. In-flight option state is dropped.
// NodeComplete and DialogueComplete are still delivered.
func (vm *VirtualMachine) Stop() error {
	if vm.execState == ExecutionStopped {
		return nil
	}
	return vm.stop()
}

func (vm *VirtualMachine) stop() error {
	vm.execState = ExecutionStopped
	node := vm.state.node
	vm.state = state{selected: -1}
	if node != nil {
		if err := vm.Handler.NodeComplete(node.Name); err != nil {
			return fmt.Errorf("handler.NodeComplete: %w", err)
		}
	}
	if err := vm.Handler.DialogueComplete(); err != nil {
		return fmt.Errorf("handler.DialogueComplete: %w", err)
	}
	return nil
}

// Reset returns the VM to the stopped state without delivering any events.
func (vm *VirtualMachine) Reset() {
	vm.execState = ExecutionStopped
	vm.state = state{selected: -1}
}

// Continue advances the VM until it delivers content, completes the
// dialogue, or faults. Returned errors other than StateMismatchErr and
// ErrWaitingOnOptionSelection are fatal to the dialogue: the VM stops, and
// NodeComplete/DialogueComplete do not fire (the facade reports the fault).
func (vm *VirtualMachine) Continue() error {
	switch vm.execState {
	case ExecutionWaitingOnOptionSelection:
		return ErrWaitingOnOptionSelection
	case ExecutionStopped:
		return ErrStopped
	case ExecutionDeliveringContent:
		return StateMismatchErr{Op: "continue", Got: vm.execState, Want: ExecutionWaitingOnLine}
	}
	if vm.Handler == nil {
		return ErrNilDialogueHandler
	}
	if vm.state.node == nil {
		return ErrNoNodeSelected
	}

	// A pending option selection jumps to the option's destination label.
	if sel := vm.state.selected; sel >= 0 {
		vm.state.selected = -1
		vm.state.stack = append(vm.state.stack, StringValue(vm.state.options[sel].DestinationLabel))
		vm.state.options = nil
	}

	vm.execState = ExecutionRunning
	for vm.execState == ExecutionRunning {
		if vm.state.pc >= len(vm.state.node.Instructions) {
			// Ran off the end of the node: dialogue is complete.
			return vm.stop()
		}
		inst := vm.state.node.Instructions[vm.state.pc]
		if vm.TraceLogf != nil {
			vm.TraceLogf("stack %v; options %v", vm.state.stack, vm.state.options)
			vm.TraceLogf("% 15s %06d %s", vm.state.node.Name, vm.state.pc, FormatInstruction(inst))
		}
		if err := vm.execute(inst); err != nil {
			pos := fmt.Sprintf("%s %06d %s", vm.state.node.Name, vm.state.pc, FormatInstruction(inst))
			vm.Reset()
			return fmt.Errorf("%s: %w", pos, err)
		}
	}
	return nil
}

// deliver runs a handler callback with the execution state it should leave
// the VM in. Handlers may stop the VM from inside the callback.
func (vm *VirtualMachine) deliver(next ExecutionState, f func() error) error {
	vm.execState = ExecutionDeliveringContent
	if err := f(); err != nil {
		return err
	}
	if vm.execState == ExecutionDeliveringContent {
		vm.execState = next
	}
	return nil
}

func (vm *VirtualMachine) execJumpTo(operands []*bytecode.Operand) error {
	// Jumps to a named position in the node.
	// opA = string: label name
	k := operands[0].StringValue()
	pc, ok := vm.state.node.Labels[k]
	if !ok {
		return fmt.Errorf("unknown label %q in node %q", k, vm.state.node.Name)
	}
	vm.state.pc = int(pc)
	return nil
}

func (vm *VirtualMachine) execJump([]*bytecode.Operand) error {
	// Peeks a string from stack, and jumps to that named position in
	// the node.
	// No operands.
	k, err := vm.state.peekString()
	if err != nil {
		return err
	}
	pc, ok := vm.state.node.Labels[k]
	if !ok {
		return fmt.Errorf("unknown label %q in node %q", k, vm.state.node.Name)
	}
	vm.state.pc = int(pc)
	return nil
}

func (vm *VirtualMachine) execRunLine(operands []*bytecode.Operand) error {
	// Delivers a line ID to the client, then waits.
	// opA = string: string ID
	// opB = number of values on the stack to pop as substitutions
	line := Line{
		ID: LineID(operands[0].StringValue()),
	}
	if len(operands) > 1 {
		n, err := operandToInt(operands[1])
		if err != nil {
			return fmt.Errorf("operandToInt(opB): %w", err)
		}
		ss, err := vm.state.popNStrings(n)
		if err != nil {
			return fmt.Errorf("popNStrings(%d): %w", n, err)
		}
		line.Substitutions = ss
	}
	vm.state.pc++
	return vm.deliver(ExecutionWaitingOnLine, func() error {
		return vm.Handler.Line(line)
	})
}

func (vm *VirtualMachine) execRunCommand(operands []*bytecode.Operand) error {
	// Delivers a command to the client, then waits.
	// opA = string: command text
	// opB = number of values on the stack to substitute into the text
	cmd := operands[0].StringValue()
	if len(operands) > 1 {
		n, err := operandToInt(operands[1])
		if err != nil {
			return fmt.Errorf("operandToInt(opB): %w", err)
		}
		ss, err := vm.state.popNStrings(n)
		if err != nil {
			return fmt.Errorf("popNStrings(%d): %w", n, err)
		}
		for i, s := range ss {
			cmd = strings.ReplaceAll(cmd, fmt.Sprintf("{%d}", i), s)
		}
	}
	vm.state.pc++
	return vm.deliver(ExecutionWaitingOnCommand, func() error {
		return vm.Handler.Command(cmd)
	})
}

func (vm *VirtualMachine) execAddOption(operands []*bytecode.Operand) error {
	// Adds an entry to the option list (see ShowOptions).
	// - opA = string: string ID for option to add
	// - opB = string: destination label to jump to if this option is chosen
	// - opC = number: number of expressions on the stack to insert
	//   into the line
	// - opD = bool: whether the option has a condition on it (in which
	//   case a value is popped off the stack to signal whether the option
	//   is available)
	line := Line{
		ID: LineID(operands[0].StringValue()),
	}
	if len(operands) > 2 {
		n, err := operandToInt(operands[2])
		if err != nil {
			return fmt.Errorf("operandToInt(opC): %w", err)
		}
		ss, err := vm.state.popNStrings(n)
		if err != nil {
			return fmt.Errorf("popNStrings(%d): %w", n, err)
		}
		line.Substitutions = ss
	}
	avail := true
	if len(operands) > 3 && operands[3].BoolValue() {
		// Condition result is on the stack as a bool.
		cp, err := vm.state.popBool()
		if err != nil {
			return err
		}
		avail = cp
	}
	vm.state.options = append(vm.state.options, Option{
		ID:               len(vm.state.options),
		Line:             line,
		DestinationLabel: operands[1].StringValue(),
		IsAvailable:      avail,
	})
	vm.state.pc++
	return nil
}

func (vm *VirtualMachine) execShowOptions([]*bytecode.Operand) error {
	// Presents the current list of options to the client, then waits for a
	// selection. Options retain source order. When execution resumes, the
	// selected option's destination label is on the top of the stack.
	// No operands.
	if len(vm.state.options) == 0 {
		return ErrNoOptions
	}
	vm.state.pc++
	return vm.deliver(ExecutionWaitingOnOptionSelection, func() error {
		return vm.Handler.Options(vm.state.options)
	})
}

func (vm *VirtualMachine) execPushString(operands []*bytecode.Operand) error {
	// Pushes a string onto the stack.
	// opA = string: the string to push to the stack.
	vm.state.push(StringValue(operands[0].StringValue()))
	vm.state.pc++
	return nil
}

func (vm *VirtualMachine) execPushFloat(operands []*bytecode.Operand) error {
	// Pushes a number onto the stack.
	// opA = float: number to push to stack
	vm.state.push(NumberValue(operands[0].FloatValue()))
	vm.state.pc++
	return nil
}

func (vm *VirtualMachine) execPushBool(operands []*bytecode.Operand) error {
	// Pushes a boolean onto the stack.
	// opA = bool: the bool to push to stack
	vm.state.push(BoolValue(operands[0].BoolValue()))
	vm.state.pc++
	return nil
}

func (vm *VirtualMachine) execPushNull([]*bytecode.Operand) error {
	// Pushes a null value onto the stack.
	// No operands.
	vm.state.push(Value{})
	vm.state.pc++
	return nil
}

func (vm *VirtualMachine) execJumpIfFalse(operands []*bytecode.Operand) error {
	// Jumps to the named position in the node if the top of the stack is
	// false. The value is peeked, not popped.
	// opA = string: label name
	x, err := vm.state.peek()
	if err != nil {
		return fmt.Errorf("peek: %w", err)
	}
	b, err := x.AsBool()
	if err != nil {
		return err
	}
	if b {
		// Value is true, so don't jump
		vm.state.pc++
		return nil
	}
	k := operands[0].StringValue()
	pc, ok := vm.state.node.Labels[k]
	if !ok {
		return fmt.Errorf("unknown label %q", k)
	}
	vm.state.pc = int(pc)
	return nil
}

func (vm *VirtualMachine) execPop([]*bytecode.Operand) error {
	// Discards top of stack.
	// No operands.
	if _, err := vm.state.pop(); err != nil {
		return fmt.Errorf("pop: %w", err)
	}
	vm.state.pc++
	return nil
}

func (vm *VirtualMachine) execCallFunc(operands []*bytecode.Operand) error {
	// Calls a library function. Pops as many arguments as the compiler
	// indicated, and pushes the result.
	// opA = string: name of the function
	funcname := operands[0].StringValue()
	function, found := vm.Library.Function(funcname)
	if !found {
		return fmt.Errorf("function %q not found", funcname)
	}

	// Compiler puts number of args on top of stack
	gotx, err := vm.state.pop()
	if err != nil {
		return fmt.Errorf("pop: %w", err)
	}
	argc, err := gotx.asInt()
	if err != nil {
		return err
	}

	// Args were pushed source-left first, so popping yields them in reverse.
	args := make([]Value, argc)
	for i := argc - 1; i >= 0; i-- {
		arg, err := vm.state.pop()
		if err != nil {
			return fmt.Errorf("pop: %w", err)
		}
		args[i] = arg
	}

	result, err := function.Invoke(args...)
	if err != nil {
		return fmt.Errorf("invoking %q: %w", funcname, err)
	}
	if function.ReturnType() != nil {
		vm.state.push(result)
	}
	vm.state.pc++
	return nil
}

func (vm *VirtualMachine) execPushVariable(operands []*bytecode.Operand) error {
	// Pushes the contents of a variable onto the stack.
	// opA = name of variable
	k := operands[0].StringValue()
	if v, ok := vm.Vars.GetValue(k); ok {
		vm.state.push(v)
		vm.state.pc++
		return nil
	}
	// Fall back to the initial value from the program.
	w, ok := vm.Program.InitialValues[k]
	if !ok {
		return fmt.Errorf("%w %q", ErrUndefinedVariable, k)
	}
	switch w.Kind {
	case bytecode.OperandBool:
		vm.state.push(BoolValue(w.BoolValue()))
	case bytecode.OperandFloat:
		vm.state.push(NumberValue(w.FloatValue()))
	case bytecode.OperandString:
		vm.state.push(StringValue(w.StringValue()))
	default:
		return fmt.Errorf("initial value %q has no kind", k)
	}
	vm.state.pc++
	return nil
}

func (vm *VirtualMachine) execStoreVariable(operands []*bytecode.Operand) error {
	// Stores the contents of the top of the stack in the named variable.
	// The value is peeked; the compiler emits a following POP.
	// opA = name of variable
	k := operands[0].StringValue()
	v, err := vm.state.peek()
	if err != nil {
		return fmt.Errorf("peek: %w", err)
	}
	vm.Vars.SetValue(k, v)
	vm.state.pc++
	return nil
}

func (vm *VirtualMachine) execStop([]*bytecode.Operand) error {
	// Stops execution of the program.
	// No operands.
	return vm.stop()
}

func (vm *VirtualMachine) execRunNode(operands []*bytecode.Operand) error {
	// Transfers execution to another node: either the operand, or (with no
	// operand) a node name popped from the stack.
	node := ""
	if len(operands) > 0 {
		node = operands[0].StringValue()
	} else {
		n, err := vm.state.popString()
		if err != nil {
			return fmt.Errorf("popString: %w", err)
		}
		node = n
	}
	if err := vm.SetNode(node); err != nil {
		return fmt.Errorf("SetNode: %w", err)
	}
	return nil
}

var dispatchTable = []func(*VirtualMachine, []*bytecode.Operand) error{
	bytecode.OpJumpTo:        (*VirtualMachine).execJumpTo,
	bytecode.OpJump:          (*VirtualMachine).execJump,
	bytecode.OpRunLine:       (*VirtualMachine).execRunLine,
	bytecode.OpRunCommand:    (*VirtualMachine).execRunCommand,
	bytecode.OpAddOption:     (*VirtualMachine).execAddOption,
	bytecode.OpShowOptions:   (*VirtualMachine).execShowOptions,
	bytecode.OpPushString:    (*VirtualMachine).execPushString,
	bytecode.OpPushFloat:     (*VirtualMachine).execPushFloat,
	bytecode.OpPushBool:      (*VirtualMachine).execPushBool,
	bytecode.OpPushNull:      (*VirtualMachine).execPushNull,
	bytecode.OpJumpIfFalse:   (*VirtualMachine).execJumpIfFalse,
	bytecode.OpPop:           (*VirtualMachine).execPop,
	bytecode.OpCallFunc:      (*VirtualMachine).execCallFunc,
	bytecode.OpPushVariable:  (*VirtualMachine).execPushVariable,
	bytecode.OpStoreVariable: (*VirtualMachine).execStoreVariable,
	bytecode.OpStop:          (*VirtualMachine).execStop,
	bytecode.OpRunNode:       (*VirtualMachine).execRunNode,
}

func (vm *VirtualMachine) execute(inst *bytecode.Instruction) error {
	if inst.Opcode < 0 || int(inst.Opcode) >= len(dispatchTable) {
		return fmt.Errorf("invalid opcode %v", inst.Opcode)
	}
	exec := dispatchTable[inst.Opcode]
	if exec == nil {
		return fmt.Errorf("invalid opcode %v", inst.Opcode)
	}
	return exec(vm, inst.Operands)
}

func operandToInt(op *bytecode.Operand) (int, error) {
	if op == nil {
		return 0, errors.New("nil operand")
	}
	if op.Kind != bytecode.OperandFloat {
		return 0, fmt.Errorf("wrong operand kind [%v != float]", op.Kind)
	}
	return int(op.FloatValue()), nil
}

// push pushes a value onto the state's stack.
func (s *state) push(x Value) { s.stack = append(s.stack, x) }

// pop removes a value from the stack and returns it.
func (s *state) pop() (Value, error) {
	// pop = (peek and then chuck out the top)
	x, err := s.peek()
	if err != nil {
		return Value{}, err
	}
	s.stack = s.stack[:len(s.stack)-1]
	return x, nil
}

func (s *state) popBool() (bool, error) {
	x, err := s.pop()
	if err != nil {
		return false, err
	}
	return x.AsBool()
}

func (s *state) popString() (string, error) {
	x, err := s.pop()
	if err != nil {
		return "", err
	}
	return x.AsString()
}

// Reading N strings from the stack is common enough that there is a
// dedicated helper method for it. Values are converted to display form.
func (s *state) popNStrings(n int) ([]string, error) {
	if n < 0 {
		return nil, fmt.Errorf("popping %d items", n)
	}
	if n == 0 {
		return nil, nil
	}
	if n > len(s.stack) {
		return nil, fmt.Errorf("%w [%d > %d]", ErrStackUnderflow, n, len(s.stack))
	}
	rem := len(s.stack) - n
	ss := make([]string, n)
	for i, x := range s.stack[rem:] {
		ss[i] = x.String()
	}
	s.stack = s.stack[:rem]
	return ss, nil
}

// peek returns the top value from the stack only.
func (s *state) peek() (Value, error) {
	if len(s.stack) == 0 {
		return Value{}, ErrStackUnderflow
	}
	return s.stack[len(s.stack)-1], nil
}

// peekString returns the string from the top of the stack.
func (s *state) peekString() (string, error) {
	x, err := s.peek()
	if err != nil {
		return "", err
	}
	return x.AsString()
}
