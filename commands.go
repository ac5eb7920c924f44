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
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ErrUnknownCommand indicates a script ran a command that no game code
// registered. Unlike an unknown function this is fatal for the dialogue:
// there is no way to guess what the command should have done.
var ErrUnknownCommand = errors.New("unknown command")

// Task is ongoing work started by a command. The dialogue holds on to tasks
// returned from command handlers and does not advance past the command until
// every one of them reports done.
type Task interface {
	Done() bool
}

var taskType = reflect.TypeOf((*Task)(nil)).Elem()

// Command is a host command bound into a CommandRegistry. Commands receive
// their arguments as whitespace-separated tokens from the script, converted
// to the handler's declared parameter types.
type Command struct {
	name        string
	fn          reflect.Value
	params      []reflect.Type
	variadic    bool
	returnsTask bool
	hasErr      bool
}

// bindCommand validates fn's signature. Parameters follow the same rules as
// library functions. Returns are different: a command produces no script
// value, so the allowed shapes are none, error, Task, or (Task, error).
func bindCommand(name string, fn interface{}) (*Command, error) {
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: %q is %T, not a function", ErrBadSignature, name, fn)
	}

	c := &Command{
		name:     name,
		fn:       fv,
		variadic: ft.IsVariadic(),
	}

	for i := 0; i < ft.NumIn(); i++ {
		pt := ft.In(i)
		if c.variadic && i == ft.NumIn()-1 {
			pt = pt.Elem()
		}
		if !bindableParam(pt) {
			return nil, fmt.Errorf("%w: parameter %d of %q has unsupported type %v", ErrBadSignature, i, name, pt)
		}
		c.params = append(c.params, pt)
	}

	switch ft.NumOut() {
	case 0:
		// Fire and forget.
	case 1:
		switch {
		case ft.Out(0) == errorType:
			c.hasErr = true
		case ft.Out(0).Implements(taskType):
			c.returnsTask = true
		default:
			return nil, fmt.Errorf("%w: return of %q is %v, want Task or error", ErrBadSignature, name, ft.Out(0))
		}
	case 2:
		if !ft.Out(0).Implements(taskType) || ft.Out(1) != errorType {
			return nil, fmt.Errorf("%w: returns of %q are (%v, %v), want (Task, error)", ErrBadSignature, name, ft.Out(0), ft.Out(1))
		}
		c.returnsTask = true
		c.hasErr = true
	default:
		return nil, fmt.Errorf("%w: %q has %d returns, want at most 2", ErrBadSignature, name, ft.NumOut())
	}
	return c, nil
}

// Name returns the name the command was registered under.
func (c *Command) Name() string { return c.name }

// ParamTypes returns the declared parameter types. For a variadic command
// the final entry is the element type of the variadic parameter.
func (c *Command) ParamTypes() []reflect.Type { return c.params }

// Invoke calls the command with script-sourced argument tokens, converting
// each token to the declared parameter type. It returns the task the handler
// started, if any.
func (c *Command) Invoke(args ...string) (Task, error) {
	min := len(c.params)
	if c.variadic {
		min--
	}
	switch {
	case c.variadic && len(args) < min:
		return nil, fmt.Errorf("%w for <<%s>> [got %d < want at least %d]", ErrArityMismatch, c.name, len(args), min)
	case !c.variadic && len(args) != min:
		return nil, fmt.Errorf("%w for <<%s>> [got %d, want %d]", ErrArityMismatch, c.name, len(args), min)
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		pt := c.params[len(c.params)-1]
		if i < min {
			pt = c.params[i]
		}
		cv, err := convertToken(arg, pt)
		if err != nil {
			return nil, fmt.Errorf("argument %d of <<%s>>: %w", i, c.name, err)
		}
		in[i] = cv
	}

	out := c.fn.Call(in)
	if c.hasErr {
		if errv := out[len(out)-1]; !errv.IsNil() {
			return nil, errv.Interface().(error)
		}
	}
	if c.returnsTask && !out[0].IsNil() {
		return out[0].Interface().(Task), nil
	}
	return nil, nil
}

// convertToken parses a raw command token into the declared parameter type.
// Tokens bound to numeric or bool parameters are parsed; everything else is
// taken verbatim as a string.
func convertToken(token string, t reflect.Type) (reflect.Value, error) {
	base := t
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	var v Value
	switch {
	case base == valueType, base.Kind() == reflect.String:
		v = StringValue(token)
	case base.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(token)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w [%q is not a bool]", ErrWrongType, token)
		}
		v = BoolValue(b)
	default:
		f, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w [%q is not a number]", ErrWrongType, token)
		}
		v = NumberValue(f)
	}
	return convertArg(v, t)
}

// CommandRegistry is a registry of commands runnable from scripts.
type CommandRegistry struct {
	cmds map[string]*Command
}

// NewCommandRegistry returns an empty registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{cmds: make(map[string]*Command)}
}

// Register binds fn into the registry under name. Registering a name twice
// is an error.
func (r *CommandRegistry) Register(name string, fn interface{}) error {
	if _, exists := r.cmds[name]; exists {
		return fmt.Errorf("%w: command %q", ErrDuplicateName, name)
	}
	c, err := bindCommand(name, fn)
	if err != nil {
		return err
	}
	r.cmds[name] = c
	return nil
}

// MustRegister is Register, panicking on error. Intended for static
// registration of known-good signatures.
func (r *CommandRegistry) MustRegister(name string, fn interface{}) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// Command looks up a bound command by name.
func (r *CommandRegistry) Command(name string) (*Command, bool) {
	c, ok := r.cmds[name]
	return c, ok
}

// Names returns the registered command names, in no particular order.
func (r *CommandRegistry) Names() []string {
	names := make([]string, 0, len(r.cmds))
	for n := range r.cmds {
		names = append(names, n)
	}
	return names
}

// Dispatch parses a command's full text as it appeared between << and >>,
// looks up its handler and invokes it. The first token is the command name;
// the rest are arguments, with double quotes grouping tokens that contain
// whitespace.
func (r *CommandRegistry) Dispatch(text string) (Task, error) {
	tokens := splitCommandText(text)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w [empty command]", ErrUnknownCommand)
	}
	c, ok := r.cmds[tokens[0]]
	if !ok {
		return nil, fmt.Errorf("%w [%s]", ErrUnknownCommand, tokens[0])
	}
	return c.Invoke(tokens[1:]...)
}

// splitCommandText splits command text into tokens on whitespace. Double
// quotes group a token; within quotes a backslash escapes the next byte.
// Quoted empty strings are preserved as empty tokens.
func splitCommandText(s string) []string {
	var tokens []string
	var sb strings.Builder
	inQuote := false
	pending := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && inQuote && i+1 < len(s):
			i++
			sb.WriteByte(s[i])
		case c == '"':
			inQuote = !inQuote
			pending = true
		case (c == ' ' || c == '\t') && !inQuote:
			if pending {
				tokens = append(tokens, sb.String())
				sb.Reset()
				pending = false
			}
		default:
			sb.WriteByte(c)
			pending = true
		}
	}
	if pending {
		tokens = append(tokens, sb.String())
	}
	return tokens
}
