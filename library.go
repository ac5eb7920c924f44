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
	"math"
	"reflect"
	"runtime"
	"strings"
)

// Various binding errors.
var (
	// ErrBadSignature indicates a host function has a signature that cannot
	// be bound: an unsupported parameter or return type, or too many returns.
	ErrBadSignature = errors.New("unbindable function signature")

	// ErrArityMismatch indicates a script called a function with the wrong
	// number of arguments.
	ErrArityMismatch = errors.New("wrong number of arguments")

	// ErrDuplicateName indicates a function or command name was registered
	// twice.
	ErrDuplicateName = errors.New("name already registered")
)

var (
	errorType = reflect.TypeOf((*error)(nil)).Elem()
	valueType = reflect.TypeOf(Value{})
)

// Function is a host function bound into a Library. It erases the native
// signature behind a uniform Value-based call interface while remembering
// the declared parameter and return types for checking.
type Function struct {
	name     string
	fn       reflect.Value
	params   []reflect.Type // declared types; last is the element type if variadic
	variadic bool
	ret      reflect.Type // nil if the function only returns error, or nothing
	hasErr   bool
	identity string
}

// bindFunction validates fn's signature and produces a Function. Each
// parameter must be a bool, any width of signed or unsigned integer, float32
// or float64, string, Value, or a pointer to one of those (pointer to Value
// included). The return may be any of the same except *Value, plus an
// optional trailing error. needsReturn requires at least one non-error
// return (library functions are expressions; commands are not).
func bindFunction(name string, fn interface{}, needsReturn bool) (*Function, error) {
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: %q is %T, not a function", ErrBadSignature, name, fn)
	}

	f := &Function{
		name:     name,
		fn:       fv,
		variadic: ft.IsVariadic(),
		identity: funcIdentity(fv),
	}

	for i := 0; i < ft.NumIn(); i++ {
		pt := ft.In(i)
		if f.variadic && i == ft.NumIn()-1 {
			pt = pt.Elem()
		}
		if !bindableParam(pt) {
			return nil, fmt.Errorf("%w: parameter %d of %q has unsupported type %v", ErrBadSignature, i, name, pt)
		}
		f.params = append(f.params, pt)
	}

	switch ft.NumOut() {
	case 0:
		if needsReturn {
			return nil, fmt.Errorf("%w: %q returns nothing", ErrBadSignature, name)
		}
	case 1:
		if ft.Out(0) == errorType {
			f.hasErr = true
			if needsReturn {
				return nil, fmt.Errorf("%w: %q returns only error", ErrBadSignature, name)
			}
		} else {
			f.ret = ft.Out(0)
		}
	case 2:
		if ft.Out(1) != errorType {
			return nil, fmt.Errorf("%w: second return of %q is %v, want error", ErrBadSignature, name, ft.Out(1))
		}
		f.ret = ft.Out(0)
		f.hasErr = true
	default:
		return nil, fmt.Errorf("%w: %q has %d returns, want at most 2", ErrBadSignature, name, ft.NumOut())
	}
	if f.ret != nil && !bindableReturn(f.ret) {
		return nil, fmt.Errorf("%w: return of %q has unsupported type %v", ErrBadSignature, name, f.ret)
	}
	return f, nil
}

func bindableParam(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return bindableScalar(t)
}

// bindableReturn is bindableParam minus references and minus nothing: a
// returned value must be owned.
func bindableReturn(t reflect.Type) bool {
	return bindableScalar(t)
}

func bindableScalar(t reflect.Type) bool {
	if t == valueType {
		return true
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// Name returns the name the function was registered under.
func (f *Function) Name() string { return f.name }

// ParamTypes returns the declared parameter types. For a variadic function
// the final entry is the element type of the variadic parameter.
func (f *Function) ParamTypes() []reflect.Type { return f.params }

// ReturnType returns the declared return type, or nil for none.
func (f *Function) ReturnType() reflect.Type { return f.ret }

// Variadic reports whether the final parameter is variadic.
func (f *Function) Variadic() bool { return f.variadic }

// Equal reports whether two bound functions have the same erased signature
// and the same debug identity. This is pragmatic identity, not semantic
// equivalence: two distinct functions with identical behavior are not equal.
func (f *Function) Equal(g *Function) bool {
	if f == nil || g == nil {
		return f == g
	}
	if f.identity != g.identity || f.variadic != g.variadic || f.ret != g.ret {
		return false
	}
	if len(f.params) != len(g.params) {
		return false
	}
	for i, p := range f.params {
		if p != g.params[i] {
			return false
		}
	}
	return true
}

func (f *Function) String() string {
	var sb strings.Builder
	sb.WriteString(f.name)
	sb.WriteByte('(')
	for i, p := range f.params {
		if i > 0 {
			sb.WriteString(", ")
		}
		if f.variadic && i == len(f.params)-1 {
			sb.WriteString("...")
		}
		fmt.Fprint(&sb, p)
	}
	sb.WriteByte(')')
	if f.ret != nil {
		fmt.Fprintf(&sb, " %v", f.ret)
	}
	return sb.String()
}

// Invoke calls the function with script values, converting each argument to
// the declared parameter type and the result back to a Value. Arity
// mismatches, unconvertible arguments and out-of-range numeric conversions
// are errors, which the VM surfaces as fatal dialogue faults.
func (f *Function) Invoke(args ...Value) (Value, error) {
	min := len(f.params)
	if f.variadic {
		min--
	}
	switch {
	case f.variadic && len(args) < min:
		return Value{}, fmt.Errorf("%w for %q [got %d < want at least %d]", ErrArityMismatch, f.name, len(args), min)
	case !f.variadic && len(args) != min:
		return Value{}, fmt.Errorf("%w for %q [got %d, want %d]", ErrArityMismatch, f.name, len(args), min)
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		pt := f.params[len(f.params)-1]
		if i < min {
			pt = f.params[i]
		}
		cv, err := convertArg(arg, pt)
		if err != nil {
			return Value{}, fmt.Errorf("argument %d of %q: %w", i, f.name, err)
		}
		in[i] = cv
	}

	out := f.fn.Call(in)
	if f.hasErr {
		if errv := out[len(out)-1]; !errv.IsNil() {
			return Value{}, errv.Interface().(error)
		}
	}
	if f.ret == nil {
		return Value{}, nil
	}
	return convertReturn(out[0])
}

// convertArg converts a script value to the declared parameter type.
// Number-to-integer conversions truncate toward zero and fail if out of
// range. Value parameters receive the value untouched.
func convertArg(v Value, t reflect.Type) (reflect.Value, error) {
	if t.Kind() == reflect.Pointer {
		inner, err := convertArg(v, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(inner)
		return p, nil
	}
	if t == valueType {
		return reflect.ValueOf(v), nil
	}
	switch t.Kind() {
	case reflect.Bool:
		b, err := v.AsBool()
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b).Convert(t), nil

	case reflect.String:
		// Display conversion: numbers and bools are acceptable as strings.
		return reflect.ValueOf(v.String()).Convert(t), nil

	case reflect.Float32, reflect.Float64:
		f, err := v.AsNumber()
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(f).Convert(t), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f, err := v.AsNumber()
		if err != nil {
			return reflect.Value{}, err
		}
		tr := math.Trunc(f)
		rv := reflect.New(t).Elem()
		// MaxInt64 rounds up to 2^63 as a float, so the upper bound must
		// be exclusive or exactly 2^63 would wrap on conversion.
		if tr < math.MinInt64 || tr >= 1<<63 || rv.OverflowInt(int64(tr)) {
			return reflect.Value{}, fmt.Errorf("number %v out of range for %v", f, t)
		}
		rv.SetInt(int64(tr))
		return rv, nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f, err := v.AsNumber()
		if err != nil {
			return reflect.Value{}, err
		}
		tr := math.Trunc(f)
		rv := reflect.New(t).Elem()
		if tr < 0 || tr >= 1<<64 || rv.OverflowUint(uint64(tr)) {
			return reflect.Value{}, fmt.Errorf("number %v out of range for %v", f, t)
		}
		rv.SetUint(uint64(tr))
		return rv, nil
	}
	return reflect.Value{}, fmt.Errorf("%w [cannot convert %v to %v]", ErrWrongType, v.Kind(), t)
}

func convertReturn(rv reflect.Value) (Value, error) {
	if rv.Type() == valueType {
		return rv.Interface().(Value), nil
	}
	switch rv.Kind() {
	case reflect.Bool:
		return BoolValue(rv.Bool()), nil
	case reflect.String:
		return StringValue(rv.String()), nil
	case reflect.Float32, reflect.Float64:
		return NumberValue(rv.Float()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return NumberValue(float64(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return NumberValue(float64(rv.Uint())), nil
	}
	return Value{}, fmt.Errorf("%w [cannot convert %v to a value]", ErrWrongType, rv.Type())
}

// funcIdentity returns a stable debug identity for a function value.
func funcIdentity(fv reflect.Value) string {
	if rf := runtime.FuncForPC(fv.Pointer()); rf != nil {
		return fmt.Sprintf("%s %v", rf.Name(), fv.Type())
	}
	return fv.Type().String()
}

// Library is a registry of functions callable from scripts.
type Library struct {
	funcs map[string]*Function
}

// NewLibrary returns an empty library.
func NewLibrary() *Library {
	return &Library{funcs: make(map[string]*Function)}
}

// Register binds fn into the library under name. fn may be any function
// whose signature bindFunction accepts; it must return a value. Registering
// a name twice is an error.
func (l *Library) Register(name string, fn interface{}) error {
	if _, exists := l.funcs[name]; exists {
		return fmt.Errorf("%w: function %q", ErrDuplicateName, name)
	}
	f, err := bindFunction(name, fn, true)
	if err != nil {
		return err
	}
	l.funcs[name] = f
	return nil
}

// MustRegister is Register, panicking on error. Intended for static
// registration of known-good signatures.
func (l *Library) MustRegister(name string, fn interface{}) {
	if err := l.Register(name, fn); err != nil {
		panic(err)
	}
}

// Function looks up a bound function by name.
func (l *Library) Function(name string) (*Function, bool) {
	f, ok := l.funcs[name]
	return f, ok
}

// Names returns the registered function names, in no particular order.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.funcs))
	for n := range l.funcs {
		names = append(names, n)
	}
	return names
}

// Import copies all registrations from other into l, overwriting entries
// with the same name. Used to layer game-specific functions over the
// standard library.
func (l *Library) Import(other *Library) {
	for n, f := range other.funcs {
		l.funcs[n] = f
	}
}
