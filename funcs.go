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
	"strconv"
	"strings"
)

// ErrDivisionByZero is returned by Divide and Modulo with a zero divisor.
var ErrDivisionByZero = errors.New("division by zero")

// DefaultLibrary returns a library preloaded with the standard operators the
// compiler emits for expressions. Hosts layer their own functions on top with
// Register or Import.
func DefaultLibrary() *Library {
	l := NewLibrary()
	l.MustRegister("None", func(x Value) Value { return x })
	l.MustRegister("EqualTo", func(x, y Value) bool { return x.Equal(y) })
	l.MustRegister("NotEqualTo", func(x, y Value) bool { return !x.Equal(y) })
	l.MustRegister("GreaterThan", compareFunc(func(c int) bool { return c > 0 }))
	l.MustRegister("GreaterThanOrEqualTo", compareFunc(func(c int) bool { return c >= 0 }))
	l.MustRegister("LessThan", compareFunc(func(c int) bool { return c < 0 }))
	l.MustRegister("LessThanOrEqualTo", compareFunc(func(c int) bool { return c <= 0 }))
	l.MustRegister("Or", func(x, y bool) bool { return x || y })
	l.MustRegister("And", func(x, y bool) bool { return x && y })
	l.MustRegister("Xor", func(x, y bool) bool { return x != y })
	l.MustRegister("Not", func(x bool) bool { return !x })
	l.MustRegister("UnaryMinus", func(x float64) float64 { return -x })
	l.MustRegister("Add", funcAdd)
	l.MustRegister("Minus", arithFunc(func(x, y float64) (float64, error) { return x - y, nil }))
	l.MustRegister("Multiply", arithFunc(func(x, y float64) (float64, error) { return x * y, nil }))
	l.MustRegister("Divide", arithFunc(funcDivide))
	l.MustRegister("Modulo", arithFunc(funcModulo))
	l.MustRegister("string", func(x Value) string { return x.String() })
	l.MustRegister("number", funcNumber)
	l.MustRegister("bool", funcBool)
	return l
}

// funcNumber converts a value of any kind to a number. Strings are parsed;
// bools become 0 or 1.
func funcNumber(x Value) (float64, error) {
	switch x.Kind() {
	case KindNumber:
		return x.AsNumber()
	case KindString:
		s, _ := x.AsString()
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("%w [%q is not a number]", ErrWrongType, s)
		}
		return f, nil
	case KindBool:
		b, _ := x.AsBool()
		if b {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("%w [cannot convert %v to number]", ErrWrongType, x.Kind())
}

// funcBool converts a value of any kind to a bool. Strings are parsed;
// numbers are true when nonzero.
func funcBool(x Value) (bool, error) {
	switch x.Kind() {
	case KindBool:
		return x.AsBool()
	case KindString:
		s, _ := x.AsString()
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return false, fmt.Errorf("%w [%q is not a bool]", ErrWrongType, s)
		}
		return b, nil
	case KindNumber:
		f, _ := x.AsNumber()
		return f != 0, nil
	}
	return false, fmt.Errorf("%w [cannot convert %v to bool]", ErrWrongType, x.Kind())
}

func compareFunc(ok func(int) bool) func(Value, Value) (bool, error) {
	return func(x, y Value) (bool, error) {
		c, err := x.Compare(y)
		if err != nil {
			return false, err
		}
		return ok(c), nil
	}
}

func arithFunc(op func(x, y float64) (float64, error)) func(Value, Value) (Value, error) {
	return func(x, y Value) (Value, error) {
		xf, err := x.AsNumber()
		if err != nil {
			return Value{}, err
		}
		yf, err := y.AsNumber()
		if err != nil {
			return Value{}, err
		}
		f, err := op(xf, yf)
		if err != nil {
			return Value{}, err
		}
		return NumberValue(f), nil
	}
}

// funcAdd adds numbers or concatenates strings. Mixing kinds is an error.
func funcAdd(x, y Value) (Value, error) {
	switch x.Kind() {
	case KindNumber:
		yf, err := y.AsNumber()
		if err != nil {
			return Value{}, err
		}
		xf, _ := x.AsNumber()
		return NumberValue(xf + yf), nil
	case KindString:
		ys, err := y.AsString()
		if err != nil {
			return Value{}, err
		}
		xs, _ := x.AsString()
		return StringValue(xs + ys), nil
	}
	return Value{}, fmt.Errorf("%w [cannot add %v values]", ErrWrongType, x.Kind())
}

func funcDivide(x, y float64) (float64, error) {
	if y == 0 {
		return 0, fmt.Errorf("%v / %v: %w", x, y, ErrDivisionByZero)
	}
	return x / y, nil
}

func funcModulo(x, y float64) (float64, error) {
	if y == 0 {
		return 0, fmt.Errorf("%v %% %v: %w", x, y, ErrDivisionByZero)
	}
	return math.Mod(x, y), nil
}
