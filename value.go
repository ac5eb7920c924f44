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
	"math"
	"strconv"
)

// Kind identifies which kind of value a Value holds.
type Kind uint8

const (
	// KindNone is the zero Kind; it marks a null value, which scripts cannot
	// construct but older compilers can push.
	KindNone Kind = iota
	KindNumber
	KindString
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	}
	return fmt.Sprintf("(invalid kind %d)", uint8(k))
}

// Value is a tagged script value: a number (finite 64-bit float), a string,
// or a boolean. The zero Value is null.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
}

// NumberValue returns a Value holding the number f.
func NumberValue(f float64) Value { return Value{kind: KindNumber, num: f} }

// StringValue returns a Value holding the string s.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// BoolValue returns a Value holding the boolean b.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind reports the kind of value held.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null (the zero Value).
func (v Value) IsNull() bool { return v.kind == KindNone }

// AsNumber returns the held number. Any other kind is an error; there is no
// implicit conversion to number.
func (v Value) AsNumber() (float64, error) {
	if v.kind != KindNumber {
		return 0, fmt.Errorf("%w [%v != number]", ErrWrongType, v.kind)
	}
	return v.num, nil
}

// AsString returns the held string. Any other kind is an error; use String
// for the display conversion.
func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", fmt.Errorf("%w [%v != string]", ErrWrongType, v.kind)
	}
	return v.str, nil
}

// AsBool returns the held boolean. Numbers do not convert to booleans.
func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, fmt.Errorf("%w [%v != bool]", ErrWrongType, v.kind)
	}
	return v.b, nil
}

// String renders the value for display. Numbers format with the shortest
// representation that round-trips ("3", "1.5"); booleans as "true"/"false";
// null as the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	case KindBool:
		return strconv.FormatBool(v.b)
	}
	return ""
}

// Equal reports whether w holds the same kind and the same value.
func (v Value) Equal(w Value) bool {
	if v.kind != w.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == w.num
	case KindString:
		return v.str == w.str
	case KindBool:
		return v.b == w.b
	}
	return true
}

// Compare orders v against w within a kind, returning -1, 0 or +1.
// Comparing values of different kinds is an error. Booleans order
// false < true.
func (v Value) Compare(w Value) (int, error) {
	if v.kind != w.kind {
		return 0, fmt.Errorf("%w [cannot compare %v with %v]", ErrWrongType, v.kind, w.kind)
	}
	switch v.kind {
	case KindNumber:
		switch {
		case v.num < w.num:
			return -1, nil
		case v.num > w.num:
			return 1, nil
		}
		return 0, nil
	case KindString:
		switch {
		case v.str < w.str:
			return -1, nil
		case v.str > w.str:
			return 1, nil
		}
		return 0, nil
	case KindBool:
		switch {
		case !v.b && w.b:
			return -1, nil
		case v.b && !w.b:
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("%w [cannot compare %v values]", ErrWrongType, v.kind)
}

// asInt converts a number to an int, truncating toward zero. Out-of-range
// and non-number values are errors. Used for operand counts and integer
// parameter binding.
func (v Value) asInt() (int, error) {
	f, err := v.AsNumber()
	if err != nil {
		return 0, err
	}
	t := math.Trunc(f)
	// MaxInt64 rounds up to 2^63 as a float; the boundary itself is out of
	// range.
	if t < math.MinInt64 || t >= 1<<63 {
		return 0, fmt.Errorf("number %v out of integer range", f)
	}
	return int(t), nil
}
