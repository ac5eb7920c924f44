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
	"fmt"
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// The compiled artifact is protobuf wire format. The schema is small and
// stable, so the codec is written directly against protowire rather than
// shipping generated code:
//
//	Program     { name=1, nodes=2 map<string,Node>, initial_values=3 map<string,Operand> }
//	Node        { name=1, instructions=2, labels=3 map<string,int32>, tags=4,
//	              source_text_string_id=5, headers=6 }
//	Header      { key=1, value=2 }
//	Instruction { opcode=1, operands=2 }
//	Operand     { string_value=1 | bool_value=2 | float_value=3 (double) }

// Marshal encodes the program in protobuf wire format. Map entries are
// emitted in sorted key order so the encoding is deterministic.
func Marshal(p *Program) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("nil program")
	}
	var b []byte
	if p.Name != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, p.Name)
	}
	for _, name := range sortedKeys(p.Nodes) {
		nb, err := marshalNode(p.Nodes[name])
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", name, err)
		}
		b = appendMapEntry(b, 2, name, nb)
	}
	for _, name := range sortedKeys(p.InitialValues) {
		b = appendMapEntry(b, 3, name, marshalOperand(p.InitialValues[name]))
	}
	return b, nil
}

// Unmarshal decodes a program from protobuf wire format.
func Unmarshal(data []byte) (*Program, error) {
	p := &Program{
		Nodes:         make(map[string]*Node),
		InitialValues: make(map[string]*Operand),
	}
	err := eachField(data, func(num protowire.Number, payload []byte) error {
		switch num {
		case 1:
			p.Name = string(payload)
		case 2:
			key, val, err := splitMapEntry(payload)
			if err != nil {
				return err
			}
			node, err := unmarshalNode(val)
			if err != nil {
				return fmt.Errorf("node %q: %w", key, err)
			}
			p.Nodes[key] = node
		case 3:
			key, val, err := splitMapEntry(payload)
			if err != nil {
				return err
			}
			op, err := unmarshalOperand(val)
			if err != nil {
				return fmt.Errorf("initial value %q: %w", key, err)
			}
			p.InitialValues[key] = op
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func marshalNode(n *Node) ([]byte, error) {
	var b []byte
	if n.Name != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, n.Name)
	}
	for _, inst := range n.Instructions {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalInstruction(inst))
	}
	for _, label := range sortedKeys(n.Labels) {
		var eb []byte
		eb = protowire.AppendTag(eb, 1, protowire.BytesType)
		eb = protowire.AppendString(eb, label)
		eb = protowire.AppendTag(eb, 2, protowire.VarintType)
		eb = protowire.AppendVarint(eb, uint64(n.Labels[label]))
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, eb)
	}
	for _, tag := range n.Tags {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendString(b, tag)
	}
	if n.SourceTextStringID != "" {
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendString(b, n.SourceTextStringID)
	}
	for _, h := range n.Headers {
		var hb []byte
		hb = protowire.AppendTag(hb, 1, protowire.BytesType)
		hb = protowire.AppendString(hb, h.Key)
		hb = protowire.AppendTag(hb, 2, protowire.BytesType)
		hb = protowire.AppendString(hb, h.Value)
		b = protowire.AppendTag(b, 6, protowire.BytesType)
		b = protowire.AppendBytes(b, hb)
	}
	return b, nil
}

func unmarshalNode(data []byte) (*Node, error) {
	n := &Node{Labels: make(map[string]int32)}
	err := eachField(data, func(num protowire.Number, payload []byte) error {
		switch num {
		case 1:
			n.Name = string(payload)
		case 2:
			inst, err := unmarshalInstruction(payload)
			if err != nil {
				return err
			}
			n.Instructions = append(n.Instructions, inst)
		case 3:
			var label string
			var pc int32
			err := eachScalarField(payload, func(num protowire.Number, v []byte, u uint64) {
				switch num {
				case 1:
					label = string(v)
				case 2:
					pc = int32(u)
				}
			})
			if err != nil {
				return err
			}
			n.Labels[label] = pc
		case 4:
			n.Tags = append(n.Tags, string(payload))
		case 5:
			n.SourceTextStringID = string(payload)
		case 6:
			var h Header
			err := eachScalarField(payload, func(num protowire.Number, v []byte, _ uint64) {
				switch num {
				case 1:
					h.Key = string(v)
				case 2:
					h.Value = string(v)
				}
			})
			if err != nil {
				return err
			}
			n.Headers = append(n.Headers, h)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

func marshalInstruction(inst *Instruction) []byte {
	var b []byte
	if inst.Opcode != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(inst.Opcode))
	}
	for _, op := range inst.Operands {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalOperand(op))
	}
	return b
}

func unmarshalInstruction(data []byte) (*Instruction, error) {
	inst := new(Instruction)
	err := eachRawField(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch {
		case num == 1 && typ == protowire.VarintType:
			u, n := protowire.ConsumeVarint(v)
			if n < 0 {
				return protowire.ParseError(n)
			}
			inst.Opcode = Opcode(u)
		case num == 2 && typ == protowire.BytesType:
			payload, n := protowire.ConsumeBytes(v)
			if n < 0 {
				return protowire.ParseError(n)
			}
			op, err := unmarshalOperand(payload)
			if err != nil {
				return err
			}
			inst.Operands = append(inst.Operands, op)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

func marshalOperand(op *Operand) []byte {
	var b []byte
	switch op.Kind {
	case OperandString:
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, op.str)
	case OperandBool:
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		if op.b {
			b = protowire.AppendVarint(b, 1)
		} else {
			b = protowire.AppendVarint(b, 0)
		}
	case OperandFloat:
		b = protowire.AppendTag(b, 3, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(op.f))
	}
	return b
}

func unmarshalOperand(data []byte) (*Operand, error) {
	op := new(Operand)
	err := eachRawField(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch {
		case num == 1 && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(v)
			if n < 0 {
				return protowire.ParseError(n)
			}
			op.Kind, op.str = OperandString, s
		case num == 2 && typ == protowire.VarintType:
			u, n := protowire.ConsumeVarint(v)
			if n < 0 {
				return protowire.ParseError(n)
			}
			op.Kind, op.b = OperandBool, u != 0
		case num == 3 && typ == protowire.Fixed64Type:
			u, n := protowire.ConsumeFixed64(v)
			if n < 0 {
				return protowire.ParseError(n)
			}
			op.Kind, op.f = OperandFloat, math.Float64frombits(u)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return op, nil
}

// appendMapEntry appends one map<string, message> entry field.
func appendMapEntry(b []byte, num protowire.Number, key string, val []byte) []byte {
	var eb []byte
	eb = protowire.AppendTag(eb, 1, protowire.BytesType)
	eb = protowire.AppendString(eb, key)
	eb = protowire.AppendTag(eb, 2, protowire.BytesType)
	eb = protowire.AppendBytes(eb, val)
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, eb)
}

func splitMapEntry(data []byte) (key string, val []byte, err error) {
	err = eachField(data, func(num protowire.Number, payload []byte) error {
		switch num {
		case 1:
			key = string(payload)
		case 2:
			val = payload
		}
		return nil
	})
	return key, val, err
}

// eachField walks all length-delimited fields in a message, skipping other
// wire types.
func eachField(data []byte, f func(num protowire.Number, payload []byte) error) error {
	return eachRawField(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		payload, n := protowire.ConsumeBytes(v)
		if n < 0 {
			return protowire.ParseError(n)
		}
		return f(num, payload)
	})
}

// eachScalarField walks a message whose fields are strings or varints,
// delivering whichever one each field is.
func eachScalarField(data []byte, f func(num protowire.Number, bytes []byte, varint uint64)) error {
	return eachRawField(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch typ {
		case protowire.BytesType:
			payload, n := protowire.ConsumeBytes(v)
			if n < 0 {
				return protowire.ParseError(n)
			}
			f(num, payload, 0)
		case protowire.VarintType:
			u, n := protowire.ConsumeVarint(v)
			if n < 0 {
				return protowire.ParseError(n)
			}
			f(num, nil, u)
		}
		return nil
	})
}

// eachRawField iterates over every field in a message, passing the bytes
// remaining after the tag. The callback is responsible for consuming its
// value; unknown fields are skipped here.
func eachRawField(data []byte, f func(num protowire.Number, typ protowire.Type, v []byte) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		if err := f(num, typ, data); err != nil {
			return err
		}
		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
	}
	return nil
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
