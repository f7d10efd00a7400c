// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ccsds

import (
	"encoding/binary"
	"fmt"
	"math"
)

// FieldType is the wire representation of a payload field
type FieldType int

// Payload field wire types
const (
	Float32 FieldType = iota
	Uint8
	Uint16
	Uint32
)

// Size returns the encoded width in bytes
func (t FieldType) Size() int {
	switch t {
	case Float32, Uint32:
		return 4
	case Uint16:
		return 2
	case Uint8:
		return 1
	}
	return 0
}

func (t FieldType) String() string {
	switch t {
	case Float32:
		return "f32"
	case Uint8:
		return "u8"
	case Uint16:
		return "u16"
	case Uint32:
		return "u32"
	}
	return "unknown"
}

// Field describes one payload value.
//
// Min and Max document the nominal range; they are ignored when both are
// zero. Enum names the defined values of mode/status fields, indexed by
// value. Neither is enforced on encode; see ValidatePacket.
type Field struct {
	Name        string
	Type        FieldType
	Unit        string
	Description string
	Min, Max    float64
	Enum        []string
	FaultFlags  bool // bitfield where any set bit is a fault
}

func (f Field) hasRange() bool {
	return f.Min != 0 || f.Max != 0
}

// Schema is the fixed payload layout of one subsystem. Schemas are defined
// once in the directory and shared by the encode and decode paths.
type Schema struct {
	Name   string
	APID   APID
	Fields []Field
}

// Clone returns a deep copy of the schema
func (s *Schema) Clone() *Schema {
	out := *s
	out.Fields = make([]Field, len(s.Fields))
	for i, f := range s.Fields {
		if f.Enum != nil {
			f.Enum = append([]string(nil), f.Enum...)
		}
		out.Fields[i] = f
	}
	return &out
}

// Size returns the payload length in bytes
func (s *Schema) Size() int {
	n := 0
	for _, f := range s.Fields {
		n += f.Type.Size()
	}
	return n
}

// Field looks up a field definition by name
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Encode packs fields in schema order. Floats are narrowed to float32;
// integers are cast to their wire width without range checks.
func (s *Schema) Encode(fields Fields) ([]byte, error) {
	buf := make([]byte, s.Size())
	offset := 0
	for _, f := range s.Fields {
		v, ok := fields[f.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrMissingField, s.Name, f.Name)
		}

		switch f.Type {
		case Float32:
			fv, ok := toFloat64(v)
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s is %T, want number", ErrFieldType, s.Name, f.Name, v)
			}
			binary.BigEndian.PutUint32(buf[offset:], math.Float32bits(float32(fv)))
		default:
			u, ok := toWireUint(v)
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s is %T, want integer", ErrFieldType, s.Name, f.Name, v)
			}
			putUint(buf[offset:], f.Type, u)
		}
		offset += f.Type.Size()
	}
	return buf, nil
}

// Decode unpacks a payload. The input must be exactly Size() bytes.
func (s *Schema) Decode(payload []byte) (Fields, error) {
	if len(payload) != s.Size() {
		return nil, fmt.Errorf("%w: APID 0x%02X (%s) expected %d bytes, got %d",
			ErrMalformedPayload, uint16(s.APID), s.Name, s.Size(), len(payload))
	}

	fields := make(Fields, len(s.Fields))
	offset := 0
	for _, f := range s.Fields {
		switch f.Type {
		case Float32:
			bits := binary.BigEndian.Uint32(payload[offset:])
			fields[f.Name] = float64(math.Float32frombits(bits))
		default:
			fields[f.Name] = getUint(payload[offset:], f.Type)
		}
		offset += f.Type.Size()
	}
	return fields, nil
}

func putUint(b []byte, t FieldType, v uint64) {
	switch t {
	case Uint8:
		b[0] = uint8(v)
	case Uint16:
		binary.BigEndian.PutUint16(b, uint16(v))
	case Uint32:
		binary.BigEndian.PutUint32(b, uint32(v))
	}
}

func getUint(b []byte, t FieldType) uint64 {
	switch t {
	case Uint8:
		return uint64(b[0])
	case Uint16:
		return uint64(binary.BigEndian.Uint16(b))
	case Uint32:
		return uint64(binary.BigEndian.Uint32(b))
	}
	return 0
}
