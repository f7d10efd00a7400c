// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ccsds

import "math"

// Fields holds payload values keyed by schema field name.
//
// Decoded floats are float64 and decoded integers are uint64. Encoding
// accepts any Go numeric type (and bool for integer fields).
type Fields map[string]any

// Clone returns a shallow copy of the map
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Float extracts a field as float64
func (f Fields) Float(name string) (float64, bool) {
	if f == nil {
		return 0, false
	}
	v, ok := f[name]
	if !ok {
		return 0, false
	}
	return toFloat64(v)
}

// Uint extracts a field as uint64. Negative or non-finite values fail.
func (f Fields) Uint(name string) (uint64, bool) {
	if f == nil {
		return 0, false
	}
	v, ok := f[name]
	if !ok {
		return 0, false
	}
	switch val := v.(type) {
	case uint64:
		return val, true
	case uint:
		return uint64(val), true
	case float32, float64:
		fv, _ := toFloat64(val)
		if fv < 0 || math.IsNaN(fv) || math.IsInf(fv, 0) {
			return 0, false
		}
		return uint64(fv), true
	}
	i, ok := toInt64(v)
	if !ok || i < 0 {
		return 0, false
	}
	return uint64(i), true
}

// Int extracts a field as int64
func (f Fields) Int(name string) (int64, bool) {
	if f == nil {
		return 0, false
	}
	v, ok := f[name]
	if !ok {
		return 0, false
	}
	if fv, isFloat := v.(float64); isFloat {
		return int64(fv), true
	}
	if fv, isFloat := v.(float32); isFloat {
		return int64(fv), true
	}
	return toInt64(v)
}

// toFloat64 widens any Go numeric to float64
func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// toInt64 converts integer types (and bool) to int64. Floats are rejected
// here; callers decide whether truncation is acceptable.
func toInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		return int64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// toWireUint casts a value to the raw bits of an unsigned wire integer.
// No range check: 300 into a u8 field becomes 44, -1 becomes 0xFF.
func toWireUint(v any) (uint64, bool) {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return 0, false
		}
		return uint64(int64(val)), true
	case float32:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return uint64(int64(f)), true
	case uint64:
		return val, true
	case uint:
		return uint64(val), true
	}
	i, ok := toInt64(v)
	return uint64(i), ok
}
