// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ccsds

import (
	"fmt"
	"math"
)

// AnomalyType represents different types of telemetry anomalies
type AnomalyType int

const (
	AnomalyOutOfRange AnomalyType = iota
	AnomalyInvalidMode
	AnomalyNonFinite
	AnomalyFaultFlags
)

func (a AnomalyType) String() string {
	switch a {
	case AnomalyOutOfRange:
		return "OUT_OF_RANGE"
	case AnomalyInvalidMode:
		return "INVALID_MODE"
	case AnomalyNonFinite:
		return "NON_FINITE"
	case AnomalyFaultFlags:
		return "FAULT_FLAGS"
	}
	return "UNKNOWN"
}

// ValidationError represents one anomalous payload value
type ValidationError struct {
	Type    AnomalyType
	Field   string
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidatePacket checks decoded payload values against the documented
// ranges of their schema. Encoding never range-checks, so this is where
// out-of-range modes and readings surface.
// Returns a slice of validation errors (empty if the packet is nominal).
func ValidatePacket(p *Packet) []ValidationError {
	errors := []ValidationError{}

	schema := p.Schema()
	if schema == nil {
		return errors
	}

	for _, f := range schema.Fields {
		v, ok := p.fields[f.Name]
		if !ok {
			continue
		}
		if err, bad := validateField(schema.Name, f, v); bad {
			errors = append(errors, err)
		}
	}

	return errors
}

func validateField(subsystem string, f Field, v any) (ValidationError, bool) {
	qualified := subsystem + "." + f.Name

	if f.Type == Float32 {
		fv, _ := toFloat64(v)
		if math.IsNaN(fv) || math.IsInf(fv, 0) {
			return ValidationError{
				Type:    AnomalyNonFinite,
				Field:   f.Name,
				Message: fmt.Sprintf("%s is not finite (%v)", qualified, fv),
				Details: map[string]interface{}{"value": fv},
			}, true
		}
		// Compare at wire precision so a bound that survives float32
		// narrowing is still in range.
		lo, hi := float64(float32(f.Min)), float64(float32(f.Max))
		if f.hasRange() && (fv < lo || fv > hi) {
			return ValidationError{
				Type:    AnomalyOutOfRange,
				Field:   f.Name,
				Message: fmt.Sprintf("%s out of range (%.3f%s, valid: %g to %g)", qualified, fv, f.Unit, f.Min, f.Max),
				Details: map[string]interface{}{"value": fv, "min": f.Min, "max": f.Max},
			}, true
		}
		return ValidationError{}, false
	}

	u, _ := toWireUint(v)
	switch {
	case f.FaultFlags && u != 0:
		return ValidationError{
			Type:    AnomalyFaultFlags,
			Field:   f.Name,
			Message: fmt.Sprintf("%s reports faults (0b%08b)", qualified, u),
			Details: map[string]interface{}{"value": u},
		}, true
	case len(f.Enum) > 0 && u >= uint64(len(f.Enum)):
		return ValidationError{
			Type:    AnomalyInvalidMode,
			Field:   f.Name,
			Message: fmt.Sprintf("Invalid %s=%d (max %d)", qualified, u, len(f.Enum)-1),
			Details: map[string]interface{}{"value": u, "max": len(f.Enum) - 1},
		}, true
	case f.hasRange() && (float64(u) < f.Min || float64(u) > f.Max):
		return ValidationError{
			Type:    AnomalyOutOfRange,
			Field:   f.Name,
			Message: fmt.Sprintf("%s out of range (%d%s, valid: %g to %g)", qualified, u, f.Unit, f.Min, f.Max),
			Details: map[string]interface{}{"value": u, "min": f.Min, "max": f.Max},
		}, true
	}
	return ValidationError{}, false
}
