// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ccsds

import (
	"fmt"
	"time"
)

// Encoder assembles telemetry packets for transmission.
// Now supplies the secondary header time; nil means time.Now.
type Encoder struct {
	Now func() time.Time
}

// NewEncoder creates a packet encoder that stamps packets with wall time.
func NewEncoder() *Encoder {
	return &Encoder{Now: time.Now}
}

var defaultEncoder = NewEncoder()

// Assemble builds a complete packet with the default encoder.
func Assemble(subsystem string, fields Fields, seqCount uint16) ([]byte, error) {
	return defaultEncoder.Assemble(subsystem, fields, seqCount)
}

// Assemble builds a complete wire-format packet: primary header, CUC time
// code, subsystem payload and checksum. Lengths are derived from the
// schema so every subsystem goes through this one path.
func (e *Encoder) Assemble(subsystem string, fields Fields, seqCount uint16) ([]byte, error) {
	schema, err := SchemaFor(subsystem)
	if err != nil {
		return nil, err
	}

	payload, err := schema.Encode(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", schema.Name, err)
	}

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	secondary := EncodeTimeCode(now())

	dataLength := uint16(len(secondary) + len(payload) - 1)
	primary, err := EncodePrimaryHeader(schema.APID, seqCount, dataLength)
	if err != nil {
		return nil, err
	}

	packet := make([]byte, 0, PacketOverhead+len(payload))
	packet = append(packet, primary...)
	packet = append(packet, secondary...)
	packet = append(packet, payload...)

	return AppendCRC(packet), nil
}
