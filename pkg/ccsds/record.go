// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ccsds

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Record status values
const (
	StatusNominal = "nominal"
	StatusAnomaly = "anomaly"
)

// Record is the self-describing form of a decoded packet used by the
// archive and dashboard.
type Record struct {
	Subsystem     string    `json:"subsystem" cbor:"subsystem"`
	APID          uint16    `json:"apid" cbor:"apid"`
	SequenceCount uint16    `json:"sequence_count" cbor:"sequence_count"`
	Coarse        uint32    `json:"coarse" cbor:"coarse"`
	Fine          uint8     `json:"fine" cbor:"fine"`
	MissionTime   float64   `json:"mission_time" cbor:"mission_time"`
	Timestamp     time.Time `json:"timestamp" cbor:"timestamp"`
	Status        string    `json:"status" cbor:"status"`
	Anomalies     []string  `json:"anomalies,omitempty" cbor:"anomalies,omitempty"`
	Data          Fields    `json:"data" cbor:"data"`
}

// NewRecord builds a record from a packet, running the validator to
// decide its status.
func NewRecord(p *Packet) Record {
	tc := p.TimeCode()
	r := Record{
		Subsystem:     strings.ToUpper(p.Subsystem()),
		APID:          uint16(p.APID()),
		SequenceCount: p.SequenceCount(),
		Coarse:        tc.Coarse,
		Fine:          tc.Fine,
		MissionTime:   tc.Seconds(),
		Timestamp:     p.ReceivedAt(),
		Status:        StatusNominal,
		Data:          p.Fields(),
	}
	if issues := ValidatePacket(p); len(issues) > 0 {
		r.Status = StatusAnomaly
		for _, v := range issues {
			r.Anomalies = append(r.Anomalies, v.Message)
		}
	}
	return r
}

var (
	recordEncMode cbor.EncMode
	recordDecMode cbor.DecMode
)

func init() {
	var err error
	recordEncMode, err = cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("ccsds: cbor encode mode: %v", err))
	}
	recordDecMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("ccsds: cbor decode mode: %v", err))
	}
}

// EncodeRecordCBOR serializes a record as a CBOR map
func EncodeRecordCBOR(r Record) ([]byte, error) {
	data, err := recordEncMode.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return data, nil
}

// DecodeRecordCBOR parses a CBOR record. Numeric data values come back as
// uint64 or float64, matching packet decoding.
func DecodeRecordCBOR(data []byte) (Record, error) {
	var r Record
	if err := recordDecMode.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("failed to decode record: %w", err)
	}
	return r, nil
}

// EncodeRecordJSON serializes a record as JSON
func EncodeRecordJSON(r Record) ([]byte, error) {
	return json.Marshal(r)
}

// MarshalJSON writes NaN and infinite floats as the strings "NaN", "+Inf"
// and "-Inf" since JSON numbers cannot hold them.
func (f Fields) MarshalJSON() ([]byte, error) {
	if f == nil {
		return []byte("null"), nil
	}
	out := make(map[string]any, len(f))
	for k, v := range f {
		if fv, ok := v.(float32); ok {
			v = float64(fv)
		}
		if fv, ok := v.(float64); ok && (math.IsNaN(fv) || math.IsInf(fv, 0)) {
			v = strconv.FormatFloat(fv, 'g', -1, 64)
		}
		out[k] = v
	}
	return json.Marshal(out)
}
