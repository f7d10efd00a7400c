// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ccsds

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewRecord(t *testing.T) {
	p := parseFields(t, "power", nominalFields("power"))
	r := NewRecord(p)

	if r.Subsystem != "POWER" || r.APID != 2 || r.SequenceCount != 1 {
		t.Errorf("unexpected identity: %+v", r)
	}
	if r.Status != StatusNominal {
		t.Errorf("expected nominal, got %s", r.Status)
	}
	if r.Coarse != 1000 || r.Fine != 128 || r.MissionTime != 1000.5 {
		t.Errorf("unexpected time: coarse=%d fine=%d mission=%v", r.Coarse, r.Fine, r.MissionTime)
	}

	bad := nominalFields("power")
	bad["eps_mode"] = 12
	r = NewRecord(parseFields(t, "power", bad))
	if r.Status != StatusAnomaly || len(r.Anomalies) != 1 {
		t.Errorf("expected one anomaly, got status=%s anomalies=%v", r.Status, r.Anomalies)
	}
}

func TestRecordCBOR_RoundTrip(t *testing.T) {
	r := NewRecord(parseFields(t, "payload", nominalFields("payload")))

	data, err := EncodeRecordCBOR(r)
	if err != nil {
		t.Fatalf("EncodeRecordCBOR failed: %v", err)
	}
	got, err := DecodeRecordCBOR(data)
	if err != nil {
		t.Fatalf("DecodeRecordCBOR failed: %v", err)
	}

	if diff := cmp.Diff(r, got); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRecordCBOR_Garbage(t *testing.T) {
	if _, err := DecodeRecordCBOR([]byte{0xFF, 0x00}); err == nil {
		t.Error("expected error for invalid CBOR")
	}
}

func TestEncodeRecordJSON(t *testing.T) {
	r := NewRecord(parseFields(t, "cdh", nominalFields("cdh")))
	data, err := EncodeRecordJSON(r)
	if err != nil {
		t.Fatal(err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"subsystem", "timestamp", "status", "sequence_count", "data"} {
		if _, ok := m[key]; !ok {
			t.Errorf("JSON record missing %q", key)
		}
	}
	if m["subsystem"] != "CDH" {
		t.Errorf("expected subsystem CDH, got %v", m["subsystem"])
	}
}

func TestEncodeRecordJSON_NonFinite(t *testing.T) {
	f := nominalFields("thermal")
	f["average_temp"] = math.NaN()
	f["hot_spot_temp"] = math.Inf(1)
	f["cold_spot_temp"] = math.Inf(-1)
	r := NewRecord(parseFields(t, "thermal", f))
	if r.Status != StatusAnomaly {
		t.Errorf("non-finite readings should be anomalies, got %s", r.Status)
	}

	data, err := EncodeRecordJSON(r)
	if err != nil {
		t.Fatalf("EncodeRecordJSON failed: %v", err)
	}

	var m struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"average_temp": "NaN", "hot_spot_temp": "+Inf", "cold_spot_temp": "-Inf"}
	for name, v := range want {
		if m.Data[name] != v {
			t.Errorf("%s = %v, want %v", name, m.Data[name], v)
		}
	}
	if _, ok := m.Data["heater_status"].(float64); !ok {
		t.Errorf("finite fields should stay numbers, got %T", m.Data["heater_status"])
	}
}
