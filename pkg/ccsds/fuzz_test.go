// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ccsds

import (
	"errors"
	"math"
	"testing"
	"time"
)

// ============================================================
// Round-Trip Fuzz Tests
// ============================================================

func TestFuzz_AssembleParseRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()
	entries := Entries()

	for i := 0; i < rounds; i++ {
		e := entries[rng.Intn(len(entries))]
		fields := randomFields(rng, e.Schema)
		seq := uint16(rng.Intn(SequenceCountModulo))
		at := MissionStart.Add(time.Duration(rng.Int63n(int64(400 * 24 * time.Hour))))

		enc := &Encoder{Now: func() time.Time { return at }}
		data, err := enc.Assemble(e.Name, fields, seq)
		if err != nil {
			t.Fatalf("round %d: Assemble(%s) failed: %v", i, e.Name, err)
		}

		p, err := Parse(data)
		if err != nil {
			t.Fatalf("round %d: Parse(%s) failed: %v", i, e.Name, err)
		}
		if p.SequenceCount() != seq || p.APID() != e.APID {
			t.Fatalf("round %d: header mismatch apid=%d seq=%d", i, p.APID(), p.SequenceCount())
		}
		if p.TimeCode() != NewTimeCode(at) {
			t.Fatalf("round %d: time code %v, expected %v", i, p.TimeCode(), NewTimeCode(at))
		}

		// Random floats are already float32-representable, so equality is exact
		got := p.Fields()
		for name, want := range fields {
			if got[name] != want {
				t.Fatalf("round %d: %s.%s = %v, expected %v", i, e.Name, name, got[name], want)
			}
		}
	}
}

func TestFuzz_ParseRandomBytes(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		data := make([]byte, rng.Intn(64))
		rng.Read(data)

		p, err := Parse(data)
		if err == nil {
			// Only possible when the random bytes form a real packet
			if p == nil {
				t.Fatalf("round %d: nil packet without error", i)
			}
			continue
		}
		if p != nil {
			t.Fatalf("round %d: packet returned with error %v", i, err)
		}
		if ErrorKind(err) == "Unknown" {
			t.Fatalf("round %d: error does not wrap a codec sentinel: %v", i, err)
		}
	}
}

func TestFuzz_CorruptedPacketsNeverPanic(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()
	entries := Entries()

	for i := 0; i < rounds; i++ {
		e := entries[rng.Intn(len(entries))]
		data, err := fixedEncoder().Assemble(e.Name, randomFields(rng, e.Schema), uint16(rng.Intn(SequenceCountModulo)))
		if err != nil {
			t.Fatal(err)
		}

		// Flip 1-3 random bits outside the time code
		flips := 1 + rng.Intn(3)
		for j := 0; j < flips; j++ {
			pos := rng.Intn(len(data))
			if pos >= PrimaryHeaderSize && pos < PrimaryHeaderSize+SecondaryHeaderSize {
				continue
			}
			data[pos] ^= 1 << uint(rng.Intn(8))
		}

		_, err = Parse(data)
		if err != nil && ErrorKind(err) == "Unknown" {
			t.Fatalf("round %d: unexpected error type: %v", i, err)
		}
	}
}

func TestFuzz_StreamDecoderRandomNoise(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()
	d := NewStreamDecoder()

	want := 0
	got := 0
	for i := 0; i < rounds/10+1; i++ {
		noise := make([]byte, rng.Intn(16))
		rng.Read(noise)
		for _, b := range noise {
			if p, _ := d.DecodeByte(b); p != nil {
				got++
			}
		}

		e := Entries()[rng.Intn(SubsystemCount())]
		data, _ := fixedEncoder().Assemble(e.Name, randomFields(rng, e.Schema), uint16(i%SequenceCountModulo))
		want++
		for _, b := range data {
			if p, _ := d.DecodeByte(b); p != nil {
				got++
			}
		}
	}

	// Noise may swallow the odd packet when it forms a false header
	if float64(got) < math.Floor(float64(want)*0.9) {
		t.Errorf("recovered %d of %d packets", got, want)
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrUnknownAPID, "UnknownApid"},
		{errors.Join(errors.New("ctx"), ErrChecksumMismatch), "ChecksumMismatch"},
		{errors.New("other"), "Unknown"},
	}
	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %q, expected %q", tt.err, got, tt.want)
		}
	}
}
