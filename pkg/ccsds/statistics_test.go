// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ccsds

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestStatistics_Counts(t *testing.T) {
	s := NewStatistics()

	p := parseFields(t, "cdh", nominalFields("cdh"))
	s.Update(p, nil, nil)

	faulty := nominalFields("power")
	faulty["fault_flags"] = 0x01
	fp := parseFields(t, "power", faulty)
	s.Update(fp, nil, ValidatePacket(fp))

	s.Update(nil, fmt.Errorf("rx: %w", ErrChecksumMismatch), nil)
	s.Update(nil, ErrIncompletePacket, nil)
	s.Update(nil, ErrUnknownAPID, nil)
	s.Update(nil, ErrMalformedPayload, nil)
	s.Update(nil, ErrMalformedHeader, nil)
	s.Update(nil, fmt.Errorf("socket closed"), nil)

	snap := s.Snapshot()
	if snap.TotalPackets != 8 {
		t.Errorf("expected 8 total, got %d", snap.TotalPackets)
	}
	if snap.ValidPackets != 1 {
		t.Errorf("expected 1 valid, got %d", snap.ValidPackets)
	}
	if snap.AnomalousPackets != 1 || snap.FaultFlags != 1 {
		t.Errorf("expected 1 anomalous with fault flags, got %d/%d", snap.AnomalousPackets, snap.FaultFlags)
	}
	if snap.ChecksumErrors != 1 || snap.IncompletePackets != 1 || snap.UnknownAPIDs != 1 ||
		snap.MalformedPayloads != 1 || snap.MalformedHeaders != 1 || snap.OtherErrors != 1 {
		t.Errorf("error counters wrong: %+v", snap)
	}
	if snap.Errors() != 6 {
		t.Errorf("expected 6 errors, got %d", snap.Errors())
	}
	if snap.PerSubsystem["cdh"] != 1 || snap.PerSubsystem["power"] != 1 {
		t.Errorf("per-subsystem counts wrong: %v", snap.PerSubsystem)
	}

	out := s.String()
	for _, want := range []string{"Total Packets:", "Checksum:", "CDH:", "Fault Flags:"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestStatistics_SequenceGaps(t *testing.T) {
	s := NewStatistics()
	enc := fixedEncoder()
	for _, seq := range []uint16{MaxSequenceCount - 1, MaxSequenceCount, 0, 3} {
		data, _ := enc.Assemble("adcs", nominalFields("adcs"), seq)
		p, err := Parse(data)
		if err != nil {
			t.Fatal(err)
		}
		s.Update(p, nil, nil)
	}

	snap := s.Snapshot()
	if snap.SequenceGaps != 1 {
		t.Errorf("expected 1 gap, got %d", snap.SequenceGaps)
	}
	if snap.MissedPackets != 2 {
		t.Errorf("expected 2 missed packets, got %d", snap.MissedPackets)
	}
}

func TestSequenceDistance(t *testing.T) {
	tests := []struct {
		a, b uint16
		want int
	}{
		{0, 1, 1},
		{10, 10, 0},
		{MaxSequenceCount, 0, 1},
		{MaxSequenceCount - 2, 2, 5},
		{5, 4, MaxSequenceCount},
	}
	for _, tt := range tests {
		if got := SequenceDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("SequenceDistance(%d, %d) = %d, expected %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestStatistics_ConcurrentUpdates(t *testing.T) {
	s := NewStatistics()
	p := parseFields(t, "payload", nominalFields("payload"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Update(p, nil, nil)
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()

	if got := s.Snapshot().TotalPackets; got != 800 {
		t.Errorf("expected 800 packets, got %d", got)
	}
}

func TestStatistics_Reset(t *testing.T) {
	s := NewStatistics()
	s.Update(nil, ErrChecksumMismatch, nil)
	s.Reset()
	if snap := s.Snapshot(); snap.TotalPackets != 0 || snap.ChecksumErrors != 0 {
		t.Errorf("counters not reset: %+v", snap)
	}
}
