// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ccsds

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Statistics tracks packet statistics and error rates. It is safe for
// concurrent use; readers take a Snapshot.
type Statistics struct {
	mu sync.Mutex
	s  StatisticsSnapshot

	lastSeq map[APID]uint16
}

// StatisticsSnapshot is a point-in-time copy of the counters
type StatisticsSnapshot struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalPackets      uint64
	ValidPackets      uint64
	ChecksumErrors    uint64
	IncompletePackets uint64
	MalformedPayloads uint64
	MalformedHeaders  uint64
	UnknownAPIDs      uint64
	OtherErrors       uint64
	AnomalousPackets  uint64
	FaultFlags        uint64
	SequenceGaps      uint64
	MissedPackets     uint64

	PerSubsystem map[string]uint64

	// Rates (calculated)
	PacketRate float64 // packets/sec
	ErrorRate  float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	s := &Statistics{}
	s.Reset()
	return s
}

// Update records one decode attempt: a packet or the error that prevented
// it, plus any validation anomalies.
func (st *Statistics) Update(packet *Packet, decodeErr error, validationErrors []ValidationError) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := &st.s
	s.TotalPackets++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		switch {
		case errors.Is(decodeErr, ErrChecksumMismatch):
			s.ChecksumErrors++
		case errors.Is(decodeErr, ErrIncompletePacket):
			s.IncompletePackets++
		case errors.Is(decodeErr, ErrMalformedPayload):
			s.MalformedPayloads++
		case errors.Is(decodeErr, ErrMalformedHeader):
			s.MalformedHeaders++
		case errors.Is(decodeErr, ErrUnknownAPID):
			s.UnknownAPIDs++
		default:
			s.OtherErrors++
		}
		return
	}
	if packet == nil {
		return
	}

	s.PerSubsystem[packet.Subsystem()]++
	st.trackSequence(packet.APID(), packet.SequenceCount())

	if len(validationErrors) > 0 {
		s.AnomalousPackets++
		for _, v := range validationErrors {
			if v.Type == AnomalyFaultFlags {
				s.FaultFlags++
			}
		}
	} else {
		s.ValidPackets++
	}
}

// trackSequence counts packets lost between consecutive sequence numbers
// of one APID. Caller holds the lock.
func (st *Statistics) trackSequence(apid APID, seq uint16) {
	last, seen := st.lastSeq[apid]
	st.lastSeq[apid] = seq
	if !seen {
		return
	}
	if missed := SequenceDistance(last, seq) - 1; missed > 0 {
		st.s.SequenceGaps++
		st.s.MissedPackets += uint64(missed)
	}
}

// SequenceDistance returns how far b is ahead of a on the 14-bit sequence
// counter, accounting for wraparound.
func SequenceDistance(a, b uint16) int {
	return int((uint32(b) - uint32(a)) % SequenceCountModulo)
}

// Snapshot returns a copy of the counters with rates calculated
func (st *Statistics) Snapshot() StatisticsSnapshot {
	st.mu.Lock()
	defer st.mu.Unlock()

	snap := st.s
	snap.PerSubsystem = make(map[string]uint64, len(st.s.PerSubsystem))
	for k, v := range st.s.PerSubsystem {
		snap.PerSubsystem[k] = v
	}

	elapsed := time.Since(snap.StartTime).Seconds()
	if elapsed > 0 {
		snap.PacketRate = float64(snap.TotalPackets) / elapsed
		snap.ErrorRate = float64(snap.Errors()) / elapsed
	}
	return snap
}

// Errors returns the number of failed decodes
func (s StatisticsSnapshot) Errors() uint64 {
	return s.ChecksumErrors + s.IncompletePackets + s.MalformedPayloads +
		s.MalformedHeaders + s.UnknownAPIDs + s.OtherErrors
}

// String returns a formatted statistics summary
func (st *Statistics) String() string {
	return st.Snapshot().String()
}

// String returns a formatted statistics summary
func (s StatisticsSnapshot) String() string {
	var validPercent, anomalousPercent, errorPercent float64
	if s.TotalPackets > 0 {
		validPercent = float64(s.ValidPackets) * 100.0 / float64(s.TotalPackets)
		anomalousPercent = float64(s.AnomalousPackets) * 100.0 / float64(s.TotalPackets)
		errorPercent = float64(s.Errors()) * 100.0 / float64(s.TotalPackets)
	}

	elapsed := time.Since(s.StartTime)

	var b strings.Builder
	fmt.Fprintf(&b, "=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	fmt.Fprintf(&b, "Total Packets:   %8d\n", s.TotalPackets)
	fmt.Fprintf(&b, "Valid Packets:   %8d (%.1f%%)\n", s.ValidPackets, validPercent)

	if s.AnomalousPackets > 0 {
		fmt.Fprintf(&b, "Anomalous Pkts:  %8d (%.1f%%)\n", s.AnomalousPackets, anomalousPercent)
		if s.FaultFlags > 0 {
			fmt.Fprintf(&b, "  Fault Flags:      %5d\n", s.FaultFlags)
		}
	}
	if s.Errors() > 0 {
		fmt.Fprintf(&b, "Decode Errors:   %8d (%.1f%%)\n", s.Errors(), errorPercent)
		counts := []struct {
			label string
			n     uint64
		}{
			{"Checksum:", s.ChecksumErrors},
			{"Incomplete:", s.IncompletePackets},
			{"Bad Payload:", s.MalformedPayloads},
			{"Bad Header:", s.MalformedHeaders},
			{"Unknown APID:", s.UnknownAPIDs},
			{"Other:", s.OtherErrors},
		}
		for _, c := range counts {
			if c.n > 0 {
				fmt.Fprintf(&b, "  %-17s %5d\n", c.label, c.n)
			}
		}
	}
	if s.SequenceGaps > 0 {
		fmt.Fprintf(&b, "Sequence Gaps:   %8d (%d missed)\n", s.SequenceGaps, s.MissedPackets)
	}

	for _, e := range Entries() {
		if n := s.PerSubsystem[e.Name]; n > 0 {
			fmt.Fprintf(&b, "  %-17s %5d\n", strings.ToUpper(e.Name)+":", n)
		}
	}

	fmt.Fprintf(&b, "Packet Rate:     %8.1f pkts/sec\n", s.PacketRate)
	fmt.Fprintf(&b, "Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	b.WriteString("================================\n")

	return b.String()
}

// Reset resets all statistics counters
func (st *Statistics) Reset() {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := time.Now()
	st.s = StatisticsSnapshot{
		StartTime:      now,
		LastUpdateTime: now,
		PerSubsystem:   make(map[string]uint64),
	}
	st.lastSeq = make(map[APID]uint16)
}
