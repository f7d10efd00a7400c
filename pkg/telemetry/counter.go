// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package telemetry produces and consumes telemetry packets: simulated
// subsystem sources, the periodic transmitter, and the receive loop.
package telemetry

import (
	"sync/atomic"

	"github.com/Thermoquad/telemetron/pkg/ccsds"
)

// SequenceCounters hands out per-APID source sequence counts. Each
// counter wraps from 16383 back to 0. Safe for concurrent use.
type SequenceCounters struct {
	counters [ccsds.MaxAPID + 1]atomic.Uint32
}

// NewSequenceCounters creates counters starting at zero for every APID
func NewSequenceCounters() *SequenceCounters {
	return &SequenceCounters{}
}

// Next returns the current count for apid and advances it
func (s *SequenceCounters) Next(apid ccsds.APID) uint16 {
	c := &s.counters[apid&ccsds.MaxAPID]
	for {
		cur := c.Load()
		next := (cur + 1) % ccsds.SequenceCountModulo
		if c.CompareAndSwap(cur, next) {
			return uint16(cur)
		}
	}
}

// Peek returns the count the next call to Next will hand out
func (s *SequenceCounters) Peek(apid ccsds.APID) uint16 {
	return uint16(s.counters[apid&ccsds.MaxAPID].Load())
}

// Set forces the next count for apid, masked to 14 bits
func (s *SequenceCounters) Set(apid ccsds.APID, seq uint16) {
	s.counters[apid&ccsds.MaxAPID].Store(uint32(seq) % ccsds.SequenceCountModulo)
}
