// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ccsds

import "time"

// Packet represents a decoded telemetry packet. It is never modified after
// Parse returns it; accessors hand out copies of mutable data.
type Packet struct {
	header     PrimaryHeader
	timeCode   TimeCode
	subsystem  string
	fields     Fields
	crc        uint16
	raw        []byte
	receivedAt time.Time
}

// Header returns the primary header
func (p *Packet) Header() PrimaryHeader {
	return p.header
}

// TimeCode returns the secondary header mission time
func (p *Packet) TimeCode() TimeCode {
	return p.timeCode
}

// Subsystem returns the lower-case subsystem name resolved from the APID
func (p *Packet) Subsystem() string {
	return p.subsystem
}

// APID returns the packet's application process identifier
func (p *Packet) APID() APID {
	return p.header.APID
}

// SequenceCount returns the 14-bit source sequence count
func (p *Packet) SequenceCount() uint16 {
	return p.header.SequenceCount
}

// Fields returns a copy of the decoded payload values
func (p *Packet) Fields() Fields {
	return p.fields.Clone()
}

// Schema returns the payload layout the packet was decoded with
func (p *Packet) Schema() *Schema {
	s, _ := SchemaForAPID(p.header.APID)
	return s
}

// CRC returns the packet's trailing checksum as received
func (p *Packet) CRC() uint16 {
	return p.crc
}

// Raw returns a copy of the packet bytes
func (p *Packet) Raw() []byte {
	out := make([]byte, len(p.raw))
	copy(out, p.raw)
	return out
}

// Length returns the packet length in bytes, checksum included
func (p *Packet) Length() int {
	return len(p.raw)
}

// ReceivedAt returns the local decode timestamp
func (p *Packet) ReceivedAt() time.Time {
	return p.receivedAt
}
