// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package ccsds implements the telemetry packet codec used between the
// spacecraft and the ground station.
//
// Every packet is a CCSDS space packet: a 6-byte primary header, a 4-byte
// CUC time code secondary header, a fixed-layout subsystem payload, and a
// trailing CRC-16-CCITT checksum. All multi-byte values are big-endian.
//
//	+----------------+-----------+-----------------+-------+
//	| primary (6)    | CUC (4)   | payload (15-44) | CRC 2 |
//	+----------------+-----------+-----------------+-------+
//
// The APID directory in this package is the only place subsystem APIDs and
// payload layouts are defined; encoder, decoder and transports all resolve
// through it.
package ccsds

// Section sizes
const (
	PrimaryHeaderSize   = 6
	SecondaryHeaderSize = 4
	ChecksumSize        = 2

	// Bytes outside the payload: primary + secondary + checksum
	PacketOverhead = PrimaryHeaderSize + SecondaryHeaderSize + ChecksumSize
)

// Primary header field values. Telemetry from this spacecraft always uses
// version 0, type 0, a secondary header, and unsegmented packets.
const (
	PacketVersion         = 0
	PacketTypeTelemetry   = 0
	PacketTypeTelecommand = 1
	SeqFlagsUnsegmented   = 0x03
)

// Header field widths
const (
	MaxAPID             = 0x07FF // 11 bits
	MaxSequenceCount    = 0x3FFF // 14 bits
	SequenceCountModulo = MaxSequenceCount + 1
)

// Bit positions inside the first two header words
const (
	versionShift   = 13
	typeShift      = 12
	secHdrShift    = 11
	seqFlagsShift  = 14
	versionMask    = 0x07
	typeMask       = 0x01
	secHdrMask     = 0x01
	seqFlagsMask   = 0x03
	apidMask       = MaxAPID
	seqCountMask   = MaxSequenceCount
	coarseTimeBits = 24
	fineTimeBits   = 8
)

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// MaxPacketSize is the largest packet any schema in the directory produces,
// padded for transports that size receive buffers from it.
const MaxPacketSize = 1024

// Stream decoder states (internal)
const (
	stateHeader = iota
	stateBody
	stateChecksum
)
