// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ccsds

import (
	"fmt"
	"time"
)

// ParseOptions adjusts datagram parsing
type ParseOptions struct {
	// SkipChecksum accepts packets whose trailing CRC does not match.
	// Only useful against legacy senders that never computed one.
	SkipChecksum bool
}

// Parse decodes one complete packet, verifying its checksum
func Parse(data []byte) (*Packet, error) {
	return ParseWithOptions(data, ParseOptions{})
}

// ParseWithOptions decodes one complete packet. The input is not retained;
// on error no packet is returned.
func ParseWithOptions(data []byte, opts ParseOptions) (*Packet, error) {
	header, err := DecodePrimaryHeader(data)
	if err != nil {
		return nil, err
	}
	if err := header.Validate(); err != nil {
		return nil, err
	}

	schema, err := SchemaForAPID(header.APID)
	if err != nil {
		return nil, err
	}

	payloadStart := PrimaryHeaderSize + SecondaryHeaderSize
	payloadEnd := len(data) - ChecksumSize
	if payloadEnd < payloadStart {
		return nil, fmt.Errorf("%w: %d bytes cannot hold both headers and a checksum", ErrIncompletePacket, len(data))
	}

	tc, err := DecodeTimeCode(data[PrimaryHeaderSize:payloadStart])
	if err != nil {
		return nil, err
	}

	payload := data[payloadStart:payloadEnd]

	if len(payload) != schema.Size() {
		return nil, fmt.Errorf("%w: APID 0x%02X (%s) expected %d bytes, got %d",
			ErrMalformedPayload, uint16(header.APID), schema.Name, schema.Size(), len(payload))
	}
	if header.PacketDataLength() != SecondaryHeaderSize+schema.Size() {
		return nil, fmt.Errorf("%w: APID 0x%02X (%s) declares data length %d, schema needs %d",
			ErrMalformedPayload, uint16(header.APID), schema.Name,
			header.PacketDataLength(), SecondaryHeaderSize+schema.Size())
	}

	if !opts.SkipChecksum {
		if err := VerifyCRC(data); err != nil {
			return nil, err
		}
	}

	fields, err := schema.Decode(payload)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, len(data))
	copy(raw, data)
	return &Packet{
		header:     header,
		timeCode:   tc,
		subsystem:  schema.Name,
		fields:     fields,
		crc:        uint16(data[payloadEnd])<<8 | uint16(data[payloadEnd+1]),
		raw:        raw,
		receivedAt: time.Now(),
	}, nil
}
