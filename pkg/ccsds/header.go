// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ccsds

import (
	"encoding/binary"
	"fmt"
)

// PrimaryHeader is the unpacked 6-byte CCSDS primary header
type PrimaryHeader struct {
	Version         uint8
	Type            uint8
	SecondaryHeader bool
	APID            APID
	SequenceFlags   uint8
	SequenceCount   uint16
	DataLength      uint16 // stored value, one less than the data field length
}

// PacketDataLength returns the length of the data field (secondary header
// plus payload), undoing the CCSDS minus-one convention.
func (h PrimaryHeader) PacketDataLength() int {
	return int(h.DataLength) + 1
}

// TotalLength returns the full packet length including the checksum
func (h PrimaryHeader) TotalLength() int {
	return PrimaryHeaderSize + h.PacketDataLength() + ChecksumSize
}

// Validate checks the fixed bit-fields of a telemetry header
func (h PrimaryHeader) Validate() error {
	switch {
	case h.Version != PacketVersion:
		return fmt.Errorf("%w: version %d", ErrMalformedHeader, h.Version)
	case h.Type != PacketTypeTelemetry:
		return fmt.Errorf("%w: packet type %d is not telemetry", ErrMalformedHeader, h.Type)
	case !h.SecondaryHeader:
		return fmt.Errorf("%w: secondary header flag not set", ErrMalformedHeader)
	case h.SequenceFlags != SeqFlagsUnsegmented:
		return fmt.Errorf("%w: sequence flags 0b%02b", ErrMalformedHeader, h.SequenceFlags)
	}
	return nil
}

// Bytes packs the header. Fields are masked to their widths.
func (h PrimaryHeader) Bytes() []byte {
	var secHdr uint16
	if h.SecondaryHeader {
		secHdr = 1
	}
	word1 := packIdentification(uint16(h.Version), uint16(h.Type), secHdr, uint16(h.APID))
	word2 := packSequence(uint16(h.SequenceFlags), h.SequenceCount)

	b := make([]byte, PrimaryHeaderSize)
	binary.BigEndian.PutUint16(b[0:2], word1)
	binary.BigEndian.PutUint16(b[2:4], word2)
	binary.BigEndian.PutUint16(b[4:6], h.DataLength)
	return b
}

// EncodePrimaryHeader builds a telemetry header with the secondary header
// flag set and unsegmented sequence flags. dataLength is the stored
// (minus one) value. Out-of-range APID or sequence values are rejected.
func EncodePrimaryHeader(apid APID, seqCount uint16, dataLength uint16) ([]byte, error) {
	if apid > MaxAPID {
		return nil, fmt.Errorf("%w: APID 0x%X exceeds 11 bits", ErrHeaderField, uint16(apid))
	}
	if seqCount > MaxSequenceCount {
		return nil, fmt.Errorf("%w: sequence count %d exceeds 14 bits", ErrHeaderField, seqCount)
	}
	h := PrimaryHeader{
		Version:         PacketVersion,
		Type:            PacketTypeTelemetry,
		SecondaryHeader: true,
		APID:            apid,
		SequenceFlags:   SeqFlagsUnsegmented,
		SequenceCount:   seqCount,
		DataLength:      dataLength,
	}
	return h.Bytes(), nil
}

// DecodePrimaryHeader unpacks the header at the start of packet and checks
// that the declared packet length, checksum included, is available.
func DecodePrimaryHeader(packet []byte) (PrimaryHeader, error) {
	h, err := decodeHeaderWords(packet)
	if err != nil {
		return PrimaryHeader{}, err
	}
	if len(packet) < h.TotalLength() {
		return PrimaryHeader{}, fmt.Errorf("%w: header declares %d bytes, have %d",
			ErrIncompletePacket, h.TotalLength(), len(packet))
	}
	return h, nil
}

// decodeHeaderWords unpacks the first 6 bytes without any length check
// against the rest of the buffer.
func decodeHeaderWords(b []byte) (PrimaryHeader, error) {
	if len(b) < PrimaryHeaderSize {
		return PrimaryHeader{}, fmt.Errorf("%w: %d bytes, primary header needs %d",
			ErrIncompletePacket, len(b), PrimaryHeaderSize)
	}
	word1 := binary.BigEndian.Uint16(b[0:2])
	word2 := binary.BigEndian.Uint16(b[2:4])

	version, pktType, secHdr, apid := unpackIdentification(word1)
	flags, seq := unpackSequence(word2)
	return PrimaryHeader{
		Version:         uint8(version),
		Type:            uint8(pktType),
		SecondaryHeader: secHdr == 1,
		APID:            APID(apid),
		SequenceFlags:   uint8(flags),
		SequenceCount:   seq,
		DataLength:      binary.BigEndian.Uint16(b[4:6]),
	}, nil
}

func packIdentification(version, pktType, secHdr, apid uint16) uint16 {
	return (version&versionMask)<<versionShift |
		(pktType&typeMask)<<typeShift |
		(secHdr&secHdrMask)<<secHdrShift |
		apid&apidMask
}

func unpackIdentification(word uint16) (version, pktType, secHdr, apid uint16) {
	return word >> versionShift & versionMask,
		word >> typeShift & typeMask,
		word >> secHdrShift & secHdrMask,
		word & apidMask
}

func packSequence(flags, count uint16) uint16 {
	return (flags&seqFlagsMask)<<seqFlagsShift | count&seqCountMask
}

func unpackSequence(word uint16) (flags, count uint16) {
	return word >> seqFlagsShift & seqFlagsMask, word & seqCountMask
}
