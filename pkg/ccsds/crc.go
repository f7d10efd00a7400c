// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ccsds

import "fmt"

// CalculateCRC computes CRC-16-CCITT checksum for the given data
func CalculateCRC(data []byte) uint16 {
	crc := uint16(crcInitial)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// AppendCRC returns a new slice holding data followed by its checksum
// (big-endian). The input is never modified.
func AppendCRC(data []byte) []byte {
	crc := CalculateCRC(data)
	out := make([]byte, len(data), len(data)+ChecksumSize)
	copy(out, data)
	return append(out, byte(crc>>8), byte(crc&0xFF))
}

// VerifyCRC checks the trailing checksum of a complete packet
func VerifyCRC(packet []byte) error {
	if len(packet) < ChecksumSize {
		return fmt.Errorf("%w: %d bytes cannot hold a checksum", ErrIncompletePacket, len(packet))
	}
	body := packet[:len(packet)-ChecksumSize]
	received := uint16(packet[len(packet)-2])<<8 | uint16(packet[len(packet)-1])
	calculated := CalculateCRC(body)
	if received != calculated {
		return fmt.Errorf("%w: expected 0x%04X, got 0x%04X", ErrChecksumMismatch, calculated, received)
	}
	return nil
}
