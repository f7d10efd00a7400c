// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ccsds

import (
	"fmt"
	"time"
)

// MissionStart is the epoch of the secondary header time code
var MissionStart = time.Date(2024, time.October, 19, 11, 11, 11, 0, time.UTC)

const (
	coarseModulo = 1 << coarseTimeBits
	fineScale    = 1 << fineTimeBits
)

// TimeCode is a CCSDS Unsegmented Time Code (CUC) with 3 bytes of coarse
// seconds since MissionStart and 1 byte of fine time in 1/256 s units.
type TimeCode struct {
	Coarse uint32 // 24 bits, wraps every ~194 days
	Fine   uint8
}

// NewTimeCode converts t into mission time. Coarse time wraps modulo 2^24
// and is never negative, including for instants before MissionStart.
func NewTimeCode(t time.Time) TimeCode {
	elapsed := t.Unix() - MissionStart.Unix()
	coarse := elapsed % coarseModulo
	if coarse < 0 {
		coarse += coarseModulo
	}
	fine := int64(t.Nanosecond()) * fineScale / int64(time.Second)
	return TimeCode{Coarse: uint32(coarse), Fine: uint8(fine)}
}

// Bytes packs the time code as 3 big-endian coarse bytes and 1 fine byte
func (tc TimeCode) Bytes() []byte {
	return []byte{
		byte(tc.Coarse >> 16),
		byte(tc.Coarse >> 8),
		byte(tc.Coarse),
		tc.Fine,
	}
}

// Seconds returns mission elapsed time at the code's 1/256 s resolution
func (tc TimeCode) Seconds() float64 {
	return float64(tc.Coarse) + float64(tc.Fine)/fineScale
}

// Time returns the absolute instant, ignoring coarse wraparound
func (tc TimeCode) Time() time.Time {
	fine := time.Duration(tc.Fine) * time.Second / fineScale
	return MissionStart.Add(time.Duration(tc.Coarse)*time.Second + fine)
}

func (tc TimeCode) String() string {
	return fmt.Sprintf("T+%.3fs (coarse=%d fine=%d/256)", tc.Seconds(), tc.Coarse, tc.Fine)
}

// EncodeTimeCode returns the 4-byte secondary header for t
func EncodeTimeCode(t time.Time) []byte {
	return NewTimeCode(t).Bytes()
}

// EncodeCurrentTimeCode returns the 4-byte secondary header for now
func EncodeCurrentTimeCode() []byte {
	return EncodeTimeCode(time.Now())
}

// DecodeTimeCode unpacks a 4-byte secondary header
func DecodeTimeCode(b []byte) (TimeCode, error) {
	if len(b) != SecondaryHeaderSize {
		return TimeCode{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidTimeCode, SecondaryHeaderSize, len(b))
	}
	return TimeCode{
		Coarse: uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]),
		Fine:   b[3],
	}, nil
}
