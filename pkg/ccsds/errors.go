// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ccsds

import "errors"

// Codec errors. Every error returned by this package wraps exactly one of
// these, so callers can branch with errors.Is.
var (
	ErrUnknownSubsystem = errors.New("unknown subsystem")
	ErrUnknownAPID      = errors.New("unknown APID")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrIncompletePacket = errors.New("incomplete packet")
	ErrInvalidTimeCode  = errors.New("invalid time code")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrMalformedHeader  = errors.New("malformed primary header")
	ErrHeaderField      = errors.New("header field out of range")
	ErrMissingField     = errors.New("missing payload field")
	ErrFieldType        = errors.New("unsupported payload field type")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrUnknownSubsystem, "UnknownSubsystem"},
	{ErrUnknownAPID, "UnknownApid"},
	{ErrMalformedPayload, "MalformedPayload"},
	{ErrIncompletePacket, "IncompletePacket"},
	{ErrInvalidTimeCode, "InvalidTimeCode"},
	{ErrChecksumMismatch, "ChecksumMismatch"},
	{ErrMalformedHeader, "MalformedHeader"},
	{ErrHeaderField, "HeaderField"},
	{ErrMissingField, "MissingField"},
	{ErrFieldType, "FieldType"},
}

// ErrorKind returns a stable name for the codec error wrapped by err,
// suitable for log fields and statistics. Unrecognized errors are "Unknown".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "Unknown"
}
