// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ccsds

import "fmt"

// StreamDecoder extracts packets from an unframed byte stream such as a
// serial line. Packets carry no sync marker, so the decoder hunts for a
// plausible primary header (fixed bit-fields, known APID, data length
// matching that APID's schema) and slides forward one byte at a time until
// it finds one.
type StreamDecoder struct {
	opts   ParseOptions
	state  int
	buffer []byte
	raw    []byte // bytes since the last packet, skipped ones included, capped at MaxPacketSize
	synced bool
}

// NewStreamDecoder creates a stream decoder that verifies checksums
func NewStreamDecoder() *StreamDecoder {
	return NewStreamDecoderWithOptions(ParseOptions{})
}

// NewStreamDecoderWithOptions creates a stream decoder with parse options
func NewStreamDecoderWithOptions(opts ParseOptions) *StreamDecoder {
	return &StreamDecoder{
		opts:   opts,
		state:  stateHeader,
		buffer: make([]byte, 0, MaxPacketSize),
		raw:    make([]byte, 0, MaxPacketSize),
	}
}

// Reset discards buffered bytes and returns to sync hunting
func (d *StreamDecoder) Reset() {
	d.state = stateHeader
	d.buffer = d.buffer[:0]
	d.raw = d.raw[:0]
	d.synced = false
}

// GetRawBytes returns the bytes consumed since the last complete packet.
// While hunting for sync only the most recent MaxPacketSize bytes are kept.
func (d *StreamDecoder) GetRawBytes() []byte {
	out := make([]byte, len(d.raw))
	copy(out, d.raw)
	return out
}

// DecodeByte processes a single byte.
// Returns a completed packet, or nil if more bytes are needed.
// Returns an error when a candidate packet fails to parse or sync is lost.
// Garbage between packets is skipped silently while hunting for sync.
func (d *StreamDecoder) DecodeByte(b byte) (*Packet, error) {
	d.buffer = append(d.buffer, b)
	if len(d.raw) == MaxPacketSize {
		d.raw = append(d.raw[:0], d.raw[1:]...)
	}
	d.raw = append(d.raw, b)

	for {
		switch d.state {
		case stateHeader:
			if len(d.buffer) < PrimaryHeaderSize {
				return nil, nil
			}
			if _, err := checkHeaderCandidate(d.buffer); err != nil {
				d.slide()
				if d.synced {
					d.synced = false
					return nil, fmt.Errorf("lost sync: %w", err)
				}
				continue
			}
			d.state = stateBody

		case stateBody:
			h, _ := decodeHeaderWords(d.buffer)
			if len(d.buffer) < h.TotalLength()-ChecksumSize {
				return nil, nil
			}
			d.state = stateChecksum

		case stateChecksum:
			h, _ := decodeHeaderWords(d.buffer)
			total := h.TotalLength()
			if len(d.buffer) < total {
				return nil, nil
			}

			packet, err := ParseWithOptions(d.buffer[:total], d.opts)
			if err != nil {
				// Header looked right but the packet is bad; the real
				// boundary may be inside it.
				d.slide()
				d.synced = false
				return nil, err
			}

			d.consume(total)
			d.synced = true
			return packet, nil

		default:
			d.Reset()
			return nil, fmt.Errorf("invalid state: %d", d.state)
		}
	}
}

// slide drops the first buffered byte and restarts header hunting
func (d *StreamDecoder) slide() {
	d.buffer = append(d.buffer[:0], d.buffer[1:]...)
	d.state = stateHeader
}

// consume removes a completed packet from the buffer. Any bytes after it
// stay buffered and are processed with the next call.
func (d *StreamDecoder) consume(n int) {
	d.buffer = append(d.buffer[:0], d.buffer[n:]...)
	d.raw = append(d.raw[:0], d.buffer...)
	d.state = stateHeader
}

// checkHeaderCandidate decides whether the first 6 bytes of b could start
// a telemetry packet.
func checkHeaderCandidate(b []byte) (PrimaryHeader, error) {
	h, err := decodeHeaderWords(b)
	if err != nil {
		return h, err
	}
	if err := h.Validate(); err != nil {
		return h, err
	}
	schema, err := SchemaForAPID(h.APID)
	if err != nil {
		return h, err
	}
	if h.PacketDataLength() != SecondaryHeaderSize+schema.Size() {
		return h, fmt.Errorf("%w: APID 0x%02X declares data length %d, schema needs %d",
			ErrMalformedPayload, uint16(h.APID), h.PacketDataLength(), SecondaryHeaderSize+schema.Size())
	}
	return h, nil
}
