// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records telemetry datagrams to pcap files and replays
// them. Packets are wrapped in synthetic Ethernet/IPv4/UDP headers so the
// files open in standard network tools.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const snapLen = 65535

// Endpoints describes the synthetic addresses written around each payload
type Endpoints struct {
	SrcIP   net.IP
	DstIP   net.IP
	SrcPort uint16
	DstPort uint16
}

// DefaultEndpoints returns loopback addresses with the ground port as
// destination
func DefaultEndpoints(dstPort uint16) Endpoints {
	return Endpoints{
		SrcIP:   net.IPv4(127, 0, 0, 1),
		DstIP:   net.IPv4(127, 0, 0, 1),
		SrcPort: 50000,
		DstPort: dstPort,
	}
}

// Writer appends datagrams to a pcap stream. Safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	w      *pcapgo.Writer
	closer io.Closer
	ep     Endpoints
	now    func() time.Time
	ipID   uint16
}

// NewWriter writes a pcap file header to w and returns a writer for it
func NewWriter(w io.Writer, ep Endpoints) (*Writer, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}
	return &Writer{w: pw, ep: ep, now: time.Now}, nil
}

// Create opens path for writing and returns a pcap writer that owns it
func Create(path string, ep Endpoints) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture %s: %w", path, err)
	}
	w, err := NewWriter(f, ep)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// Send records one datagram stamped with the current time
func (w *Writer) Send(payload []byte) error {
	return w.WriteAt(w.now(), payload)
}

// WriteAt records one datagram with an explicit capture timestamp
func (w *Writer) WriteAt(ts time.Time, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.ipID++
	frame, err := encapsulate(w.ep, w.ipID, payload)
	if err != nil {
		return err
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(frame),
		Length:        len(frame),
	}
	if err := w.w.WritePacket(ci, frame); err != nil {
		return fmt.Errorf("failed to write pcap record: %w", err)
	}
	return nil
}

// Close closes the underlying file when the writer owns one
func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

func encapsulate(ep Endpoints, id uint16, payload []byte) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Id:       id,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    ep.SrcIP.To4(),
		DstIP:    ep.DstIP.To4(),
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(ep.SrcPort),
		DstPort: layers.UDPPort(ep.DstPort),
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, fmt.Errorf("failed to link UDP checksum: %w", err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)); err != nil {
		return nil, fmt.Errorf("failed to serialize frame: %w", err)
	}
	return buf.Bytes(), nil
}

// Datagram is one UDP payload recovered from a capture
type Datagram struct {
	Timestamp time.Time
	SrcPort   uint16
	DstPort   uint16
	Payload   []byte
}

// ReplayFunc receives each datagram in capture order. Returning an error
// stops the replay.
type ReplayFunc func(d Datagram) error

// Replay reads UDP datagrams from a pcap stream. When port is non-zero
// only datagrams to or from that port are delivered. Non-UDP records are
// skipped.
func Replay(ctx context.Context, r io.Reader, port uint16, fn ReplayFunc) (int, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read pcap header: %w", err)
	}

	delivered := 0
	for {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}

		data, ci, err := pr.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return delivered, nil
		}
		if err != nil {
			return delivered, fmt.Errorf("failed to read pcap record: %w", err)
		}

		packet := gopacket.NewPacket(data, pr.LinkType(), gopacket.Default)
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		if port != 0 && uint16(udp.DstPort) != port && uint16(udp.SrcPort) != port {
			continue
		}

		payload := make([]byte, len(udp.Payload))
		copy(payload, udp.Payload)
		if err := fn(Datagram{
			Timestamp: ci.Timestamp,
			SrcPort:   uint16(udp.SrcPort),
			DstPort:   uint16(udp.DstPort),
			Payload:   payload,
		}); err != nil {
			return delivered, err
		}
		delivered++
	}
}

// ReplayFile opens a capture file and replays it
func ReplayFile(ctx context.Context, path string, port uint16, fn ReplayFunc) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open capture %s: %w", path, err)
	}
	defer f.Close()
	return Replay(ctx, f, port, fn)
}
