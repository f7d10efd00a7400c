// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ccsds

import (
	"fmt"
	"strings"
)

// FormatPacket formats a packet into a human-readable string
func FormatPacket(p *Packet) string {
	timestamp := p.receivedAt.Format("15:04:05.000")
	h := p.header

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s (APID 0x%02X) seq=%d len=%d %s\n",
		timestamp, FormatSubsystem(h.APID), uint16(h.APID), h.SequenceCount, p.Length(), p.timeCode)

	schema := p.Schema()
	if schema == nil {
		return b.String()
	}
	for _, f := range schema.Fields {
		v, ok := p.fields[f.Name]
		if !ok {
			continue
		}
		b.WriteString(FormatField(f, v))
	}
	return b.String()
}

// FormatField formats one payload value with its unit or mode name
func FormatField(f Field, v any) string {
	switch {
	case f.Type == Float32:
		fv, _ := toFloat64(v)
		if f.Unit != "" {
			return fmt.Sprintf("  %-30s %.4f %s\n", f.Name+":", fv, f.Unit)
		}
		return fmt.Sprintf("  %-30s %.6g\n", f.Name+":", fv)
	case f.FaultFlags:
		u, _ := toWireUint(v)
		return fmt.Sprintf("  %-30s 0b%08b\n", f.Name+":", u)
	case len(f.Enum) > 0:
		u, _ := toWireUint(v)
		return fmt.Sprintf("  %-30s %s (%d)\n", f.Name+":", formatEnum(f.Enum, u), u)
	default:
		u, _ := toWireUint(v)
		if f.Unit != "" {
			return fmt.Sprintf("  %-30s %d %s\n", f.Name+":", u, f.Unit)
		}
		return fmt.Sprintf("  %-30s %d\n", f.Name+":", u)
	}
}

func formatEnum(names []string, v uint64) string {
	if v < uint64(len(names)) {
		return names[v]
	}
	return "UNKNOWN"
}

// FormatSubsystem returns the upper-case subsystem name for an APID
func FormatSubsystem(apid APID) string {
	name, err := SubsystemFor(apid)
	if err != nil {
		return "UNKNOWN"
	}
	return strings.ToUpper(name)
}

// FormatHex formats bytes as colon-separated upper-case hex
func FormatHex(raw []byte) string {
	parts := make([]string, len(raw))
	for i, b := range raw {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}

// HexDump formats bytes 16 per row with offsets
func HexDump(raw []byte) string {
	var b strings.Builder
	for off := 0; off < len(raw); off += 16 {
		end := off + 16
		if end > len(raw) {
			end = len(raw)
		}
		fmt.Fprintf(&b, "%04X:", off)
		for _, c := range raw[off:end] {
			fmt.Fprintf(&b, " %02X", c)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
