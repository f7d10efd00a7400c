// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/Thermoquad/telemetron/pkg/ccsds"
	"github.com/Thermoquad/telemetron/pkg/telemetry"
)

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		seconds uint64
		want    string
	}{
		{0, "0 seconds"},
		{1, "1 second"},
		{61, "1 minute and 1 second"},
		{3600, "1 hour"},
		{90061, "1 day, 1 hour, 1 minute, and 1 second"},
		{172800, "2 days"},
	}

	for _, tt := range tests {
		if got := formatUptime(tt.seconds); got != tt.want {
			t.Errorf("formatUptime(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestParseHex(t *testing.T) {
	want := []byte{0x08, 0x01, 0xC0, 0x2A}
	for _, in := range []string{"0801c02a", "08:01:C0:2A", "0x0801C02A", "08 01 c0 2a"} {
		got, err := parseHex([]string{in})
		if err != nil {
			t.Errorf("parseHex(%q) error: %v", in, err)
			continue
		}
		if hex.EncodeToString(got) != hex.EncodeToString(want) {
			t.Errorf("parseHex(%q) = %X, want %X", in, got, want)
		}
	}

	if _, err := parseHex([]string{"zz"}); err == nil {
		t.Error("parseHex accepted invalid hex")
	}
}

func TestParseFieldValue(t *testing.T) {
	schema, err := ccsds.SchemaFor("power")
	if err != nil {
		t.Fatal(err)
	}

	mode, _ := schema.Field("eps_mode")
	v, err := parseFieldValue(mode, "low_power")
	if err != nil || v != uint64(3) {
		t.Errorf("enum by name = %v, %v; want 3", v, err)
	}
	v, err = parseFieldValue(mode, "0x02")
	if err != nil || v != uint64(2) {
		t.Errorf("enum by number = %v, %v; want 2", v, err)
	}

	volts, _ := schema.Field("bus_voltage")
	v, err = parseFieldValue(volts, "28.1")
	if err != nil || v != 28.1 {
		t.Errorf("float = %v, %v; want 28.1", v, err)
	}

	if _, err := parseFieldValue(mode, "-1"); err == nil {
		t.Error("negative integer accepted")
	}
}

func TestEncodeDecodeCommands(t *testing.T) {
	encodeSeq = 9
	defer func() { encodeSeq = 0 }()

	args := []string{"thermal"}
	schema, _ := ccsds.SchemaFor("thermal")
	for _, f := range schema.Fields {
		args = append(args, f.Name+"=1")
	}
	if err := runEncode(nil, args); err != nil {
		t.Fatalf("runEncode: %v", err)
	}

	if err := runEncode(nil, []string{"thermal", "bogus=1"}); err == nil {
		t.Error("unknown field accepted")
	}
	if err := runEncode(nil, []string{"science"}); err == nil {
		t.Error("unknown subsystem accepted")
	}
	if err := runDecode(nil, []string{"0801"}); err == nil {
		t.Error("truncated packet decoded")
	}
}

func TestSelectSource(t *testing.T) {
	defer func() { listenAddr, pcapPath, wsURL, portName = "", "", "", "" }()

	listenAddr, pcapPath, wsURL, portName = "", "", "", ""
	if _, err := selectSource(); err != errNoSource {
		t.Errorf("no flags: got %v, want errNoSource", err)
	}
	if got := describeSource(); got != "none" {
		t.Errorf("describeSource() = %q, want none", got)
	}

	tests := []struct {
		listen, pcap, url, port string
		want                    string
	}{
		{":5005", "x.pcap", "ws://h", "/dev/ttyUSB0", "UDP: :5005"},
		{"", "x.pcap", "ws://h", "/dev/ttyUSB0", "Capture: x.pcap"},
		{"", "", "ws://h", "/dev/ttyUSB0", "WebSocket: ws://h"},
		{"", "", "", "/dev/ttyUSB0", "Serial: /dev/ttyUSB0 @ 115200 baud"},
	}
	baudRate = 115200
	for _, tt := range tests {
		listenAddr, pcapPath, wsURL, portName = tt.listen, tt.pcap, tt.url, tt.port
		src, err := selectSource()
		if err != nil {
			t.Errorf("selectSource(%+v): %v", tt, err)
			continue
		}
		if src.String() != tt.want {
			t.Errorf("selectSource() = %q, want %q", src.String(), tt.want)
		}
	}
}

func TestWebsocketSource_Feed(t *testing.T) {
	first, err := ccsds.Assemble("cdh", mustGenerate(t, "cdh"), 1)
	if err != nil {
		t.Fatal(err)
	}
	second, err := ccsds.Assemble("payload", mustGenerate(t, "payload"), 2)
	if err != nil {
		t.Fatal(err)
	}

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte("bridge ready"))
		// first is split across two frames
		conn.WriteMessage(websocket.BinaryMessage, first[:10])
		conn.WriteMessage(websocket.BinaryMessage, first[10:])
		conn.WriteMessage(websocket.BinaryMessage, second)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.ReadMessage()
	}))
	defer srv.Close()

	var got []uint16
	rx := telemetry.NewReceiver(telemetry.ReceiverConfig{
		OnPacket: func(p *ccsds.Packet) { got = append(got, p.SequenceCount()) },
		Logger:   log.New(io.Discard),
	})

	src := websocketSource{url: "ws" + strings.TrimPrefix(srv.URL, "http")}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := src.Feed(ctx, rx); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("received sequences %v, want [1 2]", got)
	}
}

func TestWebsocketSource_RejectsScheme(t *testing.T) {
	src := websocketSource{url: "http://example.com"}
	rx := telemetry.NewReceiver(telemetry.ReceiverConfig{Logger: log.New(io.Discard)})
	if err := src.Feed(context.Background(), rx); err == nil {
		t.Error("http:// URL accepted")
	}
}

func mustGenerate(t *testing.T, subsystem string) ccsds.Fields {
	t.Helper()
	fields, err := telemetry.NewSimulator(7).Generate(subsystem)
	if err != nil {
		t.Fatal(err)
	}
	return fields
}
