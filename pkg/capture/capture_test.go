// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/telemetron/pkg/ccsds"
	"github.com/Thermoquad/telemetron/pkg/telemetry"
)

func samplePacket(t *testing.T, subsystem string, seq uint16) []byte {
	t.Helper()
	fields, err := telemetry.NewSimulator(int64(seq)).Generate(subsystem)
	require.NoError(t, err)
	data, err := ccsds.Assemble(subsystem, fields, seq)
	require.NoError(t, err)
	return data
}

func TestWriterReplay_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, DefaultEndpoints(telemetry.DefaultPort))
	require.NoError(t, err)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var sent [][]byte
	for i, name := range ccsds.Subsystems() {
		data := samplePacket(t, name, uint16(i))
		sent = append(sent, data)
		require.NoError(t, w.WriteAt(base.Add(time.Duration(i)*time.Second), data))
	}
	require.NoError(t, w.Close(), "Close without an owned file is a no-op")

	var got []Datagram
	n, err := Replay(context.Background(), &buf, telemetry.DefaultPort, func(d Datagram) error {
		got = append(got, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, len(sent), n)
	require.Len(t, got, len(sent))

	for i, d := range got {
		assert.Equal(t, sent[i], d.Payload)
		assert.True(t, d.Timestamp.Equal(base.Add(time.Duration(i)*time.Second)), "timestamp %d", i)
		assert.Equal(t, uint16(telemetry.DefaultPort), d.DstPort)

		p, err := ccsds.Parse(d.Payload)
		require.NoError(t, err)
		assert.Equal(t, ccsds.Subsystems()[i], p.Subsystem())
	}
}

func TestReplay_PortFilter(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, DefaultEndpoints(9999))
	require.NoError(t, err)
	require.NoError(t, w.Send(samplePacket(t, "cdh", 1)))

	n, err := Replay(context.Background(), &buf, telemetry.DefaultPort, func(Datagram) error {
		t.Error("filtered datagram delivered")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestReplay_StopsOnCallbackError(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, DefaultEndpoints(telemetry.DefaultPort))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, w.Send(samplePacket(t, "power", uint16(i))))
	}

	stop := errors.New("stop")
	n, err := Replay(context.Background(), &buf, 0, func(Datagram) error { return stop })
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 0, n)
}

func TestReplay_Cancelled(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, DefaultEndpoints(telemetry.DefaultPort))
	require.NoError(t, err)
	require.NoError(t, w.Send(samplePacket(t, "adcs", 1)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Replay(ctx, &buf, 0, func(Datagram) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReplay_NotPcap(t *testing.T) {
	_, err := Replay(context.Background(), bytes.NewReader([]byte("not a capture file")), 0, nil)
	assert.Error(t, err)
}

func TestCreateReplayFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.pcap")
	w, err := Create(path, DefaultEndpoints(telemetry.DefaultPort))
	require.NoError(t, err)

	// The writer plugs into the transmitter as a Sender
	var sender telemetry.Sender = w
	require.NoError(t, sender.Send(samplePacket(t, "payload", 5)))
	require.NoError(t, w.Close())

	var got []byte
	n, err := ReplayFile(context.Background(), path, 0, func(d Datagram) error {
		got = d.Payload
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	p, err := ccsds.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, uint16(5), p.SequenceCount())
}
