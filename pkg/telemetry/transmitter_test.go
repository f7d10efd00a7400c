// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"context"
	"errors"
	"io"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/telemetron/pkg/ccsds"
)

// collectSender records every packet it is handed
type collectSender struct {
	mu      sync.Mutex
	packets [][]byte
}

func (c *collectSender) Send(packet []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packets = append(c.packets, packet)
	return nil
}

func (c *collectSender) all() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.packets...)
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestParseSchedule(t *testing.T) {
	s, err := ParseSchedule(map[string]string{"ADCS": "5", "payload": "0"})
	require.NoError(t, err)
	assert.Equal(t, 5.0, s["adcs"])
	assert.Equal(t, 0.0, s["payload"])
	assert.Equal(t, DefaultSchedule["cdh"], s["cdh"])

	_, err = ParseSchedule(map[string]string{"science": "1"})
	assert.ErrorIs(t, err, ccsds.ErrUnknownSubsystem)

	_, err = ParseSchedule(map[string]string{"cdh": "fast"})
	assert.Error(t, err)

	for _, rate := range []string{"-1", "inf", "+Inf", "-inf", "NaN", "1e10"} {
		_, err = ParseSchedule(map[string]string{"cdh": rate})
		assert.Error(t, err, "rate %s", rate)
	}

	s, err = ParseSchedule(map[string]string{"cdh": "1e9"})
	require.NoError(t, err, "one tick per nanosecond is the fastest rate")
	assert.Equal(t, 1e9, s["cdh"])
}

func TestNewTransmitter_Validation(t *testing.T) {
	_, err := NewTransmitter(TransmitterConfig{})
	assert.Error(t, err, "sender is required")

	_, err = NewTransmitter(TransmitterConfig{
		Sender:   &collectSender{},
		Schedule: map[string]float64{"science": 1},
	})
	assert.ErrorIs(t, err, ccsds.ErrUnknownSubsystem)

	for _, rate := range []float64{math.Inf(1), math.NaN(), 1e10, -2} {
		_, err = NewTransmitter(TransmitterConfig{
			Sender:   &collectSender{},
			Schedule: map[string]float64{"cdh": rate},
		})
		assert.Error(t, err, "rate %v", rate)
	}
}

func TestTransmitter_TransmitOnce(t *testing.T) {
	sink := &collectSender{}
	tx, err := NewTransmitter(TransmitterConfig{Sender: sink, Source: NewSimulator(1), Logger: quietLogger()})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, tx.TransmitOnce("comms"))
	}
	require.NoError(t, tx.TransmitOnce("propulsion"))

	packets := sink.all()
	require.Len(t, packets, 4)
	for i, raw := range packets[:3] {
		p, err := ccsds.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "comms", p.Subsystem())
		assert.Equal(t, uint16(i), p.SequenceCount())
	}
	p, err := ccsds.Parse(packets[3])
	require.NoError(t, err)
	assert.Equal(t, uint16(0), p.SequenceCount(), "propulsion has its own counter")
	assert.Equal(t, uint64(4), tx.Sent())
}

func TestTransmitter_SendFailureIsCounted(t *testing.T) {
	boom := errors.New("link down")
	tx, err := NewTransmitter(TransmitterConfig{
		Sender: SenderFunc(func([]byte) error { return boom }),
		Logger: quietLogger(),
	})
	require.NoError(t, err)

	err = tx.TransmitOnce("cdh")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(0), tx.Sent())
}

func TestTransmitter_RunStopsAfterCount(t *testing.T) {
	sink := &collectSender{}
	tx, err := NewTransmitter(TransmitterConfig{
		Sender:   sink,
		Schedule: map[string]float64{"cdh": 50, "adcs": 50, "payload": 0},
		Logger:   quietLogger(),
		Count:    10,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tx.Run(ctx))

	packets := sink.all()
	assert.Len(t, packets, 10)
	for _, raw := range packets {
		p, err := ccsds.Parse(raw)
		require.NoError(t, err)
		assert.NotEqual(t, "payload", p.Subsystem(), "disabled subsystem transmitted")
	}
}

func TestTransmitter_RunCancelled(t *testing.T) {
	tx, err := NewTransmitter(TransmitterConfig{Sender: &collectSender{}, Logger: quietLogger()})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tx.Run(ctx), context.DeadlineExceeded)
	assert.GreaterOrEqual(t, tx.Sent(), uint64(len(DefaultSchedule)), "every subsystem sends once at start")
}

func TestTransmitter_AllDisabled(t *testing.T) {
	tx, err := NewTransmitter(TransmitterConfig{
		Sender:   &collectSender{},
		Schedule: map[string]float64{"cdh": 0},
		Logger:   quietLogger(),
	})
	require.NoError(t, err)
	assert.Error(t, tx.Run(context.Background()))
}

func TestUDPSender_Loopback(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	sender, err := DialUDP(conn.LocalAddr().String())
	require.NoError(t, err)
	defer sender.Close()

	data, err := ccsds.Assemble("thermal", mustGenerate(t, "thermal"), 5)
	require.NoError(t, err)
	require.NoError(t, sender.Send(data))

	buf := make([]byte, ccsds.MaxPacketSize)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := conn.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, data, buf[:n])
}

func mustGenerate(t *testing.T, subsystem string) ccsds.Fields {
	t.Helper()
	f, err := NewSimulator(1).Generate(subsystem)
	require.NoError(t, err)
	return f
}
