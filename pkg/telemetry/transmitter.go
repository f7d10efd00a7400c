// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"context"
	"fmt"
	"math"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Thermoquad/telemetron/pkg/ccsds"
)

// DefaultSchedule is the transmit rate of each subsystem in Hz
var DefaultSchedule = map[string]float64{
	"cdh":        1,
	"power":      0.5,
	"thermal":    0.2,
	"comms":      1,
	"adcs":       2,
	"propulsion": 0.1,
	"payload":    0.2,
}

// ParseSchedule validates name=rate overrides and merges them over
// DefaultSchedule. A rate of 0 disables the subsystem.
func ParseSchedule(overrides map[string]string) (map[string]float64, error) {
	schedule := make(map[string]float64, len(DefaultSchedule))
	for k, v := range DefaultSchedule {
		schedule[k] = v
	}
	for name, raw := range overrides {
		if !ccsds.IsValidSubsystem(name) {
			return nil, fmt.Errorf("schedule: %w: %q", ccsds.ErrUnknownSubsystem, name)
		}
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil || !validRate(rate) {
			return nil, fmt.Errorf("schedule: invalid rate %q for %s", raw, name)
		}
		schedule[strings.ToLower(name)] = rate
	}
	return schedule, nil
}

// validRate accepts 0 (disabled) or any finite rate whose ticker period is
// at least one nanosecond.
func validRate(rate float64) bool {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
		return false
	}
	return rate == 0 || tickerPeriod(rate) > 0
}

func tickerPeriod(rate float64) time.Duration {
	return time.Duration(float64(time.Second) / rate)
}

// Sender delivers one assembled packet
type Sender interface {
	Send(packet []byte) error
}

// SenderFunc adapts a function to Sender
type SenderFunc func(packet []byte) error

// Send calls f(packet)
func (f SenderFunc) Send(packet []byte) error {
	return f(packet)
}

// MultiSender sends every packet to each sender in turn, stopping at the
// first error.
type MultiSender []Sender

// Send implements Sender
func (m MultiSender) Send(packet []byte) error {
	for _, s := range m {
		if err := s.Send(packet); err != nil {
			return err
		}
	}
	return nil
}

// UDPSender writes each packet as one datagram
type UDPSender struct {
	conn net.Conn
}

// DialUDP creates a sender for the ground station address
func DialUDP(address string) (*UDPSender, error) {
	conn, err := net.Dial("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", address, err)
	}
	return &UDPSender{conn: conn}, nil
}

// Send implements Sender
func (u *UDPSender) Send(packet []byte) error {
	_, err := u.conn.Write(packet)
	return err
}

// Close closes the socket
func (u *UDPSender) Close() error {
	return u.conn.Close()
}

// TransmitterConfig contains configuration options for the transmitter
type TransmitterConfig struct {
	Sender   Sender
	Source   Source            // default: NewSimulator(time.Now().UnixNano())
	Schedule map[string]float64 // Hz per subsystem; default DefaultSchedule
	Counters *SequenceCounters
	Encoder  *ccsds.Encoder
	Logger   *log.Logger
	Count    uint64 // stop after this many packets; 0 runs until cancelled
}

// Transmitter periodically samples every scheduled subsystem, assembles a
// packet and hands it to the sender. Each subsystem runs on its own ticker
// and owns its sequence counter.
type Transmitter struct {
	sender   Sender
	source   Source
	schedule map[string]float64
	counters *SequenceCounters
	encoder  *ccsds.Encoder
	logger   *log.Logger
	count    uint64

	reserved atomic.Uint64
	sent     atomic.Uint64
	failed   atomic.Uint64
}

// NewTransmitter creates a transmitter with the provided configuration
func NewTransmitter(config TransmitterConfig) (*Transmitter, error) {
	if config.Sender == nil {
		return nil, fmt.Errorf("transmitter: no sender configured")
	}
	t := &Transmitter{
		sender:   config.Sender,
		source:   config.Source,
		schedule: config.Schedule,
		counters: config.Counters,
		encoder:  config.Encoder,
		logger:   config.Logger,
		count:    config.Count,
	}
	if t.source == nil {
		t.source = NewSimulator(time.Now().UnixNano())
	}
	if t.schedule == nil {
		t.schedule = DefaultSchedule
	}
	if t.counters == nil {
		t.counters = NewSequenceCounters()
	}
	if t.encoder == nil {
		t.encoder = ccsds.NewEncoder()
	}
	if t.logger == nil {
		t.logger = log.Default()
	}
	for name, rate := range t.schedule {
		if !ccsds.IsValidSubsystem(name) {
			return nil, fmt.Errorf("transmitter: %w: %q", ccsds.ErrUnknownSubsystem, name)
		}
		if !validRate(rate) {
			return nil, fmt.Errorf("transmitter: invalid rate %v for %s", rate, name)
		}
	}
	return t, nil
}

// Sent returns the number of packets delivered
func (t *Transmitter) Sent() uint64 {
	return t.sent.Load()
}

// Failed returns the number of packets that could not be built or sent
func (t *Transmitter) Failed() uint64 {
	return t.failed.Load()
}

// Run transmits until ctx is cancelled or Count packets have been sent
func (t *Transmitter) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	names := make([]string, 0, len(t.schedule))
	for name, rate := range t.schedule {
		if rate > 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return fmt.Errorf("transmitter: every subsystem is disabled")
	}
	sort.Strings(names)

	t.logger.Info("transmitter started", "subsystems", strings.Join(names, ","))

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string, rate float64) {
			defer wg.Done()
			t.runSubsystem(ctx, cancel, name, rate)
		}(name, t.schedule[name])
	}
	wg.Wait()

	t.logger.Info("transmitter stopped", "sent", t.Sent(), "failed", t.Failed())
	if t.count > 0 && t.reserved.Load() >= t.count {
		return nil
	}
	return ctx.Err()
}

func (t *Transmitter) runSubsystem(ctx context.Context, stop context.CancelFunc, name string, rate float64) {
	period := tickerPeriod(rate)
	if period <= 0 {
		t.logger.Error("invalid transmit rate", "subsystem", name, "rate", rate)
		return
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		if t.count > 0 && t.reserved.Add(1) > t.count {
			stop()
			return
		}
		if err := t.TransmitOnce(name); err != nil {
			t.failed.Add(1)
			t.logger.Error("transmit failed", "subsystem", name, "kind", ccsds.ErrorKind(err), "err", err)
		}
		if t.count > 0 && t.reserved.Load() >= t.count {
			stop()
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// TransmitOnce samples, assembles and sends one packet for subsystem
func (t *Transmitter) TransmitOnce(subsystem string) error {
	apid, err := ccsds.APIDFor(subsystem)
	if err != nil {
		return err
	}
	fields, err := t.source.Generate(subsystem)
	if err != nil {
		return err
	}

	seq := t.counters.Next(apid)
	packet, err := t.encoder.Assemble(subsystem, fields, seq)
	if err != nil {
		return err
	}
	if err := t.sender.Send(packet); err != nil {
		return fmt.Errorf("send %s packet: %w", subsystem, err)
	}

	n := t.sent.Add(1)
	t.logger.Debug("sent packet", "subsystem", subsystem, "seq", seq, "bytes", len(packet), "total", n)
	return nil
}
