// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Thermoquad/telemetron/pkg/ccsds"
)

// DefaultPort is the ground station UDP port
const DefaultPort = 5005

// readDeadline bounds each socket read so cancellation is noticed
const readDeadline = 100 * time.Millisecond

// PacketSocket is the subset of net.PacketConn the receive loop needs.
// Tests substitute a scripted socket.
type PacketSocket interface {
	ReadFrom(b []byte) (n int, addr net.Addr, err error)
	SetReadDeadline(t time.Time) error
	Close() error
	LocalAddr() net.Addr
}

// PacketHandler is called for every successfully decoded packet
type PacketHandler func(p *ccsds.Packet)

// ErrorHandler is called for every datagram or stream segment that failed
// to decode, with the offending bytes.
type ErrorHandler func(err error, raw []byte)

// ReceiverConfig contains configuration options for the receiver
type ReceiverConfig struct {
	OnPacket   PacketHandler
	OnError    ErrorHandler
	Options    ccsds.ParseOptions
	Statistics *ccsds.Statistics
	Logger     *log.Logger
	Validate   bool // run ValidatePacket and feed anomalies to Statistics
}

// Receiver decodes incoming telemetry and dispatches it. Decode failures
// are logged with their kind and raw bytes and never stop the loop.
type Receiver struct {
	onPacket PacketHandler
	onError  ErrorHandler
	opts     ccsds.ParseOptions
	stats    *ccsds.Statistics
	logger   *log.Logger
	validate bool
}

// NewReceiver creates a receiver with the provided configuration
func NewReceiver(config ReceiverConfig) *Receiver {
	r := &Receiver{
		onPacket: config.OnPacket,
		onError:  config.OnError,
		opts:     config.Options,
		stats:    config.Statistics,
		logger:   config.Logger,
		validate: config.Validate,
	}
	if r.logger == nil {
		r.logger = log.Default()
	}
	return r
}

// HandleDatagram decodes one complete packet. The returned error is
// informational; callers keep receiving.
func (r *Receiver) HandleDatagram(data []byte) (*ccsds.Packet, error) {
	p, err := ccsds.ParseWithOptions(data, r.opts)
	r.dispatch(p, err, data)
	return p, err
}

func (r *Receiver) dispatch(p *ccsds.Packet, err error, raw []byte) {
	if err != nil {
		r.logger.Warn("decode failed", "kind", ccsds.ErrorKind(err), "err", err, "raw", ccsds.FormatHex(raw))
		if r.stats != nil {
			r.stats.Update(nil, err, nil)
		}
		if r.onError != nil {
			r.onError(err, raw)
		}
		return
	}
	if p == nil {
		return
	}

	var anomalies []ccsds.ValidationError
	if r.validate {
		anomalies = ccsds.ValidatePacket(p)
		for _, a := range anomalies {
			r.logger.Warn("anomaly", "subsystem", p.Subsystem(), "seq", p.SequenceCount(), "type", a.Type, "msg", a.Message)
		}
	}
	if r.stats != nil {
		r.stats.Update(p, nil, anomalies)
	}
	r.logger.Debug("packet", "subsystem", p.Subsystem(), "seq", p.SequenceCount(), "bytes", p.Length())
	if r.onPacket != nil {
		r.onPacket(p)
	}
}

// ListenUDP opens a UDP socket on address and serves it until ctx is done
func (r *Receiver) ListenUDP(ctx context.Context, address string) error {
	conn, err := net.ListenPacket("udp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	return r.Serve(ctx, conn)
}

// Serve reads datagrams from sock until ctx is done. The socket is closed
// on return.
func (r *Receiver) Serve(ctx context.Context, sock PacketSocket) error {
	defer sock.Close()
	r.logger.Info("receiver listening", "addr", sock.LocalAddr())

	buffer := make([]byte, ccsds.MaxPacketSize)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("receiver stopping")
			return ctx.Err()
		default:
		}

		_ = sock.SetReadDeadline(time.Now().Add(readDeadline))
		n, addr, err := sock.ReadFrom(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			r.logger.Error("UDP read error", "err", err)
			continue
		}

		r.logger.Debug("datagram", "from", addr, "bytes", n)
		r.HandleDatagram(buffer[:n])
	}
}

// ReadStream decodes packets from an unframed byte stream (serial port,
// websocket bridge) until EOF, a read error, or ctx is done.
func (r *Receiver) ReadStream(ctx context.Context, src io.Reader) error {
	decoder := ccsds.NewStreamDecoderWithOptions(r.opts)
	buf := make([]byte, 256)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := src.Read(buf)
		for i := 0; i < n; i++ {
			p, derr := decoder.DecodeByte(buf[i])
			if derr != nil {
				r.dispatch(nil, derr, decoder.GetRawBytes())
				continue
			}
			if p != nil {
				r.dispatch(p, nil, nil)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}
