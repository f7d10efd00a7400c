// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/telemetron/pkg/ccsds"
	"github.com/Thermoquad/telemetron/pkg/telemetry"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test a link by waiting for a valid telemetry packet",
	Long: `Wait for a valid telemetry packet on the selected source until timeout.

This command listens on UDP, a serial port or a WebSocket and waits for any
packet that decodes cleanly (known APID, correct length, passing CRC check).
Invalid bytes and datagrams are ignored.

Exit codes:
  0 - Packet received before timeout
  1 - Timeout reached without receiving a valid packet
  2 - Connection error

Useful for checking that a transmitter or ground station bridge is live.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a packet")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	fmt.Printf("Telemetron - Packet Test\n")
	fmt.Printf("Source: %s\n", describeSource())
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid packet...\n\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var invalid atomic.Int64
	packetChan := make(chan *ccsds.Packet, 1)
	errChan := make(chan error, 1)

	rx := telemetry.NewReceiver(telemetry.ReceiverConfig{
		OnPacket: func(p *ccsds.Packet) {
			select {
			case packetChan <- p:
			default:
			}
		},
		OnError: func(err error, raw []byte) { invalid.Add(1) },
		Logger:  log.New(io.Discard),
	})

	go func() {
		errChan <- runSource(ctx, rx)
	}()

	// Wait for packet or timeout
	select {
	case packet := <-packetChan:
		if n := invalid.Load(); n > 0 {
			fmt.Printf("(skipped %d invalid packets before sync)\n", n)
		}
		fmt.Printf("SUCCESS: Received valid packet\n")
		fmt.Printf("  Subsystem: %s (APID 0x%02X)\n", packet.Subsystem(), uint16(packet.APID()))
		fmt.Printf("  Sequence: %d\n", packet.SequenceCount())
		fmt.Printf("  Mission time: %s\n", packet.TimeCode())
		fmt.Printf("  Length: %d bytes\n", packet.Length())
		fmt.Printf("  CRC: 0x%04X\n", packet.CRC())
		os.Exit(0)

	case err := <-errChan:
		if err == nil {
			fmt.Fprintf(os.Stderr, "Source ended without a valid packet\n")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(packetTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid packet received within %d seconds\n", packetTestTimeout)
		os.Exit(1)
	}

	return nil
}
