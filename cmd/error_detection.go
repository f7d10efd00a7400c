// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/telemetron/pkg/ccsds"
	"github.com/Thermoquad/telemetron/pkg/telemetry"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var monitorCmd = &cobra.Command{
	Use:     "monitor",
	Aliases: []string{"error_detection"},
	Short:   "Detect and analyze malformed packets and anomalies",
	Long: `Track packet errors, malformed data, and anomalous values with statistics.

This command validates each packet and detects:
  - Checksum failures, truncated packets and unknown APIDs
  - Payloads whose length does not match the subsystem schema
  - Out-of-range readings, invalid mode values and raised fault flags
  - Sequence gaps and packet/error rates per subsystem

By default, only errors are displayed. Use --show-all to display valid packets too.

Packets are validated in real-time, with errors highlighted immediately and
periodic statistics summaries displayed at configurable intervals.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all packets (not just errors)")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if statsInterval <= 0 {
		return fmt.Errorf("--stats-interval must be positive")
	}
	if useTUI {
		return runTUIMode()
	}
	return runTextMode()
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(err error, raw []byte) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m [%s] %v\n", timestamp, ccsds.ErrorKind(err), err)
	if len(raw) > 0 {
		fmt.Printf("  Raw: %s\n", ccsds.FormatHex(raw))
	}
	fmt.Printf("  >>> DECODE FAILED <<<\n\n")
}

// printValidationErrors prints validation errors for a packet
func printValidationErrors(packet *ccsds.Packet, errs []ccsds.ValidationError) {
	timestamp := packet.ReceivedAt().Format("15:04:05.000")

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m %s seq=%d\n",
		timestamp, ccsds.FormatSubsystem(packet.APID()), packet.SequenceCount())
	fmt.Printf("  CRC: \033[1;32mOK\033[0m (0x%04X)\n", packet.CRC())

	schema := packet.Schema()
	fields := packet.Fields()
	for i, err := range errs {
		switch err.Type {
		case ccsds.AnomalyOutOfRange, ccsds.AnomalyNonFinite:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
		case ccsds.AnomalyInvalidMode, ccsds.AnomalyFaultFlags:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
		default:
			fmt.Printf("  Issue %d: %s\n", i+1, err.Message)
		}
		if f, ok := schema.Field(err.Field); ok {
			fmt.Printf("    %s\n", ccsds.FormatField(f, fields[err.Field]))
		}
	}

	fmt.Printf("  >>> PACKET FLAGGED <<<\n\n")
}

// monitorReceiver builds a receiver that reports through the callbacks
// and stays quiet on the log, since the monitor prints everything itself
func monitorReceiver(onPacket func(*ccsds.Packet, []ccsds.ValidationError), onError func(error, []byte)) *telemetry.Receiver {
	return telemetry.NewReceiver(telemetry.ReceiverConfig{
		OnPacket: func(p *ccsds.Packet) {
			onPacket(p, ccsds.ValidatePacket(p))
		},
		OnError: onError,
		Logger:  log.New(io.Discard),
	})
}

// runTUIMode runs the monitor in TUI mode
func runTUIMode() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := initialModel(describeSource(), statsInterval, showAll)
	p := tea.NewProgram(m)

	rx := monitorReceiver(
		func(packet *ccsds.Packet, errs []ccsds.ValidationError) {
			p.Send(packetMsg{packet: packet, validationErrors: errs})
		},
		func(err error, raw []byte) {
			p.Send(packetMsg{decodeErr: err})
		},
	)

	go func() {
		err := runSource(ctx, rx)
		if err != nil && !errors.Is(err, context.Canceled) {
			p.Send(sourceDoneMsg{err: err})
			return
		}
		p.Send(sourceDoneMsg{})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// runTextMode runs the monitor in text mode
func runTextMode() error {
	fmt.Printf("Telemetron - Monitor Mode\n")
	fmt.Printf("Source: %s\n", describeSource())
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All packets\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, cancel := signalContext()
	defer cancel()

	stats := ccsds.NewStatistics()
	synchronized := false

	rx := monitorReceiver(
		func(packet *ccsds.Packet, errs []ccsds.ValidationError) {
			if !synchronized {
				synchronized = true
				fmt.Printf("[SYNC] First packet from %s\n\n", ccsds.FormatSubsystem(packet.APID()))
			}
			stats.Update(packet, nil, errs)

			if len(errs) > 0 {
				printValidationErrors(packet, errs)
			} else if showAll {
				fmt.Print(ccsds.FormatPacket(packet))
				fmt.Println()
			}
		},
		func(err error, raw []byte) {
			stats.Update(nil, err, nil)
			printDecodeError(err, raw)
		},
	)

	done := make(chan error, 1)
	go func() { done <- runSource(ctx, rx) }()

	// Statistics ticker
	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case err := <-done:
			fmt.Println()
			fmt.Print(stats.String())
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}
