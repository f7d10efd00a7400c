// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/telemetron/pkg/capture"
	"github.com/Thermoquad/telemetron/pkg/telemetry"
)

var (
	groundIP     string
	groundPort   int
	scheduleArgs map[string]string
	txCount      uint64
	txSeed       int64
	pcapOut      string
)

var transmitCmd = &cobra.Command{
	Use:   "transmit",
	Short: "Simulate spacecraft subsystems and transmit telemetry over UDP",
	Long: `Generate simulated telemetry for every subsystem and send one packet per
UDP datagram to the ground station.

Each subsystem transmits on its own schedule (Hz) with its own sequence
counter. Override rates with --schedule name=rate; a rate of 0 disables
the subsystem.

The destination defaults to the GROUND_IP and GROUND_PORT environment
variables, falling back to 127.0.0.1:5005.`,
	RunE: runTransmit,
}

func init() {
	rootCmd.AddCommand(transmitCmd)
	transmitCmd.Flags().StringVar(&groundIP, "ip", envOr("GROUND_IP", "127.0.0.1"), "Ground station IP address")
	transmitCmd.Flags().IntVar(&groundPort, "dest-port", envIntOr("GROUND_PORT", telemetry.DefaultPort), "Ground station UDP port")
	transmitCmd.Flags().StringToStringVar(&scheduleArgs, "schedule", nil, "Per-subsystem rate overrides in Hz (e.g. adcs=5,payload=0)")
	transmitCmd.Flags().Uint64Var(&txCount, "count", 0, "Stop after this many packets (0 runs until interrupted)")
	transmitCmd.Flags().Int64Var(&txSeed, "seed", 0, "Simulator seed (0 uses the current time)")
	transmitCmd.Flags().StringVar(&pcapOut, "pcap-out", "", "Also record transmitted packets to a pcap file")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func runTransmit(cmd *cobra.Command, args []string) error {
	schedule, err := telemetry.ParseSchedule(scheduleArgs)
	if err != nil {
		return err
	}
	if groundPort <= 0 || groundPort > 65535 {
		return fmt.Errorf("invalid destination port %d", groundPort)
	}

	dest := net.JoinHostPort(groundIP, strconv.Itoa(groundPort))
	udp, err := telemetry.DialUDP(dest)
	if err != nil {
		return err
	}
	defer udp.Close()

	senders := telemetry.MultiSender{udp}
	if pcapOut != "" {
		w, err := capture.Create(pcapOut, capture.DefaultEndpoints(uint16(groundPort)))
		if err != nil {
			return err
		}
		defer w.Close()
		senders = append(senders, w)
	}

	seed := txSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	tx, err := telemetry.NewTransmitter(telemetry.TransmitterConfig{
		Sender:   senders,
		Source:   telemetry.NewSimulator(seed),
		Schedule: schedule,
		Logger:   log.Default(),
		Count:    txCount,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Telemetron - Transmitter\n")
	fmt.Printf("Destination: %s\n", dest)
	names := make([]string, 0, len(schedule))
	for name := range schedule {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-10s %.2f Hz\n", name, schedule[name])
	}
	if pcapOut != "" {
		fmt.Printf("Recording: %s\n", pcapOut)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, cancel := signalContext()
	defer cancel()

	err = tx.Run(ctx)
	fmt.Printf("\nSent %d packets (%d failed)\n", tx.Sent(), tx.Failed())
	if err == context.Canceled {
		return nil
	}
	return err
}
