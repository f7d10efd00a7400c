// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
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

var linkTestCmd = &cobra.Command{
	Use:     "link_test",
	Aliases: []string{"ws_test"},
	Short:   "Test link stability over a fixed duration",
	Long: `Receive from the selected source for a fixed duration and report
throughput, decode errors and sequence gaps once per second.

Exit codes:
  0 - Test completed and packets were received
  1 - Test failed (no packets, or the connection dropped)
  2 - Connection error`,
	RunE: runLinkTest,
}

var linkTestDuration int

func init() {
	rootCmd.AddCommand(linkTestCmd)
	linkTestCmd.Flags().IntVar(&linkTestDuration, "duration", 30, "Test duration in seconds")
}

func runLinkTest(cmd *cobra.Command, args []string) error {
	fmt.Printf("Link Stability Test\n")
	fmt.Printf("Source: %s\n", describeSource())
	fmt.Printf("Duration: %d seconds\n\n", linkTestDuration)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(linkTestDuration)*time.Second)
	defer cancel()

	stats := ccsds.NewStatistics()
	var bytesReceived atomic.Int64
	rx := telemetry.NewReceiver(telemetry.ReceiverConfig{
		OnPacket:   func(p *ccsds.Packet) { bytesReceived.Add(int64(p.Length())) },
		Statistics: stats,
		Logger:     log.New(io.Discard),
		Validate:   true,
	})

	errChan := make(chan error, 1)
	go func() { errChan <- runSource(ctx, rx) }()

	start := time.Now()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	fmt.Printf("Listening for data...\n\n")

	results := func(result string) {
		snap := stats.Snapshot()
		fmt.Printf("\n--- Test Results ---\n")
		fmt.Printf("Duration: %v\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("Packets received: %d\n", snap.ValidPackets+snap.AnomalousPackets)
		fmt.Printf("Bytes received: %d\n", bytesReceived.Load())
		fmt.Printf("Decode errors: %d\n", snap.Errors())
		fmt.Printf("Sequence gaps: %d (%d missed)\n", snap.SequenceGaps, snap.MissedPackets)
		fmt.Printf("Result: %s\n", result)
	}

	for {
		select {
		case err := <-errChan:
			if err != nil && !errors.Is(err, context.DeadlineExceeded) {
				fmt.Printf("\n[%s] Connection error: %v\n",
					time.Now().Format("15:04:05.000"), err)
				results("FAILED (connection error)")
				if time.Since(start) < time.Second {
					os.Exit(2)
				}
				os.Exit(1)
			}
			snap := stats.Snapshot()
			if snap.ValidPackets+snap.AnomalousPackets == 0 {
				results("FAILED (no packets)")
				os.Exit(1)
			}
			results("PASSED (link stable)")
			return nil

		case <-ticker.C:
			snap := stats.Snapshot()
			remaining := time.Until(start.Add(time.Duration(linkTestDuration) * time.Second)).Seconds()
			fmt.Printf("[%s] %d packets, %d errors, %.1f pkts/s (%.0fs remaining)\n",
				time.Now().Format("15:04:05.000"), snap.TotalPackets-snap.Errors(), snap.Errors(),
				snap.PacketRate, remaining)
		}
	}
}
