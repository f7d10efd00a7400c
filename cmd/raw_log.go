// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/telemetron/pkg/archive"
	"github.com/Thermoquad/telemetron/pkg/ccsds"
	"github.com/Thermoquad/telemetron/pkg/telemetry"
)

var (
	archivePath string
	noCRC       bool
	showHex     bool
)

var receiveCmd = &cobra.Command{
	Use:     "receive",
	Aliases: []string{"raw_log"},
	Short:   "Display received packets in human-readable format",
	Long: `Continuously decode and display telemetry packets as they arrive.

Each packet is shown with its arrival time, subsystem, sequence count,
mission time and decoded payload fields. Decode failures are printed and
the receiver keeps going.

Use --archive to store every decoded packet in a SQLite database, and
--no-crc to accept packets whose checksum does not match.`,
	RunE: runReceive,
}

func init() {
	rootCmd.AddCommand(receiveCmd)
	receiveCmd.Flags().StringVar(&archivePath, "archive", "", "Store decoded packets in a SQLite archive")
	receiveCmd.Flags().BoolVar(&noCRC, "no-crc", false, "Skip checksum verification")
	receiveCmd.Flags().BoolVar(&showHex, "hex", false, "Show a hex dump of each packet")
}

func runReceive(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	var store *archive.Archive
	if archivePath != "" {
		var err error
		store, err = archive.Open(archivePath)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	fmt.Printf("Telemetron - Packet Log\n")
	fmt.Printf("Source: %s\n", describeSource())
	if store != nil {
		fmt.Printf("Archive: %s\n", archivePath)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	rx := telemetry.NewReceiver(telemetry.ReceiverConfig{
		Options: ccsds.ParseOptions{SkipChecksum: noCRC},
		OnPacket: func(p *ccsds.Packet) {
			fmt.Print(ccsds.FormatPacket(p))
			if showHex {
				fmt.Print(ccsds.HexDump(p.Raw()))
			}
			fmt.Println()
			if store != nil {
				if _, err := store.InsertPacket(context.Background(), p); err != nil {
					log.Error("archive insert failed", "err", err)
				}
			}
		},
		OnError: func(err error, raw []byte) {
			fmt.Printf("[ERROR] %v\n", err)
			if showHex && len(raw) > 0 {
				fmt.Print(ccsds.HexDump(raw))
			}
		},
		Logger: log.Default(),
	})

	err := runSource(ctx, rx)
	if err == context.Canceled {
		return nil
	}
	return err
}
