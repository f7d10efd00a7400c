// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// UDP and capture sources
	listenAddr string
	pcapPath   string

	// Logging flags
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "telemetron",
	Short: "CCSDS Spacecraft Telemetry Tool",
	Long: `Telemetron - A CLI tool for generating, receiving and analyzing CCSDS
space packet telemetry.

Packets carry a 6-byte primary header, a 4-byte CUC time code, a fixed
subsystem payload and a CRC-16 trailer. Seven subsystems are defined
(run "telemetron apids" to list them).

Packet sources:
  UDP:       --listen :5005
  Capture:   --pcap telemetry.pcap
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the TELEMETRON_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Datagram sources
	rootCmd.PersistentFlags().StringVarP(&listenAddr, "listen", "l", "", "UDP listen address (e.g. :5005)")
	rootCmd.PersistentFlags().StringVar(&pcapPath, "pcap", "", "Replay packets from a pcap capture")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json, logfmt)")
}

// setupLogging installs the default logger used by every package
func setupLogging(cmd *cobra.Command, args []string) error {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          "telemetron",
	})

	switch strings.ToLower(logFormat) {
	case "text":
		logger.SetFormatter(log.TextFormatter)
	case "json":
		logger.SetFormatter(log.JSONFormatter)
	case "logfmt":
		logger.SetFormatter(log.LogfmtFormatter)
	default:
		return fmt.Errorf("invalid --log-format %q (use text, json or logfmt)", logFormat)
	}

	log.SetDefault(logger)
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
