// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Telemetron - CCSDS Spacecraft Telemetry Tool
//
// A CLI tool for generating, receiving and decoding CCSDS space packet
// telemetry in human-readable format.

package main

import (
	"os"

	"github.com/Thermoquad/telemetron/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
