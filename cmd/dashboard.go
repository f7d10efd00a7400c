// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/telemetron/pkg/ccsds"
	"github.com/Thermoquad/telemetron/pkg/dashboard"
	"github.com/Thermoquad/telemetron/pkg/telemetry"
)

var httpAddr string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Republish received telemetry to websocket clients",
	Long: `Receive telemetry and push every decoded packet to websocket clients.

Endpoints:
  /ws           Live records (JSON text frames; ?format=cbor for binary
                CBOR frames; ?subsystem=name to filter)
  /api/apids    APID directory with payload schemas
  /api/stats    Receiver statistics

Defaults to listening for UDP telemetry on :5005 when no source is given.`,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
	dashboardCmd.Flags().StringVar(&httpAddr, "http", ":8080", "HTTP listen address")
}

func runDashboard(cmd *cobra.Command, args []string) error {
	if listenAddr == "" && pcapPath == "" && portName == "" && wsURL == "" {
		listenAddr = fmt.Sprintf(":%d", telemetry.DefaultPort)
	}

	ctx, cancel := signalContext()
	defer cancel()

	stats := ccsds.NewStatistics()
	hub := dashboard.NewHub(dashboard.Config{Statistics: stats, Logger: log.Default()})
	defer hub.Close()

	rx := telemetry.NewReceiver(telemetry.ReceiverConfig{
		OnPacket:   hub.BroadcastPacket,
		Statistics: stats,
		Logger:     log.Default(),
		Validate:   true,
	})

	srv := &http.Server{
		Addr:              httpAddr,
		Handler:           hub.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("dashboard listening", "addr", httpAddr, "source", describeSource())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("dashboard server failed", "err", err)
			cancel()
		}
	}()

	err := runSource(ctx, rx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Warn("dashboard shutdown", "err", serr)
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
