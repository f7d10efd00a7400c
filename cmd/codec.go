// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/telemetron/pkg/ccsds"
)

var (
	encodeSeq  uint16
	decodeJSON bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode a single packet given as hex",
	Long: `Decode one packet from a hex string and print its fields.

Separators (spaces, colons, dashes) are ignored, so output from "encode",
"receive --hex" or a packet capture can be pasted directly.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

var encodeCmd = &cobra.Command{
	Use:   "encode <subsystem> field=value...",
	Short: "Assemble a packet from field values and print it as hex",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEncode,
}

var apidsCmd = &cobra.Command{
	Use:   "apids",
	Short: "List subsystems, APIDs and payload layouts",
	RunE:  runAPIDs,
}

func init() {
	rootCmd.AddCommand(decodeCmd, encodeCmd, apidsCmd)
	decodeCmd.Flags().BoolVar(&noCRC, "no-crc", false, "Skip checksum verification")
	decodeCmd.Flags().BoolVar(&decodeJSON, "json", false, "Print the decoded record as JSON")
	encodeCmd.Flags().Uint16Var(&encodeSeq, "seq", 0, "Sequence count")
}

func parseHex(args []string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', ':', '-', '\t', '\n':
			return -1
		}
		return r
	}, strings.Join(args, ""))
	cleaned = strings.TrimPrefix(strings.ToLower(cleaned), "0x")
	return hex.DecodeString(cleaned)
}

func runDecode(cmd *cobra.Command, args []string) error {
	raw, err := parseHex(args)
	if err != nil {
		return fmt.Errorf("invalid hex: %w", err)
	}

	packet, err := ccsds.ParseWithOptions(raw, ccsds.ParseOptions{SkipChecksum: noCRC})
	if err != nil {
		return fmt.Errorf("decode failed [%s]: %w", ccsds.ErrorKind(err), err)
	}

	if decodeJSON {
		data, err := ccsds.EncodeRecordJSON(ccsds.NewRecord(packet))
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Print(ccsds.FormatPacket(packet))
	for _, v := range ccsds.ValidatePacket(packet) {
		fmt.Printf("  ! %s\n", v.Message)
	}
	return nil
}

// parseFieldValue converts a command-line value to the field's wire type
func parseFieldValue(f ccsds.Field, raw string) (any, error) {
	if f.Type == ccsds.Float32 {
		return strconv.ParseFloat(raw, 64)
	}
	for i, name := range f.Enum {
		if strings.EqualFold(name, raw) {
			return uint64(i), nil
		}
	}
	return strconv.ParseUint(raw, 0, 64)
}

func runEncode(cmd *cobra.Command, args []string) error {
	schema, err := ccsds.SchemaFor(args[0])
	if err != nil {
		return err
	}

	fields := ccsds.Fields{}
	for _, arg := range args[1:] {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("expected field=value, got %q", arg)
		}
		f, ok := schema.Field(name)
		if !ok {
			return fmt.Errorf("%s has no field %q", schema.Name, name)
		}
		v, err := parseFieldValue(f, value)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		fields[name] = v
	}

	packet, err := ccsds.Assemble(schema.Name, fields, encodeSeq)
	if err != nil {
		return err
	}
	fmt.Println(hex.EncodeToString(packet))
	return nil
}

func runAPIDs(cmd *cobra.Command, args []string) error {
	for _, e := range ccsds.Entries() {
		fmt.Printf("%s  %d-byte payload, %d-byte packet\n",
			ccsds.FormatSubsystem(e.APID), e.Schema.Size(), e.Schema.Size()+ccsds.PacketOverhead)
		for _, f := range e.Schema.Fields {
			line := fmt.Sprintf("    %-22s %-4s", f.Name, f.Type)
			if f.Unit != "" {
				line += " " + f.Unit
			}
			if len(f.Enum) > 0 {
				line += " [" + strings.Join(f.Enum, "|") + "]"
			}
			if f.FaultFlags {
				line += " (fault flags)"
			}
			fmt.Println(line)
		}
	}
	return nil
}
