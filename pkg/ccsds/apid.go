// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ccsds

import (
	"fmt"
	"strings"
)

// APID is an 11-bit Application Process Identifier
type APID uint16

// Subsystem APIDs
const (
	APIDCDH        APID = 0x01
	APIDPower      APID = 0x02
	APIDComms      APID = 0x03
	APIDThermal    APID = 0x04
	APIDADCS       APID = 0x05
	APIDPropulsion APID = 0x06
	APIDPayload    APID = 0x07
)

func (a APID) String() string {
	if name, err := SubsystemFor(a); err == nil {
		return fmt.Sprintf("0x%02X (%s)", uint16(a), name)
	}
	return fmt.Sprintf("0x%02X", uint16(a))
}

// DirectoryEntry maps one subsystem to its APID and payload schema
type DirectoryEntry struct {
	Name   string
	APID   APID
	Schema *Schema
}

type directory struct {
	entries []DirectoryEntry
	byName  map[string]int
	byAPID  map[APID]int
}

// dir is built once from the schema table and never written again, so
// lookups are safe from any goroutine.
var dir = newDirectory(schemas)

func newDirectory(list []*Schema) *directory {
	d := &directory{
		entries: make([]DirectoryEntry, 0, len(list)),
		byName:  make(map[string]int, len(list)),
		byAPID:  make(map[APID]int, len(list)),
	}
	for _, s := range list {
		if s.APID > MaxAPID {
			panic(fmt.Sprintf("ccsds: schema %s APID 0x%X exceeds 11 bits", s.Name, uint16(s.APID)))
		}
		if _, dup := d.byAPID[s.APID]; dup {
			panic(fmt.Sprintf("ccsds: duplicate APID 0x%02X", uint16(s.APID)))
		}
		d.byName[strings.ToLower(s.Name)] = len(d.entries)
		d.byAPID[s.APID] = len(d.entries)
		d.entries = append(d.entries, DirectoryEntry{Name: s.Name, APID: s.APID, Schema: s})
	}
	return d
}

// APIDFor returns the APID of a subsystem. Names are case-insensitive.
func APIDFor(name string) (APID, error) {
	i, ok := dir.byName[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownSubsystem, name)
	}
	return dir.entries[i].APID, nil
}

// SubsystemFor returns the lower-case subsystem name of an APID
func SubsystemFor(apid APID) (string, error) {
	i, ok := dir.byAPID[apid]
	if !ok {
		return "", fmt.Errorf("%w: 0x%02X", ErrUnknownAPID, uint16(apid))
	}
	return dir.entries[i].Name, nil
}

// SchemaForAPID returns the payload schema registered for an APID.
// The schema is shared and must not be modified.
func SchemaForAPID(apid APID) (*Schema, error) {
	i, ok := dir.byAPID[apid]
	if !ok {
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownAPID, uint16(apid))
	}
	return dir.entries[i].Schema, nil
}

// SchemaFor returns the payload schema of a subsystem by name.
// The schema is shared and must not be modified.
func SchemaFor(name string) (*Schema, error) {
	i, ok := dir.byName[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSubsystem, name)
	}
	return dir.entries[i].Schema, nil
}

// Entries returns a copy of the directory in APID order. Each entry
// carries its own copy of the schema.
func Entries() []DirectoryEntry {
	out := make([]DirectoryEntry, len(dir.entries))
	for i, e := range dir.entries {
		e.Schema = e.Schema.Clone()
		out[i] = e
	}
	return out
}

// IsValidAPID reports whether apid belongs to a known subsystem
func IsValidAPID(apid APID) bool {
	_, ok := dir.byAPID[apid]
	return ok
}

// IsValidSubsystem reports whether name is a known subsystem
func IsValidSubsystem(name string) bool {
	_, ok := dir.byName[strings.ToLower(name)]
	return ok
}

// SubsystemCount returns the number of registered subsystems
func SubsystemCount() int {
	return len(dir.entries)
}

// Subsystems returns all subsystem names in APID order
func Subsystems() []string {
	names := make([]string, len(dir.entries))
	for i, e := range dir.entries {
		names[i] = e.Name
	}
	return names
}

// APIDs returns all registered APIDs in ascending order
func APIDs() []APID {
	ids := make([]APID, len(dir.entries))
	for i, e := range dir.entries {
		ids[i] = e.APID
	}
	return ids
}
