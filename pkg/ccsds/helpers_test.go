// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ccsds

import (
	"math"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// ============================================================
// Test Helpers
// ============================================================

// nominalFields returns in-range values for every subsystem
func nominalFields(subsystem string) Fields {
	switch subsystem {
	case "cdh":
		return Fields{
			"processor_temp": 45.5, "processor_freq": 1500.0, "processor_util": 37.25,
			"ram_usage": 42, "disk_usage": 61, "cooling_fan_speed": 1200.0,
			"uptime": 86400, "watchdog_counter": 3, "software_version": 1, "event_flags": 0,
		}
	case "power":
		return Fields{
			"bus_voltage": 28.1, "bus_current": 4.25, "battery_voltage": 27.5,
			"battery_current": -1.5, "battery_temp": 20.5, "state_of_charge": 88.0,
			"solar_array_current": 6.75, "solar_array_voltage": 28.0,
			"eps_mode": 1, "fault_flags": 0,
		}
	case "comms":
		return Fields{
			"tx_frequency": 2250.0, "rx_frequency": 2200.0, "tx_power": 20.5,
			"rx_signal_strength": -85.25, "bit_error_rate": 0.0001,
			"frame_sync_errors": 1234, "carrier_lock": 1, "modulation_mode": 1,
			"comms_mode": 1, "comms_fault_flags": 0,
		}
	case "thermal":
		return Fields{
			"average_temp": 12.5, "heater_status": 0, "radiator_status": 1,
			"heat_pipe_status": 1, "thermal_mode": 1, "hot_spot_temp": 55.0,
			"cold_spot_temp": -30.0, "thermal_fault_flags": 0,
		}
	case "adcs":
		return Fields{
			"quat_w": 0.5, "quat_x": -0.5, "quat_y": 0.25, "quat_z": 0.75,
			"ang_velocity_x": 1.5, "ang_velocity_y": -2.0, "ang_velocity_z": 0.1,
			"mag_field_x": 30.0, "mag_field_y": -45.5, "mag_field_z": 12.0,
			"sun_sensor_status": 1, "gyro_status": 1, "adcs_mode": 3, "adcs_fault_flags": 0,
		}
	case "propulsion":
		return Fields{
			"fuel_level": 75.5, "oxidizer_level": 74.25, "tank_pressure": 22.0,
			"feedline_temp": 15.0, "valve_status": 0, "thruster_firing": 0,
			"thruster_mode": 0, "propulsion_fault_flags": 0, "rcs_tank_level": 90.0,
			"rcs_tank_pressure": 18.5, "rcs_thruster_status": 1, "rcs_fault_flags": 0,
		}
	case "payload":
		return Fields{
			"camera_status": 1, "spectrometer_status": 1, "image_capture_count": 4321,
			"last_image_quality": 97, "spectrometer_last_wavelength": 550.25,
			"spectrometer_last_intensity": 812.5, "payload_mode": 1, "payload_fault_flags": 0,
		}
	}
	return nil
}

// fixedEncoder stamps packets with a fixed mission time
func fixedEncoder() *Encoder {
	at := MissionStart.Add(1000*time.Second + 500*time.Millisecond)
	return &Encoder{Now: func() time.Time { return at }}
}

// mustAssemble builds a packet or fails the test
func mustAssemble(t *testing.T, subsystem string, seq uint16) []byte {
	t.Helper()
	data, err := fixedEncoder().Assemble(subsystem, nominalFields(subsystem), seq)
	if err != nil {
		t.Fatalf("Assemble(%s) failed: %v", subsystem, err)
	}
	return data
}

// assertFieldsClose compares decoded fields with the input map
func assertFieldsClose(t *testing.T, schema *Schema, want, got Fields) {
	t.Helper()
	for _, f := range schema.Fields {
		if f.Type == Float32 {
			w, _ := want.Float(f.Name)
			g, ok := got.Float(f.Name)
			if !ok {
				t.Errorf("%s: missing from decoded fields", f.Name)
				continue
			}
			if math.Abs(w-g) > 0.01 {
				t.Errorf("%s: expected %v, got %v", f.Name, w, g)
			}
			continue
		}
		w, _ := want.Uint(f.Name)
		g, ok := got.Uint(f.Name)
		if !ok {
			t.Errorf("%s: missing from decoded fields", f.Name)
			continue
		}
		if w != g {
			t.Errorf("%s: expected %d, got %d", f.Name, w, g)
		}
	}
}

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomFields fills every field of a schema with a random value that
// fits its wire type
func randomFields(rng *rand.Rand, schema *Schema) Fields {
	fields := make(Fields, len(schema.Fields))
	for _, f := range schema.Fields {
		switch f.Type {
		case Float32:
			fields[f.Name] = float64(float32(rng.NormFloat64() * 1000))
		case Uint8:
			fields[f.Name] = uint64(rng.Intn(1 << 8))
		case Uint16:
			fields[f.Name] = uint64(rng.Intn(1 << 16))
		case Uint32:
			fields[f.Name] = uint64(rng.Uint32())
		}
	}
	return fields
}
