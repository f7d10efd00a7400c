// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/Thermoquad/telemetron/pkg/ccsds"
)

// Source produces payload values for a subsystem
type Source interface {
	Generate(subsystem string) (ccsds.Fields, error)
}

// Simulator generates plausible nominal telemetry for every subsystem.
// Safe for concurrent use.
type Simulator struct {
	mu    sync.Mutex
	rng   *rand.Rand
	start time.Time
}

// NewSimulator creates a simulator. The seed makes runs reproducible.
func NewSimulator(seed int64) *Simulator {
	return &Simulator{
		rng:   rand.New(rand.NewSource(seed)),
		start: time.Now(),
	}
}

// Generate returns one sample for subsystem
func (s *Simulator) Generate(subsystem string) (ccsds.Fields, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch strings.ToLower(subsystem) {
	case "cdh":
		return s.cdh(), nil
	case "power":
		return s.power(), nil
	case "comms":
		return s.comms(), nil
	case "thermal":
		return s.thermal(), nil
	case "adcs":
		return s.adcs(), nil
	case "propulsion":
		return s.propulsion(), nil
	case "payload":
		return s.payload(), nil
	}
	return nil, fmt.Errorf("%w: %q", ccsds.ErrUnknownSubsystem, subsystem)
}

// uniform returns a value in [lo, hi) rounded to the given decimals
func (s *Simulator) uniform(lo, hi float64, decimals int) float64 {
	v := lo + s.rng.Float64()*(hi-lo)
	scale := math.Pow(10, float64(decimals))
	r := math.Round(v*scale) / scale
	if r >= hi {
		r = math.Floor(v*scale) / scale
	}
	return r
}

func (s *Simulator) choice(values ...int) int {
	return values[s.rng.Intn(len(values))]
}

func (s *Simulator) cdh() ccsds.Fields {
	return ccsds.Fields{
		"processor_temp":    s.uniform(40, 60, 1),
		"processor_freq":    s.uniform(1200, 1800, 0),
		"processor_util":    s.uniform(0, 100, 1),
		"ram_usage":         s.rng.Intn(101),
		"disk_usage":        20 + s.rng.Intn(60),
		"cooling_fan_speed": s.uniform(0, 3000, 0),
		"uptime":            uint32(time.Since(s.start).Seconds()),
		"watchdog_counter":  0,
		"software_version":  1,
		"event_flags":       0,
	}
}

func (s *Simulator) power() ccsds.Fields {
	return ccsds.Fields{
		"bus_voltage":         s.uniform(26.0, 29.0, 2),
		"bus_current":         s.uniform(0.5, 12.0, 2),
		"battery_voltage":     s.uniform(24.0, 29.4, 2),
		"battery_current":     s.uniform(-5.0, 5.0, 2),
		"battery_temp":        s.uniform(0.0, 35.0, 1),
		"state_of_charge":     s.uniform(30.0, 100.0, 1),
		"solar_array_current": s.uniform(0.0, 8.0, 2),
		"solar_array_voltage": s.uniform(26.0, 29.0, 2),
		"eps_mode":            1,
		"fault_flags":         0,
	}
}

func (s *Simulator) comms() ccsds.Fields {
	return ccsds.Fields{
		"tx_frequency":       s.uniform(2249.99, 2250.01, 6),
		"rx_frequency":       s.uniform(2199.99, 2200.01, 6),
		"tx_power":           s.uniform(0, 30, 2),
		"rx_signal_strength": s.uniform(-120, 0, 2),
		"bit_error_rate":     s.uniform(0, 1e-3, 8),
		"frame_sync_errors":  s.rng.Intn(65536),
		"carrier_lock":       s.choice(0, 1),
		"modulation_mode":    1,
		"comms_mode":         1,
		"comms_fault_flags":  0,
	}
}

func (s *Simulator) thermal() ccsds.Fields {
	hot := s.uniform(0, 100, 1)
	cold := s.uniform(-100, 0, 1)
	avg := (hot + cold) / 2

	heater, radiator, mode := 0, 1, 1
	switch {
	case avg < -10 && avg > -40:
		heater, radiator, mode = 1, 0, 2 // survival
	case avg > 30 && avg < 60:
		heater, radiator = 0, 1
	case avg < -40 || avg > 60:
		mode = 4 // emergency
	}

	return ccsds.Fields{
		"average_temp":        avg,
		"heater_status":       heater,
		"radiator_status":     radiator,
		"heat_pipe_status":    1,
		"thermal_mode":        mode,
		"hot_spot_temp":       hot,
		"cold_spot_temp":      cold,
		"thermal_fault_flags": 0,
	}
}

func (s *Simulator) adcs() ccsds.Fields {
	return ccsds.Fields{
		"quat_w":            s.uniform(-1, 1, 6),
		"quat_x":            s.uniform(-1, 1, 6),
		"quat_y":            s.uniform(-1, 1, 6),
		"quat_z":            s.uniform(-1, 1, 6),
		"ang_velocity_x":    s.uniform(-5, 5, 1),
		"ang_velocity_y":    s.uniform(-5, 5, 1),
		"ang_velocity_z":    s.uniform(-5, 5, 1),
		"mag_field_x":       s.uniform(-60, 60, 1),
		"mag_field_y":       s.uniform(-60, 60, 1),
		"mag_field_z":       s.uniform(-60, 60, 1),
		"sun_sensor_status": 1,
		"gyro_status":       1,
		"adcs_mode":         3, // fine point
		"adcs_fault_flags":  0,
	}
}

func (s *Simulator) propulsion() ccsds.Fields {
	return ccsds.Fields{
		"fuel_level":             s.uniform(0, 100, 2),
		"oxidizer_level":         s.uniform(0, 100, 2),
		"tank_pressure":          s.uniform(0, 30, 2),
		"feedline_temp":          s.uniform(-40, 50, 2),
		"valve_status":           0,
		"thruster_firing":        0,
		"thruster_mode":          0,
		"propulsion_fault_flags": 0,
		"rcs_tank_level":         s.uniform(0, 100, 2),
		"rcs_tank_pressure":      s.uniform(0, 30, 2),
		"rcs_thruster_status":    s.choice(0, 1),
		"rcs_fault_flags":        0,
	}
}

func (s *Simulator) payload() ccsds.Fields {
	return ccsds.Fields{
		"camera_status":                1,
		"spectrometer_status":          1,
		"image_capture_count":          s.rng.Intn(65536),
		"last_image_quality":           s.rng.Intn(101),
		"spectrometer_last_wavelength": s.uniform(200, 2500, 2),
		"spectrometer_last_intensity":  s.uniform(0, 1000, 2),
		"payload_mode":                 s.choice(0, 1),
		"payload_fault_flags":          0,
	}
}
