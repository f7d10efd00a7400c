// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ccsds

// Mode value names, indexed by wire value
var (
	StatusNames         = []string{"INACTIVE", "ACTIVE"}
	EPSModeNames        = []string{"OFF", "NOMINAL", "SAFE", "LOW_POWER", "CHARGING", "EMERGENCY"}
	CommsModeNames      = []string{"IDLE", "NORMAL", "HIGH_RATE", "SAFE", "EMERGENCY"}
	ModulationNames     = []string{"BPSK", "QPSK", "8PSK", "GMSK"}
	ThermalModeNames    = []string{"OFF", "NOMINAL", "SURVIVAL", "SAFE", "EMERGENCY"}
	ADCSModeNames       = []string{"IDLE", "DETUMBLE", "COARSE_POINT", "FINE_POINT", "EMERGENCY"}
	ThrusterModeNames   = []string{"IDLE", "BURN", "COAST"}
	PayloadModeNames    = []string{"IDLE", "SURVEY", "CALIBRATION", "EMERGENCY"}
	ValveStatusNames    = []string{"CLOSED", "OPEN"}
	HeaterStatusNames   = []string{"OFF", "ON"}
	ThrusterFiringNames = []string{"NOT_FIRING", "FIRING"}
)

func f32(name, unit string, lo, hi float64) Field {
	return Field{Name: name, Type: Float32, Unit: unit, Min: lo, Max: hi}
}

func enum(name string, t FieldType, names []string) Field {
	return Field{Name: name, Type: t, Enum: names}
}

func flags(name string) Field {
	return Field{Name: name, Type: Uint8, FaultFlags: true}
}

// Payload layouts. Field order is the wire order.
var (
	CDHSchema = &Schema{
		Name: "cdh",
		APID: APIDCDH,
		Fields: []Field{
			f32("processor_temp", "°C", -40, 105),
			f32("processor_freq", "MHz", 0, 5000),
			f32("processor_util", "%", 0, 100),
			{Name: "ram_usage", Type: Uint8, Unit: "%", Max: 100},
			{Name: "disk_usage", Type: Uint8, Unit: "%", Max: 100},
			f32("cooling_fan_speed", "RPM", 0, 10000),
			{Name: "uptime", Type: Uint32, Unit: "s"},
			{Name: "watchdog_counter", Type: Uint16},
			{Name: "software_version", Type: Uint8},
			{Name: "event_flags", Type: Uint8, Description: "event bitfield"},
		},
	}

	PowerSchema = &Schema{
		Name: "power",
		APID: APIDPower,
		Fields: []Field{
			f32("bus_voltage", "V", 26.0, 29.0),
			f32("bus_current", "A", 0.5, 12.0),
			f32("battery_voltage", "V", 24.0, 29.4),
			f32("battery_current", "A", -5.0, 5.0),
			f32("battery_temp", "°C", 0.0, 35.0),
			f32("state_of_charge", "%", 0.0, 100.0),
			f32("solar_array_current", "A", 0.0, 8.0),
			f32("solar_array_voltage", "V", 26.0, 29.0),
			enum("eps_mode", Uint8, EPSModeNames),
			flags("fault_flags"),
		},
	}

	CommsSchema = &Schema{
		Name: "comms",
		APID: APIDComms,
		Fields: []Field{
			f32("tx_frequency", "MHz", 2249.9, 2250.1),
			f32("rx_frequency", "MHz", 2199.9, 2200.1),
			f32("tx_power", "dBm", 0, 30),
			f32("rx_signal_strength", "dBm", -120, 0),
			f32("bit_error_rate", "", 0, 1e-3),
			{Name: "frame_sync_errors", Type: Uint32, Description: "frame sync error count"},
			enum("carrier_lock", Uint8, StatusNames),
			enum("modulation_mode", Uint8, ModulationNames),
			enum("comms_mode", Uint8, CommsModeNames),
			flags("comms_fault_flags"),
		},
	}

	ThermalSchema = &Schema{
		Name: "thermal",
		APID: APIDThermal,
		Fields: []Field{
			f32("average_temp", "°C", -100, 100),
			enum("heater_status", Uint8, HeaterStatusNames),
			enum("radiator_status", Uint8, StatusNames),
			enum("heat_pipe_status", Uint8, StatusNames),
			enum("thermal_mode", Uint8, ThermalModeNames),
			f32("hot_spot_temp", "°C", 0, 100),
			f32("cold_spot_temp", "°C", -100, 0),
			flags("thermal_fault_flags"),
		},
	}

	ADCSSchema = &Schema{
		Name: "adcs",
		APID: APIDADCS,
		Fields: []Field{
			f32("quat_w", "", -1, 1),
			f32("quat_x", "", -1, 1),
			f32("quat_y", "", -1, 1),
			f32("quat_z", "", -1, 1),
			f32("ang_velocity_x", "deg/s", -5, 5),
			f32("ang_velocity_y", "deg/s", -5, 5),
			f32("ang_velocity_z", "deg/s", -5, 5),
			f32("mag_field_x", "µT", -60, 60),
			f32("mag_field_y", "µT", -60, 60),
			f32("mag_field_z", "µT", -60, 60),
			enum("sun_sensor_status", Uint8, StatusNames),
			enum("gyro_status", Uint8, StatusNames),
			enum("adcs_mode", Uint8, ADCSModeNames),
			flags("adcs_fault_flags"),
		},
	}

	PropulsionSchema = &Schema{
		Name: "propulsion",
		APID: APIDPropulsion,
		Fields: []Field{
			f32("fuel_level", "%", 0, 100),
			f32("oxidizer_level", "%", 0, 100),
			f32("tank_pressure", "bar", 0, 30),
			f32("feedline_temp", "°C", -40, 50),
			enum("valve_status", Uint8, ValveStatusNames),
			enum("thruster_firing", Uint8, ThrusterFiringNames),
			enum("thruster_mode", Uint8, ThrusterModeNames),
			flags("propulsion_fault_flags"),
			f32("rcs_tank_level", "%", 0, 100),
			f32("rcs_tank_pressure", "bar", 0, 30),
			enum("rcs_thruster_status", Uint8, StatusNames),
			flags("rcs_fault_flags"),
		},
	}

	PayloadSchema = &Schema{
		Name: "payload",
		APID: APIDPayload,
		Fields: []Field{
			enum("camera_status", Uint8, StatusNames),
			enum("spectrometer_status", Uint8, StatusNames),
			{Name: "image_capture_count", Type: Uint16},
			{Name: "last_image_quality", Type: Uint8, Unit: "%", Max: 100},
			f32("spectrometer_last_wavelength", "nm", 200, 2500),
			f32("spectrometer_last_intensity", "", 0, 1000),
			enum("payload_mode", Uint8, PayloadModeNames),
			flags("payload_fault_flags"),
		},
	}
)

// schemas is the single definition of the APID directory, in APID order
var schemas = []*Schema{
	CDHSchema,
	PowerSchema,
	CommsSchema,
	ThermalSchema,
	ADCSSchema,
	PropulsionSchema,
	PayloadSchema,
}
