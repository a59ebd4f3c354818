package wire

import (
	"fmt"
	"time"
)

// Neutral is the centered pulse width, in microseconds, of both channels.
const Neutral = 1500

// Mode is the control source reported by the vehicle.
type Mode string

const (
	ModeUnknown Mode = "unknown"
	ModeManual  Mode = "manual"
	ModeAuto    Mode = "auto"
	ModeRC      Mode = "rc"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeUnknown, ModeManual, ModeAuto, ModeRC:
		return true
	}
	return false
}

// IMU is the optional inertial sextuple. It is reported as a unit.
type IMU struct {
	Accel [3]int `json:"accel"`
	Gyro  [3]int `json:"gyro"`
}

// Telemetry is the last known state of the vehicle.
type Telemetry struct {
	Direction        int       `json:"direction"`
	Throttle         int       `json:"throttle"`
	DistanceCM       int       `json:"distance_cm"`
	BatteryVoltage   float64   `json:"battery_voltage"`
	RxActive         bool      `json:"rx_active"`
	ObstacleDetected bool      `json:"obstacle_detected"`
	Mode             Mode      `json:"mode"`
	Timestamp        time.Time `json:"timestamp"`
	IMU              *IMU      `json:"imu"`
}

// DefaultTelemetry is the value held before any telemetry arrives.
func DefaultTelemetry() Telemetry {
	return Telemetry{
		Direction:  Neutral,
		Throttle:   Neutral,
		DistanceCM: -1,
		Mode:       ModeUnknown,
	}
}

// Fields converts a parsed line into a partial update carrying only the
// values a TELEM line supplies.
func (t Telemetry) Fields() TelemetryUpdate {
	return TelemetryUpdate{
		Direction:      &t.Direction,
		Throttle:       &t.Throttle,
		DistanceCM:     &t.DistanceCM,
		BatteryVoltage: &t.BatteryVoltage,
		RxActive:       &t.RxActive,
	}
}

// TelemetryUpdate is a partial telemetry record. Nil fields are left untouched
// when applied.
type TelemetryUpdate struct {
	Direction        *int     `json:"direction,omitempty"`
	Throttle         *int     `json:"throttle,omitempty"`
	DistanceCM       *int     `json:"distance_cm,omitempty"`
	BatteryVoltage   *float64 `json:"battery_voltage,omitempty"`
	RxActive         *bool    `json:"rx_active,omitempty"`
	ObstacleDetected *bool    `json:"obstacle_detected,omitempty"`
	Mode             *Mode    `json:"mode,omitempty"`
	IMU              *IMU     `json:"imu,omitempty"`
}

// Validate rejects values no vehicle can report.
func (u TelemetryUpdate) Validate() error {
	if u.Mode != nil && !u.Mode.Valid() {
		return fmt.Errorf("unknown mode %q", *u.Mode)
	}
	return nil
}

// Empty reports whether the update carries no field.
func (u TelemetryUpdate) Empty() bool {
	return u.Direction == nil && u.Throttle == nil && u.DistanceCM == nil &&
		u.BatteryVoltage == nil && u.RxActive == nil && u.ObstacleDetected == nil &&
		u.Mode == nil && u.IMU == nil
}

// Apply overwrites the fields of t that u carries.
func (u TelemetryUpdate) Apply(t *Telemetry) {
	if u.Direction != nil {
		t.Direction = *u.Direction
	}
	if u.Throttle != nil {
		t.Throttle = *u.Throttle
	}
	if u.DistanceCM != nil {
		t.DistanceCM = *u.DistanceCM
	}
	if u.BatteryVoltage != nil {
		t.BatteryVoltage = *u.BatteryVoltage
	}
	if u.RxActive != nil {
		t.RxActive = *u.RxActive
	}
	if u.ObstacleDetected != nil {
		t.ObstacleDetected = *u.ObstacleDetected
	}
	if u.Mode != nil {
		t.Mode = *u.Mode
	}
	if u.IMU != nil {
		imu := *u.IMU
		t.IMU = &imu
	}
}

// Command is a drive request for the vehicle, in microseconds.
type Command struct {
	Direction int    `json:"direction"`
	Throttle  int    `json:"throttle"`
	Mode      string `json:"mode"`
}

// Stop is the neutral command.
var Stop = Command{Direction: Neutral, Throttle: Neutral, Mode: string(ModeManual)}
