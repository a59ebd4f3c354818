package core

import "errors"

var (
	// ErrNoBridge is returned when a request needs a registered bridge.
	ErrNoBridge = errors.New("bridge not connected")

	// ErrNoVehicle is returned when a command arrives while no vehicle is live.
	ErrNoVehicle = errors.New("vehicle not connected")

	// ErrInvalidCommand is returned for commands outside the active vehicle limits
	// or requests missing a required value.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrUnknownCommand is returned for an unrecognized quick command tag.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrNotBridge is returned when a bridge-only event comes from a session
	// that is not the registered bridge.
	ErrNotBridge = errors.New("session is not the registered bridge")

	// ErrInvalidTelemetry is returned for telemetry updates with impossible values.
	ErrInvalidTelemetry = errors.New("invalid telemetry")
)
