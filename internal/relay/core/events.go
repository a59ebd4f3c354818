package core

import (
	"time"

	"github.com/autopeer-io/drivelink/pkg/wire"
)

// Outbound event names.
const (
	EventServerStatus       = "server_status"
	EventBridgeConnected    = "bridge_connected"
	EventBridgeDisconnected = "bridge_disconnected"
	EventVehicleStatus      = "vehicle_status"
	EventTelemetryUpdate    = "telemetry_update"
	EventCameraUpdate       = "camera_update"
	EventCommandSent        = "command_sent"
	EventError              = "error"
	EventPong               = "pong"

	EventRegistrationOK   = "registration_ok"
	EventVehicleCommand   = "vehicle_command"
	EventConnectVehicle   = "connect_vehicle"
	EventBridgeSuperseded = "bridge_superseded"
)

// Event is one outbound message. Data is one of the payload types below.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

type ServerStatus struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	BridgeOnline  bool      `json:"bridge_online"`
	VehicleOnline bool      `json:"vehicle_online"`
	VehicleID     string    `json:"vehicle_id,omitempty"`
}

type BridgeConnected struct {
	Timestamp time.Time `json:"timestamp"`
	Port      string    `json:"port"`
	BaudRate  int       `json:"baudrate,omitempty"`
}

type BridgeDisconnected struct {
	Timestamp time.Time `json:"timestamp"`
}

type VehicleStatus struct {
	Connected bool      `json:"connected"`
	VehicleID string    `json:"vehicle_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type CameraUpdate struct {
	Frame     string    `json:"frame"`
	Timestamp time.Time `json:"timestamp"`
}

// VehicleCommand is the command as forwarded to the bridge.
type VehicleCommand struct {
	Direction int       `json:"direction"`
	Throttle  int       `json:"throttle"`
	Mode      string    `json:"mode"`
	Timestamp time.Time `json:"timestamp"`
}

// Command converts the forwarded form back into a wire command.
func (c VehicleCommand) Command() wire.Command {
	return wire.Command{Direction: c.Direction, Throttle: c.Throttle, Mode: c.Mode}
}

type CommandSent struct {
	Status  string         `json:"status"`
	Command VehicleCommand `json:"command"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}

type Pong struct {
	Timestamp time.Time `json:"timestamp"`
}

type RegistrationOK struct {
	ServerTime time.Time `json:"server_time"`
	Message    string    `json:"message"`
}

type ConnectVehicle struct {
	VehicleID string `json:"vehicle_id"`
}

type BridgeSuperseded struct {
	Timestamp time.Time `json:"timestamp"`
}

// NewErrorEvent builds the unicast error reply for a failed request.
func NewErrorEvent(err error) Event {
	return Event{Name: EventError, Data: ErrorMessage{Message: err.Error()}}
}

// NewPongEvent builds the keepalive reply.
func NewPongEvent(now time.Time) Event {
	return Event{Name: EventPong, Data: Pong{Timestamp: now}}
}
