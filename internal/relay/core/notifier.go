package core

import (
	"github.com/autopeer-io/drivelink/pkg/wire"
)

// LinkStatus is the bridge/vehicle liveness published on every change.
type LinkStatus struct {
	State         string `json:"state"`
	BridgeOnline  bool   `json:"bridge_online"`
	VehicleOnline bool   `json:"vehicle_online"`
	VehicleID     string `json:"vehicle_id,omitempty"`

	// Seq increases with every change; zero means unsequenced.
	Seq uint64 `json:"-"`
}

// Notifier mirrors relay activity to an outside system. Implementations must
// return quickly; they are called after the state lock is released, so link
// statuses may arrive out of order and must be ordered by LinkStatus.Seq.
type Notifier interface {
	TelemetryUpdated(vehicleID string, t wire.Telemetry)
	CommandForwarded(vehicleID string, cmd VehicleCommand)
	LinkChanged(status LinkStatus)
}

type nopNotifier struct{}

func (nopNotifier) TelemetryUpdated(string, wire.Telemetry) {}
func (nopNotifier) CommandForwarded(string, VehicleCommand) {}
func (nopNotifier) LinkChanged(LinkStatus)                  {}
