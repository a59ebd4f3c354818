package core

import (
	"time"

	"github.com/autopeer-io/drivelink/pkg/wire"
)

// Snapshot is a point-in-time copy of the session state.
type Snapshot struct {
	Status               string         `json:"status"`
	StartedAt            time.Time      `json:"started_at"`
	UptimeSeconds        float64        `json:"uptime_seconds"`
	ObserverCount        int            `json:"observer_count"`
	ObserverSessions     int            `json:"observer_sessions"`
	LinkState            string         `json:"link_state"`
	BridgeConnected      bool           `json:"bridge_connected"`
	BridgePort           string         `json:"bridge_port,omitempty"`
	VehicleConnected     bool           `json:"vehicle_connected"`
	CurrentVehicle       string         `json:"current_vehicle,omitempty"`
	CommandsSent         uint64         `json:"commands_sent"`
	CommandsDropped      uint64         `json:"commands_dropped"`
	TelemetryReceived    uint64         `json:"telemetry_received"`
	EventsDropped        uint64         `json:"events_dropped"`
	LastCameraFrameAt    *time.Time     `json:"last_camera_frame_at,omitempty"`
	LastCameraFrameBytes int            `json:"last_camera_frame_bytes,omitempty"`
	LastTelemetry        wire.Telemetry `json:"last_telemetry"`
}

// Snapshot copies the current state for reporting.
func (b *Broker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	s := Snapshot{
		Status:            "online",
		StartedAt:         b.startedAt,
		UptimeSeconds:     now.Sub(b.startedAt).Seconds(),
		ObserverCount:     b.observerCount,
		ObserverSessions:  b.sessionCountLocked(),
		LinkState:         b.link.Current(),
		BridgeConnected:   b.bridge != nil,
		BridgePort:        b.bridgePort.Port,
		VehicleConnected:  b.vehicleConnected,
		CurrentVehicle:    b.vehicleID,
		CommandsSent:      b.commandsSent,
		CommandsDropped:   b.commandsDropped,
		TelemetryReceived: b.telemetryReceived,
		EventsDropped:     b.eventsDropped,
		LastTelemetry:     b.telemetrySnapshotLocked(),
	}
	if !b.lastFrameAt.IsZero() {
		at := b.lastFrameAt
		s.LastCameraFrameAt = &at
		s.LastCameraFrameBytes = b.lastFrameSize
	}
	return s
}

// Telemetry returns a copy of the last telemetry record.
func (b *Broker) Telemetry() wire.Telemetry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.telemetrySnapshotLocked()
}

// LinkStatus returns the current bridge/vehicle liveness.
func (b *Broker) LinkStatus() LinkStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.linkStatusLocked()
}
