package core

import (
	"fmt"

	"github.com/autopeer-io/drivelink/internal/relay/metrics"
	"github.com/autopeer-io/drivelink/pkg/wire"
)

// UnknownVehicleID is recorded when a bridge reports a vehicle without an id.
const UnknownVehicleID = "unknown"

// RegisterBridge makes s the exclusive command target. The last registration
// wins: a previously registered bridge is told it was superseded and
// forgotten, and the vehicle behind it is considered gone. A repeated
// registration from the current bridge only refreshes its port and is
// acknowledged again; the link state is left as it is.
func (b *Broker) RegisterBridge(s Session, port PortInfo) {
	b.mu.Lock()

	now := b.now()
	old := b.bridge
	vehicleDropped := false

	if old != nil && old.ID() == s.ID() {
		b.bridgePort = port
		b.sendLocked(s, Event{Name: EventRegistrationOK, Data: RegistrationOK{
			ServerTime: now,
			Message:    "bridge registered successfully",
		}}, s.ID())
		b.mu.Unlock()
		b.logger.Info("Bridge re-registered", "session", s.ID(), "port", port.Port, "baudrate", port.BaudRate)
		return
	}

	if old != nil && old.ID() != s.ID() {
		b.logger.Warn("Bridge superseded by a new registration", "old", old.ID(), "new", s.ID())
		b.sendLocked(old, Event{Name: EventBridgeSuperseded, Data: BridgeSuperseded{Timestamp: now}}, old.ID())
		if b.vehicleConnected {
			b.vehicleConnected = false
			b.vehicleID = ""
			vehicleDropped = true
			b.fireLocked(EventVehicleDown)
		}
	}

	b.bridge = s
	b.bridgePort = port
	b.fireLocked(EventBridgeUp)

	b.sendLocked(s, Event{Name: EventRegistrationOK, Data: RegistrationOK{
		ServerTime: now,
		Message:    "bridge registered successfully",
	}}, s.ID())

	b.broadcastLocked(Event{Name: EventBridgeConnected, Data: BridgeConnected{
		Timestamp: now,
		Port:      port.Port,
		BaudRate:  port.BaudRate,
	}})
	if vehicleDropped {
		b.broadcastLocked(Event{Name: EventVehicleStatus, Data: VehicleStatus{Connected: false, Timestamp: now}})
	}

	status := b.linkChangeLocked()
	b.mu.Unlock()

	b.logger.Info("Bridge registered", "session", s.ID(), "port", port.Port, "baudrate", port.BaudRate)
	b.notifier.LinkChanged(status)
}

// BridgeDisconnected clears the bridge, the vehicle flag and the vehicle id
// in one critical section, then tells every observer. It is a no-op unless
// s is the registered bridge, so a superseded bridge closing late cannot
// clear its successor.
func (b *Broker) BridgeDisconnected(s Session) bool {
	b.mu.Lock()

	if b.bridge == nil || b.bridge.ID() != s.ID() {
		b.mu.Unlock()
		return false
	}

	b.bridge = nil
	b.bridgePort = PortInfo{}
	b.vehicleConnected = false
	b.vehicleID = ""
	b.fireLocked(EventBridgeDown)

	b.broadcastLocked(Event{Name: EventBridgeDisconnected, Data: BridgeDisconnected{Timestamp: b.now()}})

	status := b.linkChangeLocked()
	b.mu.Unlock()

	b.logger.Warn("Bridge disconnected", "session", s.ID())
	b.notifier.LinkChanged(status)
	return true
}

// VehicleConnected records that the bridge reached a vehicle.
func (b *Broker) VehicleConnected(s Session, vehicleID string) error {
	if vehicleID == "" {
		vehicleID = UnknownVehicleID
	}

	b.mu.Lock()
	if !b.isBridgeLocked(s) {
		b.mu.Unlock()
		return ErrNotBridge
	}

	b.vehicleConnected = true
	b.vehicleID = vehicleID
	b.fireLocked(EventVehicleUp)

	b.broadcastLocked(Event{Name: EventVehicleStatus, Data: VehicleStatus{
		Connected: true,
		VehicleID: vehicleID,
		Timestamp: b.now(),
	}})

	status := b.linkChangeLocked()
	b.mu.Unlock()

	b.logger.Info("Vehicle connected", "vehicle", vehicleID)
	b.notifier.LinkChanged(status)
	return nil
}

// VehicleDisconnected records that the bridge lost its vehicle.
func (b *Broker) VehicleDisconnected(s Session) error {
	b.mu.Lock()
	if !b.isBridgeLocked(s) {
		b.mu.Unlock()
		return ErrNotBridge
	}

	previous := b.vehicleID
	if b.vehicleConnected {
		b.fireLocked(EventVehicleDown)
	}
	b.vehicleConnected = false
	b.vehicleID = ""

	b.broadcastLocked(Event{Name: EventVehicleStatus, Data: VehicleStatus{Connected: false, Timestamp: b.now()}})

	status := b.linkChangeLocked()
	b.mu.Unlock()

	b.logger.Warn("Vehicle disconnected", "vehicle", previous)
	b.notifier.LinkChanged(status)
	return nil
}

// IngestTelemetry overwrites the fields u carries, stamps the record and
// fans the snapshot out to every observer.
func (b *Broker) IngestTelemetry(s Session, u wire.TelemetryUpdate) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTelemetry, err)
	}

	b.mu.Lock()
	if !b.isBridgeLocked(s) {
		b.mu.Unlock()
		return ErrNotBridge
	}

	u.Apply(&b.telemetry)
	b.telemetry.Timestamp = b.now()
	b.telemetryReceived++
	snapshot := b.telemetrySnapshotLocked()
	vehicleID := b.vehicleID

	b.broadcastLocked(Event{Name: EventTelemetryUpdate, Data: snapshot})
	b.mu.Unlock()

	metrics.TelemetryReceivedTotal.Inc()
	b.notifier.TelemetryUpdated(vehicleID, snapshot)
	return nil
}

// CameraFrame relays a frame from the bridge to every observer. The bridge
// itself never receives it back.
func (b *Broker) CameraFrame(s Session, frame string) error {
	if frame == "" {
		return fmt.Errorf("%w: empty camera frame", ErrInvalidTelemetry)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.isBridgeLocked(s) {
		return ErrNotBridge
	}

	now := b.now()
	b.lastFrameAt = now
	b.lastFrameSize = len(frame)

	ev := Event{Name: EventCameraUpdate, Data: CameraUpdate{Frame: frame, Timestamp: now}}
	for id, o := range b.observers {
		if o.session == nil || o.session.ID() == s.ID() {
			continue
		}
		b.sendLocked(o.session, ev, id)
	}
	return nil
}

func (b *Broker) isBridgeLocked(s Session) bool {
	return s != nil && b.bridge != nil && b.bridge.ID() == s.ID()
}

// telemetrySnapshotLocked copies the telemetry record, including the IMU.
func (b *Broker) telemetrySnapshotLocked() wire.Telemetry {
	t := b.telemetry
	if t.IMU != nil {
		imu := *t.IMU
		t.IMU = &imu
	}
	return t
}
