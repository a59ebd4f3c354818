package core

import (
	"fmt"

	"github.com/autopeer-io/drivelink/internal/relay/metrics"
	"github.com/autopeer-io/drivelink/pkg/wire"
)

// Quick command tags.
const (
	QuickForward  = "forward"
	QuickBackward = "backward"
	QuickLeft     = "left"
	QuickRight    = "right"
	QuickStop     = "stop"
	QuickCenter   = "center"
)

var quickCommands = map[string]wire.Command{
	QuickForward:  {Direction: 1500, Throttle: 1650},
	QuickBackward: {Direction: 1500, Throttle: 1350},
	QuickLeft:     {Direction: 1300, Throttle: 1500},
	QuickRight:    {Direction: 1700, Throttle: 1500},
	QuickStop:     {Direction: 1500, Throttle: 1500},
	QuickCenter:   {Direction: 1500, Throttle: 1500},
}

// QuickCommandFor returns the command a quick tag stands for.
func QuickCommandFor(tag string) (wire.Command, bool) {
	cmd, ok := quickCommands[tag]
	if ok {
		cmd.Mode = string(wire.ModeManual)
	}
	return cmd, ok
}

// ConnectObserver registers s as a fan-out target and sends it the current
// server status.
func (b *Broker) ConnectObserver(s Session) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if o, ok := b.observers[s.ID()]; ok {
		o.session = s
	} else {
		b.observers[s.ID()] = &observer{session: s}
	}
	metrics.ObserverSessions.Set(float64(b.sessionCountLocked()))

	b.sendLocked(s, Event{Name: EventServerStatus, Data: ServerStatus{
		Status:        "connected",
		Timestamp:     b.now(),
		BridgeOnline:  b.bridge != nil,
		VehicleOnline: b.vehicleConnected,
		VehicleID:     b.vehicleID,
	}}, s.ID())
}

// DisconnectObserver forgets the session. Only the observer count changes;
// bridge and vehicle state are untouched.
func (b *Broker) DisconnectObserver(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.goodbyeLocked(id)
	delete(b.observers, id)
	metrics.ObserverSessions.Set(float64(b.sessionCountLocked()))
}

// ObserverHello counts the observer. A session is counted at most once.
func (b *Broker) ObserverHello(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.observers[id]
	if !ok {
		o = &observer{}
		b.observers[id] = o
	}
	if !o.hello {
		o.hello = true
		b.observerCount++
		metrics.ObserversActive.Set(float64(b.observerCount))
		b.logger.Info("Observer joined", "session", id, "observers", b.observerCount)
	}
	return b.observerCount
}

// ObserverGoodbye uncounts the observer. The count never drops below zero.
func (b *Broker) ObserverGoodbye(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.goodbyeLocked(id)
	return b.observerCount
}

func (b *Broker) goodbyeLocked(id string) {
	o, ok := b.observers[id]
	if !ok || !o.hello {
		return
	}
	o.hello = false
	b.observerCount = max(0, b.observerCount-1)
	metrics.ObserversActive.Set(float64(b.observerCount))
	b.logger.Info("Observer left", "session", id, "observers", b.observerCount)
}

func (b *Broker) sessionCountLocked() int {
	n := 0
	for _, o := range b.observers {
		if o.session != nil {
			n++
		}
	}
	return n
}

// SubmitCommand validates cmd against the live vehicle's limits and forwards
// it to the bridge. The check and the hand-off share one critical section, so
// a command is never forwarded to a bridge that was already cleared. Any
// observer may command; the last accepted command wins.
func (b *Broker) SubmitCommand(observerID string, cmd wire.Command) (VehicleCommand, error) {
	if cmd.Mode == "" {
		cmd.Mode = string(wire.ModeManual)
	}

	b.mu.Lock()

	if b.bridge == nil {
		b.mu.Unlock()
		metrics.CommandsTotal.WithLabelValues("no_bridge").Inc()
		return VehicleCommand{}, ErrNoBridge
	}
	if !b.vehicleConnected {
		b.mu.Unlock()
		metrics.CommandsTotal.WithLabelValues("no_vehicle").Inc()
		return VehicleCommand{}, ErrNoVehicle
	}

	limits := b.limitsFor(b.vehicleID)
	if !limits.Allows(cmd.Direction, cmd.Throttle) {
		b.mu.Unlock()
		metrics.CommandsTotal.WithLabelValues("invalid").Inc()
		return VehicleCommand{}, fmt.Errorf("%w: direction %d throttle %d outside [%d,%d]/[%d,%d]",
			ErrInvalidCommand, cmd.Direction, cmd.Throttle, limits.DirMin, limits.DirMax, limits.ThrMin, limits.ThrMax)
	}

	forwarded := VehicleCommand{
		Direction: cmd.Direction,
		Throttle:  cmd.Throttle,
		Mode:      cmd.Mode,
		Timestamp: b.now(),
	}
	b.commandsSent++
	if !b.sendLocked(b.bridge, Event{Name: EventVehicleCommand, Data: forwarded}, b.bridge.ID()) {
		b.commandsDropped++
		b.logger.Warn("Bridge queue full, command dropped", "direction", cmd.Direction, "throttle", cmd.Throttle)
	}
	vehicleID := b.vehicleID

	if o, ok := b.observers[observerID]; ok && o.session != nil {
		b.sendLocked(o.session, Event{Name: EventCommandSent, Data: CommandSent{Status: "ok", Command: forwarded}}, observerID)
	}
	b.mu.Unlock()

	metrics.CommandsTotal.WithLabelValues("sent").Inc()
	b.logger.Debug("Command forwarded", "observer", observerID, "direction", cmd.Direction, "throttle", cmd.Throttle)
	b.notifier.CommandForwarded(vehicleID, forwarded)
	return forwarded, nil
}

// QuickCommand maps a tag to a fixed command and submits it.
func (b *Broker) QuickCommand(observerID, tag string) (VehicleCommand, error) {
	cmd, ok := QuickCommandFor(tag)
	if !ok {
		metrics.CommandsTotal.WithLabelValues("unknown").Inc()
		return VehicleCommand{}, fmt.Errorf("%w: %q", ErrUnknownCommand, tag)
	}
	return b.SubmitCommand(observerID, cmd)
}

// SelectVehicle asks the bridge to connect to the given vehicle. Success only
// means the request was handed to the bridge.
func (b *Broker) SelectVehicle(observerID, vehicleID string) error {
	if vehicleID == "" {
		return fmt.Errorf("%w: vehicle_id is required", ErrInvalidCommand)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bridge == nil {
		return ErrNoBridge
	}

	b.sendLocked(b.bridge, Event{Name: EventConnectVehicle, Data: ConnectVehicle{VehicleID: vehicleID}}, b.bridge.ID())
	b.logger.Info("Vehicle selection requested", "observer", observerID, "vehicle", vehicleID)
	return nil
}
