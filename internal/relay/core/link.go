package core

import (
	"context"

	"github.com/looplab/fsm"

	fsmutil "github.com/autopeer-io/drivelink/internal/pkg/util/fsm"
	"github.com/autopeer-io/drivelink/internal/relay/metrics"
)

// Link states. A vehicle is only ever live behind a registered bridge.
const (
	LinkNoBridge    = "no_bridge"
	LinkBridgeOnly  = "bridge_only"
	LinkVehicleLive = "vehicle_live"
)

const (
	// EventBridgeUp registers a bridge; from vehicle_live it means a new bridge displaced the old one.
	EventBridgeUp = "event_bridge_up"
	// EventBridgeDown clears the bridge and any vehicle behind it.
	EventBridgeDown = "event_bridge_down"
	// EventVehicleUp marks a vehicle live behind the bridge.
	EventVehicleUp = "event_vehicle_up"
	// EventVehicleDown marks the vehicle gone while the bridge stays.
	EventVehicleDown = "event_vehicle_down"
)

var linkStates = []string{LinkNoBridge, LinkBridgeOnly, LinkVehicleLive}

// linkMachine tracks bridge/vehicle liveness. It is only driven while the
// broker lock is held.
type linkMachine struct {
	*fsm.FSM
}

func newLinkMachine() *linkMachine {
	l := &linkMachine{}

	events := fsm.Events{
		{Name: EventBridgeUp, Src: []string{LinkNoBridge, LinkBridgeOnly, LinkVehicleLive}, Dst: LinkBridgeOnly},
		{Name: EventBridgeDown, Src: []string{LinkBridgeOnly, LinkVehicleLive}, Dst: LinkNoBridge},
		{Name: EventVehicleUp, Src: []string{LinkBridgeOnly, LinkVehicleLive}, Dst: LinkVehicleLive},
		{Name: EventVehicleDown, Src: []string{LinkVehicleLive}, Dst: LinkBridgeOnly},
	}

	callbacks := fsm.Callbacks{
		"enter_state": fsmutil.WrapEvent(l.actionEnterState),
	}

	l.FSM = fsm.NewFSM(LinkNoBridge, events, callbacks)
	recordLinkState(LinkNoBridge)
	return l
}

// fire applies an event. Self-transitions are not errors.
func (l *linkMachine) fire(event string) error {
	err := l.Event(context.Background(), event)
	if fsmutil.IsRealError(err) {
		return err
	}
	return nil
}

func (l *linkMachine) actionEnterState(_ context.Context, e *fsm.Event) error {
	recordLinkState(e.Dst)
	return nil
}

func recordLinkState(current string) {
	for _, s := range linkStates {
		v := 0.0
		if s == current {
			v = 1
		}
		metrics.LinkState.WithLabelValues(s).Set(v)
	}
}
