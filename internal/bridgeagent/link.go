package bridgeagent

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/autopeer-io/drivelink/internal/bridgeagent/metrics"
	fsmutil "github.com/autopeer-io/drivelink/internal/pkg/util/fsm"
	"github.com/autopeer-io/drivelink/pkg/log"
)

// Relay link states.
const (
	StateOffline    = "offline"
	StateConnected  = "connected"
	StateRegistered = "registered"
)

const (
	// EventDial (Active) the websocket to the relay is open.
	EventDial = "event_dial"
	// EventRegister (Passive) the relay acknowledged bridge_register.
	EventRegister = "event_register"
	// EventDrop the websocket closed for any reason.
	EventDrop = "event_drop"
)

type relayLink struct {
	*fsm.FSM
	logger log.Logger
}

func newRelayLink(logger log.Logger) *relayLink {
	l := &relayLink{logger: logger}

	events := fsm.Events{
		{Name: EventDial, Src: []string{StateOffline}, Dst: StateConnected},
		{Name: EventRegister, Src: []string{StateConnected, StateRegistered}, Dst: StateRegistered},
		{Name: EventDrop, Src: []string{StateConnected, StateRegistered}, Dst: StateOffline},
	}

	callbacks := fsm.Callbacks{
		"enter_state": fsmutil.WrapEvent(l.actionEnterState),
	}

	l.FSM = fsm.NewFSM(StateOffline, events, callbacks)
	metrics.RelayConnectivityStatus.Set(0)
	return l
}

func (l *relayLink) fire(event string) {
	if err := l.Event(context.Background(), event); fsmutil.IsRealError(err) {
		l.logger.Error(err, "Relay link rejected event", "event", event, "state", l.Current())
	}
}

func (l *relayLink) actionEnterState(_ context.Context, e *fsm.Event) error {
	l.logger.Debug("Relay link changed", "from", e.Src, "to", e.Dst)
	if e.Dst == StateRegistered {
		metrics.RelayConnectivityStatus.Set(1)
	} else {
		metrics.RelayConnectivityStatus.Set(0)
	}
	return nil
}
