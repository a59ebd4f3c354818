// Package core holds the relay's shared session state: which bridge and
// vehicle are live, which observers are listening, the last telemetry and
// the command path between them.
package core

import (
	"sync"
	"time"

	"github.com/autopeer-io/drivelink/internal/profile"
	"github.com/autopeer-io/drivelink/internal/relay/metrics"
	"github.com/autopeer-io/drivelink/pkg/log"
	"github.com/autopeer-io/drivelink/pkg/wire"
)

// LimitsSource resolves the command limits of a vehicle.
// *profile.Store implements it.
type LimitsSource interface {
	LimitsFor(vehicleID string) profile.Limits
}

type observer struct {
	session Session
	hello   bool
}

// Broker serializes every read and write of the session state behind one
// mutex. Events are handed to sessions with non-blocking sends while the lock
// is held, so fan-out order matches state order and no socket write ever
// happens under the lock.
type Broker struct {
	mu sync.Mutex

	startedAt time.Time

	bridge     Session
	bridgePort PortInfo

	vehicleConnected bool
	vehicleID        string

	telemetry     wire.Telemetry
	lastFrameAt   time.Time
	lastFrameSize int

	observers     map[string]*observer
	observerCount int

	commandsSent      uint64
	commandsDropped   uint64
	telemetryReceived uint64
	eventsDropped     uint64

	link     *linkMachine
	linkSeq  uint64
	limits   LimitsSource
	notifier Notifier
	now      func() time.Time
	logger   log.Logger
}

// NewBroker creates an empty broker. A nil limits source applies the default
// 1000-2000 µs limits to every vehicle; a nil notifier disables mirroring.
func NewBroker(limits LimitsSource, notifier Notifier) *Broker {
	if notifier == nil {
		notifier = nopNotifier{}
	}

	b := &Broker{
		telemetry: wire.DefaultTelemetry(),
		observers: make(map[string]*observer),
		link:      newLinkMachine(),
		limits:    limits,
		notifier:  notifier,
		now:       time.Now,
		logger:    log.WithName("broker"),
	}
	b.startedAt = b.now()
	return b
}

// broadcastLocked hands ev to every observer session. Callers hold b.mu.
func (b *Broker) broadcastLocked(ev Event) {
	for id, o := range b.observers {
		if o.session == nil {
			continue
		}
		b.sendLocked(o.session, ev, id)
	}
}

// sendLocked delivers one event to one session. Callers hold b.mu.
func (b *Broker) sendLocked(s Session, ev Event, id string) bool {
	if s.Send(ev) {
		return true
	}
	b.eventsDropped++
	metrics.EventsDroppedTotal.WithLabelValues(string(s.Role()), ev.Name).Inc()
	b.logger.Debug("Dropped event for slow session", "session", id, "role", s.Role(), "event", ev.Name)
	return false
}

func (b *Broker) linkStatusLocked() LinkStatus {
	return LinkStatus{
		State:         b.link.Current(),
		BridgeOnline:  b.bridge != nil,
		VehicleOnline: b.vehicleConnected,
		VehicleID:     b.vehicleID,
	}
}

// linkChangeLocked stamps the current status with the next sequence number so
// notifiers can discard statuses that arrive after a newer one.
func (b *Broker) linkChangeLocked() LinkStatus {
	b.linkSeq++
	status := b.linkStatusLocked()
	status.Seq = b.linkSeq
	return status
}

func (b *Broker) fireLocked(event string) {
	if err := b.link.fire(event); err != nil {
		b.logger.Error(err, "Link state machine rejected event", "event", event, "state", b.link.Current())
	}
}

func (b *Broker) limitsFor(vehicleID string) profile.Limits {
	if b.limits == nil {
		return profile.DefaultLimits()
	}
	return b.limits.LimitsFor(vehicleID)
}
