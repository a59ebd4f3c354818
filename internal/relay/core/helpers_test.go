package core

import (
	"sync"
	"testing"
	"time"

	"github.com/autopeer-io/drivelink/internal/profile"
	"github.com/autopeer-io/drivelink/pkg/wire"
)

type fakeSession struct {
	id   string
	role Role

	mu       sync.Mutex
	events   []Event
	capacity int // 0 means unbounded
	onSend   func(Event)
}

func newObserver(id string) *fakeSession { return &fakeSession{id: id, role: RoleObserver} }
func newBridge(id string) *fakeSession   { return &fakeSession{id: id, role: RoleBridge} }

func (f *fakeSession) ID() string { return f.id }
func (f *fakeSession) Role() Role { return f.role }

func (f *fakeSession) Send(ev Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.capacity > 0 && len(f.events) >= f.capacity {
		return false
	}
	if f.onSend != nil {
		f.onSend(ev)
	}
	f.events = append(f.events, ev)
	return true
}

func (f *fakeSession) all() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.events...)
}

func (f *fakeSession) named(name string) []Event {
	var out []Event
	for _, ev := range f.all() {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

func (f *fakeSession) last() Event {
	evs := f.all()
	if len(evs) == 0 {
		return Event{}
	}
	return evs[len(evs)-1]
}

func (f *fakeSession) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
}

type fixedLimits map[string]profile.Limits

func (f fixedLimits) LimitsFor(id string) profile.Limits {
	if l, ok := f[id]; ok {
		return l
	}
	return profile.DefaultLimits()
}

type recordingNotifier struct {
	mu        sync.Mutex
	telemetry []string
	commands  []VehicleCommand
	links     []LinkStatus
}

func (r *recordingNotifier) TelemetryUpdated(vehicleID string, _ wire.Telemetry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.telemetry = append(r.telemetry, vehicleID)
}

func (r *recordingNotifier) CommandForwarded(_ string, cmd VehicleCommand) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
}

func (r *recordingNotifier) LinkChanged(status LinkStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links = append(r.links, status)
}

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestBroker(t *testing.T, limits LimitsSource, n Notifier) *Broker {
	t.Helper()
	b := NewBroker(limits, n)
	b.now = func() time.Time { return epoch }
	b.startedAt = epoch.Add(-time.Minute)
	return b
}

// liveBroker returns a broker with a registered bridge and a live vehicle.
func liveBroker(t *testing.T, vehicleID string) (*Broker, *fakeSession) {
	t.Helper()
	b := newTestBroker(t, nil, nil)
	br := newBridge("bridge-1")
	b.RegisterBridge(br, PortInfo{Port: "/dev/ttyUSB0", BaudRate: 115200})
	if err := b.VehicleConnected(br, vehicleID); err != nil {
		t.Fatalf("VehicleConnected() error = %v", err)
	}
	br.reset()
	return b, br
}

func intp(v int) *int { return &v }
