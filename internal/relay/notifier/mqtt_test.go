package notifier

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/autopeer-io/drivelink/internal/relay/core"
	pkgmqtt "github.com/autopeer-io/drivelink/pkg/mqtt"
	"github.com/autopeer-io/drivelink/pkg/options"
	"github.com/autopeer-io/drivelink/pkg/wire"
)

type fakePublisher struct {
	mu           sync.Mutex
	msgs         []pkgmqtt.Message
	started      bool
	disconnected bool
}

var _ pkgmqtt.Publisher = (*fakePublisher)(nil)

func (f *fakePublisher) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return nil
}

func (f *fakePublisher) Publish(_ context.Context, msg pkgmqtt.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakePublisher) Disconnect(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
}

func (f *fakePublisher) AwaitConnection(context.Context) error { return nil }
func (f *fakePublisher) IsConnected() bool                     { return true }

func (f *fakePublisher) snapshot() []pkgmqtt.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pkgmqtt.Message(nil), f.msgs...)
}

func waitForMessages(t *testing.T, f *fakePublisher, n int) []pkgmqtt.Message {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		msgs := f.snapshot()
		if len(msgs) >= n {
			return msgs
		}
		if time.Now().After(deadline) {
			t.Fatalf("got %d messages, want %d", len(msgs), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func decodeStatus(t *testing.T, msg pkgmqtt.Message) LinkMessage {
	t.Helper()
	var status LinkMessage
	if err := json.Unmarshal(msg.Payload, &status); err != nil {
		t.Fatal(err)
	}
	return status
}

func TestMirrorTopics(t *testing.T) {
	pub := &fakePublisher{}
	n := newMQTTNotifier(pub, options.NewMqttOptions())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Start(ctx) }()

	n.TelemetryUpdated("rc_car_01", wire.DefaultTelemetry())
	n.CommandForwarded("rc_car_01", core.VehicleCommand{Direction: 1600, Throttle: 1500, Mode: "manual"})
	n.LinkChanged(core.LinkStatus{State: "vehicle_live", BridgeOnline: true, VehicleOnline: true, VehicleID: "rc_car_01"})

	msgs := waitForMessages(t, pub, 3)
	want := []pkgmqtt.Message{
		{Topic: "drivelink/v1/telemetry/rc_car_01", QoS: 0},
		{Topic: "drivelink/v1/command/rc_car_01", QoS: 0},
		{Topic: "drivelink/v1/status/drivelink-relay", QoS: 1, Retain: true},
	}
	for i, w := range want {
		if msgs[i].Topic != w.Topic || msgs[i].QoS != w.QoS || msgs[i].Retain != w.Retain {
			t.Errorf("message %d = %s qos=%d retain=%v, want %s qos=%d retain=%v",
				i, msgs[i].Topic, msgs[i].QoS, msgs[i].Retain, w.Topic, w.QoS, w.Retain)
		}
	}

	status := decodeStatus(t, msgs[2])
	if !status.Online || status.State != "vehicle_live" || status.VehicleID != "rc_car_01" {
		t.Errorf("status payload = %+v", status)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start returned %v", err)
	}

	msgs = pub.snapshot()
	last := msgs[len(msgs)-1]
	if last.Topic != "drivelink/v1/status/drivelink-relay" || decodeStatus(t, last).Online {
		t.Errorf("shutdown did not publish offline status: %s %s", last.Topic, last.Payload)
	}
	if !pub.disconnected {
		t.Error("publisher was not disconnected")
	}
}

func TestMirrorUnknownVehicle(t *testing.T) {
	n := newMQTTNotifier(&fakePublisher{}, options.NewMqttOptions())

	n.TelemetryUpdated("", wire.DefaultTelemetry())
	if msg := <-n.queue; msg.Topic != "drivelink/v1/telemetry/unknown" {
		t.Errorf("topic = %q", msg.Topic)
	}
}

func TestMirrorQueueFullDrops(t *testing.T) {
	opts := options.NewMqttOptions()
	opts.QueueSize = 1
	n := newMQTTNotifier(&fakePublisher{}, opts)

	n.TelemetryUpdated("a", wire.DefaultTelemetry())
	n.TelemetryUpdated("b", wire.DefaultTelemetry())

	if got := len(n.queue); got != 1 {
		t.Fatalf("queue length = %d, want 1", got)
	}
	if msg := <-n.queue; msg.Topic != "drivelink/v1/telemetry/a" {
		t.Errorf("kept %q, want the first message", msg.Topic)
	}
}

func TestMirrorReconnectRepublishesStatus(t *testing.T) {
	n := newMQTTNotifier(&fakePublisher{}, options.NewMqttOptions())

	n.reconnected()
	if status := decodeStatus(t, <-n.queue); !status.Online || status.State != "" {
		t.Errorf("status before any link change = %+v", status)
	}

	n.LinkChanged(core.LinkStatus{State: "bridge_only", BridgeOnline: true})
	<-n.queue

	n.reconnected()
	msg := <-n.queue
	if !msg.Retain || msg.QoS != 1 {
		t.Errorf("republished status qos=%d retain=%v", msg.QoS, msg.Retain)
	}
	if status := decodeStatus(t, msg); status.State != "bridge_only" || !status.BridgeOnline {
		t.Errorf("republished status = %+v", status)
	}
}

func TestMirrorDiscardsStaleLinkStatus(t *testing.T) {
	n := newMQTTNotifier(&fakePublisher{}, options.NewMqttOptions())

	// The newer registration reaches the mirror before the older disconnect.
	n.LinkChanged(core.LinkStatus{State: "bridge_only", BridgeOnline: true, Seq: 2})
	n.LinkChanged(core.LinkStatus{State: "no_bridge", Seq: 1})

	if got := len(n.queue); got != 1 {
		t.Fatalf("queued %d statuses, want 1", got)
	}
	if status := decodeStatus(t, <-n.queue); status.State != "bridge_only" || !status.BridgeOnline {
		t.Errorf("published status = %+v", status)
	}

	n.reconnected()
	if status := decodeStatus(t, <-n.queue); status.State != "bridge_only" || !status.BridgeOnline {
		t.Errorf("republished status = %+v, want the newest", status)
	}

	n.LinkChanged(core.LinkStatus{State: "no_bridge", Seq: 3})
	if status := decodeStatus(t, <-n.queue); status.State != "no_bridge" || status.BridgeOnline {
		t.Errorf("status after newer change = %+v", status)
	}
}
