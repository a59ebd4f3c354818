package core

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/autopeer-io/drivelink/internal/profile"
	"github.com/autopeer-io/drivelink/pkg/wire"
)

func TestSubmitCommandWithoutBridge(t *testing.T) {
	b := newTestBroker(t, nil, nil)
	obs := newObserver("obs-1")
	b.ConnectObserver(obs)

	_, err := b.SubmitCommand(obs.ID(), wire.Command{Direction: 1500, Throttle: 1600})
	if !errors.Is(err, ErrNoBridge) {
		t.Fatalf("SubmitCommand() error = %v, want ErrNoBridge", err)
	}
	if got := b.Snapshot().CommandsSent; got != 0 {
		t.Errorf("CommandsSent = %d, want 0", got)
	}
	if len(obs.named(EventCommandSent)) != 0 {
		t.Error("no ack expected for a rejected command")
	}
}

func TestSubmitCommandWithoutVehicle(t *testing.T) {
	b := newTestBroker(t, nil, nil)
	br := newBridge("bridge-1")
	b.RegisterBridge(br, PortInfo{Port: "COM3"})
	br.reset()

	_, err := b.SubmitCommand("obs-1", wire.Command{Direction: 1500, Throttle: 1500})
	if !errors.Is(err, ErrNoVehicle) {
		t.Fatalf("SubmitCommand() error = %v, want ErrNoVehicle", err)
	}
	if len(br.named(EventVehicleCommand)) != 0 {
		t.Error("bridge must not receive a command while no vehicle is live")
	}
}

func TestSubmitCommandValidatesLimits(t *testing.T) {
	tests := []struct {
		name    string
		cmd     wire.Command
		wantErr error
	}{
		{"within defaults", wire.Command{Direction: 1500, Throttle: 1650}, nil},
		{"lower bound inclusive", wire.Command{Direction: 1000, Throttle: 1000}, nil},
		{"upper bound inclusive", wire.Command{Direction: 2000, Throttle: 2000}, nil},
		{"direction below", wire.Command{Direction: 999, Throttle: 1500}, ErrInvalidCommand},
		{"throttle above", wire.Command{Direction: 1500, Throttle: 2001}, ErrInvalidCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, br := liveBroker(t, "rc_car_01")
			_, err := b.SubmitCommand("obs-1", tt.cmd)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SubmitCommand() error = %v, want %v", err, tt.wantErr)
			}
			wantForwarded := 0
			if tt.wantErr == nil {
				wantForwarded = 1
			}
			if got := len(br.named(EventVehicleCommand)); got != wantForwarded {
				t.Errorf("forwarded %d commands, want %d", got, wantForwarded)
			}
		})
	}
}

func TestSubmitCommandUsesVehicleProfileLimits(t *testing.T) {
	limits := fixedLimits{"drone_01": {DirMin: 1200, DirMax: 1800, ThrMin: 1100, ThrMax: 1700}}
	b := newTestBroker(t, limits, nil)
	br := newBridge("bridge-1")
	b.RegisterBridge(br, PortInfo{})
	if err := b.VehicleConnected(br, "drone_01"); err != nil {
		t.Fatal(err)
	}

	if _, err := b.SubmitCommand("obs", wire.Command{Direction: 1500, Throttle: 1750}); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("throttle 1750 error = %v, want ErrInvalidCommand", err)
	}
	if _, err := b.SubmitCommand("obs", wire.Command{Direction: 1200, Throttle: 1700}); err != nil {
		t.Errorf("boundary command error = %v", err)
	}
}

func TestSubmitCommandForwardsAndAcks(t *testing.T) {
	n := &recordingNotifier{}
	b := newTestBroker(t, nil, n)
	br := newBridge("bridge-1")
	b.RegisterBridge(br, PortInfo{})
	_ = b.VehicleConnected(br, "rc_car_01")
	obs := newObserver("obs-1")
	b.ConnectObserver(obs)
	other := newObserver("obs-2")
	b.ConnectObserver(other)
	br.reset()

	got, err := b.SubmitCommand(obs.ID(), wire.Command{Direction: 1400, Throttle: 1600})
	if err != nil {
		t.Fatalf("SubmitCommand() error = %v", err)
	}
	if got.Mode != "manual" || !got.Timestamp.Equal(epoch) {
		t.Errorf("forwarded = %+v, want manual mode stamped now", got)
	}

	cmds := br.named(EventVehicleCommand)
	if len(cmds) != 1 || cmds[0].Data.(VehicleCommand) != got {
		t.Fatalf("bridge received %+v, want one %+v", cmds, got)
	}

	acks := obs.named(EventCommandSent)
	if len(acks) != 1 || acks[0].Data.(CommandSent).Status != "ok" {
		t.Errorf("observer acks = %+v", acks)
	}
	if len(other.named(EventCommandSent)) != 0 {
		t.Error("command_sent must be unicast to the submitting observer")
	}

	if s := b.Snapshot(); s.CommandsSent != 1 {
		t.Errorf("CommandsSent = %d, want 1", s.CommandsSent)
	}
	if len(n.commands) != 1 {
		t.Errorf("notifier saw %d commands, want 1", len(n.commands))
	}
}

func TestQuickCommandMatchesSubmit(t *testing.T) {
	tests := []struct {
		tag      string
		dir, thr int
	}{
		{QuickForward, 1500, 1650},
		{QuickBackward, 1500, 1350},
		{QuickLeft, 1300, 1500},
		{QuickRight, 1700, 1500},
		{QuickStop, 1500, 1500},
		{QuickCenter, 1500, 1500},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			b, br := liveBroker(t, "rc_car_01")
			got, err := b.QuickCommand("obs", tt.tag)
			if err != nil {
				t.Fatalf("QuickCommand(%q) error = %v", tt.tag, err)
			}
			if got.Direction != tt.dir || got.Throttle != tt.thr || got.Mode != "manual" {
				t.Errorf("QuickCommand(%q) = %+v", tt.tag, got)
			}
			if len(br.named(EventVehicleCommand)) != 1 {
				t.Errorf("expected exactly one forwarded command")
			}
		})
	}
}

func TestQuickLeftEqualsExplicitSubmit(t *testing.T) {
	b1, br1 := liveBroker(t, "rc_car_01")
	b2, br2 := liveBroker(t, "rc_car_01")

	if _, err := b1.QuickCommand("obs", QuickLeft); err != nil {
		t.Fatal(err)
	}
	if _, err := b2.SubmitCommand("obs", wire.Command{Direction: 1300, Throttle: 1500}); err != nil {
		t.Fatal(err)
	}

	if br1.last().Data != br2.last().Data {
		t.Errorf("quick left forwarded %+v, submit forwarded %+v", br1.last().Data, br2.last().Data)
	}
}

func TestQuickCommandUnknownTag(t *testing.T) {
	b, br := liveBroker(t, "rc_car_01")
	if _, err := b.QuickCommand("obs", "barrel_roll"); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("error = %v, want ErrUnknownCommand", err)
	}
	if len(br.all()) != 0 {
		t.Error("unknown quick command must not reach the bridge")
	}
}

func TestSelectVehicle(t *testing.T) {
	b := newTestBroker(t, nil, nil)
	if err := b.SelectVehicle("obs", "rc_car_01"); !errors.Is(err, ErrNoBridge) {
		t.Fatalf("SelectVehicle() without bridge = %v, want ErrNoBridge", err)
	}

	br := newBridge("bridge-1")
	b.RegisterBridge(br, PortInfo{})
	br.reset()

	if err := b.SelectVehicle("obs", ""); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("SelectVehicle(empty) = %v, want ErrInvalidCommand", err)
	}
	if err := b.SelectVehicle("obs", "rc_car_01"); err != nil {
		t.Fatalf("SelectVehicle() error = %v", err)
	}

	ev := br.last()
	if ev.Name != EventConnectVehicle || ev.Data.(ConnectVehicle).VehicleID != "rc_car_01" {
		t.Errorf("bridge received %+v", ev)
	}
}

func TestObserverCountNeverNegative(t *testing.T) {
	b := newTestBroker(t, nil, nil)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("obs-%d", i)
		b.ConnectObserver(newObserver(id))
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Goodbye before hello, repeated goodbyes and a final disconnect.
			b.ObserverGoodbye(id)
			b.ObserverHello(id)
			b.ObserverHello(id)
			b.ObserverGoodbye(id)
			b.ObserverGoodbye(id)
			b.DisconnectObserver(id)
		}()
	}
	wg.Wait()

	if got := b.Snapshot().ObserverCount; got != 0 {
		t.Fatalf("ObserverCount = %d, want 0", got)
	}
	if got := b.ObserverGoodbye("never-seen"); got != 0 {
		t.Errorf("goodbye from unknown session gave count %d", got)
	}
}

func TestObserverHelloCountsOncePerSession(t *testing.T) {
	b := newTestBroker(t, nil, nil)
	b.ConnectObserver(newObserver("a"))
	b.ConnectObserver(newObserver("b"))

	b.ObserverHello("a")
	b.ObserverHello("a")
	if got := b.ObserverHello("b"); got != 2 {
		t.Fatalf("count = %d, want 2", got)
	}

	b.DisconnectObserver("a")
	if got := b.Snapshot().ObserverCount; got != 1 {
		t.Errorf("count after disconnect = %d, want 1", got)
	}
}

func TestConnectObserverSendsServerStatus(t *testing.T) {
	b, _ := liveBroker(t, "rc_car_01")
	obs := newObserver("obs")
	b.ConnectObserver(obs)

	evs := obs.all()
	if len(evs) != 1 || evs[0].Name != EventServerStatus {
		t.Fatalf("events = %+v, want one server_status", evs)
	}
	st := evs[0].Data.(ServerStatus)
	if !st.BridgeOnline || !st.VehicleOnline || st.VehicleID != "rc_car_01" {
		t.Errorf("server_status = %+v", st)
	}
}

func TestIngestTelemetryPartialUpdate(t *testing.T) {
	n := &recordingNotifier{}
	b := newTestBroker(t, nil, n)
	br := newBridge("bridge-1")
	b.RegisterBridge(br, PortInfo{})
	_ = b.VehicleConnected(br, "rc_car_01")
	obs := newObserver("obs")
	b.ConnectObserver(obs)

	obstacle := true
	mode := wire.ModeAuto
	if err := b.IngestTelemetry(br, wire.TelemetryUpdate{ObstacleDetected: &obstacle, Mode: &mode}); err != nil {
		t.Fatal(err)
	}

	line, err := wire.ParseTelemetry("TELEM:1450:1520:45:11.2:1")
	if err != nil {
		t.Fatal(err)
	}
	if err := b.IngestTelemetry(br, line.Fields()); err != nil {
		t.Fatal(err)
	}

	got := b.Telemetry()
	want := wire.Telemetry{
		Direction: 1450, Throttle: 1520, DistanceCM: 45, BatteryVoltage: 11.2, RxActive: true,
		ObstacleDetected: true, Mode: wire.ModeAuto, Timestamp: epoch,
	}
	if got != want {
		t.Errorf("Telemetry() = %+v, want %+v", got, want)
	}

	updates := obs.named(EventTelemetryUpdate)
	if len(updates) != 2 {
		t.Fatalf("observer received %d telemetry updates, want 2", len(updates))
	}
	if updates[1].Data.(wire.Telemetry) != want {
		t.Errorf("broadcast snapshot = %+v", updates[1].Data)
	}

	if s := b.Snapshot(); s.TelemetryReceived != 2 {
		t.Errorf("TelemetryReceived = %d, want 2", s.TelemetryReceived)
	}
	if len(n.telemetry) != 2 || n.telemetry[0] != "rc_car_01" {
		t.Errorf("notifier telemetry = %v", n.telemetry)
	}
}

func TestIngestTelemetryRejectsStrangers(t *testing.T) {
	b := newTestBroker(t, nil, nil)
	br := newBridge("bridge-1")
	b.RegisterBridge(br, PortInfo{})

	if err := b.IngestTelemetry(newBridge("impostor"), wire.TelemetryUpdate{Direction: intp(1200)}); !errors.Is(err, ErrNotBridge) {
		t.Errorf("error = %v, want ErrNotBridge", err)
	}

	bad := wire.Mode("warp")
	if err := b.IngestTelemetry(br, wire.TelemetryUpdate{Mode: &bad}); !errors.Is(err, ErrInvalidTelemetry) {
		t.Errorf("error = %v, want ErrInvalidTelemetry", err)
	}

	if got := b.Telemetry(); got.Direction != wire.Neutral || got.Mode != wire.ModeUnknown {
		t.Errorf("rejected updates changed telemetry: %+v", got)
	}
}

func TestSlowObserverDoesNotStallIngestion(t *testing.T) {
	b := newTestBroker(t, nil, nil)
	br := newBridge("bridge-1")
	b.RegisterBridge(br, PortInfo{})

	slow := newObserver("slow")
	slow.capacity = 2
	fast := newObserver("fast")
	b.ConnectObserver(slow)
	b.ConnectObserver(fast)

	for i := 0; i < 10; i++ {
		if err := b.IngestTelemetry(br, wire.TelemetryUpdate{Direction: intp(1000 + i)}); err != nil {
			t.Fatal(err)
		}
	}

	if got := len(fast.named(EventTelemetryUpdate)); got != 10 {
		t.Errorf("fast observer got %d updates, want 10", got)
	}
	if got := len(slow.all()); got != 2 {
		t.Errorf("slow observer holds %d events, want its capacity 2", got)
	}
	if s := b.Snapshot(); s.EventsDropped == 0 || s.TelemetryReceived != 10 {
		t.Errorf("snapshot = %+v", s)
	}
}

func TestCameraFrameExcludesOriginator(t *testing.T) {
	b := newTestBroker(t, nil, nil)
	br := newBridge("bridge-1")
	b.RegisterBridge(br, PortInfo{})
	obs := newObserver("obs")
	b.ConnectObserver(obs)
	br.reset()

	if err := b.CameraFrame(br, "aGVsbG8="); err != nil {
		t.Fatal(err)
	}
	if len(br.named(EventCameraUpdate)) != 0 {
		t.Error("bridge must not receive its own camera frame")
	}
	if got := obs.named(EventCameraUpdate); len(got) != 1 || got[0].Data.(CameraUpdate).Frame != "aGVsbG8=" {
		t.Errorf("observer camera updates = %+v", got)
	}
	if s := b.Snapshot(); s.LastCameraFrameBytes != 8 || s.LastCameraFrameAt == nil {
		t.Errorf("snapshot camera fields = %+v", s)
	}

	if err := b.CameraFrame(br, ""); !errors.Is(err, ErrInvalidTelemetry) {
		t.Errorf("empty frame error = %v", err)
	}
	if err := b.CameraFrame(obs, "x"); !errors.Is(err, ErrNotBridge) {
		t.Errorf("observer frame error = %v", err)
	}
}

func TestLastAcceptedCommandWins(t *testing.T) {
	b, br := liveBroker(t, "rc_car_01")
	a, c := newObserver("obs-a"), newObserver("obs-b")
	b.ConnectObserver(a)
	b.ConnectObserver(c)

	if _, err := b.SubmitCommand(a.ID(), wire.Command{Direction: 1200, Throttle: 1600}); err != nil {
		t.Fatal(err)
	}
	last, err := b.SubmitCommand(c.ID(), wire.Command{Direction: 1800, Throttle: 1400})
	if err != nil {
		t.Fatal(err)
	}

	cmds := br.named(EventVehicleCommand)
	if len(cmds) != 2 {
		t.Fatalf("forwarded %d commands, want 2", len(cmds))
	}
	if cmds[1].Data.(VehicleCommand) != last {
		t.Errorf("most recent forwarded = %+v, want %+v", cmds[1].Data, last)
	}
}

func TestDisconnectRacesSubmitNeverForwardsAfterClear(t *testing.T) {
	for round := 0; round < 20; round++ {
		b, br := liveBroker(t, "rc_car_01")

		var cleared atomic.Bool
		var lateForward atomic.Int64
		br.onSend = func(ev Event) {
			if ev.Name == EventVehicleCommand && cleared.Load() {
				lateForward.Add(1)
			}
		}

		const submitters = 8
		var wg sync.WaitGroup
		var accepted atomic.Int64
		start := make(chan struct{})

		for i := 0; i < submitters; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for j := 0; j < 50; j++ {
					_, err := b.SubmitCommand("obs", wire.Command{Direction: 1500, Throttle: 1500})
					switch {
					case err == nil:
						accepted.Add(1)
					case errors.Is(err, ErrNoBridge):
					default:
						t.Errorf("unexpected error %v", err)
					}
				}
			}()
		}

		close(start)
		b.BridgeDisconnected(br)
		cleared.Store(true)
		wg.Wait()

		if n := lateForward.Load(); n != 0 {
			t.Fatalf("round %d: %d commands forwarded after the bridge was cleared", round, n)
		}
		if got := int64(len(br.named(EventVehicleCommand))); got != accepted.Load() {
			t.Fatalf("round %d: forwarded %d, accepted %d", round, got, accepted.Load())
		}
		if s := b.Snapshot(); s.BridgeConnected || s.VehicleConnected || s.CurrentVehicle != "" {
			t.Fatalf("round %d: state not cleared: %+v", round, s)
		}
	}
}

func TestNilLimitsSourceUsesDefaults(t *testing.T) {
	b := newTestBroker(t, nil, nil)
	if got := b.limitsFor("anything"); got != profile.DefaultLimits() {
		t.Errorf("limitsFor() = %+v", got)
	}
}
