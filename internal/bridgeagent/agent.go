// Package bridgeagent runs next to the vehicle: it owns the vehicle
// transport and keeps a websocket session to the relay, turning vehicle
// lines into telemetry events and relay commands into vehicle commands.
package bridgeagent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/autopeer-io/drivelink/internal/bridgeagent/metrics"
	"github.com/autopeer-io/drivelink/internal/profile"
	"github.com/autopeer-io/drivelink/internal/relay/core"
	"github.com/autopeer-io/drivelink/internal/relay/server/ws"
	"github.com/autopeer-io/drivelink/internal/vehicle/transport"
	"github.com/autopeer-io/drivelink/pkg/log"
	"github.com/autopeer-io/drivelink/pkg/options"
	"github.com/autopeer-io/drivelink/pkg/wire"
)

// ErrSuperseded stops the agent when another bridge took over the relay.
// Reconnecting would only take the link back and start a tug of war.
var ErrSuperseded = errors.New("another bridge registered with the relay")

// TransportFactory builds the transport described by a vehicle profile.
type TransportFactory func(p *profile.Profile) (transport.Transport, error)

type Agent struct {
	opts     *options.BridgeOptions
	profiles *profile.Store
	factory  TransportFactory
	dialer   *websocket.Dialer
	link     *relayLink
	logger   log.Logger

	mu        sync.Mutex
	vehicle   transport.Transport
	vehicleID string
	live      bool
	changed   chan struct{}
	session   *relaySession
	watched   transport.Transport
	stopWatch context.CancelFunc
}

// NewAgent creates an agent that starts with the given vehicle transport.
// vehicleID may be empty when no profile was selected.
func NewAgent(opts *options.BridgeOptions, profiles *profile.Store, initial transport.Transport, vehicleID string, factory TransportFactory) *Agent {
	logger := log.WithName("bridge")
	return &Agent{
		opts:      opts,
		profiles:  profiles,
		factory:   factory,
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		link:      newRelayLink(logger),
		logger:    logger,
		vehicle:   initial,
		vehicleID: vehicleID,
		changed:   make(chan struct{}),
	}
}

// Run keeps a relay session alive until ctx is done, reconnecting with a
// constant delay. It returns ErrSuperseded if another bridge takes over.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("Starting bridge agent", "relay", a.opts.ServerURL, "vehicle", a.currentVehicleID())

	if a.opts.MetricsAddr != "" {
		stop := a.serveMetrics()
		defer stop()
	}

	if err := a.openVehicle(ctx); err != nil {
		a.logger.Warn("Vehicle not available yet", "err", err)
	}
	defer a.closeVehicle()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	wait.UntilWithContext(ctx, func(ctx context.Context) {
		err := a.runSession(ctx)
		if errors.Is(err, ErrSuperseded) {
			a.logger.Error(err, "Stopping bridge agent")
			cancel(err)
			return
		}
		if ctx.Err() != nil {
			return
		}
		metrics.RelayReconnectsTotal.Inc()
		a.logger.Warn("Relay session ended, reconnecting", "err", err, "delay", a.opts.ReconnectDelay)
	}, a.opts.ReconnectDelay)

	if cause := context.Cause(ctx); errors.Is(cause, ErrSuperseded) {
		return cause
	}
	a.logger.Info("Bridge agent stopped")
	return nil
}

func (a *Agent) serveMetrics() func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: a.opts.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		a.logger.Info("Serving metrics", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error(err, "Metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// runSession dials the relay and serves one session until it breaks.
func (a *Agent) runSession(ctx context.Context) error {
	if !a.vehicleOpen() {
		if err := a.openVehicle(ctx); err != nil {
			a.logger.Debug("Vehicle still unavailable", "err", err)
		}
	}

	conn, _, err := a.dialer.DialContext(ctx, a.opts.ServerURL, nil)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}
	sess := &relaySession{conn: conn}
	a.link.fire(EventDial)
	a.setSession(sess)
	defer func() {
		a.setSession(nil)
		a.link.fire(EventDrop)
	}()
	a.logger.Info("Connected to relay", "url", a.opts.ServerURL)

	info := a.vehicleInfo()
	register := ws.BridgeRegisterRequest{Port: info.Address, BaudRate: info.BaudRate}
	if err := sess.send(ws.EventBridgeRegister, register); err != nil {
		_ = sess.close()
		return fmt.Errorf("register with relay: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil && a.vehicleOpen() {
			_ = sess.send(ws.EventVehicleDisconnected, nil)
		}
		_ = sess.close()
		return nil
	})
	g.Go(func() error { return a.readRelay(gctx, sess) })
	g.Go(func() error { return a.pingLoop(gctx, sess) })
	g.Go(func() error { return a.vehicleLoop(gctx, sess) })
	return g.Wait()
}

func (a *Agent) readRelay(ctx context.Context, sess *relaySession) error {
	for {
		_, frame, err := sess.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read relay: %w", err)
		}
		env, err := ws.DecodeEnvelope(frame)
		if err != nil {
			a.logger.Warn("Ignoring malformed relay message", "err", err)
			continue
		}
		if err := a.handleRelayEvent(ctx, sess, env); err != nil {
			return err
		}
	}
}

func (a *Agent) handleRelayEvent(ctx context.Context, sess *relaySession, env ws.Envelope) error {
	switch env.Event {
	case core.EventRegistrationOK:
		a.link.fire(EventRegister)
		a.logger.Info("Registered with relay")
		a.reportVehicle(sess)

	case core.EventVehicleCommand:
		var cmd core.VehicleCommand
		if err := ws.DecodeData(env, &cmd); err != nil {
			a.logger.Warn("Ignoring malformed command", "err", err)
			return nil
		}
		a.applyCommand(cmd.Command())

	case core.EventConnectVehicle:
		var req core.ConnectVehicle
		if err := ws.DecodeData(env, &req); err != nil {
			a.logger.Warn("Ignoring malformed connect request", "err", err)
			return nil
		}
		a.switchVehicle(ctx, req.VehicleID)
		a.reportVehicle(sess)

	case core.EventBridgeSuperseded:
		return ErrSuperseded

	case core.EventError:
		var msg core.ErrorMessage
		_ = ws.DecodeData(env, &msg)
		a.logger.Warn("Relay rejected a message", "message", msg.Message)

	case core.EventPong:
		// keepalive reply

	default:
		a.logger.Debug("Ignoring relay event", "event", env.Event)
	}
	return nil
}

func (a *Agent) pingLoop(ctx context.Context, sess *relaySession) error {
	ticker := time.NewTicker(a.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := sess.send(ws.EventPing, nil); err != nil {
				return fmt.Errorf("ping relay: %w", err)
			}
		}
	}
}

// vehicleLoop forwards vehicle lines for as long as the session lives,
// following transport swaps and reconnects.
func (a *Agent) vehicleLoop(ctx context.Context, sess *relaySession) error {
	for {
		a.mu.Lock()
		tr, changed := a.vehicle, a.changed
		a.mu.Unlock()

		if tr == nil || !tr.Info().Connected {
			select {
			case <-ctx.Done():
				return nil
			case <-changed:
				continue
			}
		}

		line, err := tr.ReceiveLine(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !errors.Is(err, transport.ErrNotConnected) {
				a.logger.Warn("Vehicle link lost", "err", err)
				a.vehicleLost(tr)
			}
			continue
		}
		a.handleLine(sess, line)
	}
}

func (a *Agent) handleLine(sess *relaySession, line string) {
	kind := wire.Classify(line)
	switch kind {
	case wire.LineEmpty:
		return

	case wire.LineTelemetry:
		t, err := wire.ParseTelemetry(line)
		if err != nil {
			metrics.VehicleLinesTotal.WithLabelValues("invalid").Inc()
			a.logger.Warn("Dropping telemetry line", "err", err)
			return
		}
		if err := sess.send(ws.EventTelemetry, t.Fields()); err != nil {
			a.logger.Debug("Failed to forward telemetry", "err", err)
		}

	case wire.LineAck, wire.LineHeartbeat:
		a.logger.Debug("Vehicle status line", "kind", kind, "line", line)

	default:
		a.logger.Info("Unrecognized vehicle message", "line", line)
	}
	metrics.VehicleLinesTotal.WithLabelValues(kind.String()).Inc()
}

func (a *Agent) applyCommand(cmd wire.Command) {
	a.mu.Lock()
	tr := a.vehicle
	a.mu.Unlock()

	if tr == nil {
		metrics.CommandsAppliedTotal.WithLabelValues("failed").Inc()
		a.logger.Warn("Dropping command, no vehicle transport")
		return
	}
	if err := tr.SendCommand(cmd); err != nil {
		metrics.CommandsAppliedTotal.WithLabelValues("failed").Inc()
		a.logger.Warn("Failed to send command to vehicle", "err", err)
		return
	}
	metrics.CommandsAppliedTotal.WithLabelValues("success").Inc()
	a.logger.Debug("Command sent to vehicle", "direction", cmd.Direction, "throttle", cmd.Throttle)
}

// reportVehicle tells the relay which vehicle is live, if any.
func (a *Agent) reportVehicle(sess *relaySession) {
	if !a.vehicleOpen() {
		return
	}
	req := ws.VehicleConnectedRequest{VehicleID: a.currentVehicleID()}
	if err := sess.send(ws.EventVehicleConnected, req); err != nil {
		a.logger.Debug("Failed to report vehicle", "err", err)
	}
}

// switchVehicle points the agent at another vehicle profile. An unknown id
// only relabels the current transport.
func (a *Agent) switchVehicle(ctx context.Context, id string) {
	a.logger.Info("Relay asked for vehicle", "vehicle", id)

	p, err := a.profiles.Get(id)
	if err != nil {
		a.logger.Warn("No profile for vehicle, keeping current transport", "vehicle", id, "err", err)
		a.mu.Lock()
		a.vehicleID = id
		a.mu.Unlock()
		return
	}

	next, err := a.factory(p)
	if err != nil {
		a.logger.Warn("Cannot build transport for vehicle", "vehicle", id, "err", err)
		return
	}

	a.mu.Lock()
	cur := a.vehicle
	a.vehicleID = id
	if cur != nil && sameEndpoint(cur.Info(), next.Info()) {
		a.mu.Unlock()
	} else {
		a.vehicle = next
		a.live = false
		a.mu.Unlock()
		if cur != nil {
			_ = cur.Disconnect()
			metrics.VehicleConnected.Set(0)
		}
		a.notifyChange()
	}

	if err := a.openVehicle(ctx); err != nil {
		a.logger.Warn("Failed to connect to vehicle", "vehicle", id, "err", err)
	}
}

func sameEndpoint(a, b transport.Info) bool {
	return a.Kind == b.Kind && a.Address == b.Address
}

// openVehicle connects the current transport if it is not already open.
func (a *Agent) openVehicle(ctx context.Context) error {
	a.mu.Lock()
	tr := a.vehicle
	a.mu.Unlock()

	if tr == nil {
		return transport.ErrNotConnected
	}
	if !tr.Info().Connected {
		if err := tr.Connect(ctx); err != nil {
			return err
		}
	}

	a.mu.Lock()
	if a.vehicle == tr {
		a.live = true
	}
	a.mu.Unlock()

	metrics.VehicleConnected.Set(1)
	a.notifyChange()
	a.watch(tr)
	return nil
}

// vehicleLost closes tr if it is still the live transport and tells the
// relay once, however many detectors noticed.
func (a *Agent) vehicleLost(tr transport.Transport) {
	a.mu.Lock()
	if a.vehicle != tr || !a.live {
		a.mu.Unlock()
		return
	}
	a.live = false
	sess := a.session
	a.mu.Unlock()

	_ = tr.Disconnect()
	metrics.VehicleConnected.Set(0)
	a.notifyChange()

	if sess != nil {
		if err := sess.send(ws.EventVehicleDisconnected, nil); err != nil {
			a.logger.Debug("Failed to report vehicle loss", "err", err)
		}
	}
}

// vehicleReturned reopens tr after its device node reappeared.
func (a *Agent) vehicleReturned(tr transport.Transport) {
	a.mu.Lock()
	current := a.vehicle == tr
	sess := a.session
	a.mu.Unlock()
	if !current {
		return
	}

	// The node shows up before udev finishes setting permissions.
	time.Sleep(500 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.openVehicle(ctx); err != nil {
		a.logger.Warn("Failed to reopen vehicle device", "err", err)
		return
	}
	if sess != nil {
		a.reportVehicle(sess)
	}
}

// watch follows the device node of a serial transport.
func (a *Agent) watch(tr transport.Transport) {
	info := tr.Info()
	if !a.opts.WatchDevice || info.Kind != transport.KindSerial {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.watched == tr {
		return
	}
	if a.stopWatch != nil {
		a.stopWatch()
		a.stopWatch = nil
	}

	w, err := newDeviceWatcher(info.Address, func() { a.vehicleLost(tr) }, func() { a.vehicleReturned(tr) }, a.logger)
	if err != nil {
		a.logger.Warn("Cannot watch vehicle device", "device", info.Address, "err", err)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.watched = tr
	a.stopWatch = cancel
	go w.run(ctx)
}

func (a *Agent) closeVehicle() {
	a.mu.Lock()
	tr := a.vehicle
	a.live = false
	if a.stopWatch != nil {
		a.stopWatch()
		a.stopWatch = nil
		a.watched = nil
	}
	a.mu.Unlock()

	if tr != nil {
		_ = tr.Disconnect()
	}
	metrics.VehicleConnected.Set(0)
}

func (a *Agent) notifyChange() {
	a.mu.Lock()
	defer a.mu.Unlock()
	close(a.changed)
	a.changed = make(chan struct{})
}

func (a *Agent) setSession(s *relaySession) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session = s
}

func (a *Agent) vehicleOpen() bool {
	a.mu.Lock()
	tr := a.vehicle
	a.mu.Unlock()
	return tr != nil && tr.Info().Connected
}

func (a *Agent) vehicleInfo() transport.Info {
	a.mu.Lock()
	tr := a.vehicle
	a.mu.Unlock()
	if tr == nil {
		return transport.Info{}
	}
	return tr.Info()
}

func (a *Agent) currentVehicleID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.vehicleID
}

// State reports the relay link state.
func (a *Agent) State() string {
	return a.link.Current()
}
