package ws

import (
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/autopeer-io/drivelink/internal/relay/core"
	"github.com/autopeer-io/drivelink/internal/relay/metrics"
	"github.com/autopeer-io/drivelink/pkg/log"
	"github.com/autopeer-io/drivelink/pkg/options"
	"github.com/autopeer-io/drivelink/pkg/wire"
)

// Broker is the part of the relay core the websocket layer drives.
type Broker interface {
	ConnectObserver(s core.Session)
	DisconnectObserver(id string)
	ObserverHello(id string) int
	ObserverGoodbye(id string) int
	SubmitCommand(observerID string, cmd wire.Command) (core.VehicleCommand, error)
	QuickCommand(observerID, tag string) (core.VehicleCommand, error)
	SelectVehicle(observerID, vehicleID string) error

	RegisterBridge(s core.Session, port core.PortInfo)
	BridgeDisconnected(s core.Session) bool
	VehicleConnected(s core.Session, vehicleID string) error
	VehicleDisconnected(s core.Session) error
	IngestTelemetry(s core.Session, u wire.TelemetryUpdate) error
	CameraFrame(s core.Session, frame string) error
}

// Handler upgrades HTTP requests to observer and bridge sessions.
type Handler struct {
	broker   Broker
	opts     *options.RelayOptions
	upgrader websocket.Upgrader
	logger   log.Logger
	now      func() time.Time
}

func NewHandler(broker Broker, opts *options.RelayOptions) *Handler {
	h := &Handler{
		broker: broker,
		opts:   opts,
		logger: log.WithName("ws"),
		now:    time.Now,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(h.opts.AllowedOrigins, r.Header.Get("Origin"))
}

// ServeObserver serves one dashboard connection for its whole lifetime.
func (h *Handler) ServeObserver(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("Observer upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	s := newSession(conn, core.RoleObserver, h.opts.ObserverQueueSize, h.opts.WriteTimeout, h.opts.PongTimeout, h.logger)
	go s.writeLoop()
	s.logger.Info("Observer connected", "remote", r.RemoteAddr)

	h.broker.ConnectObserver(s)
	defer func() {
		h.broker.DisconnectObserver(s.ID())
		s.close()
		metrics.SessionDuration.WithLabelValues(string(core.RoleObserver)).Observe(time.Since(s.opened).Seconds())
		s.logger.Info("Observer disconnected")
	}()

	s.readLoop(h.opts.MaxMessageSize, func(env Envelope) error {
		return h.handleObserver(s, env)
	})
}

func (h *Handler) handleObserver(s *session, env Envelope) error {
	switch env.Event {
	case EventHello:
		h.broker.ObserverHello(s.ID())
		return nil

	case EventGoodbye:
		h.broker.ObserverGoodbye(s.ID())
		return nil

	case EventSendCommand:
		var req SendCommandRequest
		if err := DecodeData(env, &req); err != nil {
			return err
		}
		_, err := h.broker.SubmitCommand(s.ID(), req.Command())
		return err

	case EventQuickCommand:
		var req QuickCommandRequest
		if err := DecodeData(env, &req); err != nil {
			return err
		}
		_, err := h.broker.QuickCommand(s.ID(), req.Command)
		return err

	case EventSelectVehicle:
		var req SelectVehicleRequest
		if err := DecodeData(env, &req); err != nil {
			return err
		}
		return h.broker.SelectVehicle(s.ID(), req.VehicleID)

	case EventPing:
		s.Send(core.NewPongEvent(h.now()))
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
}

// ServeBridge serves one bridge connection. The session only gains bridge
// rights once it sends bridge_register.
func (h *Handler) ServeBridge(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("Bridge upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	s := newSession(conn, core.RoleBridge, h.opts.BridgeQueueSize, h.opts.WriteTimeout, h.opts.PongTimeout, h.logger)
	go s.writeLoop()
	s.logger.Info("Bridge session opened", "remote", r.RemoteAddr)

	defer func() {
		h.broker.BridgeDisconnected(s)
		s.close()
		metrics.SessionDuration.WithLabelValues(string(core.RoleBridge)).Observe(time.Since(s.opened).Seconds())
		s.logger.Info("Bridge session closed")
	}()

	s.readLoop(h.opts.MaxMessageSize, func(env Envelope) error {
		return h.handleBridge(s, env)
	})
}

func (h *Handler) handleBridge(s *session, env Envelope) error {
	switch env.Event {
	case EventBridgeRegister:
		var req BridgeRegisterRequest
		if err := DecodeData(env, &req); err != nil {
			return err
		}
		h.broker.RegisterBridge(s, core.PortInfo{Port: req.Port, BaudRate: req.BaudRate})
		return nil

	case EventVehicleConnected:
		var req VehicleConnectedRequest
		if err := DecodeData(env, &req); err != nil {
			return err
		}
		return h.broker.VehicleConnected(s, req.VehicleID)

	case EventVehicleDisconnected:
		return h.broker.VehicleDisconnected(s)

	case EventTelemetry:
		var u wire.TelemetryUpdate
		if err := DecodeData(env, &u); err != nil {
			return err
		}
		if u.Empty() {
			return fmt.Errorf("%w: no fields", core.ErrInvalidTelemetry)
		}
		return h.broker.IngestTelemetry(s, u)

	case EventCameraFrame:
		var req CameraFrameRequest
		if err := DecodeData(env, &req); err != nil {
			return err
		}
		return h.broker.CameraFrame(s, req.Frame)

	case EventPing:
		s.Send(core.NewPongEvent(h.now()))
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
}
