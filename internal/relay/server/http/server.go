package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	middleware "github.com/autopeer-io/drivelink/internal/pkg/middleware/http"
	"github.com/autopeer-io/drivelink/internal/profile"
	"github.com/autopeer-io/drivelink/internal/relay/core"
	"github.com/autopeer-io/drivelink/internal/relay/metrics"
	"github.com/autopeer-io/drivelink/pkg/log"
	"github.com/autopeer-io/drivelink/pkg/options"
	"github.com/autopeer-io/drivelink/pkg/wire"
)

// StatusSource is the read side of the relay core.
type StatusSource interface {
	Snapshot() core.Snapshot
	Telemetry() wire.Telemetry
}

// ProfileSource lists the vehicle profiles known to the relay.
type ProfileSource interface {
	List() []*profile.Profile
	Get(id string) (*profile.Profile, error)
}

// SessionHandler serves the two websocket endpoints.
type SessionHandler interface {
	ServeObserver(w http.ResponseWriter, r *http.Request)
	ServeBridge(w http.ResponseWriter, r *http.Request)
}

type Server struct {
	server   *http.Server
	options  *options.HttpOptions
	status   StatusSource
	profiles ProfileSource
	logger   log.Logger
}

func NewServer(opts *options.HttpOptions, status StatusSource, profiles ProfileSource, sessions SessionHandler) *Server {
	s := &Server{
		options:  opts,
		status:   status,
		profiles: profiles,
		logger:   log.WithName("http"),
	}

	router := mux.NewRouter()

	// Basic Liveness Probe
	router.HandleFunc("/healthz", s.ok).Methods(http.MethodGet)
	// The relay is ready as soon as it serves; a missing bridge is a normal state.
	router.HandleFunc("/readyz", s.ok).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(middleware.Logging(s.logger), middleware.Timeout(opts.Timeout))
	api.HandleFunc("/status", s.getStatus).Methods(http.MethodGet)
	api.HandleFunc("/telemetry", s.getTelemetry).Methods(http.MethodGet)
	api.HandleFunc("/vehicles", s.listVehicles).Methods(http.MethodGet)
	api.HandleFunc("/vehicles/{id}", s.getVehicle).Methods(http.MethodGet)

	// Websocket routes stay outside the middleware chain: the upgrade needs
	// the raw ResponseWriter and sessions outlive any request timeout.
	router.HandleFunc("/ws/observer", sessions.ServeObserver)
	router.HandleFunc("/ws/bridge", sessions.ServeBridge)

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           router,
		ReadHeaderTimeout: opts.Timeout,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen(s.options.Network, s.server.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("Starting HTTP Server", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.options.ShutdownTimeout)
		defer cancel()
		s.logger.Info("Stopping HTTP Server")
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) ok(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.status.Snapshot())
}

func (s *Server) getTelemetry(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.status.Telemetry())
}

func (s *Server) listVehicles(w http.ResponseWriter, _ *http.Request) {
	profiles := s.profiles.List()
	if profiles == nil {
		profiles = []*profile.Profile{}
	}
	s.writeJSON(w, http.StatusOK, profiles)
}

func (s *Server) getVehicle(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.Get(mux.Vars(r)["id"])
	if errors.Is(err, profile.ErrNotFound) {
		s.writeJSON(w, http.StatusNotFound, core.ErrorMessage{Message: err.Error()})
		return
	}
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, core.ErrorMessage{Message: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("Failed to write response", "err", err)
	}
}
