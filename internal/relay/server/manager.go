package server

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/drivelink/pkg/log"
)

// Server defines the common interface for everything the relay runs side by
// side (http, mqtt mirror).
type Server interface {
	Start(ctx context.Context) error
}

// Manager manages the lifecycle of all relay servers.
type Manager struct {
	servers []Server
}

func NewManager(servers ...Server) *Manager {
	return &Manager{servers: servers}
}

// Start launches all servers in parallel and waits for termination. The first
// failure cancels the others.
func (m *Manager) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range m.servers {
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}

	log.Info("All servers starting...", "count", len(m.servers))
	return g.Wait()
}
