package relay

import (
	"context"

	"github.com/autopeer-io/drivelink/internal/relay/core"
	"github.com/autopeer-io/drivelink/internal/relay/server"
	"github.com/autopeer-io/drivelink/pkg/log"
)

// RelayServer is the main application struct for the relay.
type RelayServer struct {
	broker        *core.Broker
	serverManager *server.Manager
}

// Run blocks until ctx is cancelled or a server fails.
func (r *RelayServer) Run(ctx context.Context) error {
	log.Info("Starting DriveLink relay...")
	err := r.serverManager.Start(ctx)

	snap := r.broker.Snapshot()
	log.Info("Relay stopped",
		"uptime", snap.UptimeSeconds,
		"commands_sent", snap.CommandsSent,
		"telemetry_received", snap.TelemetryReceived,
	)
	return err
}
