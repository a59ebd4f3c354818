package relay

import (
	"fmt"

	"github.com/autopeer-io/drivelink/internal/profile"
	"github.com/autopeer-io/drivelink/internal/relay/core"
	"github.com/autopeer-io/drivelink/internal/relay/notifier"
	"github.com/autopeer-io/drivelink/internal/relay/server"
	"github.com/autopeer-io/drivelink/internal/relay/server/http"
	"github.com/autopeer-io/drivelink/internal/relay/server/ws"
	"github.com/autopeer-io/drivelink/pkg/log"
	"github.com/autopeer-io/drivelink/pkg/options"
)

type Config struct {
	HttpOptions  *options.HttpOptions
	MqttOptions  *options.MqttOptions
	RelayOptions *options.RelayOptions
}

func (cfg *Config) NewRelayServer() (*RelayServer, error) {
	// Vehicle profiles bound the commands the broker accepts.
	store := profile.Open(cfg.RelayOptions.ProfilesDir)
	log.Info("Vehicle profiles loaded", "dir", cfg.RelayOptions.ProfilesDir, "count", store.Len())

	var servers []server.Server
	var mirror core.Notifier
	if cfg.MqttOptions.Enabled() {
		n, err := notifier.NewMQTTNotifier(cfg.MqttOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to init mqtt mirror: %w", err)
		}
		mirror = n
		servers = append(servers, n)
	}

	broker := core.NewBroker(store, mirror)
	sessions := ws.NewHandler(broker, cfg.RelayOptions)
	servers = append(servers, http.NewServer(cfg.HttpOptions, broker, store, sessions))

	return &RelayServer{
		broker:        broker,
		serverManager: server.NewManager(servers...),
	}, nil
}
