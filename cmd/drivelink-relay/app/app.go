package app

import (
	"fmt"

	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/drivelink/cmd/drivelink-relay/app/options"
	"github.com/autopeer-io/drivelink/pkg/app"
)

const (
	commandName = "drivelink-relay"
	commandDesc = `The DriveLink relay brokers a single remote-controlled vehicle link.

A bridge process next to the vehicle registers over /ws/bridge and streams
telemetry; any number of dashboards connect over /ws/observer, watch the
telemetry and send drive commands. Commands are checked against the vehicle
profile limits before they are forwarded to the bridge.`
)

func NewApp() *app.App {
	opts := options.NewRelayOptions()
	application := app.NewApp(
		commandName,
		"Launch the DriveLink relay server",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.RelayOptions) app.RunFunc {
	return func() error {
		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		server, err := cfg.NewRelayServer()
		if err != nil {
			return fmt.Errorf("failed to create relay server: %w", err)
		}

		return server.Run(ctx)
	}
}
