package app

import (
	"fmt"

	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/drivelink/cmd/drivelink-bridge/app/options"
	"github.com/autopeer-io/drivelink/pkg/app"
)

const (
	commandName = "drivelink-bridge"
	commandDesc = `The DriveLink bridge runs on the machine wired to the vehicle.

It opens the vehicle link (serial port or wifi socket), registers with the
relay over a websocket, forwards telemetry lines as they arrive and writes
the drive commands the relay sends back. The relay connection is retried
forever with a constant delay.`
)

func NewApp() *app.App {
	opts := options.NewBridgeOptions()
	application := app.NewApp(
		commandName,
		"Launch the DriveLink vehicle bridge",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.BridgeOptions) app.RunFunc {
	return func() error {
		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		agent, err := cfg.NewAgent()
		if err != nil {
			return fmt.Errorf("failed to create bridge agent: %w", err)
		}

		return agent.Run(ctx)
	}
}
