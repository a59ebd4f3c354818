package app

import (
	"fmt"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/autopeer-io/drivelink/internal/relay/core"
)

func newStatusCommand() *cobra.Command {
	opts := newClientOptions()
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the relay's link state, counters and last telemetry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var snap core.Snapshot
			if err := opts.client().get(cmd.Context(), "/api/status", &snap); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), statusTable(snap))
			return nil
		},
	}
	opts.AddFlags(cmd.Flags())
	return cmd
}

func statusTable(s core.Snapshot) *uitable.Table {
	t := uitable.New()
	t.MaxColWidth = 60

	t.AddRow("STATUS:", s.Status)
	t.AddRow("UPTIME:", (time.Duration(s.UptimeSeconds) * time.Second).String())
	t.AddRow("LINK:", s.LinkState)
	t.AddRow("BRIDGE:", onOff(s.BridgeConnected, s.BridgePort))
	t.AddRow("VEHICLE:", onOff(s.VehicleConnected, s.CurrentVehicle))
	t.AddRow("OBSERVERS:", fmt.Sprintf("%d (%d sessions)", s.ObserverCount, s.ObserverSessions))
	t.AddRow("COMMANDS:", fmt.Sprintf("%d sent, %d dropped", s.CommandsSent, s.CommandsDropped))
	t.AddRow("TELEMETRY:", fmt.Sprintf("%d received", s.TelemetryReceived))
	t.AddRow("EVENTS DROPPED:", s.EventsDropped)

	tel := s.LastTelemetry
	t.AddRow("DIRECTION/THROTTLE:", fmt.Sprintf("%d / %d", tel.Direction, tel.Throttle))
	t.AddRow("DISTANCE:", fmt.Sprintf("%d cm", tel.DistanceCM))
	t.AddRow("BATTERY:", fmt.Sprintf("%.2f V", tel.BatteryVoltage))
	t.AddRow("OBSTACLE:", tel.ObstacleDetected)
	return t
}

func onOff(on bool, detail string) string {
	if !on {
		return "offline"
	}
	if detail == "" {
		return "online"
	}
	return "online (" + detail + ")"
}
