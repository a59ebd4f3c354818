package app

import (
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/autopeer-io/drivelink/internal/profile"
)

func newVehiclesCommand() *cobra.Command {
	opts := newClientOptions()
	cmd := &cobra.Command{
		Use:   "vehicles",
		Short: "List the vehicle profiles loaded by the relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var profiles []*profile.Profile
			if err := opts.client().get(cmd.Context(), "/api/vehicles", &profiles); err != nil {
				return err
			}
			printProfiles(cmd.OutOrStdout(), profiles)
			return nil
		},
	}
	opts.AddFlags(cmd.Flags())
	return cmd
}

func newProfilesCommand() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Load and check the vehicle profiles in a local directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profiles, errs := profile.LoadAll(dir)
			out := cmd.OutOrStdout()
			printProfiles(out, profiles)
			for _, err := range errs {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			if len(errs) > 0 {
				return fmt.Errorf("%d profile file(s) failed to load", len(errs))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "config/vehicles", "Directory containing vehicle profile files.")
	return cmd
}

func printProfiles(out io.Writer, profiles []*profile.Profile) {
	if len(profiles) == 0 {
		fmt.Fprintln(out, "No vehicle profiles found.")
		return
	}

	t := uitable.New()
	t.MaxColWidth = 40
	t.AddRow("ID", "NAME", "MODE", "ENDPOINT", "DIRECTION", "THROTTLE")
	for _, p := range profiles {
		l := p.CommandLimits()
		t.AddRow(p.ID, p.Name, p.Connection.PreferredMode, endpoint(p),
			fmt.Sprintf("%d-%d", l.DirMin, l.DirMax),
			fmt.Sprintf("%d-%d", l.ThrMin, l.ThrMax))
	}
	fmt.Fprintln(out, t)
}

func endpoint(p *profile.Profile) string {
	if p.Connection.PreferredMode == profile.ModeWiFi {
		return net.JoinHostPort(p.Connection.WiFi.IP, strconv.Itoa(p.Connection.WiFi.Port))
	}
	port := p.Connection.Serial.Port
	if port == "" {
		port = "AUTO"
	}
	if p.Connection.Serial.BaudRate > 0 {
		port += "@" + strconv.Itoa(p.Connection.Serial.BaudRate)
	}
	return port
}
