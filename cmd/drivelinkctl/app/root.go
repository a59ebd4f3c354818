package app

import (
	"io"

	"github.com/spf13/cobra"
)

const (
	defaultServer = "http://127.0.0.1:5000"
)

// NewRootCommand builds the drivelinkctl command tree. Output goes to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "drivelinkctl",
		Short:         "Inspect a DriveLink relay and its vehicle profiles",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.SetOut(out)
	cmd.SetErr(out)

	cmd.AddCommand(
		newStatusCommand(),
		newVehiclesCommand(),
		newProfilesCommand(),
	)
	return cmd
}
