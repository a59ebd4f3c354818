package main

import (
	"os"

	"github.com/autopeer-io/drivelink/cmd/drivelinkctl/app"
)

func main() {
	if err := app.NewRootCommand(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
