package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/autopeer-io/drivelink/cmd/drivelink-bridge/app"
)

func main() {
	app.NewApp().Run()
}
