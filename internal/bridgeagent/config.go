package bridgeagent

import (
	"fmt"

	"github.com/autopeer-io/drivelink/internal/profile"
	"github.com/autopeer-io/drivelink/internal/vehicle/transport"
	"github.com/autopeer-io/drivelink/pkg/log"
	"github.com/autopeer-io/drivelink/pkg/options"
)

type Config struct {
	BridgeOptions *options.BridgeOptions
	SerialOptions *options.SerialOptions
}

// NewAgent resolves the starting vehicle transport: the selected profile if
// one is named, the serial options otherwise.
func (cfg *Config) NewAgent() (*Agent, error) {
	store := profile.Open(cfg.BridgeOptions.ProfilesDir)
	log.Info("Vehicle profiles loaded", "dir", cfg.BridgeOptions.ProfilesDir, "count", store.Len())

	factory := func(p *profile.Profile) (transport.Transport, error) {
		return transport.New(p, cfg.SerialOptions)
	}

	var initial transport.Transport
	vehicleID := cfg.BridgeOptions.VehicleID
	if vehicleID != "" {
		p, err := store.Get(vehicleID)
		if err != nil {
			return nil, fmt.Errorf("bridge.vehicle-id: %w", err)
		}
		initial, err = factory(p)
		if err != nil {
			return nil, err
		}
	} else {
		s := cfg.SerialOptions
		initial = transport.NewSerial(s.Port, s.BaudRate, s.Timeout)
	}

	return NewAgent(cfg.BridgeOptions, store, initial, vehicleID, factory), nil
}
