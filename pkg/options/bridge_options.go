package options

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*BridgeOptions)(nil)

// BridgeOptions configures the bridge agent's link to the relay.
type BridgeOptions struct {
	// ServerURL is the relay's bridge websocket endpoint.
	ServerURL string `json:"server-url" mapstructure:"server-url"`

	// ReconnectDelay is the constant backoff between relay connection attempts.
	ReconnectDelay time.Duration `json:"reconnect-delay" mapstructure:"reconnect-delay"`

	// PingInterval is how often the agent sends keepalive pings.
	PingInterval time.Duration `json:"ping-interval" mapstructure:"ping-interval"`

	// VehicleID selects a profile to connect to on start. Empty means the
	// serial options are used directly.
	VehicleID string `json:"vehicle-id" mapstructure:"vehicle-id"`

	// ProfilesDir is where connect_vehicle requests are resolved.
	ProfilesDir string `json:"profiles-dir" mapstructure:"profiles-dir"`

	// WatchDevice enables unplug detection on the serial device node.
	WatchDevice bool `json:"watch-device" mapstructure:"watch-device"`

	// MetricsAddr serves /metrics when set.
	MetricsAddr string `json:"metrics-addr" mapstructure:"metrics-addr"`
}

// NewBridgeOptions creates a BridgeOptions object with default parameters.
func NewBridgeOptions() *BridgeOptions {
	return &BridgeOptions{
		ServerURL:      "ws://127.0.0.1:5000/ws/bridge",
		ReconnectDelay: 5 * time.Second,
		PingInterval:   time.Second,
		ProfilesDir:    "config/vehicles",
		WatchDevice:    true,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *BridgeOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error

	u, err := url.Parse(o.ServerURL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("invalid bridge.server-url: %w", err))
	case u.Scheme != "ws" && u.Scheme != "wss":
		errs = append(errs, fmt.Errorf("bridge.server-url %q must use ws or wss", o.ServerURL))
	}

	if o.ReconnectDelay <= 0 {
		errs = append(errs, errors.New("bridge.reconnect-delay must be positive"))
	}
	if o.PingInterval <= 0 {
		errs = append(errs, errors.New("bridge.ping-interval must be positive"))
	}
	if o.MetricsAddr != "" {
		if err := ValidateAddress(o.MetricsAddr); err != nil {
			errs = append(errs, fmt.Errorf("bridge.metrics-addr: %w", err))
		}
	}

	return errs
}

// AddFlags adds flags related to the bridge agent to the specified FlagSet.
func (o *BridgeOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.ServerURL, join(prefixes, "bridge.server-url"), o.ServerURL, "Websocket URL of the relay bridge endpoint.")
	fs.DurationVar(&o.ReconnectDelay, join(prefixes, "bridge.reconnect-delay"), o.ReconnectDelay, "Delay between relay reconnection attempts.")
	fs.DurationVar(&o.PingInterval, join(prefixes, "bridge.ping-interval"), o.PingInterval, "Interval between keepalive pings to the relay.")
	fs.StringVar(&o.VehicleID, join(prefixes, "bridge.vehicle-id"), o.VehicleID, "Vehicle profile to connect to on start.")
	fs.StringVar(&o.ProfilesDir, join(prefixes, "bridge.profiles-dir"), o.ProfilesDir, "Directory containing vehicle profile files.")
	fs.BoolVar(&o.WatchDevice, join(prefixes, "bridge.watch-device"), o.WatchDevice, "Detect removal of the serial device node.")
	fs.StringVar(&o.MetricsAddr, join(prefixes, "bridge.metrics-addr"), o.MetricsAddr, "Address to serve Prometheus metrics on. Empty disables it.")
}
