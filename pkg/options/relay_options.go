package options

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*RelayOptions)(nil)

// RelayOptions holds the session and fan-out settings of the relay server.
type RelayOptions struct {
	// ProfilesDir is the directory holding one JSON or YAML file per vehicle.
	ProfilesDir string `json:"profiles-dir" mapstructure:"profiles-dir"`

	// ObserverQueueSize bounds the outbound events buffered per observer.
	// Events beyond it are dropped for that observer only.
	ObserverQueueSize int `json:"observer-queue-size" mapstructure:"observer-queue-size"`

	// BridgeQueueSize bounds the outbound events buffered for the bridge.
	BridgeQueueSize int `json:"bridge-queue-size" mapstructure:"bridge-queue-size"`

	// WriteTimeout is the deadline for a single websocket frame write.
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`

	// PongTimeout closes a session whose peer stops answering pings.
	PongTimeout time.Duration `json:"pong-timeout" mapstructure:"pong-timeout"`

	// MaxMessageSize caps inbound frames; camera frames dominate it.
	MaxMessageSize int64 `json:"max-message-size" mapstructure:"max-message-size"`

	// AllowedOrigins restricts the Origin header of websocket upgrades.
	// Empty allows any origin.
	AllowedOrigins []string `json:"allowed-origins" mapstructure:"allowed-origins"`
}

// NewRelayOptions creates a RelayOptions object with default parameters.
func NewRelayOptions() *RelayOptions {
	return &RelayOptions{
		ProfilesDir:       "config/vehicles",
		ObserverQueueSize: 64,
		BridgeQueueSize:   128,
		WriteTimeout:      5 * time.Second,
		PongTimeout:       30 * time.Second,
		MaxMessageSize:    4 << 20,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *RelayOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error

	if o.ObserverQueueSize <= 0 {
		errs = append(errs, errors.New("relay.observer-queue-size must be positive"))
	}
	if o.BridgeQueueSize <= 0 {
		errs = append(errs, errors.New("relay.bridge-queue-size must be positive"))
	}
	if o.WriteTimeout <= 0 {
		errs = append(errs, errors.New("relay.write-timeout must be positive"))
	}
	if o.PongTimeout <= 0 {
		errs = append(errs, errors.New("relay.pong-timeout must be positive"))
	}
	if o.MaxMessageSize <= 0 {
		errs = append(errs, errors.New("relay.max-message-size must be positive"))
	}

	return errs
}

// AddFlags adds flags related to the relay to the specified FlagSet.
func (o *RelayOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.ProfilesDir, join(prefixes, "relay.profiles-dir"), o.ProfilesDir, "Directory containing vehicle profile files (*.json, *.yaml).")
	fs.IntVar(&o.ObserverQueueSize, join(prefixes, "relay.observer-queue-size"), o.ObserverQueueSize, "Outbound events buffered per observer before events are dropped.")
	fs.IntVar(&o.BridgeQueueSize, join(prefixes, "relay.bridge-queue-size"), o.BridgeQueueSize, "Outbound events buffered for the bridge before commands are dropped.")
	fs.DurationVar(&o.WriteTimeout, join(prefixes, "relay.write-timeout"), o.WriteTimeout, "Deadline for a single websocket write.")
	fs.DurationVar(&o.PongTimeout, join(prefixes, "relay.pong-timeout"), o.PongTimeout, "Close sessions that do not answer pings within this duration.")
	fs.Int64Var(&o.MaxMessageSize, join(prefixes, "relay.max-message-size"), o.MaxMessageSize, "Maximum inbound websocket message size in bytes.")
	fs.StringSliceVar(&o.AllowedOrigins, join(prefixes, "relay.allowed-origins"), o.AllowedOrigins, "Allowed Origin values for websocket upgrades. Empty allows all.")
}
