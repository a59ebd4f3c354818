package options

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*HttpOptions)(nil)

// HttpOptions contains configuration items related to HTTP server startup.
type HttpOptions struct {
	// Network is "tcp", "tcp4", "tcp6" or "unix".
	Network string `json:"network" mapstructure:"network"`

	// Addr is host:port, or a socket path for the unix network.
	Addr string `json:"addr" mapstructure:"addr"`

	// Timeout bounds request header reads on the server and whole requests on
	// the client side (drivelinkctl).
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// ShutdownTimeout is how long in-flight requests get to finish on stop.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// NewHttpOptions creates a HttpOptions object with default parameters.
func NewHttpOptions() *HttpOptions {
	return &HttpOptions{
		Network:         "tcp",
		Addr:            "0.0.0.0:5000",
		Timeout:         30 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *HttpOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Network {
	case "tcp", "tcp4", "tcp6":
		if err := ValidateAddress(o.Addr); err != nil {
			errs = append(errs, fmt.Errorf("http.addr: %w", err))
		}
	case "unix":
		if o.Addr == "" {
			errs = append(errs, errors.New("http.addr must name a socket path for the unix network"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported http.network %q", o.Network))
	}
	if o.Timeout <= 0 {
		errs = append(errs, errors.New("http.timeout must be positive"))
	}
	if o.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("http.shutdown-timeout must not be negative"))
	}
	return errs
}

// AddFlags adds flags related to the HTTP server to the specified FlagSet.
func (o *HttpOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Network, join(prefixes, "http.network"), o.Network, "Listen network of the relay API (tcp, tcp4, tcp6 or unix).")
	fs.StringVar(&o.Addr, join(prefixes, "http.addr"), o.Addr, "Listen address of the relay API, dashboards and websockets.")
	fs.DurationVar(&o.Timeout, join(prefixes, "http.timeout"), o.Timeout, "Header read timeout on the server and request timeout for drivelinkctl.")
	fs.DurationVar(&o.ShutdownTimeout, join(prefixes, "http.shutdown-timeout"), o.ShutdownTimeout,
		"Grace period for in-flight requests when the server stops.")
}
