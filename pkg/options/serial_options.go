package options

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*SerialOptions)(nil)

// SerialOptions describes the serial link to the vehicle microcontroller.
type SerialOptions struct {
	Port     string        `json:"port" mapstructure:"port"`
	BaudRate int           `json:"baudrate" mapstructure:"baudrate"`
	Timeout  time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewSerialOptions creates a SerialOptions object with default parameters.
func NewSerialOptions() *SerialOptions {
	return &SerialOptions{
		Port:     "/dev/ttyUSB0",
		BaudRate: 115200,
		Timeout:  time.Second,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *SerialOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Port == "" {
		errs = append(errs, errors.New("serial.port must not be empty"))
	}
	if o.BaudRate <= 0 {
		errs = append(errs, errors.New("serial.baudrate must be positive"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, errors.New("serial.timeout must be positive"))
	}
	return errs
}

// AddFlags adds flags related to the serial link to the specified FlagSet.
func (o *SerialOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Port, join(prefixes, "serial.port"), o.Port, "Serial device the vehicle is attached to.")
	fs.IntVar(&o.BaudRate, join(prefixes, "serial.baudrate"), o.BaudRate, "Serial baud rate.")
	fs.DurationVar(&o.Timeout, join(prefixes, "serial.timeout"), o.Timeout, "Serial read timeout.")
}
