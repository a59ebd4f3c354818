// Package transport moves newline-terminated text between the bridge and a
// vehicle microcontroller, over a serial line or a TCP socket.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/autopeer-io/drivelink/internal/profile"
	"github.com/autopeer-io/drivelink/pkg/options"
	"github.com/autopeer-io/drivelink/pkg/wire"
)

var (
	// ErrNotConnected is returned when the transport is used before Connect
	// or after Disconnect.
	ErrNotConnected = errors.New("transport not connected")

	// ErrClosed is returned by ReceiveLine once the vehicle side went away.
	ErrClosed = errors.New("transport closed")

	// ErrWiFiDisabled is returned when a profile prefers wifi without enabling it.
	ErrWiFiDisabled = errors.New("wifi is not enabled in the vehicle profile")
)

// Kinds reported in Info.
const (
	KindSerial = "serial"
	KindWiFi   = "wifi"
)

// Info describes an open or configured transport.
type Info struct {
	Kind      string `json:"kind"`
	Address   string `json:"address"`
	BaudRate  int    `json:"baudrate,omitempty"`
	Connected bool   `json:"connected"`
}

// Transport is a line-oriented link to one vehicle. Methods are safe for
// concurrent use; ReceiveLine is meant for a single reader.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect() error
	SendCommand(cmd wire.Command) error
	ReceiveLine(ctx context.Context) (string, error)
	Info() Info
}

// New builds the transport a vehicle profile prefers. A serial port of
// "AUTO" or "" falls back to defaults.Port, or to detection when that is
// also "AUTO".
func New(p *profile.Profile, defaults *options.SerialOptions) (Transport, error) {
	if defaults == nil {
		defaults = options.NewSerialOptions()
	}

	conn := p.Connection
	switch conn.PreferredMode {
	case profile.ModeWiFi:
		if !conn.WiFi.Enabled {
			return nil, fmt.Errorf("vehicle %q: %w", p.ID, ErrWiFiDisabled)
		}
		return NewTCP(conn.WiFi.IP, conn.WiFi.Port), nil

	case profile.ModeSerial, "":
		port := conn.Serial.Port
		if port == "" || port == profile.DefaultSerialPort {
			port = defaults.Port
		}
		baud := conn.Serial.BaudRate
		if baud <= 0 {
			baud = defaults.BaudRate
		}
		return NewSerial(port, baud, defaults.Timeout), nil
	}
	return nil, fmt.Errorf("vehicle %q: unknown connection mode %q", p.ID, conn.PreferredMode)
}
