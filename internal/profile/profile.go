package profile

import (
	"fmt"
	"strconv"
	"strings"
)

// Connection modes a profile may prefer.
const (
	ModeSerial = "serial"
	ModeWiFi   = "wifi"
)

// Defaults applied to fields a profile file omits.
const (
	DefaultSerialPort = "AUTO"
	DefaultBaudRate   = 115200
	DefaultWiFiPort   = 8888

	DefaultCommandMin = 1000
	DefaultCommandMax = 2000
)

// Limit keys understood in the limits map.
const (
	LimitDirMin = "dir_min"
	LimitDirMax = "dir_max"
	LimitThrMin = "thr_min"
	LimitThrMax = "thr_max"
)

// Profile describes one vehicle. Profiles are loaded once and never mutated.
type Profile struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Type        string     `json:"type" yaml:"type"`
	Description string     `json:"description" yaml:"description"`
	Connection  Connection `json:"connection" yaml:"connection"`

	Capabilities map[string]any `json:"capabilities" yaml:"capabilities"`
	Protocol     map[string]any `json:"protocol" yaml:"protocol"`
	Limits       map[string]any `json:"limits" yaml:"limits"`
}

type Connection struct {
	PreferredMode string `json:"preferred_mode" yaml:"preferred_mode"`
	Serial        Serial `json:"serial" yaml:"serial"`
	WiFi          WiFi   `json:"wifi" yaml:"wifi"`
}

type Serial struct {
	Port     string `json:"port" yaml:"port"`
	BaudRate int    `json:"baudrate" yaml:"baudrate"`
}

type WiFi struct {
	IP      string `json:"ip" yaml:"ip"`
	Port    int    `json:"port" yaml:"port"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// newDefaultProfile returns the zero profile decoders fill in.
func newDefaultProfile() *Profile {
	return &Profile{
		Connection: Connection{
			PreferredMode: ModeSerial,
			Serial:        Serial{Port: DefaultSerialPort, BaudRate: DefaultBaudRate},
			WiFi:          WiFi{Port: DefaultWiFiPort},
		},
		Capabilities: map[string]any{},
		Protocol:     map[string]any{},
		Limits:       map[string]any{},
	}
}

// Validate checks the fields a relay or bridge relies on.
func (p *Profile) Validate() error {
	var missing []string
	if p.ID == "" {
		missing = append(missing, "id")
	}
	if p.Name == "" {
		missing = append(missing, "name")
	}
	if p.Type == "" {
		missing = append(missing, "type")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	switch p.Connection.PreferredMode {
	case ModeSerial:
		if p.Connection.Serial.BaudRate <= 0 {
			return fmt.Errorf("invalid serial baudrate %d", p.Connection.Serial.BaudRate)
		}
	case ModeWiFi:
		if p.Connection.WiFi.Port <= 0 || p.Connection.WiFi.Port > 65535 {
			return fmt.Errorf("invalid wifi port %d", p.Connection.WiFi.Port)
		}
	default:
		return fmt.Errorf("unknown connection mode %q", p.Connection.PreferredMode)
	}

	if _, err := p.commandLimits(); err != nil {
		return err
	}

	return nil
}

// Limits bounds the pulse widths a command may request.
type Limits struct {
	DirMin, DirMax int
	ThrMin, ThrMax int
}

// DefaultLimits accepts the full 1000-2000 µs range on both channels.
func DefaultLimits() Limits {
	return Limits{
		DirMin: DefaultCommandMin, DirMax: DefaultCommandMax,
		ThrMin: DefaultCommandMin, ThrMax: DefaultCommandMax,
	}
}

// Allows reports whether both channels are within bounds, inclusive.
func (l Limits) Allows(direction, throttle int) bool {
	return direction >= l.DirMin && direction <= l.DirMax &&
		throttle >= l.ThrMin && throttle <= l.ThrMax
}

// CommandLimits resolves the command bounds of the profile, falling back to
// DefaultLimits for absent keys. Profiles that passed Validate never fail here.
func (p *Profile) CommandLimits() Limits {
	l, err := p.commandLimits()
	if err != nil {
		return DefaultLimits()
	}
	return l
}

func (p *Profile) commandLimits() (Limits, error) {
	l := DefaultLimits()
	fields := []struct {
		key string
		dst *int
	}{
		{LimitDirMin, &l.DirMin},
		{LimitDirMax, &l.DirMax},
		{LimitThrMin, &l.ThrMin},
		{LimitThrMax, &l.ThrMax},
	}

	for _, f := range fields {
		raw, ok := p.Limits[f.key]
		if !ok {
			continue
		}
		v, err := toInt(raw)
		if err != nil {
			return Limits{}, fmt.Errorf("limit %s: %w", f.key, err)
		}
		*f.dst = v
	}

	if l.DirMin > l.DirMax || l.ThrMin > l.ThrMax {
		return Limits{}, fmt.Errorf("limits are inverted: %+v", l)
	}
	return l, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int(n), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	case fmt.Stringer:
		return strconv.Atoi(n.String())
	default:
		return 0, fmt.Errorf("unsupported value %v (%T)", v, v)
	}
}
