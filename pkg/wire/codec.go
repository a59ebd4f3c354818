// Package wire implements the line protocol spoken by the vehicle
// microcontroller over serial or TCP.
//
// Telemetry arrives as
//
//	TELEM:<direction>:<throttle>:<distance_cm>:<battery_v>:<rx>\n
//
// and commands leave as
//
//	CMD:MOVE:<direction>:<throttle>\n
package wire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	prefixTelemetry = "TELEM"
	prefixAck       = "ACK:"
	prefixHeartbeat = "HEARTBEAT:"

	telemetryTokens = 6
)

// ErrParse is matched by every *ParseError.
var ErrParse = errors.New("malformed telemetry line")

// ParseError describes a line that could not be decoded.
type ParseError struct {
	Line   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s %q: %v", ErrParse, e.Reason, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %s %q", ErrParse, e.Reason, e.Line)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// LineKind classifies a raw line received from the vehicle.
type LineKind int

const (
	LineEmpty LineKind = iota
	LineTelemetry
	LineAck
	LineHeartbeat
	LineUnknown
)

func (k LineKind) String() string {
	switch k {
	case LineEmpty:
		return "empty"
	case LineTelemetry:
		return "telemetry"
	case LineAck:
		return "ack"
	case LineHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Classify returns the kind of line after trimming surrounding whitespace.
func Classify(line string) LineKind {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return LineEmpty
	case strings.HasPrefix(line, prefixTelemetry+":"):
		return LineTelemetry
	case strings.HasPrefix(line, prefixAck):
		return LineAck
	case strings.HasPrefix(line, prefixHeartbeat):
		return LineHeartbeat
	default:
		return LineUnknown
	}
}

// ParseTelemetry decodes a TELEM line. Tokens past the sixth are ignored.
// Fields the line does not carry keep their DefaultTelemetry values.
func ParseTelemetry(line string) (Telemetry, error) {
	trimmed := strings.TrimSpace(line)
	parts := strings.Split(trimmed, ":")

	if len(parts) < telemetryTokens {
		return Telemetry{}, &ParseError{Line: trimmed, Reason: fmt.Sprintf("expected %d tokens, got %d", telemetryTokens, len(parts))}
	}
	if parts[0] != prefixTelemetry {
		return Telemetry{}, &ParseError{Line: trimmed, Reason: "missing TELEM prefix"}
	}

	t := DefaultTelemetry()
	ints := []struct {
		name string
		dst  *int
		raw  string
	}{
		{"direction", &t.Direction, parts[1]},
		{"throttle", &t.Throttle, parts[2]},
		{"distance", &t.DistanceCM, parts[3]},
	}
	for _, f := range ints {
		v, err := strconv.Atoi(f.raw)
		if err != nil {
			return Telemetry{}, &ParseError{Line: trimmed, Reason: "invalid " + f.name, Err: err}
		}
		*f.dst = v
	}

	battery, err := strconv.ParseFloat(parts[4], 64)
	if err != nil {
		return Telemetry{}, &ParseError{Line: trimmed, Reason: "invalid battery voltage", Err: err}
	}
	t.BatteryVoltage = battery

	rx, err := strconv.Atoi(parts[5])
	if err != nil {
		return Telemetry{}, &ParseError{Line: trimmed, Reason: "invalid rx flag", Err: err}
	}
	t.RxActive = rx != 0

	return t, nil
}

// FormatCommand renders a command line. It does not validate ranges.
func FormatCommand(cmd Command) string {
	return fmt.Sprintf("CMD:MOVE:%d:%d\n", cmd.Direction, cmd.Throttle)
}
