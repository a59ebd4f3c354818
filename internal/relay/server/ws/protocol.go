package ws

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/autopeer-io/drivelink/internal/relay/core"
	"github.com/autopeer-io/drivelink/pkg/wire"
)

// Inbound event names.
const (
	EventHello         = "hello"
	EventGoodbye       = "goodbye"
	EventSendCommand   = "send_command"
	EventQuickCommand  = "quick_command"
	EventSelectVehicle = "select_vehicle"
	EventPing          = "ping"

	EventBridgeRegister      = "bridge_register"
	EventVehicleConnected    = "vehicle_connected"
	EventVehicleDisconnected = "vehicle_disconnected"
	EventTelemetry           = "telemetry"
	EventCameraFrame         = "camera_frame"
)

var (
	// ErrMalformed is returned for frames that are not a valid envelope or
	// whose payload does not match the event.
	ErrMalformed = errors.New("malformed message")

	// ErrUnknownEvent is returned for event names the peer's role does not accept.
	ErrUnknownEvent = errors.New("unknown event")
)

// Envelope is the frame layout in both directions: {"event": ..., "data": {...}}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type SendCommandRequest struct {
	Direction *int   `json:"direction"`
	Throttle  *int   `json:"throttle"`
	Mode      string `json:"mode"`
}

// Command fills missing channels with the neutral pulse width.
func (r SendCommandRequest) Command() wire.Command {
	cmd := wire.Command{Direction: wire.Neutral, Throttle: wire.Neutral, Mode: r.Mode}
	if r.Direction != nil {
		cmd.Direction = *r.Direction
	}
	if r.Throttle != nil {
		cmd.Throttle = *r.Throttle
	}
	return cmd
}

type QuickCommandRequest struct {
	Command string `json:"command"`
}

type SelectVehicleRequest struct {
	VehicleID string `json:"vehicle_id"`
}

type BridgeRegisterRequest struct {
	Port     string `json:"port"`
	BaudRate int    `json:"baudrate"`
}

type VehicleConnectedRequest struct {
	VehicleID string `json:"vehicle_id"`
}

type CameraFrameRequest struct {
	Frame string `json:"frame"`
}

// DecodeEnvelope parses one frame. Unknown top-level fields are rejected.
func DecodeEnvelope(frame []byte) (Envelope, error) {
	var env Envelope
	if err := strictDecode(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event name", ErrMalformed)
	}
	return env, nil
}

// DecodeData parses the payload of env into v. An absent or null payload
// leaves v at its zero value.
func DecodeData(env Envelope, v any) error {
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if err := strictDecode(data, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformed, env.Event, err)
	}
	return nil
}

// EncodeEvent renders an outbound event as a frame.
func EncodeEvent(ev core.Event) ([]byte, error) {
	return json.Marshal(ev)
}

func strictDecode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after message")
	}
	return nil
}
