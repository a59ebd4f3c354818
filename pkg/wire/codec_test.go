package wire

import (
	"errors"
	"testing"
)

func TestParseTelemetry(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Telemetry
		wantErr bool
	}{
		{
			name: "reference line",
			line: "TELEM:1450:1520:45:11.2:1\n",
			want: Telemetry{Direction: 1450, Throttle: 1520, DistanceCM: 45, BatteryVoltage: 11.2, RxActive: true, Mode: ModeUnknown},
		},
		{
			name: "crlf and rx off",
			line: "TELEM:1500:1500:-1:0:0\r\n",
			want: Telemetry{Direction: 1500, Throttle: 1500, DistanceCM: -1, Mode: ModeUnknown},
		},
		{
			name: "nonzero rx is active",
			line: "TELEM:1000:2000:300:7.4:2",
			want: Telemetry{Direction: 1000, Throttle: 2000, DistanceCM: 300, BatteryVoltage: 7.4, RxActive: true, Mode: ModeUnknown},
		},
		{
			name: "extra tokens ignored",
			line: "TELEM:1450:1520:45:11.2:1:OBST:9",
			want: Telemetry{Direction: 1450, Throttle: 1520, DistanceCM: 45, BatteryVoltage: 11.2, RxActive: true, Mode: ModeUnknown},
		},
		{name: "too few tokens", line: "TELEM:1450:1520:45:11.2", wantErr: true},
		{name: "wrong prefix", line: "TELEX:1450:1520:45:11.2:1", wantErr: true},
		{name: "lowercase prefix", line: "telem:1450:1520:45:11.2:1", wantErr: true},
		{name: "float direction", line: "TELEM:14.5:1520:45:11.2:1", wantErr: true},
		{name: "bad battery", line: "TELEM:1450:1520:45:volts:1", wantErr: true},
		{name: "bad rx", line: "TELEM:1450:1520:45:11.2:yes", wantErr: true},
		{name: "empty", line: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTelemetry(tt.line)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseTelemetry(%q) = %+v, want error", tt.line, got)
				}
				if !errors.Is(err, ErrParse) {
					t.Errorf("error %v does not match ErrParse", err)
				}
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Errorf("error %T is not a *ParseError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTelemetry(%q) unexpected error: %v", tt.line, err)
			}
			if got != tt.want {
				t.Errorf("ParseTelemetry(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestFormatCommand(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{Command{Direction: 1500, Throttle: 1650}, "CMD:MOVE:1500:1650\n"},
		{Stop, "CMD:MOVE:1500:1500\n"},
		{Command{Direction: 999, Throttle: 2500}, "CMD:MOVE:999:2500\n"},
	}

	for _, tt := range tests {
		if got := FormatCommand(tt.cmd); got != tt.want {
			t.Errorf("FormatCommand(%+v) = %q, want %q", tt.cmd, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		line string
		want LineKind
	}{
		{"TELEM:1450:1520:45:11.2:1", LineTelemetry},
		{"  TELEM:broken", LineTelemetry},
		{"ACK:MOVE", LineAck},
		{"HEARTBEAT:42", LineHeartbeat},
		{"\r\n", LineEmpty},
		{"ESP32 ready", LineUnknown},
		{"TELEM", LineUnknown},
	}

	for _, tt := range tests {
		if got := Classify(tt.line); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestFieldsCarriesOnlyLineValues(t *testing.T) {
	parsed, err := ParseTelemetry("TELEM:1300:1600:12:11.9:0")
	if err != nil {
		t.Fatal(err)
	}

	current := DefaultTelemetry()
	current.ObstacleDetected = true
	current.Mode = ModeAuto
	current.IMU = &IMU{Accel: [3]int{1, 2, 3}}

	parsed.Fields().Apply(&current)

	if current.Direction != 1300 || current.Throttle != 1600 || current.DistanceCM != 12 || current.BatteryVoltage != 11.9 || current.RxActive {
		t.Errorf("line values not applied: %+v", current)
	}
	if !current.ObstacleDetected || current.Mode != ModeAuto || current.IMU == nil {
		t.Errorf("fields absent from the line were overwritten: %+v", current)
	}
}

func TestTelemetryUpdateValidate(t *testing.T) {
	bad := Mode("turbo")
	if err := (TelemetryUpdate{Mode: &bad}).Validate(); err == nil {
		t.Error("expected unknown mode to be rejected")
	}

	dist := -5
	u := TelemetryUpdate{DistanceCM: &dist}
	if err := u.Validate(); err != nil {
		t.Errorf("Validate() = %v, want any reported distance accepted", err)
	}
	current := DefaultTelemetry()
	u.Apply(&current)
	if current.DistanceCM != -5 {
		t.Errorf("distance_cm = %d, want -5", current.DistanceCM)
	}

	ok := ModeRC
	if err := (TelemetryUpdate{Mode: &ok}).Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	if !(TelemetryUpdate{}).Empty() {
		t.Error("zero update should be empty")
	}
	if u.Empty() {
		t.Error("update with a distance should not be empty")
	}
}
