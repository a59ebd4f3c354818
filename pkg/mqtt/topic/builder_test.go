package topic

import "testing"

func TestTopicBuilder(t *testing.T) {
	b := NewTopicBuilder("drivelink/v1/")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"telemetry", b.Telemetry("rc_car_01"), "drivelink/v1/telemetry/rc_car_01"},
		{"telemetry without vehicle", b.Telemetry(""), "drivelink/v1/telemetry/unknown"},
		{"telemetry filter", b.TelemetryFilter(), "drivelink/v1/telemetry/+"},
		{"status", b.Status("relay"), "drivelink/v1/status/relay"},
		{"command", b.Command("drone_01"), "drivelink/v1/command/drone_01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
