package options

import (
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	if err := NewBridgeOptions().Validate(); err != nil {
		t.Fatalf("default options are invalid: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*BridgeOptions)
	}{
		{"http relay url", func(o *BridgeOptions) { o.BridgeOptions.ServerURL = "http://relay:5000/ws/bridge" }},
		{"zero reconnect delay", func(o *BridgeOptions) { o.BridgeOptions.ReconnectDelay = 0 }},
		{"empty serial port", func(o *BridgeOptions) { o.SerialOptions.Port = "" }},
		{"bad log level", func(o *BridgeOptions) { o.Log.Level = "loud" }},
		{"bad metrics addr", func(o *BridgeOptions) { o.BridgeOptions.MetricsAddr = "9100" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewBridgeOptions()
			tt.mutate(o)
			if err := o.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestFlagNames(t *testing.T) {
	fss := NewBridgeOptions().Flags()
	for set, flag := range map[string]string{
		"bridge": "bridge.server-url",
		"serial": "serial.port",
		"log":    "log.level",
	} {
		if fss.FlagSet(set).Lookup(flag) == nil {
			t.Errorf("flag %q missing from set %q", flag, set)
		}
	}
}
