package options

import (
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	if err := NewRelayOptions().Validate(); err != nil {
		t.Fatalf("default options are invalid: %v", err)
	}
}

func TestValidateAggregates(t *testing.T) {
	o := NewRelayOptions()
	o.HttpOptions.Addr = "no-port"
	o.RelayOptions.ObserverQueueSize = 0
	o.MqttOptions.Broker = "not a url"

	err := o.Validate()
	if err == nil {
		t.Fatal("expected an aggregate error")
	}
	if agg, ok := err.(interface{ Errors() []error }); !ok || len(agg.Errors()) < 3 {
		t.Errorf("err = %v, want at least three aggregated errors", err)
	}
}

func TestFlagSets(t *testing.T) {
	fss := NewRelayOptions().Flags()
	for _, name := range []string{"http", "relay", "mqtt", "log"} {
		if _, ok := fss.FlagSets[name]; !ok {
			t.Errorf("missing flag set %q", name)
		}
	}
	if fss.FlagSet("relay").Lookup("relay.profiles-dir") == nil {
		t.Error("relay.profiles-dir flag not registered")
	}
}

func TestConfig(t *testing.T) {
	o := NewRelayOptions()
	cfg, err := o.Config()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RelayOptions != o.RelayOptions || cfg.HttpOptions != o.HttpOptions {
		t.Error("config does not share the option structs")
	}
}
