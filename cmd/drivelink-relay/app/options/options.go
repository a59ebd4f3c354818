package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/drivelink/internal/relay"
	"github.com/autopeer-io/drivelink/pkg/app"
	"github.com/autopeer-io/drivelink/pkg/log"
	"github.com/autopeer-io/drivelink/pkg/options"
)

type RelayOptions struct {
	HttpOptions  *options.HttpOptions  `json:"http" mapstructure:"http"`
	MqttOptions  *options.MqttOptions  `json:"mqtt" mapstructure:"mqtt"`
	RelayOptions *options.RelayOptions `json:"relay" mapstructure:"relay"`
	Log          *log.Options          `json:"log" mapstructure:"log"`
}

var (
	_ app.NamedFlagSetOptions = (*RelayOptions)(nil)
	_ app.LogOptionsGetter    = (*RelayOptions)(nil)
)

func NewRelayOptions() *RelayOptions {
	return &RelayOptions{
		HttpOptions:  options.NewHttpOptions(),
		MqttOptions:  options.NewMqttOptions(),
		RelayOptions: options.NewRelayOptions(),
		Log:          log.NewOptions(),
	}
}

func (o *RelayOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.RelayOptions.AddFlags(fss.FlagSet("relay"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *RelayOptions) Complete() error {
	return nil
}

func (o *RelayOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.RelayOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *RelayOptions) LogOptions() *log.Options {
	return o.Log
}

func (o *RelayOptions) Config() (*relay.Config, error) {
	return &relay.Config{
		HttpOptions:  o.HttpOptions,
		MqttOptions:  o.MqttOptions,
		RelayOptions: o.RelayOptions,
	}, nil
}
