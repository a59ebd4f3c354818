package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/drivelink/internal/bridgeagent"
	"github.com/autopeer-io/drivelink/pkg/app"
	"github.com/autopeer-io/drivelink/pkg/log"
	"github.com/autopeer-io/drivelink/pkg/options"
)

type BridgeOptions struct {
	BridgeOptions *options.BridgeOptions `json:"bridge" mapstructure:"bridge"`
	SerialOptions *options.SerialOptions `json:"serial" mapstructure:"serial"`
	Log           *log.Options           `json:"log" mapstructure:"log"`
}

var (
	_ app.NamedFlagSetOptions = (*BridgeOptions)(nil)
	_ app.LogOptionsGetter    = (*BridgeOptions)(nil)
)

func NewBridgeOptions() *BridgeOptions {
	return &BridgeOptions{
		BridgeOptions: options.NewBridgeOptions(),
		SerialOptions: options.NewSerialOptions(),
		Log:           log.NewOptions(),
	}
}

func (o *BridgeOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.BridgeOptions.AddFlags(fss.FlagSet("bridge"))
	o.SerialOptions.AddFlags(fss.FlagSet("serial"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *BridgeOptions) Complete() error {
	return nil
}

func (o *BridgeOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.BridgeOptions.Validate()...)
	errs = append(errs, o.SerialOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *BridgeOptions) LogOptions() *log.Options {
	return o.Log
}

func (o *BridgeOptions) Config() (*bridgeagent.Config, error) {
	return &bridgeagent.Config{
		BridgeOptions: o.BridgeOptions,
		SerialOptions: o.SerialOptions,
	}, nil
}
