package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/drivelink/pkg/log"
)

// NamedFlagSetOptions is implemented by the option aggregate of a binary.
type NamedFlagSetOptions interface {
	// Flags returns the option groups bound to named flag sets.
	Flags() cliflag.NamedFlagSets

	// Complete fills in derived fields after flags and config are parsed.
	Complete() error

	// Validate checks the completed options.
	Validate() error
}

// LogOptionsGetter is implemented by options that carry logger settings.
// The logger is initialized from them before RunFunc is called.
type LogOptionsGetter interface {
	LogOptions() *log.Options
}

// RunFunc is the application's main body, called after options are ready.
type RunFunc func() error

// App is a cobra command wired to viper-backed options.
type App struct {
	name        string
	shortDesc   string
	description string
	options     NamedFlagSetOptions
	runFunc     RunFunc
	args        cobra.PositionalArgs
	noConfig    bool
	configFile  string
	viper       *viper.Viper
	cmd         *cobra.Command
}

// Option configures an App.
type Option func(*App)

// WithDescription sets the long description of the command.
func WithDescription(desc string) Option {
	return func(a *App) { a.description = desc }
}

// WithOptions binds the option aggregate to flags and the config file.
func WithOptions(opts NamedFlagSetOptions) Option {
	return func(a *App) { a.options = opts }
}

// WithRunFunc sets the function executed once options are validated.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) { a.runFunc = run }
}

// WithDefaultValidArgs rejects positional arguments.
func WithDefaultValidArgs() Option {
	return func(a *App) {
		a.args = func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				if len(arg) > 0 {
					return fmt.Errorf("%q does not take any arguments, got %q", cmd.CommandPath(), args)
				}
			}
			return nil
		}
	}
}

// WithNoConfig disables the --config flag.
func WithNoConfig() Option {
	return func(a *App) { a.noConfig = true }
}

// NewApp creates an App and builds its cobra command.
func NewApp(name, shortDesc string, opts ...Option) *App {
	a := &App{
		name:      name,
		shortDesc: shortDesc,
		viper:     viper.New(),
	}

	for _, o := range opts {
		o(a)
	}

	a.buildCommand()
	return a
}

// Command returns the underlying cobra command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

// Run executes the command and exits the process on failure.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           a.name,
		Short:         a.shortDesc,
		Long:          a.description,
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          a.args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCommand()
		},
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true

	var namedFlagSets cliflag.NamedFlagSets
	if a.options != nil {
		namedFlagSets = a.options.Flags()
		fs := cmd.Flags()
		for _, f := range namedFlagSets.FlagSets {
			fs.AddFlagSet(f)
		}
	}

	if !a.noConfig {
		addConfigFlag(a.name, &a.configFile, namedFlagSets.FlagSet("global"))
		cmd.Flags().AddFlagSet(namedFlagSets.FlagSet("global"))
	}

	cliflag.SetUsageAndHelpFunc(cmd, namedFlagSets, 100)
	a.cmd = cmd
}

func (a *App) runCommand() error {
	if a.options != nil {
		if err := a.loadConfig(); err != nil {
			return err
		}

		if err := a.options.Complete(); err != nil {
			return fmt.Errorf("failed to complete options: %w", err)
		}

		if err := a.options.Validate(); err != nil {
			return fmt.Errorf("invalid options: %w", err)
		}

		if getter, ok := a.options.(LogOptionsGetter); ok {
			log.Init(getter.LogOptions())
		}
	}

	if a.runFunc == nil {
		return nil
	}

	defer func() { _ = log.Sync() }()
	return a.runFunc()
}
