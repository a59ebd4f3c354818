package app

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

const configFlagName = "config"

func addConfigFlag(name string, target *string, fs *pflag.FlagSet) {
	fs.StringVarP(target, configFlagName, "c", "",
		fmt.Sprintf("Read configuration from the specified file (yaml, json or toml). "+
			"Every flag can also be set through %s_<FLAG> environment variables.", envPrefix(name)))
}

// envPrefix turns a binary name such as "drivelink-relay" into "DRIVELINK_RELAY".
func envPrefix(name string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
}

// loadConfig merges flags, environment and the config file into the options.
// Precedence: explicitly set flag > environment > config file > flag default.
func (a *App) loadConfig() error {
	v := a.viper

	v.SetEnvPrefix(envPrefix(a.name))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if a.configFile != "" {
		v.SetConfigFile(a.configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %q: %w", a.configFile, err)
		}
	}

	var bindErr error
	a.cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Name == configFlagName || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(f.Name, f)
	})
	if bindErr != nil {
		return fmt.Errorf("failed to bind flags: %w", bindErr)
	}

	if err := v.Unmarshal(a.options); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}

	return nil
}
