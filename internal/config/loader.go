package config

import (
	stderrors "errors"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"reroot/internal/errors"
)

// configName is the config file name without extension.
const configName = ".reroot"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for reroot settings.
const envPrefix = "REROOT"

// Load layers defaults, an optional config file, REROOT_* environment
// variables and the given command-line flags (highest precedence, only when
// explicitly set) into a Config. If configPath is empty the file is searched
// for in the working directory and $HOME; a missing file is not an error.
// The returned Config is not yet validated.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) || configPath != "" {
			return nil, errors.NewConfigErrorWithPath(configPath, "failed to read config file", err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, errors.NewConfigError("failed to bind flags", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.NewConfigError("failed to decode configuration", err)
	}

	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("root-dir", "")
	v.SetDefault("patterns", []string{})
	v.SetDefault("strict", false)
	v.SetDefault("exclude", []string{})
	v.SetDefault("exclude-dir", DefaultExcludeDirs)
	v.SetDefault("dry-run", false)
	v.SetDefault("backup", false)
	v.SetDefault("dot-prefix", false)
	v.SetDefault("workers", 0)
	v.SetDefault("verbose", false)
	v.SetDefault("debug", false)
	v.SetDefault("quiet", false)
	v.SetDefault("diff", false)
	v.SetDefault("no-color", false)
	v.SetDefault("log", "")
	v.SetDefault("log-format", string(LogFormatText))
	v.SetDefault("revert", false)
	v.SetDefault("apply", false)
}
