package mix

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"slices"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// DefaultConfigFile is read, if no other config file is given.
const DefaultConfigFile = "statis.mix.yaml"

var ErrConfigLoadFailed = errors.New("loading configuration failed")

// Config is the build configuration.
// It is intended to be mapped by viper.
type Config struct {
	EntryPoints []string `mapstructure:"entry_points"`
	Outdir      string   `mapstructure:"outdir"`
	Bundle      bool     `mapstructure:"bundle"`
	Minify      bool     `mapstructure:"minify"`
	Sourcemap   bool     `mapstructure:"sourcemap"`
	LogLevel    LogLevel `mapstructure:"log_level"`

	// Extensions holds the configuration record of each extension, by name.
	// It is passed as is to Extension.Register.
	Extensions map[string]map[string]any `mapstructure:"extensions"`
}

type LogLevel string

// LogLevels is the list of all supported esbuild log levels.
func LogLevels() []LogLevel {
	return []LogLevel{"verbose", "debug", "info", "warning", "error", "silent"}
}

func (l LogLevel) esbuild() api.LogLevel {
	switch l {
	case "verbose":
		return api.LogLevelVerbose
	case "debug":
		return api.LogLevelDebug
	case "info":
		return api.LogLevelInfo
	case "error":
		return api.LogLevelError
	case "silent":
		return api.LogLevelSilent
	default:
		return api.LogLevelWarning
	}
}

// DefaultViper returns a new viper instance with all default values
// from Config set.
func DefaultViper() *Viper {
	vip := viper.New()

	vip.SetDefault("entry_points", []string{"source/_assets/js/main.js"})
	vip.SetDefault("outdir", "source/assets/build")
	vip.SetDefault("bundle", true)
	vip.SetDefault("minify", false)
	vip.SetDefault("sourcemap", true)
	vip.SetDefault("log_level", "info")

	return &Viper{Viper: vip}
}

// Viper is a wrapper around viper.Viper for configuration loading.
// The only purpose is to overwrite the Unmarshal method,
// so that values like the log level are validated.
type Viper struct {
	*viper.Viper
}

func (vip *Viper) Unmarshal(rawVal any, _ ...viper.DecoderConfigOption) error {
	err := vip.Viper.Unmarshal(rawVal, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		allowedLogLevelHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return fmt.Errorf("%w: could not decode configuration into struct: %v", ErrConfigLoadFailed, err)
	}

	return nil
}

// LoadConfig reads the configuration from the yaml file at path.
// If required is false, a missing file is not an error and the defaults are used.
func LoadConfig(path string, required bool) (Config, error) {
	vip := DefaultViper()
	vip.SetConfigFile(path)
	vip.SetConfigType("yaml")

	if err := vip.ReadInConfig(); err != nil {
		if required || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrConfigLoadFailed, path, err)
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func allowedLogLevelHookFunc() mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, t reflect.Type, data any) (any, error) {
		if t != reflect.TypeOf(LogLevel("")) {
			return data, nil
		}

		s, _ := data.(string)
		if slices.Contains(LogLevels(), LogLevel(s)) {
			return data, nil
		}

		levels := make([]string, 0, len(LogLevels()))
		for _, l := range LogLevels() {
			levels = append(levels, string(l))
		}

		return data, fmt.Errorf("log_level %q is not allowed, use one of: %s", s, strings.Join(levels, ", ")) //nolint:err113 // accept dynamic error
	}
}
