package statis

import (
	"errors"
	"fmt"
	"maps"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

var ErrInvalidConfig = errors.New("invalid statis configuration")

// Options is the merged configuration of the extension.
// It is decoded from the configuration record given to Register.
type Options struct {
	// BrowserSync enables the reload server.
	BrowserSync bool `mapstructure:"browser_sync"`

	// Open opens the browser, once the reload server is started.
	Open bool `mapstructure:"open"`

	// Online makes the reload server reachable from the network.
	Online bool `mapstructure:"online"`

	// Proxy is the url of a running server to proxy to, instead of serving build_<env>/.
	Proxy string `mapstructure:"proxy"`

	// Watch is a list of globs of files outside the bundle, which trigger a rebuild on change.
	// Globs starting with ! exclude files.
	Watch []string `mapstructure:"watch"`

	// BrowserSyncOptions are passed as is to the reload server and win over all other values.
	BrowserSyncOptions map[string]any `mapstructure:"browser_sync_options"`
}

// Defaults returns the default configuration record.
func Defaults() map[string]any {
	return map[string]any{
		"browser_sync": true,
		"open":         true,
		"online":       true,
		"proxy":        nil,
		"watch": []string{
			"config.php",
			"source/**/*.md",
			"source/**/*.php",
			"source/**/*.scss",
			"!source/**/cache/*",
		},
		"browser_sync_options": map[string]any{},
	}
}

// MergeConfig returns a shallow merge of config over defaults.
// Keys of config win, no key of defaults is dropped.
// Neither of the given maps is modified.
func MergeConfig(defaults map[string]any, config map[string]any) map[string]any {
	merged := make(map[string]any, len(defaults)+len(config))

	maps.Copy(merged, defaults)
	maps.Copy(merged, config)

	return merged
}

func decodeOptions(raw map[string]any) (Options, error) {
	var opts Options

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       disabledWatchHookFunc(),
		WeaklyTypedInput: true,
		Result:           &opts,
	})
	if err != nil {
		return Options{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := decoder.Decode(raw); err != nil {
		return Options{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return opts, nil
}

// disabledWatchHookFunc allows watch to be set to a boolean:
// false disables watching, true keeps the default globs.
func disabledWatchHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.Bool || t != reflect.TypeOf([]string{}) {
			return data, nil
		}

		if enabled, _ := data.(bool); enabled {
			return Defaults()["watch"], nil
		}

		return []string{}, nil
	}
}
