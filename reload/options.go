package reload

import (
	"errors"
	"fmt"
	"net/url"
	"sort"

	"github.com/mitchellh/mapstructure"
)

var ErrInvalidOptions = errors.New("invalid reload server options")

// Options configure a Server. They are usually decoded from a free-form
// map via DecodeOptions, so callers can pass through keys they know about.
type Options struct {
	// Notify shows a small banner in the browser once it is connected.
	Notify bool `mapstructure:"notify"`

	// Open opens the default browser once the server is ready.
	Open bool `mapstructure:"open"`

	// Online binds to all interfaces and announces the external URL.
	// If false, the server is only reachable from localhost.
	Online bool `mapstructure:"online"`

	// Port to listen on. 0 picks a free port.
	Port int `mapstructure:"port"`

	// Proxy is the URL of an existing server, e.g. php -S, to proxy all requests to.
	Proxy string `mapstructure:"proxy"`

	// Server serves static files. It is ignored if Proxy is set.
	Server *StaticOptions `mapstructure:"server"`

	// Unused lists all keys DecodeOptions did not know about.
	Unused []string `mapstructure:"-"`
}

type StaticOptions struct {
	BaseDir string `mapstructure:"base_dir"`
	Index   string `mapstructure:"index"`
}

// DecodeOptions decodes raw into Options.
// Values are weakly typed, so "3000" is a valid port.
func DecodeOptions(raw map[string]any) (Options, error) {
	var (
		opts Options
		meta mapstructure.Metadata
	)

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Metadata:         &meta,
		Result:           &opts,
	})
	if err != nil {
		return Options{}, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}

	if err := decoder.Decode(raw); err != nil {
		return Options{}, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}

	sort.Strings(meta.Unused)
	opts.Unused = meta.Unused

	return opts, nil
}

// Validate reports whether a Server can be created from o.
func (o Options) Validate() error {
	if o.Port < 0 {
		return fmt.Errorf("%w: port must not be negative: %d", ErrInvalidOptions, o.Port)
	}

	if o.Proxy != "" {
		u, err := url.Parse(o.Proxy)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: proxy is not an absolute url: %s", ErrInvalidOptions, o.Proxy)
		}

		return nil
	}

	if o.Server == nil || o.Server.BaseDir == "" {
		return fmt.Errorf("%w: either proxy or server.base_dir is required", ErrInvalidOptions)
	}

	return nil
}
