// Package mix runs esbuild with a set of named extensions.
//
// An extension contributes esbuild plugins. Before its plugins are requested,
// each extension is registered with the command line arguments and its own
// configuration record from Config.Extensions.
package mix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/statisphp/esbuild-statis/alog"
)

var (
	ErrExtensionExists = errors.New("extension already registered")
	ErrBuildFailed     = errors.New("build failed")
)

// Args are the command line arguments available to all extensions.
type Args struct {
	// Env is the value of --env. It is empty, if the flag is not given.
	Env string

	// Port is the value of --port. It is 0, if the flag is not given.
	Port int
}

// Extension adds functionality to the build by contributing esbuild plugins.
type Extension interface {
	// Register is called once per build configuration load, before Plugins.
	Register(args Args, config map[string]any) error

	// Plugins returns the plugins to install into esbuild, in order.
	Plugins() []api.Plugin
}

type namedExtension struct {
	name string
	ext  Extension
}

// Mix is the extension host.
type Mix struct {
	logger     alog.Logger
	extensions []namedExtension
}

func New(logger alog.Logger) *Mix {
	if logger == nil {
		logger = alog.NewNoop()
	}

	return &Mix{logger: logger}
}

// Extend registers ext under name. Extensions are invoked in the order they are registered.
func (m *Mix) Extend(name string, ext Extension) error {
	for _, e := range m.extensions {
		if e.name == name {
			return fmt.Errorf("%w: %s", ErrExtensionExists, name)
		}
	}

	m.extensions = append(m.extensions, namedExtension{name: name, ext: ext})

	return nil
}

// Names returns the names of all registered extensions.
func (m *Mix) Names() []string {
	names := make([]string, len(m.extensions))

	for i, e := range m.extensions {
		names[i] = e.name
	}

	return names
}

// Plugins registers all extensions and collects their plugins.
func (m *Mix) Plugins(cfg Config, args Args) ([]api.Plugin, error) {
	var plugins []api.Plugin

	for _, e := range m.extensions {
		if err := e.ext.Register(args, cfg.Extensions[e.name]); err != nil {
			return nil, fmt.Errorf("could not register extension %s: %w", e.name, err)
		}

		p := e.ext.Plugins()
		plugins = append(plugins, p...)

		m.logger.Log(context.Background(), alog.LevelInfo, "extension registered",
			slog.String("extension", e.name),
			slog.Int("plugins", len(p)),
		)
	}

	return plugins, nil
}

// Build runs a single build.
func (m *Mix) Build(ctx context.Context, cfg Config, args Args) error {
	bctx, err := m.context(cfg, args)
	if err != nil {
		return err
	}
	defer bctx.Dispose()

	stop := context.AfterFunc(ctx, bctx.Cancel)
	defer stop()

	result := bctx.Rebuild()
	if len(result.Errors) > 0 {
		return fmt.Errorf("%w: %s", ErrBuildFailed, formatMessages(result.Errors))
	}

	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrBuildFailed, ctx.Err()) //nolint:errorlint // prevent err in api
	}

	return nil
}

// Watch builds and rebuilds on every change, until ctx is cancelled.
func (m *Mix) Watch(ctx context.Context, cfg Config, args Args) error {
	bctx, err := m.context(cfg, args)
	if err != nil {
		return err
	}

	if err := bctx.Watch(api.WatchOptions{}); err != nil {
		bctx.Dispose()

		return fmt.Errorf("%w: could not watch: %v", ErrBuildFailed, err) //nolint:errorlint // prevent err in api
	}

	m.logger.InfoContext(ctx, "watching for changes", slog.Any("entry_points", cfg.EntryPoints))

	<-ctx.Done()

	// Dispose waits for a running build and calls all OnDispose callbacks.
	bctx.Dispose()
	m.logger.InfoContext(context.Background(), "stopped watching")

	return nil
}

func (m *Mix) context(cfg Config, args Args) (api.BuildContext, error) { //nolint:ireturn // esbuild api
	plugins, err := m.Plugins(cfg, args)
	if err != nil {
		return nil, err
	}

	bctx, ctxErr := api.Context(buildOptions(cfg, plugins))
	if ctxErr != nil {
		return nil, fmt.Errorf("%w: %s", ErrBuildFailed, formatMessages(ctxErr.Errors))
	}

	return bctx, nil
}

func buildOptions(cfg Config, plugins []api.Plugin) api.BuildOptions {
	opts := api.BuildOptions{ //nolint:exhaustruct
		EntryPoints:       cfg.EntryPoints,
		Outdir:            cfg.Outdir,
		Bundle:            cfg.Bundle,
		MinifyWhitespace:  cfg.Minify,
		MinifyIdentifiers: cfg.Minify,
		MinifySyntax:      cfg.Minify,
		Write:             true,
		LogLevel:          cfg.LogLevel.esbuild(),
		Plugins:           plugins,
	}

	if cfg.Sourcemap {
		opts.Sourcemap = api.SourceMapLinked
	}

	return opts
}

func formatMessages(msgs []api.Message) string {
	formatted := api.FormatMessages(msgs, api.FormatMessagesOptions{ //nolint:exhaustruct
		Kind: api.ErrorMessage,
	})

	return strings.TrimSpace(strings.Join(formatted, ""))
}
