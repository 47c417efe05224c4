// Package statis is a mix extension for the statis static site generator.
//
// After every esbuild build it runs `statis build -q <env>`, reloads the
// browsers connected to a live reload server and makes esbuild watch the
// site's sources, so that changes to content or templates rebuild the site.
package statis

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/statisphp/esbuild-statis/alog"
	"github.com/statisphp/esbuild-statis/mix"
	"github.com/statisphp/esbuild-statis/reload"
)

// Name is the name the extension is registered under, and the key of its configuration record.
const Name = "statis"

type Option func(*Statis)

func WithLogger(logger alog.Logger) Option {
	return func(s *Statis) {
		s.logger = logger
	}
}

// WithOutput sets where the generator's output is written to. Default is os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(s *Statis) {
		s.out = w
	}
}

// WithRunner replaces the way the generator is run. Default is ExecRunner.
func WithRunner(runner CommandRunner) Option {
	return func(s *Statis) {
		s.runner = runner
	}
}

// WithWorkDir sets the project directory. Default is the current working directory.
func WithWorkDir(dir string) Option {
	return func(s *Statis) {
		s.workDir = dir
	}
}

func WithGetenv(getenv func(string) string) Option {
	return func(s *Statis) {
		s.getenv = getenv
	}
}

// WithBinaryLookup replaces how the statis binary is searched for.
// stat checks the vendor dir, lookPath searches the PATH.
func WithBinaryLookup(stat func(string) (fs.FileInfo, error), lookPath func(string) (string, error)) Option {
	return func(s *Statis) {
		s.stat = stat
		s.lookPath = lookPath
	}
}

func WithOpenBrowser(fn reload.OpenBrowserFunc) Option {
	return func(s *Statis) {
		s.openBrowser = fn
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Statis) {
		s.metrics = m
	}
}

// Statis is the mix extension. Call Register before Plugins.
type Statis struct {
	logger      alog.Logger
	out         io.Writer
	runner      CommandRunner
	workDir     string
	getenv      func(string) string
	stat        func(string) (fs.FileInfo, error)
	lookPath    func(string) (string, error)
	openBrowser reload.OpenBrowserFunc
	metrics     *Metrics

	env        string
	port       int
	bin        string
	opts       Options
	reloadOpts reload.Options
	registered bool

	session   *Session
	siteBuilt *Signal
}

var _ mix.Extension = (*Statis)(nil)

func New(opts ...Option) *Statis {
	s := &Statis{
		logger:      alog.NewNoop(),
		out:         os.Stdout,
		runner:      ExecRunner,
		getenv:      os.Getenv,
		stat:        os.Stat,
		lookPath:    exec.LookPath,
		openBrowser: reload.OpenBrowser,
		session:     &Session{},
		siteBuilt:   &Signal{},
	}

	for _, o := range opts {
		o(s)
	}

	if s.metrics == nil {
		s.metrics = NewMetrics()
	}

	return s
}

// Register resolves the environment, the port and the statis binary
// and merges config over the Defaults.
// It returns ErrBinaryNotFound, if statis is not installed.
func (s *Statis) Register(args mix.Args, config map[string]any) error {
	s.registered = false

	workDir, err := filepath.Abs(s.workDir)
	if err != nil {
		return fmt.Errorf("could not resolve project dir: %w", err)
	}

	s.workDir = workDir
	s.env = ResolveEnvironment(args.Env, s.getenv)
	s.port = ResolvePort(args.Port)

	s.bin, err = s.binaryPath()
	if err != nil {
		return err
	}

	s.opts, err = decodeOptions(MergeConfig(Defaults(), config))
	if err != nil {
		return err
	}

	if s.opts.BrowserSync {
		s.reloadOpts, err = reload.DecodeOptions(s.ReloadConfig())
		if err != nil {
			return fmt.Errorf("%w: browser_sync_options: %v", ErrInvalidConfig, err) //nolint:errorlint // prevent err in api
		}

		if err := s.reloadOpts.Validate(); err != nil {
			return fmt.Errorf("%w: browser_sync_options: %v", ErrInvalidConfig, err) //nolint:errorlint // prevent err in api
		}

		// statis writes the site relative to the project dir.
		if srv := s.reloadOpts.Server; srv != nil && !filepath.IsAbs(srv.BaseDir) {
			srv.BaseDir = filepath.Join(s.workDir, srv.BaseDir)
		}

		if len(s.reloadOpts.Unused) > 0 {
			s.logger.WarnContext(context.Background(), "ignore unknown browser_sync_options",
				slog.Any("keys", s.reloadOpts.Unused))
		}
	}

	s.logger.Log(context.Background(), alog.LevelDebug, "statis registered",
		slog.String("env", s.env),
		slog.Int("port", s.port),
		slog.String("bin", s.bin),
	)

	s.registered = true

	return nil
}

// Plugins returns the plugins to run statis, in order:
// statis, statis-reload if browser_sync is enabled, and statis-watch if any globs are configured.
// Without a successful Register there is nothing to run, and it returns nil.
func (s *Statis) Plugins() []api.Plugin {
	if !s.registered {
		return nil
	}

	plugins := []api.Plugin{s.statisPlugin()}

	if s.opts.BrowserSync {
		plugins = append(plugins, s.reloadPlugin())
	}

	if len(s.opts.Watch) > 0 {
		plugins = append(plugins, s.watchPlugin())
	}

	return plugins
}

// OnSiteBuilt subscribes fn to every completed generator run, failed ones included.
func (s *Statis) OnSiteBuilt(fn func()) {
	s.siteBuilt.Tap(fn)
}

func (s *Statis) Environment() string { return s.env }
func (s *Statis) Port() int           { return s.port }
func (s *Statis) Binary() string      { return s.bin }
func (s *Statis) Options() Options    { return s.opts }
func (s *Statis) Session() *Session   { return s.session }
