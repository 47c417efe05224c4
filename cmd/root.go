// Package cmd is the statis-mix command line interface.
package cmd

import (
	"context"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	statis "github.com/statisphp/esbuild-statis"
	"github.com/statisphp/esbuild-statis/alog"
	"github.com/statisphp/esbuild-statis/mix"
)

// rootFlags are the persistent flags shared by all commands.
type rootFlags struct {
	env     string
	port    int
	config  string
	verbose bool
}

func (f *rootFlags) args() mix.Args {
	return mix.Args{Env: f.env, Port: f.port}
}

// logger writes to the command's stderr. Verbose shows the debug logs of statis.
func (f *rootFlags) logger(cmd *cobra.Command) alog.Logger {
	logger := alog.NewDevelopment(cmd.ErrOrStderr(), slog.LevelInfo)

	if f.verbose {
		alog.Unwrap(logger).SetLevel(alog.LevelDebug)
	}

	return logger
}

// loadConfig reads the config file. Only an explicitly given file is required to exist.
func (f *rootFlags) loadConfig(cmd *cobra.Command) (mix.Config, error) {
	return mix.LoadConfig(f.config, cmd.Flags().Changed("config"))
}

func newRootCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statis-mix",
		Short: "statis-mix bundles your assets with esbuild and builds your statis site.",
		Long: `Bundle JavaScript and CSS with esbuild and rebuild the statis site on every change.
Connected browsers reload once the site is built.`,
		Args:                  cobra.NoArgs,
		DisableFlagsInUseLine: true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&flags.env, "env", "", "statis environment to build, default is $"+statis.EnvVar+" or local")
	cmd.PersistentFlags().IntVar(&flags.port, "port", 0, "port of the reload server (default 3000)")
	cmd.PersistentFlags().StringVar(&flags.config, "config", mix.DefaultConfigFile, "config file")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "show debug output")

	return cmd
}

// NewCLI initialises the complete statis-mix cli with its commands and returns the root command.
// The options are passed to the statis extension.
func NewCLI(osSignal <-chan os.Signal, opts ...statis.Option) *cobra.Command {
	flags := &rootFlags{}

	rootCmd := newRootCmd(flags)
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newBuildCmd(flags, osSignal, opts))
	rootCmd.AddCommand(newWatchCmd(flags, osSignal, opts))

	return rootCmd
}

// Execute runs the statis-mix cli.
func Execute() {
	if err := NewCLI(NewInterruptSignalChannel()).Execute(); err != nil {
		os.Exit(1)
	}
}

// NewInterruptSignalChannel returns a channel listening for os.Signals the cli will react to.
func NewInterruptSignalChannel() chan os.Signal {
	signalsToListenTo := []os.Signal{
		syscall.SIGINT,                   // Strg + c
		syscall.SIGTERM, syscall.SIGQUIT, // terminate but finish/cleanup first, e.g. kill
		os.Interrupt,
	}

	osSignal := make(chan os.Signal, 1)
	signal.Notify(osSignal, signalsToListenTo...)

	return osSignal
}

// signalContext returns a context, that is cancelled on the first signal.
func signalContext(osSignal <-chan os.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		select {
		case <-osSignal:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// newMix returns the extension host with statis registered.
func newMix(logger alog.Logger, cmd *cobra.Command, opts []statis.Option) (*mix.Mix, *statis.Statis, error) {
	s := statis.New(append([]statis.Option{
		statis.WithLogger(logger),
		statis.WithOutput(cmd.OutOrStdout()),
	}, opts...)...)

	m := mix.New(logger)
	if err := m.Extend(statis.Name, s); err != nil {
		return nil, nil, err //nolint:wrapcheck // only statis is registered
	}

	return m, s, nil
}

// withStatisConfig returns a copy of cfg, where the statis record is merged with override.
func withStatisConfig(cfg mix.Config, override map[string]any) mix.Config {
	extensions := make(map[string]map[string]any, len(cfg.Extensions)+1)
	maps.Copy(extensions, cfg.Extensions)

	extensions[statis.Name] = statis.MergeConfig(cfg.Extensions[statis.Name], override)
	cfg.Extensions = extensions

	return cfg
}
