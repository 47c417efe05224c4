package cmd

import (
	"os"

	"github.com/fatih/color" //nolint:misspell
	"github.com/spf13/cobra"

	statis "github.com/statisphp/esbuild-statis"
	"github.com/statisphp/esbuild-statis/hooks"
	"github.com/statisphp/esbuild-statis/mix"
)

func newWatchCmd(flags *rootFlags, osSignal <-chan os.Signal, opts []statis.Option) *cobra.Command {
	var hooksDir string

	cmd := &cobra.Command{
		Use:                   "watch",
		Short:                 "rebuild assets and site on every change and reload the browser",
		Long:                  ``,
		Args:                  cobra.NoArgs,
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true

			blue := color.New(color.FgBlue, color.Bold).FprintfFunc()

			version, _ := getVersionHashAndTimestamp()
			blue(cmd.OutOrStdout(), "statis-mix version %s\n", version)

			logger := flags.logger(cmd)

			cfg, err := flags.loadConfig(cmd)
			if err != nil {
				return err
			}

			loaded, err := hooks.Load(hooksDir)
			if err != nil {
				return err //nolint:wrapcheck // hook errors are descriptive
			}

			if len(loaded) > 0 {
				blue(cmd.OutOrStdout(), "hooks loaded: %s\n", loaded.NamesFmt())
			}

			run := &hooks.RunConfig{
				Environment: statis.ResolveEnvironment(flags.env, os.Getenv),
				Port:        statis.ResolvePort(flags.port),
			}
			loaded.OnConfigLoaded(run)

			m, s, err := newMix(logger, cmd, opts)
			if err != nil {
				return err
			}

			s.OnSiteBuilt(loaded.OnSiteBuilt)

			ctx, cancel := signalContext(osSignal)
			defer cancel()

			blue(cmd.OutOrStdout(), "watching %s environment\n", run.Environment)

			loaded.OnStart()

			err = m.Watch(ctx, cfg, mix.Args{Env: run.Environment, Port: run.Port})

			loaded.OnShutdown()

			if err != nil {
				return err //nolint:wrapcheck // mix errors are descriptive
			}

			blue(cmd.OutOrStdout(), "done\n")

			return nil
		},
	}

	cmd.Flags().StringVar(&hooksDir, "hooks", hooks.DefaultDir, "directory to load *.hook.go files from")

	return cmd
}
