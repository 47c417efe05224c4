package cmd

import (
	"os"

	"github.com/fatih/color" //nolint:misspell
	"github.com/spf13/cobra"

	statis "github.com/statisphp/esbuild-statis"
)

func newBuildCmd(flags *rootFlags, osSignal <-chan os.Signal, opts []statis.Option) *cobra.Command {
	return &cobra.Command{
		Use:                   "build",
		Short:                 "bundle the assets and build the site once",
		Long:                  ``,
		Args:                  cobra.NoArgs,
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true

			yellow := color.New(color.FgYellow).FprintfFunc()
			blue := color.New(color.FgBlue, color.Bold).FprintfFunc()

			logger := flags.logger(cmd)

			cfg, err := flags.loadConfig(cmd)
			if err != nil {
				return err
			}

			// a single build has no browsers to reload.
			cfg = withStatisConfig(cfg, map[string]any{"browser_sync": false})

			m, _, err := newMix(logger, cmd, opts)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(osSignal)
			defer cancel()

			yellow(cmd.OutOrStdout(), "building\n")

			if err := m.Build(ctx, cfg, flags.args()); err != nil {
				return err //nolint:wrapcheck // mix errors are descriptive
			}

			blue(cmd.OutOrStdout(), "done\n")

			return nil
		},
	}
}
