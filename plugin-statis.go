package statis

import (
	"context"
	"log/slog"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/fatih/color"

	"github.com/statisphp/esbuild-statis/alog"
)

// statisPlugin runs the generator after every build.
// The run is synchronous, so esbuild does not start the next build before the site is written.
func (s *Statis) statisPlugin() api.Plugin {
	return api.Plugin{
		Name: "statis",
		Setup: func(build api.PluginBuild) {
			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				ctx := alog.AddAttrs(context.Background(),
					slog.String("env", s.env),
					slog.String("bin", s.bin),
				)

				if len(result.Errors) > 0 {
					s.logger.WarnContext(ctx, "bundle has errors, skip site build",
						slog.Int("errors", len(result.Errors)))

					return api.OnEndResult{}, nil
				}

				s.buildSite(ctx)

				return api.OnEndResult{}, nil
			})
		},
	}
}

func (s *Statis) buildSite(ctx context.Context) {
	red := color.New(color.FgRed).FprintFunc()
	start := time.Now()

	stdout, stderr, err := s.runner(ctx, s.workDir, s.bin, "build", "-q", s.env)
	took := time.Since(start)

	s.metrics.observeSiteBuild(took, err)

	if err != nil {
		red(s.out, string(stderr))
		s.logger.ErrorContext(ctx, "site build failed", slog.Any("err", err))
	} else {
		if len(stdout) > 0 {
			_, _ = s.out.Write(stdout)
		}

		s.logger.Log(ctx, alog.LevelInfo, "site built", slog.Duration("took", took))
	}

	if r := s.session.Reloader(); r != nil {
		r.Reload()
		s.metrics.observeReload()
	}

	s.siteBuilt.Call()
}
