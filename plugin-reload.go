package statis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/statisphp/esbuild-statis/reload"
)

// ReloadConfig returns the raw configuration of the reload server.
// The server serves build_<env>/, unless a proxy is configured.
// browser_sync_options are merged on top and win.
func (s *Statis) ReloadConfig() map[string]any {
	cfg := map[string]any{
		"notify": false,
		"open":   s.opts.Open,
		"online": s.opts.Online,
		"port":   s.port,
		"proxy":  s.opts.Proxy,
		"server": nil,
	}

	if s.opts.Proxy == "" {
		cfg["server"] = map[string]any{"base_dir": "build_" + s.env + "/"}
	}

	return MergeConfig(cfg, s.opts.BrowserSyncOptions)
}

// reloadPlugin starts the reload server after the first successful build
// and stops it, once esbuild disposes the build context.
func (s *Statis) reloadPlugin() api.Plugin {
	opts := s.reloadOpts

	return api.Plugin{
		Name: "statis-reload",
		Setup: func(build api.PluginBuild) {
			var (
				mu     sync.Mutex
				server *reload.Server
			)

			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				if len(result.Errors) > 0 {
					return api.OnEndResult{}, nil
				}

				mu.Lock()
				defer mu.Unlock()

				if server == nil {
					server = s.startReloadServer(opts)
				}

				return api.OnEndResult{}, nil
			})

			build.OnDispose(func() {
				mu.Lock()
				defer mu.Unlock()

				if server == nil {
					return
				}

				s.session.SetReloader(nil)

				const shutdownTimeout = 5 * time.Second

				ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()

				if err := server.Shutdown(ctx); err != nil {
					s.logger.WarnContext(ctx, "could not stop reload server", slog.Any("err", err))
				}
			})
		},
	}
}

// startReloadServer returns nil if the server could not be created.
func (s *Statis) startReloadServer(opts reload.Options) *reload.Server {
	ctx := context.Background()

	server, err := reload.New(opts,
		reload.WithLogger(s.logger),
		reload.WithOpenBrowser(s.openBrowser),
		reload.WithMetrics(s.metrics.Gatherer()),
		reload.WithReadyCallback(func(srv *reload.Server) {
			s.session.SetReloader(srv)
		}),
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "could not create reload server", slog.Any("err", err))

		return nil
	}

	go func() {
		if err := server.Start(ctx); err != nil {
			s.logger.ErrorContext(ctx, "reload server stopped", slog.Any("err", err))
		}
	}()

	return server
}
