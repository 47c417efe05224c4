// Package reload implements the live reload server used during development.
//
// The server either serves a static directory or proxies to an existing
// server. It injects a small client into every html page, which reloads
// the page whenever Reload is called. The server never watches any files
// itself, the caller decides when browsers should reload.
package reload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/websocket"

	"github.com/statisphp/esbuild-statis/alog"
)

var (
	ErrConnectionFailed = errors.New("ws connection failed")
	ErrStartFailed      = errors.New("could not start reload server")
)

// Option configures optional dependencies of a Server.
type Option func(*Server)

// WithLogger sets the logger. By default, nothing is logged.
func WithLogger(logger alog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithReadyCallback registers fn to be called once the server accepts connections.
func WithReadyCallback(fn func(*Server)) Option {
	return func(s *Server) {
		s.onReady = fn
	}
}

// WithOpenBrowser replaces the function used to open a browser, if Options.Open is set.
func WithOpenBrowser(fn OpenBrowserFunc) Option {
	return func(s *Server) {
		s.openBrowser = fn
	}
}

// WithMetrics exposes the metrics of gatherer on /__statis/metrics.
func WithMetrics(gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = gatherer
	}
}

// Server is a live reload server.
type Server struct {
	opts        Options
	logger      alog.Logger
	onReady     func(*Server)
	openBrowser OpenBrowserFunc
	gatherer    prometheus.Gatherer

	echo     *echo.Echo
	http     *http.Server
	browsers *browserSessions

	mu       sync.Mutex
	listener net.Listener
}

// New returns a Server configured by opts. It does not start listening, see Start.
func New(opts Options, options ...Option) (*Server, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		opts:        opts,
		logger:      alog.NewNoop(),
		onReady:     func(*Server) {},
		openBrowser: OpenBrowser,
		browsers:    newBrowserSessions(),
	}

	for _, o := range options {
		o(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetOutput(io.Discard)

	e.GET(wsPath, s.handleWebsocket)
	e.GET(clientPath, clientHandler(opts.Notify))

	if s.gatherer != nil {
		e.GET(metricsPath, echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	e.Any("/*", notFound, injectClientScript(clientTag), s.contentMiddleware())

	const readHeaderTimeout = 10 * time.Second

	s.echo = e
	s.http = &http.Server{ //nolint:exhaustruct
		Handler:           e,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s, nil
}

// contentMiddleware serves the actual pages: either from a proxy or the static directory.
func (s *Server) contentMiddleware() echo.MiddlewareFunc {
	if s.opts.Proxy != "" {
		target, _ := url.Parse(s.opts.Proxy) // validated in New

		return middleware.ProxyWithConfig(middleware.ProxyConfig{ //nolint:exhaustruct
			Balancer: middleware.NewRoundRobinBalancer([]*middleware.ProxyTarget{{URL: target}}),
		})
	}

	index := s.opts.Server.Index
	if index == "" {
		index = "index.html"
	}

	return middleware.StaticWithConfig(middleware.StaticConfig{ //nolint:exhaustruct
		Root:  s.opts.Server.BaseDir,
		Index: index,
	})
}

func notFound(_ echo.Context) error {
	return echo.ErrNotFound
}

func (s *Server) handleWebsocket(c echo.Context) error {
	websocket.Handler(func(ws *websocket.Conn) {
		defer ws.Close()

		id, closed := s.browsers.add(ws)

		// the client never sends anything, a failing read means it is gone
		go func() {
			_, _ = io.Copy(io.Discard, ws)
			s.browsers.remove(id)
		}()

		<-closed
	}).ServeHTTP(c.Response(), c.Request())

	return nil
}

// Start listens on the configured port and serves until Shutdown is called.
// The ready callback is called once the server accepts connections.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.listenAddr())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStartFailed, err) //nolint:errorlint // prevent err in api
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	attrs := []any{slog.String("local", s.LocalURL())}
	if external := s.ExternalURL(); external != "" {
		attrs = append(attrs, slog.String("external", external))
	}

	if s.opts.Proxy != "" {
		attrs = append(attrs, slog.String("proxy", s.opts.Proxy))
	} else {
		attrs = append(attrs, slog.String("base_dir", s.opts.Server.BaseDir))
	}

	s.logger.InfoContext(ctx, "reload server started", attrs...)

	s.onReady(s)

	if s.opts.Open {
		go s.open(ctx)
	}

	err = s.http.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return fmt.Errorf("%w: %v", ErrStartFailed, err) //nolint:errorlint // prevent err in api
}

func (s *Server) open(ctx context.Context) {
	if s.opts.Proxy != "" {
		if err := waitForProxy(ctx, http.DefaultClient, s.opts.Proxy); err != nil {
			s.logger.WarnContext(ctx, "open browser anyway", slog.Any("err", err))
		}
	}

	if err := s.openBrowser(s.LocalURL()); err != nil {
		s.logger.WarnContext(ctx, "could not open browser", slog.Any("err", err))
	}
}

// Shutdown disconnects all browsers and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.browsers.closeAll()

	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("could not shutdown reload server: %w", err)
	}

	return nil
}

// Reload tells all connected browsers to reload the page.
func (s *Server) Reload() {
	n := s.browsers.notify(ReloadCmd)
	s.logger.Log(context.Background(), alog.LevelInfo, "browsers reloaded", slog.Int("tabs", n))
}

// Connections returns the number of connected browser tabs.
func (s *Server) Connections() int {
	return s.browsers.len()
}

// Handler exposes the server's routes, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Port returns the port the server listens on, once it is started.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return s.opts.Port
	}

	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}

	return s.opts.Port
}

func (s *Server) LocalURL() string {
	return "http://localhost:" + strconv.Itoa(s.Port())
}

// ExternalURL returns the url the server is reachable at from the network.
// It is empty if the server is not online or no network is available.
func (s *Server) ExternalURL() string {
	if !s.opts.Online {
		return ""
	}

	ip := externalIP()
	if ip == "" {
		return ""
	}

	return "http://" + net.JoinHostPort(ip, strconv.Itoa(s.Port()))
}

func (s *Server) listenAddr() string {
	host := "localhost"
	if s.opts.Online {
		host = ""
	}

	return net.JoinHostPort(host, strconv.Itoa(s.opts.Port))
}

func externalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}

		if ip := ipNet.IP.To4(); ip != nil {
			return ip.String()
		}
	}

	return ""
}
