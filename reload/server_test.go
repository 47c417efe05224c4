package reload_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/statisphp/esbuild-statis/alog"
	"github.com/statisphp/esbuild-statis/reload"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		opts reload.Options
		err  error
	}{
		"static": {reload.Options{Server: &reload.StaticOptions{BaseDir: "build_local/"}}, nil},
		"proxy":  {reload.Options{Proxy: "http://localhost:8000"}, nil},
		"proxy wins over static": {
			reload.Options{Proxy: "http://localhost:8000", Server: &reload.StaticOptions{BaseDir: "build_local/"}}, nil,
		},
		"no content":          {reload.Options{}, reload.ErrInvalidOptions},
		"empty base dir":      {reload.Options{Server: &reload.StaticOptions{}}, reload.ErrInvalidOptions},
		"relative proxy":      {reload.Options{Proxy: "localhost"}, reload.ErrInvalidOptions},
		"negative port":       {reload.Options{Port: -1, Proxy: "http://localhost:8000"}, reload.ErrInvalidOptions},
		"random port allowed": {reload.Options{Port: 0, Proxy: "http://localhost:8000"}, nil},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s, err := reload.New(tt.opts)
			assert.ErrorIs(t, err, tt.err)

			if tt.err == nil {
				assert.NotNil(t, s)
			}
		})
	}
}

func TestDecodeOptions(t *testing.T) {
	t.Parallel()

	t.Run("decode all keys", func(t *testing.T) {
		t.Parallel()

		opts, err := reload.DecodeOptions(map[string]any{
			"notify": false,
			"open":   true,
			"online": "true",
			"port":   "3000",
			"proxy":  nil,
			"server": map[string]any{"base_dir": "build_local/"},
		})
		require.NoError(t, err)

		assert.False(t, opts.Notify)
		assert.True(t, opts.Open)
		assert.True(t, opts.Online)
		assert.Equal(t, 3000, opts.Port)
		assert.Empty(t, opts.Proxy)
		assert.Equal(t, "build_local/", opts.Server.BaseDir)
		assert.Empty(t, opts.Unused)
	})

	t.Run("report unknown keys", func(t *testing.T) {
		t.Parallel()

		opts, err := reload.DecodeOptions(map[string]any{"ui": false, "ghost_mode": true})
		require.NoError(t, err)

		assert.Equal(t, []string{"ghost_mode", "ui"}, opts.Unused)
	})

	t.Run("invalid type", func(t *testing.T) {
		t.Parallel()

		_, err := reload.DecodeOptions(map[string]any{"port": "not-a-number"})
		assert.ErrorIs(t, err, reload.ErrInvalidOptions)
	})
}

func TestServer_Static(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html><body><h1>Hello</h1></body></html>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.css"), []byte("body{}"), 0o600))

	s, err := reload.New(reload.Options{Server: &reload.StaticOptions{BaseDir: dir}})
	require.NoError(t, err)

	server := httptest.NewServer(s.Handler())
	t.Cleanup(server.Close)

	t.Run("inject client into html", func(t *testing.T) {
		t.Parallel()

		body, res := get(t, server.URL+"/")
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Contains(t, body, `<h1>Hello</h1><script async src="/__statis/client.js"></script></body>`)
	})

	t.Run("leave other files untouched", func(t *testing.T) {
		t.Parallel()

		body, res := get(t, server.URL+"/main.css")
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, "body{}", body)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		_, res := get(t, server.URL+"/non-existing.html")
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
	})

	t.Run("serve client", func(t *testing.T) {
		t.Parallel()

		body, res := get(t, server.URL+"/__statis/client.js")
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Contains(t, res.Header.Get("Content-Type"), "javascript")
		assert.Contains(t, body, "/__statis/ws")
		assert.Contains(t, body, "var notify = false;")
	})
}

func TestServer_Proxy(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api" {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"ok":true}`)

			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><BODY>proxied "+r.URL.Path+"</BODY></html>")
	}))
	t.Cleanup(upstream.Close)

	s, err := reload.New(reload.Options{Proxy: upstream.URL})
	require.NoError(t, err)

	server := httptest.NewServer(s.Handler())
	t.Cleanup(server.Close)

	t.Run("proxy and inject html", func(t *testing.T) {
		t.Parallel()

		body, res := get(t, server.URL+"/blog/")
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Contains(t, body, "proxied /blog/")
		assert.Contains(t, body, `<script async src="/__statis/client.js"></script></BODY>`)
	})

	t.Run("proxy other content untouched", func(t *testing.T) {
		t.Parallel()

		body, _ := get(t, server.URL+"/api")
		assert.Equal(t, `{"ok":true}`, body)
	})
}

func TestServer_Reload(t *testing.T) {
	t.Parallel()

	t.Run("receive ws reload messages", func(t *testing.T) {
		t.Parallel()

		s, server := newTestServer(t)
		ws := dial(t, server)

		waitForConnections(t, s, 1)
		s.Reload()

		msg := ""
		err := websocket.Message.Receive(ws, &msg)
		assert.NoError(t, err)
		assert.Equal(t, reload.ReloadCmd, msg)
	})

	t.Run("receive ws reload messages on multiple (dropping out) browser connections", func(t *testing.T) {
		t.Parallel()

		const maxConnections = 20

		s, server := newTestServer(t)

		wg := sync.WaitGroup{}
		wg.Add(maxConnections)

		for i := range maxConnections {
			ws := dial(t, server)

			go func(i int) {
				defer wg.Done()

				msg := ""
				err := websocket.Message.Receive(ws, &msg)
				assert.NoError(t, err)
				assert.Equal(t, reload.ReloadCmd, msg)

				// simulate a browser disconnection
				if i%2 == 0 {
					ws.Close()
				}
			}(i)
		}

		waitForConnections(t, s, maxConnections)
		s.Reload()
		wg.Wait()

		assert.Eventually(t, func() bool {
			return s.Connections() == maxConnections/2
		}, time.Second, 10*time.Millisecond, "closed tabs are removed")
	})

	t.Run("reload without browsers", func(t *testing.T) {
		t.Parallel()

		logger := alog.Test(t)
		s, err := reload.New(reload.Options{Proxy: "http://localhost:8000"}, reload.WithLogger(logger))
		require.NoError(t, err)

		assert.NotPanics(t, s.Reload)
		logger.Contains("tabs=0")
	})
}

func TestServer_Start(t *testing.T) {
	t.Parallel()

	t.Run("start, ready and shutdown", func(t *testing.T) {
		t.Parallel()

		var (
			ready  = make(chan *reload.Server, 1)
			opened = make(chan string, 1)
			logger = alog.Test(t)
		)

		s, err := reload.New(
			reload.Options{Port: 0, Open: true, Server: &reload.StaticOptions{BaseDir: t.TempDir()}},
			reload.WithLogger(logger),
			reload.WithReadyCallback(func(s *reload.Server) { ready <- s }),
			reload.WithOpenBrowser(func(url string) error {
				opened <- url

				return nil
			}),
		)
		require.NoError(t, err)

		done := make(chan error)
		go func() {
			done <- s.Start(context.Background())
		}()

		readyServer := <-ready
		assert.Same(t, s, readyServer)
		assert.NotZero(t, s.Port())
		assert.Equal(t, s.LocalURL(), <-opened)
		assert.Empty(t, s.ExternalURL(), "offline servers are not announced")
		logger.Contains("reload server started")

		err = s.Shutdown(context.Background())
		assert.NoError(t, err)
		assert.NoError(t, <-done)
	})

	t.Run("port already in use", func(t *testing.T) {
		t.Parallel()

		ready := make(chan struct{})
		s0, err := reload.New(
			reload.Options{Proxy: "http://localhost:8000"},
			reload.WithReadyCallback(func(*reload.Server) { close(ready) }),
		)
		require.NoError(t, err)

		go func() { _ = s0.Start(context.Background()) }()
		<-ready

		defer s0.Shutdown(context.Background()) //nolint:errcheck

		s1, err := reload.New(reload.Options{Port: s0.Port(), Proxy: "http://localhost:8000"})
		require.NoError(t, err)

		err = s1.Start(context.Background())
		assert.ErrorIs(t, err, reload.ErrStartFailed)
	})
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "some_total", Help: "help"})
	registry.MustRegister(counter)
	counter.Inc()

	s, err := reload.New(reload.Options{Proxy: "http://localhost:8000"}, reload.WithMetrics(registry))
	require.NoError(t, err)

	server := httptest.NewServer(s.Handler())
	t.Cleanup(server.Close)

	body, res := get(t, server.URL+"/__statis/metrics")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "some_total 1")
}

func newTestServer(t *testing.T) (*reload.Server, *httptest.Server) {
	t.Helper()

	s, err := reload.New(reload.Options{Proxy: "http://localhost:8000"})
	require.NoError(t, err)

	server := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		_ = s.Shutdown(context.Background())
		server.CloseClientConnections()
		server.Close()
	})

	return s, server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()

	addr := server.Listener.Addr().String()
	ws, err := websocket.Dial("ws://"+addr+"/__statis/ws", "", "http://localhost/")
	require.NoError(t, err)

	t.Cleanup(func() { ws.Close() })

	return ws
}

func waitForConnections(t *testing.T, s *reload.Server, n int) {
	t.Helper()

	assert.Eventually(t, func() bool {
		return s.Connections() == n
	}, time.Second, 5*time.Millisecond)
}

func get(t *testing.T, url string) (string, *http.Response) {
	t.Helper()

	res, err := http.Get(url) //nolint:gosec,noctx // test url
	require.NoError(t, err)

	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	return string(body), res
}
