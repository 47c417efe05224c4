package mix_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statisphp/esbuild-statis/alog"
	"github.com/statisphp/esbuild-statis/mix"
)

var ctx = context.Background()

func TestMix_Extend(t *testing.T) {
	t.Parallel()

	t.Run("register in order", func(t *testing.T) {
		t.Parallel()

		m := mix.New(nil)

		assert.NoError(t, m.Extend("a", &fakeExtension{}))
		assert.NoError(t, m.Extend("b", &fakeExtension{}))
		assert.Equal(t, []string{"a", "b"}, m.Names())
	})

	t.Run("duplicate name", func(t *testing.T) {
		t.Parallel()

		m := mix.New(nil)

		assert.NoError(t, m.Extend("a", &fakeExtension{}))
		assert.ErrorIs(t, m.Extend("a", &fakeExtension{}), mix.ErrExtensionExists)
	})
}

func TestMix_Plugins(t *testing.T) {
	t.Parallel()

	t.Run("register each extension with its config", func(t *testing.T) {
		t.Parallel()

		logger := alog.Test(t)
		m := mix.New(logger)
		a, b := &fakeExtension{}, &fakeExtension{}
		_ = m.Extend("a", a)
		_ = m.Extend("b", b)

		plugins, err := m.Plugins(mix.Config{
			Extensions: map[string]map[string]any{"a": {"key": "val"}},
		}, mix.Args{Env: "production", Port: 8080})
		require.NoError(t, err)

		assert.Len(t, plugins, 2)
		assert.Equal(t, "fake", plugins[0].Name)
		assert.Equal(t, mix.Args{Env: "production", Port: 8080}, a.args)
		assert.Equal(t, map[string]any{"key": "val"}, a.config)
		assert.Nil(t, b.config, "extension without config gets nil")
		logger.Contains("extension registered")
	})

	t.Run("registration fails", func(t *testing.T) {
		t.Parallel()

		m := mix.New(nil)
		_ = m.Extend("a", &fakeExtension{err: errSome})

		_, err := m.Plugins(mix.Config{}, mix.Args{})
		assert.ErrorIs(t, err, errSome)
	})
}

func TestMix_Build(t *testing.T) {
	t.Parallel()

	t.Run("build and call plugins", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t, "console.log('hello');")
		ext := &fakeExtension{}

		m := mix.New(nil)
		_ = m.Extend("fake", ext)

		err := m.Build(ctx, cfg, mix.Args{})
		require.NoError(t, err)

		assert.FileExists(t, filepath.Join(cfg.Outdir, "main.js"))
		assert.Equal(t, 1, ext.ends())
		assert.Eventually(t, func() bool {
			return ext.disposes() == 1
		}, time.Second, 10*time.Millisecond, "context is disposed after the build")
	})

	t.Run("build fails", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t, "console.log('hello'")

		m := mix.New(nil)
		err := m.Build(ctx, cfg, mix.Args{})
		assert.ErrorIs(t, err, mix.ErrBuildFailed)
	})

	t.Run("missing entry point", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t, "")
		cfg.EntryPoints = []string{filepath.Join(t.TempDir(), "non-existing.js")}

		m := mix.New(nil)
		err := m.Build(ctx, cfg, mix.Args{})
		assert.ErrorIs(t, err, mix.ErrBuildFailed)
	})

	t.Run("registration fails", func(t *testing.T) {
		t.Parallel()

		m := mix.New(nil)
		_ = m.Extend("a", &fakeExtension{err: errSome})

		err := m.Build(ctx, testConfig(t, ""), mix.Args{})
		assert.ErrorIs(t, err, errSome)
	})
}

func TestMix_Watch(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "console.log('hello');")
	ext := &fakeExtension{}

	m := mix.New(nil)
	_ = m.Extend("fake", ext)

	ctx, cancel := context.WithCancel(ctx)

	done := make(chan error)
	go func() {
		done <- m.Watch(ctx, cfg, mix.Args{})
	}()

	assert.Eventually(t, func() bool {
		return ext.ends() >= 1
	}, 5*time.Second, 10*time.Millisecond, "initial build")

	cancel()
	assert.NoError(t, <-done)
	assert.Eventually(t, func() bool {
		return ext.disposes() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	t.Run("load from file", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "statis.mix.yaml", `
entry_points:
  - assets/app.js
outdir: public/build
minify: true
extensions:
  statis:
    browser_sync: false
    watch: false
`)

		cfg, err := mix.LoadConfig(path, true)
		require.NoError(t, err)

		assert.Equal(t, []string{"assets/app.js"}, cfg.EntryPoints)
		assert.Equal(t, "public/build", cfg.Outdir)
		assert.True(t, cfg.Minify)
		assert.True(t, cfg.Bundle, "defaults are kept")
		assert.Equal(t, mix.LogLevel("info"), cfg.LogLevel)
		assert.Equal(t, false, cfg.Extensions["statis"]["browser_sync"])
		assert.Equal(t, false, cfg.Extensions["statis"]["watch"])
	})

	t.Run("missing optional file", func(t *testing.T) {
		t.Parallel()

		cfg, err := mix.LoadConfig(filepath.Join(t.TempDir(), mix.DefaultConfigFile), false)
		require.NoError(t, err)

		assert.Equal(t, []string{"source/_assets/js/main.js"}, cfg.EntryPoints)
		assert.Empty(t, cfg.Extensions)
	})

	t.Run("missing required file", func(t *testing.T) {
		t.Parallel()

		_, err := mix.LoadConfig(filepath.Join(t.TempDir(), "custom.yaml"), true)
		assert.ErrorIs(t, err, mix.ErrConfigLoadFailed)
	})

	t.Run("invalid log level", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "statis.mix.yaml", "log_level: loud\n")

		_, err := mix.LoadConfig(path, true)
		assert.ErrorIs(t, err, mix.ErrConfigLoadFailed)
	})
}

var errSome = errors.New("some error")

// fakeExtension contributes a plugin that counts the esbuild callbacks.
type fakeExtension struct {
	err    error
	args   mix.Args
	config map[string]any

	mu        sync.Mutex
	onEnd     int
	onDispose int
}

func (f *fakeExtension) Register(args mix.Args, config map[string]any) error {
	f.args = args
	f.config = config

	return f.err
}

func (f *fakeExtension) Plugins() []api.Plugin {
	return []api.Plugin{{
		Name: "fake",
		Setup: func(build api.PluginBuild) {
			build.OnEnd(func(*api.BuildResult) (api.OnEndResult, error) {
				f.mu.Lock()
				defer f.mu.Unlock()

				f.onEnd++

				return api.OnEndResult{}, nil
			})

			build.OnDispose(func() {
				f.mu.Lock()
				defer f.mu.Unlock()

				f.onDispose++
			})
		},
	}}
}

func (f *fakeExtension) ends() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.onEnd
}

func (f *fakeExtension) disposes() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.onDispose
}

func testConfig(t *testing.T, js string) mix.Config {
	t.Helper()

	return mix.Config{
		EntryPoints: []string{writeFile(t, "main.js", js)},
		Outdir:      filepath.Join(t.TempDir(), "build"),
		Bundle:      true,
		LogLevel:    "silent",
	}
}

func writeFile(t *testing.T, name string, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}
