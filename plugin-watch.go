package statis

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/evanw/esbuild/pkg/api"
)

// watchPlugin adds the files matching the watch globs to esbuild's watch list.
// Only entry points carry them, so they are added once per entry point and build.
func (s *Statis) watchPlugin() api.Plugin {
	patterns := slices.Clone(s.opts.Watch)

	return api.Plugin{
		Name: "statis-watch",
		Setup: func(build api.PluginBuild) {
			var (
				mu    sync.Mutex
				files []string
				dirs  []string
			)

			// globs are expanded once per build, so new files are picked up on rebuilds.
			build.OnStart(func() (api.OnStartResult, error) {
				f, d, err := ExpandGlobs(s.workDir, patterns)
				if err != nil {
					s.logger.WarnContext(context.Background(), "could not expand watch globs", slog.Any("err", err))
				}

				mu.Lock()
				files, dirs = f, d
				mu.Unlock()

				return api.OnStartResult{}, nil
			})

			build.OnResolve(api.OnResolveOptions{Filter: ".*"}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				if args.Kind != api.ResolveEntryPoint {
					return api.OnResolveResult{}, nil
				}

				mu.Lock()
				defer mu.Unlock()

				return api.OnResolveResult{
					WatchFiles: slices.Clone(files),
					WatchDirs:  slices.Clone(dirs),
				}, nil
			})
		},
	}
}

// ExpandGlobs returns the absolute paths of all files in root matching the patterns,
// and of the directories they are in, so that new files are noticed as well.
// Patterns starting with ! exclude matching files.
func ExpandGlobs(root string, patterns []string) ([]string, []string, error) {
	var include, exclude []string

	for _, p := range patterns {
		if neg, ok := strings.CutPrefix(p, "!"); ok {
			exclude = append(exclude, cleanPattern(neg))
		} else {
			include = append(include, cleanPattern(p))
		}
	}

	for _, p := range slices.Concat(include, exclude) {
		if !doublestar.ValidatePattern(p) {
			return nil, nil, fmt.Errorf("%w: %s", doublestar.ErrBadPattern, p)
		}
	}

	fsys := os.DirFS(root)
	files := map[string]struct{}{}
	dirs := map[string]struct{}{}

	for _, p := range include {
		if base, _ := doublestar.SplitPattern(p); base != "." {
			if info, err := os.Stat(filepath.Join(root, filepath.FromSlash(base))); err == nil && info.IsDir() {
				dirs[base] = struct{}{}
			}
		}

		matches, err := doublestar.Glob(fsys, p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, nil, fmt.Errorf("could not expand %s: %w", p, err)
		}

		for _, m := range matches {
			if excluded(exclude, m) {
				continue
			}

			files[m] = struct{}{}

			// root is not watched, the generator writes its build_<env> dir into it.
			if dir := path.Dir(m); dir != "." {
				dirs[dir] = struct{}{}
			}
		}
	}

	return absolute(root, files), absolute(root, dirs), nil
}

func cleanPattern(p string) string {
	return strings.TrimPrefix(filepath.ToSlash(p), "./")
}

func excluded(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}

	return false
}

func absolute(root string, paths map[string]struct{}) []string {
	abs := make([]string, 0, len(paths))

	for p := range paths {
		abs = append(abs, filepath.Join(root, filepath.FromSlash(p)))
	}

	slices.Sort(abs)

	return abs
}
