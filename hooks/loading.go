package hooks

import (
	"errors"
	"fmt"
	"go/build"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"github.com/traefik/yaegi/stdlib/unrestricted"
)

// DefaultDir is the directory hooks are loaded from.
const DefaultDir = ".config"

var ErrLoadHooksFailed = errors.New("loading hooks failed")

// importPath is the path hook files import, to call Register.
const importPath = "github.com/statisphp/esbuild-statis/hooks/hooks"

// Load interprets all *.hook.go files in dir, in the order of their file names.
// Each file registers its hooks in an init func by calling Register.
// A non existing dir loads no hooks.
func Load(dir string) (Hooks, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: no directory given", ErrLoadHooksFailed)
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w: could not read directory: %s: %v", ErrLoadHooksFailed, dir, err)
	}

	var (
		mu     sync.Mutex
		loaded Hooks
	)

	register := func(hook Hook) {
		mu.Lock()
		defer mu.Unlock()

		loaded = append(loaded, hook.withDefaults())
	}

	interpreter, err := newInterpreter(register)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".hook.go") {
			continue
		}

		_, err = interpreter.EvalPath(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%w: could not evaluate hook: %s: %v", ErrLoadHooksFailed, name, err)
		}
	}

	return loaded, nil
}

// newInterpreter returns an interpreter, where Register of hook files calls register.
func newInterpreter(register func(Hook)) (*interp.Interpreter, error) {
	interpreter := interp.New(interp.Options{GoPath: build.Default.GOPATH})

	for _, symbols := range []interp.Exports{
		stdlib.Symbols,
		unrestricted.Symbols,
		{
			importPath: {
				"Register":  reflect.ValueOf(register),
				"Hook":      reflect.ValueOf((*Hook)(nil)),
				"RunConfig": reflect.ValueOf((*RunConfig)(nil)),
			},
		},
	} {
		if err := interpreter.Use(symbols); err != nil {
			return nil, fmt.Errorf("%w: could not load interpreter: %v", ErrLoadHooksFailed, err)
		}
	}

	return interpreter, nil
}
