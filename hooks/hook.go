//nolint:govet // fieldalignment less important than readability.
package hooks

import "strings"

// RunConfig is the configuration of the `statis-mix watch` command.
// Hooks can change it in OnConfigLoaded, before the first build.
type RunConfig struct {
	// Environment is the statis environment the site is built for, e.g. local or production.
	Environment string

	// Port of the reload server.
	Port int
}

type Hook struct {
	Name           string
	OnConfigLoaded func(c *RunConfig)
	OnStart        func()
	OnSiteBuilt    func()
	OnShutdown     func()
}

// withDefaults replaces all missing callbacks with no-ops.
func (h Hook) withDefaults() Hook {
	if h.Name == "" {
		h.Name = "<unknown>"
	}

	if h.OnConfigLoaded == nil {
		h.OnConfigLoaded = func(*RunConfig) {}
	}

	if h.OnStart == nil {
		h.OnStart = func() {}
	}

	if h.OnSiteBuilt == nil {
		h.OnSiteBuilt = func() {}
	}

	if h.OnShutdown == nil {
		h.OnShutdown = func() {}
	}

	return h
}

type Hooks []Hook

// NamesFmt returns a printable list of the hook names, like:
// hook 0, hook 1, hook 2.
func (h Hooks) NamesFmt() string {
	names := make([]string, len(h))

	for i, hook := range h {
		names[i] = hook.Name
	}

	return strings.Join(names, ", ")
}

func (h Hooks) OnConfigLoaded(c *RunConfig) {
	for _, hook := range h {
		hook.OnConfigLoaded(c)
	}
}

func (h Hooks) OnStart() {
	for _, hook := range h {
		hook.OnStart()
	}
}

// OnSiteBuilt is called after every run of the site generator, failed ones included.
func (h Hooks) OnSiteBuilt() {
	for _, hook := range h {
		hook.OnSiteBuilt()
	}
}

func (h Hooks) OnShutdown() {
	for _, hook := range h {
		hook.OnShutdown()
	}
}
