package main

import (
	. "github.com/statisphp/esbuild-statis/hooks"
)

func init() {
	Register(Hook{
		Name: "sample hook",
		OnConfigLoaded: func(c *RunConfig) {
			c.Port = 1337
			c.Environment = "staging"
		},
	})
}
