package main

import (
	. "github.com/statisphp/esbuild-statis/hooks"
)

func init() {
	Register(Hook{})
}
