package main

import (
	"fmt"

	. "github.com/statisphp/esbuild-statis/hooks"
)

func init() {
	fmt.Println("register another hook")

	Register(Hook{
		Name: "order-12",
	})
}
