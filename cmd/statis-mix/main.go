package main

import "github.com/statisphp/esbuild-statis/cmd"

func main() {
	cmd.Execute()
}
