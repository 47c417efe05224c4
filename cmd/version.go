package cmd

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"
)

const esbuildModule = "github.com/evanw/esbuild"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "version",
		Short:                 "Print the version of statis-mix and the bundled esbuild",
		Long:                  ``,
		Args:                  cobra.NoArgs,
		DisableFlagsInUseLine: true,
		Run: func(cmd *cobra.Command, _ []string) {
			hash, ts := getVersionHashAndTimestamp()

			fmt.Fprintf(cmd.OutOrStdout(), "statis-mix version: %s from %s\n", hash, ts)
			fmt.Fprintf(cmd.OutOrStdout(), "esbuild version: %s\n", esbuildVersion())
		},
	}
}

// getVersionHashAndTimestamp returns the last git hash and commit timestamp.
func getVersionHashAndTimestamp() (string, string) {
	info := readBuildInfo()

	if info.modified || info.hash == "" {
		return "@latest", time.Now().UTC().Format("2006-01-02T15:04:05Z")
	}

	return info.hash, info.timestamp
}

func esbuildVersion() string {
	if v := readBuildInfo().esbuild; v != "" {
		return v
	}

	return "unknown"
}

type buildInfo struct {
	hash      string
	timestamp string
	// modified is true, if the binary is built from uncommitted changes.
	modified bool
	esbuild  string
}

// readBuildInfo needs the vcs information to be available to `go build`.
// Binaries of `go run` and `go test` do not contain it.
func readBuildInfo() buildInfo {
	var bi buildInfo

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return bi
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			bi.hash = setting.Value
		case "vcs.time":
			bi.timestamp = setting.Value
		case "vcs.modified":
			bi.modified = setting.Value == "true"
		}
	}

	for _, dep := range info.Deps {
		if dep.Path == esbuildModule {
			bi.esbuild = dep.Version
		}
	}

	return bi
}
