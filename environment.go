package statis

const (
	// EnvVar is the environment variable the environment is read from, if --env is not given.
	EnvVar = "NODE_ENV"

	DefaultEnvironment = "local"
	DefaultPort        = 3000
)

// ResolveEnvironment returns the statis environment to build.
// The flag wins over the environment variable.
// As statis calls its development environment "local", development is mapped to it.
func ResolveEnvironment(flag string, getenv func(string) string) string {
	if flag != "" {
		return flag
	}

	env := getenv(EnvVar)
	if env == "" || env == "development" {
		return DefaultEnvironment
	}

	return env
}

// ResolvePort returns the port of the reload server.
func ResolvePort(flag int) int {
	if flag > 0 {
		return flag
	}

	return DefaultPort
}
