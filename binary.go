package statis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
)

var ErrBinaryNotFound = errors.New("could not find statis; please install it via composer")

const (
	binaryName = "statis"
	vendorPath = "vendor/bin/statis"
)

// binaryPath returns the project's own statis binary from composer's vendor dir,
// or falls back to a global installation.
func (s *Statis) binaryPath() (string, error) {
	vendor := filepath.FromSlash(vendorPath)

	if _, err := s.stat(filepath.Join(s.workDir, vendor)); err == nil {
		return vendor, nil
	}

	if _, err := s.lookPath(binaryName); err == nil {
		return binaryName, nil
	}

	return "", ErrBinaryNotFound
}

// CommandRunner runs the command name with args in dir
// and returns everything it wrote to stdout and stderr.
type CommandRunner func(ctx context.Context, dir string, name string, args ...string) ([]byte, []byte, error)

// ExecRunner runs the command as a child process.
func ExecRunner(ctx context.Context, dir string, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), stderr.Bytes(), fmt.Errorf("%s %v: %w", name, args, err)
	}

	return stdout.Bytes(), stderr.Bytes(), nil
}
