package alog

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Test returns a logger tuned for unit testing.
// It exposes log-specific assertions for the use in tests.
// The interface follows stretchr/testify as close as possible:
// every assert func returns a bool indicating whether the assertion was successful or not.
func Test(t *testing.T) *TestLogger {
	if t == nil {
		panic("t is nil")
	}

	buf := &testBuffer{
		mu:    sync.Mutex{},
		lines: []*bytes.Buffer{},
	}

	handler := newStatisHandler(
		WithLevel(LevelDebug),
		WithHandler(slog.NewTextHandler(buf, getDebugHandlerOptions())),
	)

	return &TestLogger{
		Logger:  slog.New(handler),
		t:       t,
		buf:     buf,
		handler: handler,
	}
}

// TestLogger is a special logger for unit testing.
// It exposes all methods of slog and can be injected as a logger dependency.
type TestLogger struct {
	*slog.Logger

	t       *testing.T
	buf     *testBuffer
	handler *statisHandler
}

var _ LevelController = (*TestLogger)(nil)

func (l *TestLogger) SetLevel(level slog.Level) {
	l.handler.SetLevel(level)
}

func (l *TestLogger) Level() slog.Level {
	return l.handler.Level()
}

func (l *TestLogger) Lines() []string {
	l.buf.mu.Lock()
	defer l.buf.mu.Unlock()

	lines := make([]string, 0, len(l.buf.lines))
	for _, line := range l.buf.lines {
		lines = append(lines, line.String())
	}

	return lines
}

// Contains asserts that at least one line contains the given substring contains.
func (l *TestLogger) Contains(contains string, msgAndArgs ...any) bool {
	l.t.Helper()

	for _, line := range l.Lines() {
		if strings.Contains(line, contains) {
			return true
		}
	}

	return assert.Fail(l.t, "log output does not have a line which contains: "+contains, msgAndArgs...)
}

type testBuffer struct {
	mu    sync.Mutex
	lines []*bytes.Buffer
}

func (a *testBuffer) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf := &bytes.Buffer{}
	n, err := buf.Write(p)

	a.lines = append(a.lines, buf)

	return n, err //nolint:wrapcheck // bytes.Buffer never fails
}
