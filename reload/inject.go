package reload

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// maxInjectSize is the largest html page the client script is injected into.
// Larger responses are passed through untouched.
const maxInjectSize = 2 << 20

// injectClientScript is a middleware that adds the reload client
// as a <script> tag into every html response, right before </body>.
func injectClientScript(tag string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// compressed bodies from a proxied server can not be rewritten
			c.Request().Header.Del("Accept-Encoding")

			res := c.Response()
			injector := &scriptInjector{
				ResponseWriter: res.Writer,
				statusCode:     http.StatusOK,
				tag:            []byte(tag),
			}
			res.Writer = injector

			err := next(c)

			injector.finalize()
			res.Writer = injector.ResponseWriter

			return err
		}
	}
}

// scriptInjector buffers html responses to inject the script tag.
// All other responses are passed through as soon as the first byte is written.
type scriptInjector struct {
	http.ResponseWriter

	tag           []byte
	buffer        []byte
	statusCode    int
	touched       bool
	headerWritten bool
	passthrough   bool
	buffering     bool
}

func (l *scriptInjector) WriteHeader(code int) {
	l.statusCode = code
	l.touched = true

	if l.passthrough {
		l.writeHeader()
	}
}

func (l *scriptInjector) Write(data []byte) (int, error) {
	l.touched = true

	if !l.passthrough && !l.buffering {
		if !l.isHTML() {
			l.passthrough = true
			l.writeHeader()

			return l.ResponseWriter.Write(data) //nolint:wrapcheck // transparent writer
		}

		l.buffering = true
	}

	if l.passthrough {
		return l.ResponseWriter.Write(data) //nolint:wrapcheck // transparent writer
	}

	if len(l.buffer)+len(data) > maxInjectSize {
		l.passthrough = true
		l.buffering = false
		l.writeHeader()

		if len(l.buffer) > 0 {
			if _, err := l.ResponseWriter.Write(l.buffer); err != nil {
				return 0, err //nolint:wrapcheck // transparent writer
			}

			l.buffer = nil
		}

		return l.ResponseWriter.Write(data) //nolint:wrapcheck // transparent writer
	}

	l.buffer = append(l.buffer, data...)

	return len(data), nil
}

// Flush is called by the reverse proxy for streamed responses.
func (l *scriptInjector) Flush() {
	if !l.passthrough {
		return
	}

	_ = http.NewResponseController(l.ResponseWriter).Flush()
}

func (l *scriptInjector) Unwrap() http.ResponseWriter {
	return l.ResponseWriter
}

func (l *scriptInjector) isHTML() bool {
	if l.Header().Get("Content-Encoding") != "" {
		return false
	}

	return strings.Contains(l.Header().Get("Content-Type"), "text/html")
}

func (l *scriptInjector) writeHeader() {
	if l.headerWritten {
		return
	}

	l.headerWritten = true
	l.ResponseWriter.WriteHeader(l.statusCode)
}

// finalize must be called after the handler completes to inject the script.
// If the handler did not write anything, e.g. it returned an error,
// the response is left to echo's error handler.
func (l *scriptInjector) finalize() {
	if !l.touched {
		return
	}

	if l.passthrough || !l.buffering {
		l.writeHeader()

		return
	}

	body := l.buffer
	if i := bytes.LastIndex(bytes.ToLower(body), []byte("</body>")); i >= 0 {
		body = append(body[:i:i], append(l.tag, body[i:]...)...)
	} else {
		body = append(body, l.tag...)
	}

	l.Header().Del("Content-Length")
	l.writeHeader()
	_, _ = l.ResponseWriter.Write(body)
}
