package reload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/browser"
)

// OpenBrowserFunc opens url in a browser.
type OpenBrowserFunc func(url string) error

// OpenBrowser opens url in the default browser of the OS.
func OpenBrowser(url string) error {
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard

	if err := browser.OpenURL(url); err != nil {
		return fmt.Errorf("could not open browser: %w", err)
	}

	return nil
}

const (
	proxyWaitInterval = 250 * time.Millisecond
	proxyWaitRetries  = 20
)

// waitForProxy blocks until target answers any http request, so the
// browser does not open on a connection error.
func waitForProxy(ctx context.Context, client *http.Client, target string) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
		if err != nil {
			return backoff.Permanent(err) //nolint:wrapcheck // unwrapped by Retry
		}

		res, err := client.Do(req)
		if err != nil {
			return err //nolint:wrapcheck // unwrapped by Retry
		}

		return res.Body.Close() //nolint:wrapcheck // unwrapped by Retry
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(proxyWaitInterval), proxyWaitRetries),
		ctx,
	)

	if err := backoff.Retry(op, b); err != nil {
		return fmt.Errorf("proxy %s not reachable: %w", target, err)
	}

	return nil
}
