package reload

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	wsPath      = "/__statis/ws"
	clientPath  = "/__statis/client.js"
	metricsPath = "/__statis/metrics"

	// ReloadCmd is the command send to the browser, to reload a tab.
	ReloadCmd = "reload"
)

// clientTag is injected into every html page served.
const clientTag = `<script async src="` + clientPath + `"></script>`

const clientScript = `(function () {
  if (window.__statisReload) { return; }
  window.__statisReload = true;

  var notify = %t;

  function banner(text) {
    if (!notify) { return; }
    var el = document.createElement("div");
    el.textContent = text;
    el.style.cssText = "position:fixed;top:0;right:0;z-index:9999;padding:8px 12px;" +
      "font:13px sans-serif;color:#fff;background:#1b2032;border-bottom-left-radius:4px";
    document.body.appendChild(el);
    setTimeout(function () { el.remove(); }, 1500);
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "%s");
    ws.onopen = function () { banner("Connected to statis"); };
    ws.onmessage = function (e) {
      if (e.data === "%s") { location.reload(); }
    };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }

  connect();
})();
`

func clientHandler(notify bool) echo.HandlerFunc {
	script := fmt.Sprintf(clientScript, notify, wsPath, ReloadCmd)

	return func(c echo.Context) error {
		c.Response().Header().Set("Cache-Control", "no-store")

		return c.Blob(http.StatusOK, "application/javascript; charset=utf-8", []byte(script)) //nolint:wrapcheck // echo handles the error
	}
}
