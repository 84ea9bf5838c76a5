package app

import (
	"context"
	"net/http"
	"time"

	"github.com/bissquit/finance-admin/internal/pkg/ctxlog"
	"github.com/bissquit/finance-admin/internal/pkg/httputil"
	"github.com/bissquit/finance-admin/internal/version"
)

const (
	specFile     = "api/openapi/openapi.yaml"
	readyTimeout = 2 * time.Second
)

// readinessCheck is one dependency probed by /readyz.
type readinessCheck struct {
	name    string
	message string
	ping    func(context.Context) error
}

func (a *App) readinessChecks() []readinessCheck {
	checks := []readinessCheck{
		{name: "api", message: "Finance API unreachable", ping: a.pingUpstream},
	}
	if a.revocations != nil {
		checks = append(checks, readinessCheck{name: "redis", message: "Redis unavailable", ping: a.revocations.Ping})
	}
	if a.settingsDB != nil {
		checks = append(checks, readinessCheck{name: "database", message: "Database unavailable", ping: a.settingsDB.Ping})
	}
	return checks
}

func (a *App) healthz(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

// readyz fails on the first dependency that does not answer.
func (a *App) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	for _, check := range a.readinessChecks() {
		if err := check.ping(ctx); err != nil {
			ctxlog.FromContext(r.Context()).Error("not ready", "dependency", check.name, "error", err)
			httputil.Text(w, http.StatusServiceUnavailable, check.message)
			return
		}
	}
	httputil.Text(w, http.StatusOK, "OK")
}

// pingUpstream treats any HTTP answer as reachable.
func (a *App) pingUpstream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiBase, nil)
	if err != nil {
		return err
	}
	resp, err := a.upstream.Do(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (a *App) buildInfo(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func serveSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-yaml")
	http.ServeFile(w, r, specFile)
}

const docsPage = `<!DOCTYPE html>
<html>
<head>
  <title>Finance Admin Console</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({url: "/api/openapi.yaml", dom_id: "#swagger-ui"});
  </script>
</body>
</html>`

func serveDocs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(docsPage))
}
