// Package guard decides, per navigation, whether a console page may be shown.
//
// The decision uses only the session already placed on the request context;
// it never calls the upstream API.
package guard

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bissquit/finance-admin/internal/apiclient"
	"github.com/bissquit/finance-admin/internal/domain"
	"github.com/bissquit/finance-admin/internal/pkg/ctxlog"
	"github.com/bissquit/finance-admin/internal/pkg/httputil"
	"github.com/bissquit/finance-admin/internal/pkg/metrics"
	"github.com/bissquit/finance-admin/internal/session"
)

// Redirect targets.
const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
)

// ProtectedPrefixes are the console sections that require an admin session.
var ProtectedPrefixes = []string{"/dashboard", "/users", "/transactions", "/settings"}

// State is the outcome of evaluating a navigation.
type State int

const (
	Unauthenticated State = iota
	AuthenticatedNoRole
	AuthenticatedAuthorized
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case AuthenticatedNoRole:
		return "no_role"
	case AuthenticatedAuthorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// Evaluate classifies a session against the required role. Roles match
// exactly; there is no hierarchy.
func Evaluate(s *session.Session, required domain.Role) State {
	if s == nil {
		return Unauthenticated
	}
	if !s.HasRole(required) {
		return AuthenticatedNoRole
	}
	return AuthenticatedAuthorized
}

// Config configures Middleware.
type Config struct {
	Required domain.Role
	Prefixes []string
}

// DefaultConfig guards the console sections for ADMIN.
func DefaultConfig() Config {
	return Config{Required: domain.RoleAdmin, Prefixes: ProtectedPrefixes}
}

// Middleware redirects navigations to protected paths that the current
// session may not see. Other paths pass through untouched.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !Matches(r.URL.Path, cfg.Prefixes) {
				next.ServeHTTP(w, r)
				return
			}

			s, _ := session.FromContext(r.Context())
			state := Evaluate(s, cfg.Required)
			metrics.GuardDecisions.WithLabelValues(state.String()).Inc()

			switch state {
			case Unauthenticated:
				httputil.Redirect(w, r, LoginPath)
			case AuthenticatedNoRole:
				ctxlog.FromContext(r.Context()).Info("navigation denied",
					"path", r.URL.Path,
					"role", s.Identity.Role,
				)
				httputil.Redirect(w, r, UnauthorizedPath)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// Matches reports whether path is one of prefixes or below one of them.
func Matches(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// RedirectFor returns where a view should send the browser after an
// upstream error, if anywhere.
func RedirectFor(err error) (string, bool) {
	switch {
	case errors.Is(err, apiclient.ErrSessionExpired):
		return LoginPath, true
	case errors.Is(err, apiclient.ErrInsufficientPermission):
		return UnauthorizedPath, true
	}
	return "", false
}

// UpstreamErrors maps API client failures to console responses for
// single-resource views.
var UpstreamErrors = []httputil.ErrorMapping{
	{Error: apiclient.ErrSessionExpired, Location: LoginPath},
	{Error: apiclient.ErrInsufficientPermission, Location: UnauthorizedPath},
	{Error: apiclient.ErrUpstreamRejected},
	{Error: apiclient.ErrUpstreamFailure, Status: http.StatusBadGateway},
	{Error: apiclient.ErrUnreachable, Status: http.StatusBadGateway},
	{Error: apiclient.ErrRequestInvalid, Status: http.StatusBadRequest},
}
