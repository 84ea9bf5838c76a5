// Package identity serves the console login, logout and unauthorized pages.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/bissquit/finance-admin/internal/auth"
	"github.com/bissquit/finance-admin/internal/guard"
	"github.com/bissquit/finance-admin/internal/pkg/ctxlog"
	"github.com/bissquit/finance-admin/internal/pkg/httputil"
	"github.com/bissquit/finance-admin/internal/pkg/metrics"
	"github.com/bissquit/finance-admin/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// HomePath is where a successful login lands.
const HomePath = "/dashboard"

// Authenticator checks credentials against the upstream API.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*auth.Result, error)
	Logout(ctx context.Context, accessToken string) error
}

// Handler handles HTTP requests for the identity module.
type Handler struct {
	auth      Authenticator
	sessions  *session.Manager
	limiter   *httputil.RateLimiter
	validator *validator.Validate
}

// NewHandler creates a new identity handler. limiter may be nil to disable
// login throttling.
func NewHandler(authenticator Authenticator, sessions *session.Manager, limiter *httputil.RateLimiter) *Handler {
	return &Handler{
		auth:      authenticator,
		sessions:  sessions,
		limiter:   limiter,
		validator: validator.New(),
	}
}

// RegisterRoutes registers identity routes. None of them are guarded.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get(guard.LoginPath, h.LoginPage)
	r.Group(func(r chi.Router) {
		if h.limiter != nil {
			r.Use(h.limiter.Middleware(func(*http.Request) {
				metrics.LoginAttempts.WithLabelValues("throttled").Inc()
			}))
		}
		r.Post(guard.LoginPath, h.Login)
	})
	r.Post("/logout", h.Logout)
	r.Get(guard.UnauthorizedPath, h.Unauthorized)
}

// LoginPage describes the login form.
type LoginPage struct {
	Action string   `json:"action"`
	Fields []string `json:"fields"`
}

// LoginPage handles GET /login. A signed-in user is sent to the dashboard.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := session.FromContext(r.Context()); ok {
		httputil.Redirect(w, r, HomePath)
		return
	}

	httputil.Success(w, http.StatusOK, LoginPage{
		Action: guard.LoginPath,
		Fields: []string{"email", "password"},
	})
}

// Login handles POST /login with either a form or a JSON body.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.FromContext(ctx)

	creds, err := readCredentials(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validator.Struct(creds); err != nil {
		metrics.LoginAttempts.WithLabelValues("invalid").Inc()
		httputil.Error(w, http.StatusUnauthorized, "Email and password are required")
		return
	}

	result, err := h.auth.Authenticate(ctx, creds.Email, creds.Password)
	if err != nil {
		var credErr *auth.CredentialsError
		switch {
		case errors.As(err, &credErr):
			metrics.LoginAttempts.WithLabelValues("invalid").Inc()
			logger.Info("login rejected", "email", creds.Email, "upstream_status", credErr.Status)
			httputil.Error(w, http.StatusUnauthorized, credErr.Message)
		default:
			metrics.LoginAttempts.WithLabelValues("error").Inc()
			logger.Error("login failed", "error", err)
			httputil.HandleError(w, r, err, guard.UpstreamErrors)
		}
		return
	}

	s, token, err := h.sessions.Create(result.Identity, result.AccessToken)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		logger.Error("failed to create session", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.sessions.SetCookie(w, token, s.ExpiresAt)
	metrics.LoginAttempts.WithLabelValues("success").Inc()
	logger.Info("login succeeded", "user_id", s.Identity.ID, "role", s.Identity.Role, "session_id", s.ID)

	httputil.Redirect(w, r, HomePath)
}

// Logout handles POST /logout. Upstream logout is best effort; the local
// session is always revoked.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.FromContext(ctx)

	if s, ok := session.FromContext(ctx); ok {
		if err := h.auth.Logout(ctx, s.AccessToken); err != nil {
			logger.Warn("upstream logout failed", "error", err)
		}
		if err := h.sessions.Destroy(ctx, s); err != nil {
			logger.Error("failed to revoke session", "session_id", s.ID, "error", err)
		}
	}

	h.sessions.ClearCookie(w)
	httputil.Redirect(w, r, guard.LoginPath)
}

// Unauthorized handles GET /unauthorized.
func (h *Handler) Unauthorized(w http.ResponseWriter, _ *http.Request) {
	httputil.Error(w, http.StatusForbidden, "You do not have permission to access this page.")
}

func readCredentials(r *http.Request) (auth.Credentials, error) {
	var creds auth.Credentials

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			return creds, err
		}
		return creds, nil
	}

	if err := r.ParseForm(); err != nil {
		return creds, err
	}
	creds.Email = r.PostForm.Get("email")
	creds.Password = r.PostForm.Get("password")
	return creds, nil
}
