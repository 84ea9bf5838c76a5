package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/bissquit/finance-admin/internal/pkg/ctxlog"
)

// Middleware reads the session cookie, verifies and renews it, and stores
// the session on the request context. Requests with a missing or invalid
// cookie continue unauthenticated; invalid cookies are cleared.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		s, err := m.Verify(ctx, cookie.Value)
		if err != nil {
			logger := ctxlog.FromContext(ctx)
			switch {
			case errors.Is(err, ErrExpired), errors.Is(err, ErrRevoked), errors.Is(err, ErrInvalid):
				logger.Debug("discarding session cookie", "reason", err)
				m.ClearCookie(w)
			default:
				logger.Error("session verification failed", "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		if renewed, ok := m.Renew(s, m.now()); ok {
			token, err := m.Encode(renewed)
			if err != nil {
				ctxlog.FromContext(ctx).Error("failed to renew session", "session_id", s.ID, "error", err)
			} else {
				m.SetCookie(w, token, renewed.ExpiresAt)
				s = renewed
			}
		}

		ctx = WithSession(ctx, s)
		ctx = ctxlog.With(ctx, "user_id", s.Identity.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetCookie writes the session cookie.
func (m *Manager) SetCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Domain:   m.domain,
		Expires:  expires,
		MaxAge:   int(expires.Sub(m.now()).Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie removes the session cookie by setting Max-Age=0.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Domain:   m.domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
