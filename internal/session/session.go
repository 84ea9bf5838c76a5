// Package session keeps the authenticated operator's state in a signed cookie.
//
// A session is created once per successful login and carries the identity and
// the upstream access token. It is verified on every request, renewed on a
// sliding window and can be revoked before it expires.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/bissquit/finance-admin/internal/apiclient"
	"github.com/bissquit/finance-admin/internal/domain"
)

// CookieName is the cookie that carries the session token.
const CookieName = "finance_admin_session"

var (
	// ErrInvalid means the token is malformed or its signature does not match.
	ErrInvalid = errors.New("invalid session")
	// ErrExpired means the session outlived its max age.
	ErrExpired = errors.New("session expired")
	// ErrRevoked means the session was ended by logout or an upstream 401.
	ErrRevoked = errors.New("session revoked")
)

// Session is the state of one signed-in operator. Values are never mutated;
// renewal returns a new Session.
type Session struct {
	ID          string
	Identity    domain.Identity
	AccessToken string
	IssuedAt    time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time
}

// ExpiredAt reports whether the session is no longer valid at t.
func (s *Session) ExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// HasRole reports whether the session identity holds role exactly.
func (s *Session) HasRole(role domain.Role) bool {
	return s.Identity.Role == role
}

type ctxKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored on ctx, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}

// AccessToken returns the upstream token of the session on ctx.
func AccessToken(ctx context.Context) (string, bool) {
	s, ok := FromContext(ctx)
	if !ok {
		return "", false
	}
	return s.AccessToken, true
}

// TokenSource exposes the request-scoped session to the API client.
func TokenSource() apiclient.TokenSource {
	return apiclient.TokenSourceFunc(AccessToken)
}
