package session

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bissquit/finance-admin/internal/domain"
	"github.com/bissquit/finance-admin/internal/pkg/ctxlog"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	issuer = "finance-admin"

	// DefaultMaxAge is how long a session lives without renewal.
	DefaultMaxAge = 24 * time.Hour
	// DefaultUpdateAge is how often an active session is renewed.
	DefaultUpdateAge = time.Hour
)

// Config configures a Manager.
type Config struct {
	Secret       string
	MaxAge       time.Duration
	UpdateAge    time.Duration
	CookieSecure bool
	CookieDomain string
	// Now replaces time.Now in tests.
	Now func() time.Time
}

// RevocationStore remembers sessions that ended before their expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, id string, until time.Time) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

// Manager mints, verifies, renews and revokes sessions.
type Manager struct {
	signingKey []byte
	sealer     cipher.AEAD
	maxAge     time.Duration
	updateAge  time.Duration
	secure     bool
	domain     string
	now        func() time.Time
	revoked    RevocationStore
}

type claims struct {
	Identity  domain.Identity  `json:"usr"`
	Token     string           `json:"tok"`
	UpdatedAt *jwt.NumericDate `json:"uat"`
	jwt.RegisteredClaims
}

// NewManager creates a session manager. Signing and encryption keys are
// derived from cfg.Secret.
func NewManager(cfg Config, revoked RevocationStore) (*Manager, error) {
	if len(cfg.Secret) < 16 {
		return nil, errors.New("session secret must be at least 16 bytes")
	}
	if revoked == nil {
		return nil, errors.New("revocation store is required")
	}

	signingKey, err := deriveKey(cfg.Secret, "finance-admin session signing")
	if err != nil {
		return nil, err
	}
	encKey, err := deriveKey(cfg.Secret, "finance-admin session encryption")
	if err != nil {
		return nil, err
	}
	sealer, err := chacha20poly1305.NewX(encKey)
	if err != nil {
		return nil, fmt.Errorf("create session cipher: %w", err)
	}

	m := &Manager{
		signingKey: signingKey,
		sealer:     sealer,
		maxAge:     cfg.MaxAge,
		updateAge:  cfg.UpdateAge,
		secure:     cfg.CookieSecure,
		domain:     cfg.CookieDomain,
		now:        cfg.Now,
		revoked:    revoked,
	}
	if m.maxAge <= 0 {
		m.maxAge = DefaultMaxAge
	}
	if m.updateAge < 0 {
		m.updateAge = DefaultUpdateAge
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

func deriveKey(secret, info string) ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	return key, nil
}

// Create starts a session for identity and returns it with its signed token.
func (m *Manager) Create(identity domain.Identity, accessToken string) (*Session, string, error) {
	if accessToken == "" {
		return nil, "", errors.New("create session: empty access token")
	}

	// NumericDate has second precision; truncate so the returned value
	// matches what Verify reads back.
	now := m.now().Truncate(time.Second)
	s := &Session{
		ID:          uuid.NewString(),
		Identity:    identity,
		AccessToken: accessToken,
		IssuedAt:    now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(m.maxAge),
	}

	token, err := m.Encode(s)
	if err != nil {
		return nil, "", err
	}
	return s, token, nil
}

// Encode signs s into a token.
func (m *Manager) Encode(s *Session) (string, error) {
	sealed, err := m.seal(s.ID, s.AccessToken)
	if err != nil {
		return "", err
	}

	c := claims{
		Identity:  s.Identity,
		Token:     sealed,
		UpdatedAt: jwt.NewNumericDate(s.UpdatedAt),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Issuer:    issuer,
			Subject:   s.Identity.ID,
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return token, nil
}

// Verify parses token and checks its signature, expiry and revocation.
func (m *Manager) Verify(ctx context.Context, token string) (*Session, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return m.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.ID == "" || c.IssuedAt == nil || c.UpdatedAt == nil {
		return nil, fmt.Errorf("%w: missing claims", ErrInvalid)
	}

	accessToken, err := m.open(c.ID, c.Token)
	if err != nil {
		return nil, err
	}

	revoked, err := m.revoked.IsRevoked(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrRevoked
	}

	return &Session{
		ID:          c.ID,
		Identity:    c.Identity,
		AccessToken: accessToken,
		IssuedAt:    c.IssuedAt.Time,
		UpdatedAt:   c.UpdatedAt.Time,
		ExpiresAt:   c.ExpiresAt.Time,
	}, nil
}

// Renew extends s when it was last updated at least UpdateAge ago.
// It reports whether a new session was produced; expired sessions are
// never renewed.
func (m *Manager) Renew(s *Session, now time.Time) (*Session, bool) {
	if s.ExpiredAt(now) {
		return s, false
	}
	if now.Sub(s.UpdatedAt) < m.updateAge {
		return s, false
	}

	now = now.Truncate(time.Second)
	renewed := *s
	renewed.UpdatedAt = now
	renewed.ExpiresAt = now.Add(m.maxAge)
	return &renewed, true
}

// Destroy revokes s until its natural expiry.
func (m *Manager) Destroy(ctx context.Context, s *Session) error {
	if s == nil {
		return nil
	}
	if err := m.revoked.Revoke(ctx, s.ID, s.ExpiresAt); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	ctxlog.FromContext(ctx).Info("session destroyed", "session_id", s.ID, "user_id", s.Identity.ID)
	return nil
}

// Current returns the session bound to the request context.
func (m *Manager) Current(ctx context.Context) (*Session, bool) {
	return FromContext(ctx)
}

// ExpireCurrent revokes the session on ctx. It is registered as the API
// client's hook for upstream 401 responses.
func (m *Manager) ExpireCurrent(ctx context.Context) {
	s, ok := FromContext(ctx)
	if !ok {
		return
	}
	if err := m.Destroy(ctx, s); err != nil {
		ctxlog.FromContext(ctx).Error("failed to expire session", "session_id", s.ID, "error", err)
	}
}

func (m *Manager) seal(sessionID, accessToken string) (string, error) {
	nonce := make([]byte, m.sealer.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	out := m.sealer.Seal(nonce, nonce, []byte(accessToken), []byte(sessionID))
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (m *Manager) open(sessionID, sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(raw) < m.sealer.NonceSize() {
		return "", fmt.Errorf("%w: bad access token", ErrInvalid)
	}
	n := m.sealer.NonceSize()
	plain, err := m.sealer.Open(nil, raw[:n], raw[n:], []byte(sessionID))
	if err != nil {
		return "", fmt.Errorf("%w: bad access token", ErrInvalid)
	}
	return string(plain), nil
}
