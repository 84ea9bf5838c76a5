package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bissquit/finance-admin/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef-test-secret"

var adminIdentity = domain.Identity{
	ID:        "u-1",
	Email:     "admin@example.com",
	FirstName: "Ada",
	LastName:  "Admin",
	Role:      domain.RoleAdmin,
	Status:    domain.StatusActive,
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(t *testing.T) (*Manager, *fakeClock) {
	t.Helper()

	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	m, err := NewManager(Config{
		Secret:    testSecret,
		MaxAge:    24 * time.Hour,
		UpdateAge: time.Hour,
		Now:       clock.Now,
	}, NewMemoryStore(24*time.Hour))
	require.NoError(t, err)

	return m, clock
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(Config{Secret: "short"}, NewMemoryStore(time.Hour))
	assert.Error(t, err)

	_, err = NewManager(Config{Secret: testSecret}, nil)
	assert.Error(t, err)

	m, err := NewManager(Config{Secret: testSecret}, NewMemoryStore(time.Hour))
	require.NoError(t, err)
	s, _, err := m.Create(adminIdentity, "at-1")
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxAge, s.ExpiresAt.Sub(s.IssuedAt))
}

func TestCreateAndVerify(t *testing.T) {
	m, clock := newTestManager(t)

	s, token, err := m.Create(adminIdentity, "upstream-token")
	require.NoError(t, err)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, adminIdentity, s.Identity)
	assert.Equal(t, "upstream-token", s.AccessToken)
	assert.Equal(t, clock.Now(), s.IssuedAt)
	assert.Equal(t, clock.Now().Add(24*time.Hour), s.ExpiresAt)

	got, err := m.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, s.Identity, got.Identity)
	assert.Equal(t, s.AccessToken, got.AccessToken)
	assert.True(t, s.IssuedAt.Equal(got.IssuedAt))
	assert.True(t, s.ExpiresAt.Equal(got.ExpiresAt))
}

func TestCreate_RequiresAccessToken(t *testing.T) {
	m, _ := newTestManager(t)

	_, _, err := m.Create(adminIdentity, "")
	assert.Error(t, err)
}

func TestToken_DoesNotExposeAccessToken(t *testing.T) {
	m, _ := newTestManager(t)

	_, token, err := m.Create(adminIdentity, "very-secret-upstream-token")
	require.NoError(t, err)

	assert.NotContains(t, token, "very-secret-upstream-token")
}

func TestVerify_Lifetime(t *testing.T) {
	m, clock := newTestManager(t)
	_, token, err := m.Create(adminIdentity, "tok")
	require.NoError(t, err)

	clock.Advance(23 * time.Hour)
	_, err = m.Verify(context.Background(), token)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	_, err = m.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerify_Tampered(t *testing.T) {
	m, _ := newTestManager(t)
	_, token, err := m.Create(adminIdentity, "tok")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	parts[2] = strings.Repeat("A", len(parts[2]))

	_, err = m.Verify(context.Background(), strings.Join(parts, "."))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = m.Verify(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestVerify_OtherSecret(t *testing.T) {
	m, clock := newTestManager(t)
	_, token, err := m.Create(adminIdentity, "tok")
	require.NoError(t, err)

	other, err := NewManager(Config{Secret: "another-secret-of-enough-length", Now: clock.Now}, NewMemoryStore(time.Hour))
	require.NoError(t, err)

	_, err = other.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestDestroy_RevokesSession(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	s, token, err := m.Create(adminIdentity, "tok")
	require.NoError(t, err)

	require.NoError(t, m.Destroy(ctx, s))

	_, err = m.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrRevoked)

	// other sessions are unaffected
	_, token2, err := m.Create(adminIdentity, "tok")
	require.NoError(t, err)
	_, err = m.Verify(ctx, token2)
	assert.NoError(t, err)
}

func TestDestroy_Nil(t *testing.T) {
	m, _ := newTestManager(t)
	assert.NoError(t, m.Destroy(context.Background(), nil))
}

func TestRenew(t *testing.T) {
	m, clock := newTestManager(t)
	s, _, err := m.Create(adminIdentity, "tok")
	require.NoError(t, err)

	t.Run("within update age", func(t *testing.T) {
		got, renewed := m.Renew(s, clock.Now().Add(30*time.Minute))
		assert.False(t, renewed)
		assert.Same(t, s, got)
	})

	t.Run("after update age", func(t *testing.T) {
		now := clock.Now().Add(2 * time.Hour)
		got, renewed := m.Renew(s, now)
		require.True(t, renewed)
		assert.NotSame(t, s, got)
		assert.Equal(t, s.ID, got.ID)
		assert.Equal(t, s.IssuedAt, got.IssuedAt)
		assert.Equal(t, now, got.UpdatedAt)
		assert.Equal(t, now.Add(24*time.Hour), got.ExpiresAt)
		// original is unchanged
		assert.Equal(t, clock.Now().Add(24*time.Hour), s.ExpiresAt)
	})

	t.Run("expired", func(t *testing.T) {
		_, renewed := m.Renew(s, clock.Now().Add(25*time.Hour))
		assert.False(t, renewed)
	})
}

func TestRenew_ExtendsLifetime(t *testing.T) {
	m, clock := newTestManager(t)
	s, _, err := m.Create(adminIdentity, "tok")
	require.NoError(t, err)

	clock.Advance(20 * time.Hour)
	renewed, ok := m.Renew(s, clock.Now())
	require.True(t, ok)
	token, err := m.Encode(renewed)
	require.NoError(t, err)

	clock.Advance(10 * time.Hour)
	got, err := m.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
}

func TestExpireCurrent(t *testing.T) {
	m, _ := newTestManager(t)
	s, token, err := m.Create(adminIdentity, "tok")
	require.NoError(t, err)

	// no session on context is a no-op
	m.ExpireCurrent(context.Background())
	_, err = m.Verify(context.Background(), token)
	require.NoError(t, err)

	m.ExpireCurrent(WithSession(context.Background(), s))
	_, err = m.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrRevoked)
}

func TestContextHelpers(t *testing.T) {
	m, _ := newTestManager(t)

	_, ok := m.Current(context.Background())
	assert.False(t, ok)
	_, ok = AccessToken(context.Background())
	assert.False(t, ok)

	s, _, err := m.Create(adminIdentity, "tok")
	require.NoError(t, err)
	ctx := WithSession(context.Background(), s)

	got, ok := m.Current(ctx)
	require.True(t, ok)
	assert.Same(t, s, got)

	token, ok := TokenSource().AccessToken(ctx)
	require.True(t, ok)
	assert.Equal(t, "tok", token)
}

func TestSession_HasRole(t *testing.T) {
	s := &Session{Identity: adminIdentity}
	assert.True(t, s.HasRole(domain.RoleAdmin))
	assert.False(t, s.HasRole(domain.RoleManager))
}
