package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	revoked, err := store.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.Revoke(ctx, "a", time.Now().Add(time.Hour)))
	revoked, err = store.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_NeverEvictsBeforeExpiry(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()
	until := time.Now().Add(time.Hour)

	for i := range 20000 {
		require.NoError(t, store.Revoke(ctx, fmt.Sprintf("s-%d", i), until))
	}

	assert.Equal(t, 20000, store.Len())
	revoked, err := store.IsRevoked(ctx, "s-0")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestLoggedOutSessionStaysRevoked(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	loggedOut, token, err := m.Create(adminIdentity, "at-victim")
	require.NoError(t, err)
	require.NoError(t, m.Destroy(ctx, loggedOut))

	for i := range 50 {
		other, _, err := m.Create(adminIdentity, fmt.Sprintf("at-%d", i))
		require.NoError(t, err)
		require.NoError(t, m.Destroy(ctx, other))
	}

	_, err = m.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrRevoked)
}

func TestMemoryStore_EntriesExpire(t *testing.T) {
	store := NewMemoryStore(20 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "a", time.Now().Add(time.Hour)))

	assert.Eventually(t, func() bool {
		revoked, _ := store.IsRevoked(ctx, "a")
		return !revoked
	}, time.Second, 10*time.Millisecond)
}
