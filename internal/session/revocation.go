package session

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore keeps revoked session IDs in process. It is not size capped:
// an entry only leaves once ttl passes, which must be at least the session
// max age so a revoked token cannot verify again.
type MemoryStore struct {
	cache *expirable.LRU[string, time.Time]
}

// NewMemoryStore creates a store remembering each revocation for ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		// size 0 disables eviction
		cache: expirable.NewLRU[string, time.Time](0, nil, ttl),
	}
}

// Revoke marks id as revoked. Verification rejects the session on expiry
// anyway, so until is kept for inspection only.
func (s *MemoryStore) Revoke(_ context.Context, id string, until time.Time) error {
	s.cache.Add(id, until)
	return nil
}

// IsRevoked reports whether id has been revoked.
func (s *MemoryStore) IsRevoked(_ context.Context, id string) (bool, error) {
	_, ok := s.cache.Get(id)
	return ok, nil
}

// Len returns the number of remembered revocations.
func (s *MemoryStore) Len() int {
	return s.cache.Len()
}
