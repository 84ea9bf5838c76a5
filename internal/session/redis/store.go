// Package redis stores revoked session IDs in Redis so that logout is
// honoured by every console replica.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "finance-admin:session:revoked:"

// Store implements session.RevocationStore on a Redis client.
type Store struct {
	client *goredis.Client
	now    func() time.Time
}

// New creates a store using client.
func New(client *goredis.Client) *Store {
	return &Store{client: client, now: time.Now}
}

// Connect parses url, creates a client and checks that Redis answers.
func Connect(ctx context.Context, url string) (*Store, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client), nil
}

// Revoke marks id as revoked until the session would have expired.
func (s *Store) Revoke(ctx context.Context, id string, until time.Time) error {
	ttl := until.Sub(s.now())
	if ttl <= 0 {
		// already expired, nothing to remember
		return nil
	}
	if err := s.client.Set(ctx, keyPrefix+id, until.Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("revoke session %s: %w", id, err)
	}
	return nil
}

// IsRevoked reports whether id has been revoked.
func (s *Store) IsRevoked(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("check session %s: %w", id, err)
	}
	return n > 0, nil
}

// Ping checks that Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
