package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DedupStore implements ports.DedupCache. It is the fast path in front of
// the database idempotency ledger: a hit here short-circuits a redelivered
// webhook without touching Postgres, and a Redis outage just means every
// delivery falls through to the ledger. Keys are written only after a
// delivery has settled, so the cache never outruns the ledger.
type DedupStore struct {
	client *goredis.Client
	prefix string
}

// NewDedupStore creates a new Redis-backed webhook dedup store.
func NewDedupStore(client *goredis.Client) *DedupStore {
	return &DedupStore{
		client: client,
		prefix: "webhook:",
	}
}

// Seen reports whether an event key is present.
func (s *DedupStore) Seen(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("redis dedup check: %w", err)
	}
	return n > 0, nil
}

// MarkSeen writes the event key with the dedup TTL.
func (s *DedupStore) MarkSeen(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+key, 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis dedup mark: %w", err)
	}
	return nil
}
