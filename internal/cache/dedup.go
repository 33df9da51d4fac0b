package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupStore claims one-shot side effects, such as sending an email, per key.
type DedupStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewDedupStore(rdb *redis.Client, prefix string, ttl time.Duration) *DedupStore {
	return &DedupStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Claim reports true if the caller is the first to claim key within the TTL.
func (s *DedupStore) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, s.prefix+key, time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s%s: %w", s.prefix, key, err)
	}
	return ok, nil
}

// Release drops a claim so the side effect can be attempted again.
func (s *DedupStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.prefix+key).Err()
}
