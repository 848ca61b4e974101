package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounterStore shares counters across processes via redis, using
// fixed-window semantics: INCR, with the TTL set on the first hit of a
// window. The counter disappears when the window passes, so a limit can
// never outlive it.
type RedisCounterStore struct {
	client redis.UniversalClient
	prefix string
}

var _ CounterStore = (*RedisCounterStore)(nil)

// NewRedisCounterStore creates a counter store over the given client.
// prefix namespaces the keys (e.g. "securial:rl").
func NewRedisCounterStore(client redis.UniversalClient, prefix string) *RedisCounterStore {
	return &RedisCounterStore{client: client, prefix: prefix}
}

func (s *RedisCounterStore) Incr(key string, window time.Duration) (int64, error) {
	ctx := context.Background()
	fullKey := s.prefix + ":" + key

	count, err := s.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, fullKey, window).Err(); err != nil {
			return 0, fmt.Errorf("redis expire: %w", err)
		}
	}
	return count, nil
}
