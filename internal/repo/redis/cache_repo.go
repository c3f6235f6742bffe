package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const catalogPrefix = "catalog:"

// CacheRepo stores serialized catalog search results keyed by the
// normalized query. Entries expire on their own; mutations to the
// catalog call Invalidate to drop stale results early.
type CacheRepo struct {
	client *goredis.Client
}

func NewCacheRepo(client *goredis.Client) *CacheRepo {
	return &CacheRepo{client: client}
}

func (r *CacheRepo) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if r.client == nil {
		return nil, false, fmt.Errorf("redis client is nil")
	}

	payload, err := r.client.Get(ctx, catalogPrefix+key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get catalog cache entry: %w", err)
	}

	return payload, true, nil
}

func (r *CacheRepo) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	if err := r.client.Set(ctx, catalogPrefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("set catalog cache entry: %w", err)
	}

	return nil
}

func (r *CacheRepo) Invalidate(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	iter := r.client.Scan(ctx, 0, catalogPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("delete catalog cache entry: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan catalog cache keys: %w", err)
	}

	return nil
}
