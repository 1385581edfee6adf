package redis

import (
	"context"

	"ordersync/internal/domain"
	"ordersync/pkg/logger"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "readmodel:"

// ReadModelCache backs the invalidation dispatcher with Redis. A cached
// read-model lives under readmodel:<key>; invalidation deletes it so
// the next read refetches. Deleting an absent key is a no-op.
type ReadModelCache struct {
	client *redis.Client
	log    logger.Logger
}

func NewReadModelCache(client *redis.Client, log logger.Logger) *ReadModelCache {
	return &ReadModelCache{client: client, log: log}
}

func (r *ReadModelCache) Invalidate(ctx context.Context, key domain.CacheKey) error {
	deleted, err := r.client.Del(ctx, keyPrefix+string(key)).Result()
	if err != nil {
		return err
	}
	if deleted > 0 {
		r.log.Debug("Read-model invalidated", "key", key)
	}
	return nil
}

func (r *ReadModelCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
