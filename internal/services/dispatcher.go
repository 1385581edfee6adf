package services

import (
	"context"

	"ordersync/internal/domain"
	"ordersync/pkg/logger"
)

// CacheDispatcher applies invalidation side effects to the read-model
// cache. Effects for one event target disjoint keys, so application
// order does not matter; a miss is a no-op.
type CacheDispatcher struct {
	cache domain.ReadModelCache
	log   logger.Logger
}

func NewCacheDispatcher(cache domain.ReadModelCache, log logger.Logger) *CacheDispatcher {
	return &CacheDispatcher{cache: cache, log: log}
}

func (d *CacheDispatcher) Apply(ctx context.Context, effects []domain.SideEffect) {
	for _, effect := range effects {
		if effect.Kind != domain.EffectInvalidate {
			continue
		}
		if err := d.cache.Invalidate(ctx, effect.Key); err != nil {
			d.log.Error("Failed to invalidate read-model", "key", effect.Key, "error", err)
		}
	}
}
