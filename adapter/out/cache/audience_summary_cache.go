// Package cache adapts the Redis cache to the segmentation ports.
package cache

import (
	"context"
	"time"

	"audience_server/core/domain"
	"audience_server/core/port/out"
	"audience_server/pkg/cache"
	"audience_server/pkg/logger"
)

const summaryKey = "segmentation:population_summary"

// SummaryCache implements out.SummaryCache. Redis failures degrade to a miss.
type SummaryCache struct {
	redis *cache.RedisCache
}

var _ out.SummaryCache = (*SummaryCache)(nil)

func NewSummaryCache(redis *cache.RedisCache) *SummaryCache {
	return &SummaryCache{redis: redis}
}

func (c *SummaryCache) GetSummary(ctx context.Context) (*domain.PopulationSummary, bool) {
	var summary domain.PopulationSummary
	ok, err := c.redis.GetJSON(ctx, summaryKey, &summary)
	if err != nil {
		logger.WithError(err).Warn("[SummaryCache] read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return &summary, true
}

func (c *SummaryCache) SetSummary(ctx context.Context, summary *domain.PopulationSummary, ttl time.Duration) {
	if err := c.redis.SetJSON(ctx, summaryKey, summary, ttl); err != nil {
		logger.WithError(err).Warn("[SummaryCache] write failed")
	}
}

func (c *SummaryCache) InvalidateSummary(ctx context.Context) {
	if err := c.redis.Delete(ctx, summaryKey); err != nil {
		logger.WithError(err).Warn("[SummaryCache] invalidate failed")
	}
}
