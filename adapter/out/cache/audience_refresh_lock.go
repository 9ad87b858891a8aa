package cache

import (
	"context"
	"time"

	"audience_server/core/port/out"
	"audience_server/pkg/cache"
	"audience_server/pkg/logger"

	"github.com/google/uuid"
)

const refreshLockKey = "segmentation:refresh:lock"

// RefreshLock implements out.RefreshLock with a Redis SET NX PX token lock.
// The TTL must outlast the longest refresh pass.
type RefreshLock struct {
	redis *cache.RedisCache
	ttl   time.Duration
}

var _ out.RefreshLock = (*RefreshLock)(nil)

func NewRefreshLock(redis *cache.RedisCache, ttl time.Duration) *RefreshLock {
	return &RefreshLock{redis: redis, ttl: ttl}
}

func (l *RefreshLock) TryAcquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.redis.TryLock(ctx, refreshLockKey, token, l.ttl)
	if err != nil || !ok {
		return nil, false, err
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.redis.Unlock(ctx, refreshLockKey, token); err != nil {
			logger.WithError(err).Warn("[RefreshLock] release failed, lock will expire")
		}
	}
	return release, true, nil
}
