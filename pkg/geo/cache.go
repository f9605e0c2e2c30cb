package geo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "geo:"

// CachedLocator fronts a Locator with a Redis cache keyed by `geo:<ip>`.
// Cache failures are logged and fall through to the wrapped locator.
type CachedLocator struct {
	next   Locator
	client redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedLocator(next Locator, client redis.Cmdable, ttl time.Duration, logger *zap.Logger) Locator {
	if client == nil {
		return next
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedLocator{next: next, client: client, ttl: ttl, logger: logger}
}

func (c *CachedLocator) Locate(ctx context.Context, ip string) (Location, error) {
	key := cacheKeyPrefix + ip
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var loc Location
		if jsonErr := json.Unmarshal(raw, &loc); jsonErr == nil {
			return loc, nil
		}
		c.logger.Warn("geo_cache_corrupt", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("geo_cache_get_failed", zap.String("key", key), zap.Error(err))
	}

	loc, err := c.next.Locate(ctx, ip)
	if err != nil {
		return Location{}, err
	}
	payload, err := json.Marshal(loc)
	if err == nil {
		if setErr := c.client.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
			c.logger.Warn("geo_cache_set_failed", zap.String("key", key), zap.Error(setErr))
		}
	}
	return loc, nil
}
