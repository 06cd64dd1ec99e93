package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const defaultCacheExpiration = 5 * time.Minute

// Cache keeps recent quotes in redis in front of another Quoter.
// Redis failures degrade to a direct lookup.
type Cache struct {
	next Quoter
	rdb  *redis.Client
	ttl  time.Duration
	log  *zap.Logger
}

func NewCache(next Quoter, rdb *redis.Client, ttl time.Duration, log *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheExpiration
	}
	return &Cache{next: next, rdb: rdb, ttl: ttl, log: log}
}

func cacheKey(symbol string) string {
	return fmt.Sprintf("stock:%s:price", symbol)
}

func (c *Cache) Lookup(ctx context.Context, symbol string) (*Quote, error) {
	symbol = Normalize(symbol)
	key := cacheKey(symbol)

	cached, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var q Quote
		if err := json.Unmarshal(cached, &q); err == nil {
			return &q, nil
		}
		c.log.Warn("discarding malformed cached quote", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("quote cache read failed", zap.String("key", key), zap.Error(err))
	}

	q, err := c.next.Lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(q)
	if err != nil {
		return q, nil
	}
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.log.Warn("quote cache write failed", zap.String("key", key), zap.Error(err))
	}
	return q, nil
}
