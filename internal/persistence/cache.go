package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/quanthive/quanthive/internal/market"
)

// CachedBarStore is a read-through cache in front of a BarStore. History is
// append-only, so a cached window never goes stale within its TTL; the TTL
// exists to bound memory, not correctness.
type CachedBarStore struct {
	inner BarStore
	rdb   *redis.Client
	ttl   time.Duration
	log   zerolog.Logger
}

// NewCachedBarStore wraps inner with a Redis cache.
func NewCachedBarStore(inner BarStore, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedBarStore {
	return &CachedBarStore{
		inner: inner,
		rdb:   rdb,
		ttl:   ttl,
		log:   log.With().Str("component", "bar_cache").Logger(),
	}
}

// ReadRange serves from Redis when possible. Cache failures degrade to the
// inner store; they are logged, never surfaced.
func (c *CachedBarStore) ReadRange(ctx context.Context, symbol string, tr TimeRange) (*market.Frame, error) {
	key := c.key(symbol, tr)

	if data, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var frame market.Frame
		if err := json.Unmarshal(data, &frame); err == nil {
			return &frame, nil
		}
		c.log.Warn().Str("key", key).Msg("dropping undecodable cache entry")
		c.rdb.Del(ctx, key)
	} else if err != redis.Nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed, falling through")
	}

	frame, err := c.inner.ReadRange(ctx, symbol, tr)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(frame); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	return frame, nil
}

// Count always hits the inner store; counts are cheap upstream.
func (c *CachedBarStore) Count(ctx context.Context, symbol string, tr TimeRange) (int64, error) {
	return c.inner.Count(ctx, symbol, tr)
}

func (c *CachedBarStore) key(symbol string, tr TimeRange) string {
	return fmt.Sprintf("quanthive:bars:%s:%d:%d", symbol, tr.From.Unix(), tr.To.Unix())
}

var _ BarStore = (*CachedBarStore)(nil)
