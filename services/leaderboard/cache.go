package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ecopoints",
		Subsystem: "leaderboard",
		Name:      "cache_hits_total",
		Help:      "Leaderboard pages served from the cache.",
	})
	cacheMiss = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ecopoints",
		Subsystem: "leaderboard",
		Name:      "cache_miss_total",
		Help:      "Leaderboard pages loaded from the database.",
	})
)

func init() {
	prometheus.MustRegister(cacheHits, cacheMiss)
}

// PageCache stores rendered pages for a short time. Errors are treated as
// misses; the cache never fails a read.
type PageCache interface {
	Get(ctx context.Context, key string) (*Page, bool)
	Set(ctx context.Context, key string, page *Page, ttl time.Duration)
}

type redisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) PageCache {
	return &redisCache{rdb: rdb}
}

func (c *redisCache) Get(ctx context.Context, key string) (*Page, bool) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Debug("[Leaderboard] cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var p Page
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, false
	}
	return &p, true
}

func (c *redisCache) Set(ctx context.Context, key string, page *Page, ttl time.Duration) {
	b, err := json.Marshal(page)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, b, ttl).Err(); err != nil {
		zap.L().Debug("[Leaderboard] cache write failed", zap.String("key", key), zap.Error(err))
	}
}
