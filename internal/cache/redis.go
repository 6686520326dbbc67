package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agenthands/graphrag/internal/core/model"
	"github.com/agenthands/graphrag/internal/logger"
	"github.com/agenthands/graphrag/internal/metrics"
)

const backendRedis = "redis"

// Redis shares retrievals across replicas. Failures are logged and treated
// as misses; the cache never fails a request.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(addr, password string, db int, ttl time.Duration) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	return &Redis{rdb: rdb, ttl: ttl}
}

func (c *Redis) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Redis) Get(ctx context.Context, key string) (*model.RetrievalResult, bool) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn(ctx, "redis cache get failed", "error", err)
			metrics.CacheLookupsTotal.WithLabelValues(backendRedis, "error").Inc()
			return nil, false
		}
		metrics.CacheLookupsTotal.WithLabelValues(backendRedis, "miss").Inc()
		return nil, false
	}

	var r model.RetrievalResult
	if err := json.Unmarshal(raw, &r); err != nil {
		logger.Warn(ctx, "dropping undecodable cache entry", "key", key, "error", err)
		c.rdb.Del(ctx, key)
		metrics.CacheLookupsTotal.WithLabelValues(backendRedis, "error").Inc()
		return nil, false
	}
	metrics.CacheLookupsTotal.WithLabelValues(backendRedis, "hit").Inc()
	return &r, true
}

func (c *Redis) Set(ctx context.Context, key string, r *model.RetrievalResult) {
	raw, err := json.Marshal(r)
	if err != nil {
		logger.Warn(ctx, "cannot encode retrieval for cache", "error", err)
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		logger.Warn(ctx, "redis cache set failed", "error", err)
	}
}

func (c *Redis) Close() error {
	return c.rdb.Close()
}
