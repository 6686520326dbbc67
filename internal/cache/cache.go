// Package cache keeps finished retrievals so repeated questions skip the
// graph round trip.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agenthands/graphrag/internal/config"
	"github.com/agenthands/graphrag/internal/core/model"
)

type Cache interface {
	Get(ctx context.Context, key string) (*model.RetrievalResult, bool)
	Set(ctx context.Context, key string, r *model.RetrievalResult)
	Close() error
}

// New builds the configured backend. A disabled cache returns nil, nil.
func New(cfg config.CacheConfig) (Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return NewMemory(cfg.Size, cfg.TTL())
	case "redis":
		return NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.TTL()), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

func expired(at time.Time, now time.Time) bool {
	return !at.IsZero() && now.After(at)
}
