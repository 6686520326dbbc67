package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/agenthands/graphrag/internal/core/model"
	"github.com/agenthands/graphrag/internal/metrics"
)

const backendMemory = "memory"

type entry struct {
	result    *model.RetrievalResult
	expiresAt time.Time
}

// Memory is a size-bounded LRU with a per-entry TTL. It is safe for
// concurrent use.
type Memory struct {
	lru *lru.Cache
	ttl time.Duration
	now func() time.Time
}

func NewMemory(size int, ttl time.Duration) (*Memory, error) {
	if size <= 0 {
		size = 512
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Memory{lru: c, ttl: ttl, now: time.Now}, nil
}

func (m *Memory) Get(ctx context.Context, key string) (*model.RetrievalResult, bool) {
	v, ok := m.lru.Get(key)
	if !ok {
		metrics.CacheLookupsTotal.WithLabelValues(backendMemory, "miss").Inc()
		return nil, false
	}
	e := v.(entry)
	if expired(e.expiresAt, m.now()) {
		m.lru.Remove(key)
		metrics.CacheLookupsTotal.WithLabelValues(backendMemory, "expired").Inc()
		return nil, false
	}
	metrics.CacheLookupsTotal.WithLabelValues(backendMemory, "hit").Inc()
	return copyResult(e.result), true
}

func (m *Memory) Set(ctx context.Context, key string, r *model.RetrievalResult) {
	e := entry{result: copyResult(r)}
	if m.ttl > 0 {
		e.expiresAt = m.now().Add(m.ttl)
	}
	m.lru.Add(key, e)
}

func (m *Memory) Len() int { return m.lru.Len() }

func (m *Memory) Close() error {
	m.lru.Purge()
	return nil
}

// copyResult detaches the item slice so callers cannot mutate cached state.
func copyResult(r *model.RetrievalResult) *model.RetrievalResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Items = append([]model.Item(nil), r.Items...)
	return &c
}
