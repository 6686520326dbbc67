package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/graphrag/internal/config"
	"github.com/agenthands/graphrag/internal/core/model"
)

func result(ids ...string) *model.RetrievalResult {
	r := &model.RetrievalResult{Strategy: model.StrategyNeighborLookup}
	for _, id := range ids {
		r.Items = append(r.Items, model.Item{Subject: model.Entity{ID: id}})
	}
	return r
}

func TestMemory_GetSet(t *testing.T) {
	m, err := NewMemory(4, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	_, ok := m.Get(ctx, "k")
	assert.False(t, ok)

	m.Set(ctx, "k", result("a", "b"))
	got, ok := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Len(t, got.Items, 2)

	got.Items[0].Subject.ID = "mutated"
	again, _ := m.Get(ctx, "k")
	assert.Equal(t, "a", again.Items[0].Subject.ID)
}

func TestMemory_Expiry(t *testing.T) {
	m, err := NewMemory(4, time.Minute)
	require.NoError(t, err)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	m.Set(ctx, "k", result("a"))
	now = now.Add(30 * time.Second)
	_, ok := m.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok = m.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestMemory_Evicts(t *testing.T) {
	m, err := NewMemory(2, 0)
	require.NoError(t, err)
	ctx := context.Background()

	m.Set(ctx, "a", result("a"))
	m.Set(ctx, "b", result("b"))
	m.Set(ctx, "c", result("c"))

	_, ok := m.Get(ctx, "a")
	assert.False(t, ok)
	assert.Equal(t, 2, m.Len())
}

func TestRedis_UnreachableIsMiss(t *testing.T) {
	c := NewRedis("127.0.0.1:1", "", 0, time.Minute)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "k", result("a"))
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Error(t, c.Ping(ctx))
}

func TestNew(t *testing.T) {
	c, err := New(config.CacheConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = New(config.CacheConfig{Enabled: true, Backend: "memory", Size: 8, TTLSeconds: 60})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	c, err = New(config.CacheConfig{Enabled: true, Backend: "redis", RedisAddr: "localhost:6379"})
	require.NoError(t, err)
	assert.IsType(t, &Redis{}, c)
	require.NoError(t, c.Close())

	_, err = New(config.CacheConfig{Enabled: true, Backend: "memcached"})
	assert.Error(t, err)
}
