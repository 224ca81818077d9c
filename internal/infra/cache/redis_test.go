package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/boddenberg/bizdesk-bfa-go/internal/domain"
	"github.com/boddenberg/bizdesk-bfa-go/internal/infra/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedisCache(t *testing.T, ttl time.Duration) (*cache.Redis[domain.Client], *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewRedis[domain.Client](client, "clients", ttl, zap.NewNop()), mr
}

func TestRedis_SetAndGet(t *testing.T) {
	c, mr := newRedisCache(t, time.Minute)

	c.Set("b:1/c-1", domain.Client{ID: "c-1", FullName: "Acme", Tags: []string{"vip"}})

	got, ok := c.Get("b:1/c-1")
	require.True(t, ok)
	assert.Equal(t, "Acme", got.FullName)
	assert.Equal(t, []string{"vip"}, got.Tags)
	assert.True(t, mr.Exists("clients:b:1/c-1"))
}

func TestRedis_ExpiryAndDelete(t *testing.T) {
	c, mr := newRedisCache(t, time.Minute)

	c.Set("k", domain.Client{ID: "c-1"})
	mr.FastForward(2 * time.Minute)
	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Set("k", domain.Client{ID: "c-1"})
	c.Delete("k")
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestRedis_CorruptEntryIsMiss(t *testing.T) {
	c, mr := newRedisCache(t, time.Minute)
	require.NoError(t, mr.Set("clients:bad", "{not json"))

	_, ok := c.Get("bad")
	assert.False(t, ok)
}

func TestNewRedisClient_Ping(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	client, err := cache.NewRedisClient(context.Background(), addr)
	require.NoError(t, err)
	_ = client.Close()

	mr.Close()
	_, err = cache.NewRedisClient(context.Background(), addr)
	assert.Error(t, err)
}
