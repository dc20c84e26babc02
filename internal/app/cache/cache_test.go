package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func exercise(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()

	var got item
	hit, err := c.Get(ctx, "item:1", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "item:1", item{ID: "1", Name: "Jazz"}, time.Minute))
	hit, err = c.Get(ctx, "item:1", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, item{ID: "1", Name: "Jazz"}, got)

	require.NoError(t, c.Delete(ctx, "item:1", "item:missing"))
	hit, err = c.Get(ctx, "item:1", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestMemoryCache(t *testing.T) {
	exercise(t, NewMemory())
}

func TestMemoryCacheExpiry(t *testing.T) {
	m := NewMemory()
	now := time.Now()
	m.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "k", "v", time.Second))

	var v string
	hit, _ := m.Get(ctx, "k", &v)
	require.True(t, hit)

	now = now.Add(2 * time.Second)
	hit, _ = m.Get(ctx, "k", &v)
	assert.False(t, hit, "entry should have expired")
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set; skipping redis cache test")
	}
	r, err := NewRedis(context.Background(), RedisOptions{Addr: addr, Prefix: "recordstore-test:"})
	require.NoError(t, err)
	defer r.Close()

	exercise(t, r)
}
