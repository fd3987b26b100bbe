//go:build integration

package redisdb

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsearch/internal/domain/document"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set, skipping integration test")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return client
}

func TestIntegration_SearchCacheRoundTrip(t *testing.T) {
	client := newTestRedis(t)
	cache := NewSearchCache(client, 60)
	ctx := context.Background()
	cache.Invalidate(ctx)

	q := document.SearchQuery{Text: "hello", Mode: document.RankingSimple, Top: 10}
	_, ok := cache.Get(ctx, q)
	assert.False(t, ok)

	want := []document.Excerpt{{Filename: "notes.txt", Content: "hello world"}}
	cache.Set(ctx, q, want)

	got, ok := cache.Get(ctx, q)
	require.True(t, ok)
	assert.Equal(t, want, got)

	// 模式不同即不同 key
	_, ok = cache.Get(ctx, document.SearchQuery{Text: "hello", Mode: document.RankingSemantic, Top: 10})
	assert.False(t, ok)

	cache.Invalidate(ctx)
	_, ok = cache.Get(ctx, q)
	assert.False(t, ok)
}

func TestIntegration_IndexLockIsExclusive(t *testing.T) {
	client := newTestRedis(t)
	lock := NewIndexLock(client)
	ctx := context.Background()
	require.NoError(t, client.Del(ctx, lockKey("it-index")).Err())

	ok, err := lock.Acquire(ctx, "it-index")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lock.Acquire(ctx, "it-index")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lock.Release(ctx, "it-index"))
	ok, err = lock.Acquire(ctx, "it-index")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, lock.Release(ctx, "it-index"))
}

func TestIntegration_IndexLockReleaseKeepsForeignLock(t *testing.T) {
	client := newTestRedis(t)
	a := NewIndexLock(client)
	b := NewIndexLock(client)
	ctx := context.Background()
	require.NoError(t, client.Del(ctx, lockKey("it-owner")).Err())

	ok, err := a.Acquire(ctx, "it-owner")
	require.NoError(t, err)
	require.True(t, ok)

	// a 的锁过期后被 b 获取
	require.NoError(t, client.Del(ctx, lockKey("it-owner")).Err())
	ok, err = b.Acquire(ctx, "it-owner")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, a.Release(ctx, "it-owner"))
	exists, err := client.Exists(ctx, lockKey("it-owner")).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	require.NoError(t, b.Release(ctx, "it-owner"))
	exists, err = client.Exists(ctx, lockKey("it-owner")).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)
}
