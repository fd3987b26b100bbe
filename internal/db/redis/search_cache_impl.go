package redisdb

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"docsearch/internal/domain/document"
	applog "docsearch/internal/platform/log"
)

var _ document.QueryCache = (*SearchCache)(nil)

// SearchCache 检索结果 Redis 缓存
type SearchCache struct {
	redis  *redis.Client
	ttl    time.Duration
	prefix string
}

// NewSearchCache 创建检索缓存
func NewSearchCache(rdb *redis.Client, ttlSeconds int) *SearchCache {
	ttl := 5 * time.Minute
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	return &SearchCache{
		redis:  rdb,
		ttl:    ttl,
		prefix: "docsearch:cache:",
	}
}

// Get 从缓存获取检索结果
func (c *SearchCache) Get(ctx context.Context, q document.SearchQuery) ([]document.Excerpt, bool) {
	key := c.cacheKey(q)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			applog.Warn("[Search/Cache] Failed to read cache", "key", key, "error", err)
		}
		return nil, false
	}

	var excerpts []document.Excerpt
	if err := json.Unmarshal(data, &excerpts); err != nil {
		applog.Warn("[Search/Cache] Failed to unmarshal cached result", "error", err)
		return nil, false
	}

	applog.Debug("[Search/Cache] Hit", "key", key)
	return excerpts, true
}

// Set 写入检索结果到缓存
func (c *SearchCache) Set(ctx context.Context, q document.SearchQuery, excerpts []document.Excerpt) {
	key := c.cacheKey(q)
	data, err := json.Marshal(excerpts)
	if err != nil {
		return
	}

	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		applog.Warn("[Search/Cache] Failed to set cache", "key", key, "error", err)
	}
}

// Invalidate 清除所有检索缓存。新文档入索引后旧结果即失效。
func (c *SearchCache) Invalidate(ctx context.Context) {
	iter := c.redis.Scan(ctx, 0, c.prefix+"*", 500).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		applog.Warn("[Search/Cache] Scan failed", "error", err)
	}
	if len(keys) == 0 {
		return
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		applog.Warn("[Search/Cache] Failed to invalidate", "error", err)
		return
	}
	applog.Info("[Search/Cache] Invalidated", "keys_deleted", len(keys))
}

// cacheKey 生成缓存 key = hash(query + mode + configuration + top)
func (c *SearchCache) cacheKey(q document.SearchQuery) string {
	raw := fmt.Sprintf("%s|%s|%s|%d",
		strings.TrimSpace(q.Text),
		q.Mode,
		q.Configuration,
		q.Top,
	)
	hash := sha256.Sum256([]byte(raw))
	return c.prefix + fmt.Sprintf("%x", hash[:12])
}
