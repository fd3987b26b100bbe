package redisdb

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"docsearch/internal/domain/document"
	applog "docsearch/internal/platform/log"
)

var _ document.IndexLock = (*IndexLock)(nil)

// releaseScript 只删除仍属于自己的锁（TTL 过期后可能已被其他实例重新获取）
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// IndexLock 基于 Redis SETNX 的索引创建锁，多实例部署时只有一个实例执行建索引
type IndexLock struct {
	client *redis.Client
	ttl    time.Duration

	mu     sync.Mutex
	tokens map[string]string // index → 本实例持有的锁令牌
}

// NewIndexLock 创建索引锁
func NewIndexLock(client *redis.Client) *IndexLock {
	return &IndexLock{
		client: client,
		ttl:    30 * time.Second,
		tokens: make(map[string]string),
	}
}

func lockKey(indexName string) string {
	return "docsearch:lock:index:" + indexName
}

// Acquire 获取锁，值为随机令牌
func (l *IndexLock) Acquire(ctx context.Context, indexName string) (bool, error) {
	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, lockKey(indexName), token, l.ttl).Result()
	if err != nil {
		applog.Warn("[IndexLock] Failed to acquire lock", "index", indexName, "error", err)
		return false, err
	}

	if !acquired {
		applog.Debug("[IndexLock] Lock already held", "index", indexName)
		return false, nil
	}

	l.mu.Lock()
	l.tokens[indexName] = token
	l.mu.Unlock()
	applog.Debug("[IndexLock] Lock acquired", "index", indexName)
	return true, nil
}

// Release 释放锁；未持有时什么也不做
func (l *IndexLock) Release(ctx context.Context, indexName string) error {
	l.mu.Lock()
	token, ok := l.tokens[indexName]
	delete(l.tokens, indexName)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	deleted, err := releaseScript.Run(ctx, l.client, []string{lockKey(indexName)}, token).Int()
	if err != nil {
		applog.Warn("[IndexLock] Failed to release lock", "index", indexName, "error", err)
		return err
	}
	if deleted == 0 {
		applog.Warn("[IndexLock] Lock expired before release", "index", indexName)
		return nil
	}
	applog.Debug("[IndexLock] Lock released", "index", indexName)
	return nil
}
